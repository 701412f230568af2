package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zaja/magazin-importer/internal/domain"
)

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

// Create is transaction-aware: inside WithTransaction it rides the same tx as
// the import status update.
func (s *PostStore) Create(ctx context.Context, post *domain.Post) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO posts (
			title, slug, content_html, excerpt, status, published_at,
			hero_image_id, category, tags, meta_title, meta_description,
			keywords, source_url, author
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		RETURNING id`

	var id int64
	err := exec.QueryRowxContext(ctx, query,
		post.Title,
		post.Slug,
		post.ContentHTML,
		post.Excerpt,
		post.Status,
		post.PublishedAt,
		post.HeroImageID,
		post.Category,
		pq.Array(post.Tags),
		post.MetaTitle,
		post.MetaDescription,
		pq.Array(post.Keywords),
		post.SourceURL,
		post.Author,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create post: %w", err)
	}

	post.ID = id
	return id, nil
}

func (s *PostStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM posts WHERE slug = $1)",
		slug,
	).Scan(&exists)
	return exists, err
}

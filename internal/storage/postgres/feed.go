package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zaja/magazin-importer/internal/domain"
)

type FeedStore struct {
	db *sqlx.DB
}

func NewFeedStore(db *sqlx.DB) *FeedStore {
	return &FeedStore{db: db}
}

const feedColumns = `
	id, title, url, enabled, check_interval_seconds, last_checked,
	max_items_per_check, translate_content, auto_publish,
	default_category, default_tags, items_processed, created_at`

func (s *FeedStore) ListEnabled(ctx context.Context) ([]domain.Feed, error) {
	query := `
		SELECT ` + feedColumns + `
		FROM feeds
		WHERE enabled = TRUE
		ORDER BY last_checked NULLS FIRST, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled feeds: %w", err)
	}
	defer rows.Close()

	var feeds []domain.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *feed)
	}
	return feeds, rows.Err()
}

func (s *FeedStore) Get(ctx context.Context, id int64) (*domain.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, id)
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("feed %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (s *FeedStore) UpdatePollState(ctx context.Context, id int64, checkedAt time.Time, processed int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_checked = $2, items_processed = items_processed + $3
		WHERE id = $1`,
		id, checkedAt, processed,
	)
	if err != nil {
		return fmt.Errorf("update feed %d poll state: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*domain.Feed, error) {
	var (
		feed            domain.Feed
		intervalSeconds int64
	)
	err := row.Scan(
		&feed.ID,
		&feed.Title,
		&feed.URL,
		&feed.Enabled,
		&intervalSeconds,
		&feed.LastChecked,
		&feed.MaxItemsPerCheck,
		&feed.TranslateContent,
		&feed.AutoPublish,
		&feed.DefaultCategory,
		pq.Array(&feed.DefaultTags),
		&feed.ItemsProcessed,
		&feed.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	feed.CheckInterval = time.Duration(intervalSeconds) * time.Second
	return &feed, nil
}

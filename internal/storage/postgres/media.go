package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type MediaStore struct {
	db *sqlx.DB
}

func NewMediaStore(db *sqlx.DB) *MediaStore {
	return &MediaStore{db: db}
}

func (s *MediaStore) Create(ctx context.Context, data []byte, filename, mimeType string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO media (filename, mime_type, data)
		VALUES ($1, $2, $3)
		RETURNING id`,
		filename, mimeType, data,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create media asset: %w", err)
	}
	return id, nil
}

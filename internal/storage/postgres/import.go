package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zaja/magazin-importer/internal/domain"
)

type ImportStore struct {
	db *sqlx.DB
}

func NewImportStore(db *sqlx.DB) *ImportStore {
	return &ImportStore{db: db}
}

const importColumns = `
	id, source_url, original_title, feed_id, post_id, status, error_message,
	retry_count, metadata, tokens_used, locked_at, locked_by, processed_at,
	created_at`

// Create inserts a new pending record. The unique index on source_url makes
// this safe against concurrent pollers racing on the same item.
func (s *ImportStore) Create(ctx context.Context, rec *domain.ImportRecord) (int64, error) {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO imports (source_url, original_title, feed_id, status, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_url) DO NOTHING
		RETURNING id`

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		rec.SourceURL,
		rec.OriginalTitle,
		rec.FeedID,
		rec.Status,
		metadata,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("duplicate source url %q", rec.SourceURL)
	}
	if err != nil {
		return 0, fmt.Errorf("create import: %w", err)
	}

	rec.ID = id
	return id, nil
}

func (s *ImportStore) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM imports WHERE source_url = $1)",
		sourceURL,
	).Scan(&exists)
	return exists, err
}

func (s *ImportStore) ExistsByFeedAndTitle(ctx context.Context, feedID int64, title string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM imports WHERE feed_id = $1 AND original_title = $2)",
		feedID, title,
	).Scan(&exists)
	return exists, err
}

func (s *ImportStore) Get(ctx context.Context, id int64) (*domain.ImportRecord, error) {
	query := `SELECT ` + importColumns + ` FROM imports WHERE id = $1`

	row := s.db.QueryRowContext(ctx, query, id)
	rec, err := scanImport(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListPending returns pending records oldest-first, skipping records whose
// lock is fresher than lockedBefore.
func (s *ImportStore) ListPending(ctx context.Context, limit int, lockedBefore time.Time) ([]domain.ImportRecord, error) {
	query := `
		SELECT ` + importColumns + `
		FROM imports
		WHERE status = $1
		  AND (locked_at IS NULL OR locked_at < $2)
		ORDER BY created_at, id
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, domain.ImportPending, lockedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending imports: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportRecord
	for rows.Next() {
		rec, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// AcquireLock claims the record for owner. The condition mirrors the advisory
// protocol: the claim fails only when a different worker holds a lock fresher
// than lockedBefore. Re-acquiring one's own lock succeeds and refreshes it.
func (s *ImportStore) AcquireLock(ctx context.Context, id int64, owner string, lockedBefore, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE imports
		SET locked_at = $3, locked_by = $2, status = $4
		WHERE id = $1
		  AND (locked_by = '' OR locked_by = $2 OR locked_at IS NULL OR locked_at < $5)`,
		id, owner, at, domain.ImportProcessing, lockedBefore,
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock on import %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM imports WHERE id = $1)", id,
	).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}
	return false, nil
}

func (s *ImportStore) ReleaseLock(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE imports SET locked_at = NULL, locked_by = '' WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("release lock on import %d: %w", id, err)
	}
	return nil
}

// MarkCompleted is transaction-aware so the post insert and the status update
// commit atomically.
func (s *ImportStore) MarkCompleted(ctx context.Context, id, postID int64, tokensUsed int, at time.Time) error {
	exec := GetExecutor(ctx, s.db)
	_, err := exec.ExecContext(ctx, `
		UPDATE imports
		SET status = $2, post_id = $3, tokens_used = $4, error_message = '', processed_at = $5
		WHERE id = $1`,
		id, domain.ImportCompleted, postID, tokensUsed, at,
	)
	if err != nil {
		return fmt.Errorf("mark import %d completed: %w", id, err)
	}
	return nil
}

func (s *ImportStore) MarkFailed(ctx context.Context, id int64, message string, retryCount int, terminal bool, at time.Time) error {
	status := domain.ImportPending
	if terminal {
		status = domain.ImportFailed
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE imports
		SET status = $2, error_message = $3, retry_count = $4, processed_at = $5
		WHERE id = $1`,
		id, status, message, retryCount, at,
	)
	if err != nil {
		return fmt.Errorf("mark import %d failed: %w", id, err)
	}
	return nil
}

// Reset puts a record back to pending with a clean slate, for operator retry.
func (s *ImportStore) Reset(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE imports
		SET status = $2, error_message = '', retry_count = 0,
		    locked_at = NULL, locked_by = '', processed_at = NULL
		WHERE id = $1`,
		id, domain.ImportPending,
	)
	if err != nil {
		return fmt.Errorf("reset import %d: %w", id, err)
	}
	return nil
}

func (s *ImportStore) CountByStatus(ctx context.Context, status domain.ImportStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM imports WHERE status = $1", status,
	).Scan(&n)
	return n, err
}

// FailureStats counts terminally failed and total finished imports whose
// outcome landed after since.
func (s *ImportStore) FailureStats(ctx context.Context, since time.Time) (failed, processed int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*)
		FROM imports
		WHERE status IN ($1, $2) AND processed_at >= $3`,
		domain.ImportFailed, domain.ImportCompleted, since,
	).Scan(&failed, &processed)
	return failed, processed, err
}

func (s *ImportStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanImport(row rowScanner) (*domain.ImportRecord, error) {
	var (
		rec      domain.ImportRecord
		metadata []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.SourceURL,
		&rec.OriginalTitle,
		&rec.FeedID,
		&rec.PostID,
		&rec.Status,
		&rec.ErrorMessage,
		&rec.RetryCount,
		&metadata,
		&rec.TokensUsed,
		&rec.LockedAt,
		&rec.LockedBy,
		&rec.ProcessedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for import %d: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

// Package storagetest provides in-memory store implementations for unit
// suites. They mirror the semantics of the Postgres stores, including the
// unique source-URL constraint and the conditional lock update, so tests can
// assert stateful behavior (dedup across passes, lock stealing, retry
// counters) without a database.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zaja/magazin-importer/internal/domain"
)

// FeedStore is an in-memory feed table.
type FeedStore struct {
	mu     sync.Mutex
	nextID int64
	feeds  map[int64]*domain.Feed
}

func NewFeedStore() *FeedStore {
	return &FeedStore{nextID: 1, feeds: map[int64]*domain.Feed{}}
}

// Put inserts or replaces a feed, assigning an ID when missing.
func (s *FeedStore) Put(feed domain.Feed) domain.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed.ID == 0 {
		feed.ID = s.nextID
		s.nextID++
	}
	s.feeds[feed.ID] = &feed
	return feed
}

func (s *FeedStore) ListEnabled(_ context.Context) ([]domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Feed
	for _, f := range s.feeds {
		if f.Enabled {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastChecked, out[j].LastChecked
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	return out, nil
}

func (s *FeedStore) Get(_ context.Context, id int64) (*domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[id]
	if !ok {
		return nil, fmt.Errorf("feed %d: %w", id, domain.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (s *FeedStore) UpdatePollState(_ context.Context, id int64, checkedAt time.Time, processed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[id]
	if !ok {
		return fmt.Errorf("feed %d: %w", id, domain.ErrNotFound)
	}
	f.LastChecked = &checkedAt
	f.ItemsProcessed += processed
	return nil
}

// ImportStore is an in-memory import queue.
type ImportStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*domain.ImportRecord

	// Now is used for CreatedAt stamps; overridable in tests.
	Now func() time.Time
}

func NewImportStore() *ImportStore {
	return &ImportStore{nextID: 1, records: map[int64]*domain.ImportRecord{}, Now: time.Now}
}

func (s *ImportStore) Create(_ context.Context, rec *domain.ImportRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.SourceURL == rec.SourceURL {
			return 0, fmt.Errorf("duplicate source url %q", rec.SourceURL)
		}
	}

	cp := *rec
	cp.ID = s.nextID
	s.nextID++
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.Now()
	}
	s.records[cp.ID] = &cp
	rec.ID = cp.ID
	return cp.ID, nil
}

func (s *ImportStore) ExistsBySourceURL(_ context.Context, sourceURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.SourceURL == sourceURL {
			return true, nil
		}
	}
	return false, nil
}

func (s *ImportStore) ExistsByFeedAndTitle(_ context.Context, feedID int64, title string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.FeedID == feedID && rec.OriginalTitle == title {
			return true, nil
		}
	}
	return false, nil
}

func (s *ImportStore) Get(_ context.Context, id int64) (*domain.ImportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *ImportStore) ListPending(_ context.Context, limit int, lockedBefore time.Time) ([]domain.ImportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ImportRecord
	for _, rec := range s.records {
		if rec.Status != domain.ImportPending {
			continue
		}
		if rec.LockedAt != nil && !rec.LockedAt.Before(lockedBefore) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ImportStore) AcquireLock(_ context.Context, id int64, owner string, lockedBefore, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return false, fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}

	held := rec.LockedBy != "" && rec.LockedBy != owner &&
		rec.LockedAt != nil && !rec.LockedAt.Before(lockedBefore)
	if held {
		return false, nil
	}

	stamp := at
	rec.LockedAt = &stamp
	rec.LockedBy = owner
	rec.Status = domain.ImportProcessing
	return true, nil
}

func (s *ImportStore) ReleaseLock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}
	rec.LockedAt = nil
	rec.LockedBy = ""
	return nil
}

func (s *ImportStore) MarkCompleted(_ context.Context, id, postID int64, tokensUsed int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}
	rec.Status = domain.ImportCompleted
	rec.PostID = &postID
	rec.TokensUsed = tokensUsed
	rec.ErrorMessage = ""
	stamp := at
	rec.ProcessedAt = &stamp
	return nil
}

func (s *ImportStore) MarkFailed(_ context.Context, id int64, message string, retryCount int, terminal bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}
	if terminal {
		rec.Status = domain.ImportFailed
	} else {
		rec.Status = domain.ImportPending
	}
	rec.ErrorMessage = message
	rec.RetryCount = retryCount
	stamp := at
	rec.ProcessedAt = &stamp
	return nil
}

func (s *ImportStore) Reset(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}
	rec.Status = domain.ImportPending
	rec.ErrorMessage = ""
	rec.RetryCount = 0
	rec.LockedAt = nil
	rec.LockedBy = ""
	rec.ProcessedAt = nil
	return nil
}

func (s *ImportStore) CountByStatus(_ context.Context, status domain.ImportStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *ImportStore) FailureStats(_ context.Context, since time.Time) (failed, processed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ProcessedAt == nil || rec.ProcessedAt.Before(since) {
			continue
		}
		switch rec.Status {
		case domain.ImportCompleted:
			processed++
		case domain.ImportFailed:
			failed++
			processed++
		}
	}
	return failed, processed, nil
}

func (s *ImportStore) Ping(context.Context) error { return nil }

// PostStore is an in-memory post table.
type PostStore struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*domain.Post
	slugs  map[string]bool

	// CreateErr, when set, fails the next Create call.
	CreateErr error
}

func NewPostStore() *PostStore {
	return &PostStore{nextID: 1, posts: map[int64]*domain.Post{}, slugs: map[string]bool{}}
}

func (s *PostStore) Create(_ context.Context, post *domain.Post) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		err := s.CreateErr
		s.CreateErr = nil
		return 0, err
	}
	cp := *post
	cp.ID = s.nextID
	s.nextID++
	s.posts[cp.ID] = &cp
	s.slugs[cp.Slug] = true
	return cp.ID, nil
}

func (s *PostStore) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slugs[slug], nil
}

// Get returns a stored post by ID for assertions.
func (s *PostStore) Get(id int64) *domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// AddSlug marks a slug as taken without creating a post.
func (s *PostStore) AddSlug(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slugs[slug] = true
}

// MediaStore is an in-memory media library.
type MediaStore struct {
	mu     sync.Mutex
	nextID int64
	Assets map[int64][]byte
}

func NewMediaStore() *MediaStore {
	return &MediaStore{nextID: 1, Assets: map[int64][]byte{}}
}

func (s *MediaStore) Create(_ context.Context, data []byte, _ string, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.Assets[id] = data
	return id, nil
}

// TxManager is a pass-through transaction manager.
type TxManager struct{}

func (TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

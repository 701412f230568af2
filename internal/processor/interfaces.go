package processor

import (
	"context"
	"time"

	"github.com/zaja/magazin-importer/internal/domain"
)

// ImportStore is the processor's view of the import queue.
type ImportStore interface {
	Get(ctx context.Context, id int64) (*domain.ImportRecord, error)
	// ListPending returns pending records whose lock is absent or older
	// than lockedBefore, oldest-created first.
	ListPending(ctx context.Context, limit int, lockedBefore time.Time) ([]domain.ImportRecord, error)
	// AcquireLock stamps the record with owner and at unless a different
	// owner holds a lock newer than lockedBefore. Re-acquisition by the
	// same owner always succeeds.
	AcquireLock(ctx context.Context, id int64, owner string, lockedBefore, at time.Time) (bool, error)
	// ReleaseLock clears both lock fields regardless of current owner.
	ReleaseLock(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id, postID int64, tokensUsed int, at time.Time) error
	MarkFailed(ctx context.Context, id int64, message string, retryCount int, terminal bool, at time.Time) error
}

// FeedStore resolves the feed an import came from.
type FeedStore interface {
	Get(ctx context.Context, id int64) (*domain.Feed, error)
}

// PostStore creates CMS posts.
type PostStore interface {
	Create(ctx context.Context, post *domain.Post) (int64, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// MediaStore registers optimized hero images.
type MediaStore interface {
	Create(ctx context.Context, data []byte, filename, mime string) (int64, error)
}

// TxManager runs post creation and import completion atomically.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ArticleExtractor pulls content out of a source page.
type ArticleExtractor interface {
	Extract(ctx context.Context, pageURL string) (*domain.ExtractedArticle, error)
}

// ArticleTranslator produces magazine copy from extracted content.
type ArticleTranslator interface {
	Translate(ctx context.Context, src *domain.ExtractedArticle) (*domain.TranslatedArticle, error)
}

// ImageOptimizer downloads and re-encodes a hero image candidate.
type ImageOptimizer interface {
	FetchAndOptimize(ctx context.Context, imageURL string) (data []byte, filename, mime string, err error)
}

// EventPublisher emits post-created events; nil disables publishing.
type EventPublisher interface {
	PostCreated(ctx context.Context, ev domain.PostCreatedEvent) error
}

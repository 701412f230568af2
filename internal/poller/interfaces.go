package poller

import (
	"context"
	"time"

	"github.com/zaja/magazin-importer/internal/domain"
)

// FeedStore provides the feed configuration the poller iterates over.
type FeedStore interface {
	// ListEnabled returns enabled feeds ordered least-recently-checked
	// first, never-checked feeds leading.
	ListEnabled(ctx context.Context) ([]domain.Feed, error)
	Get(ctx context.Context, id int64) (*domain.Feed, error)
	// UpdatePollState stamps lastChecked and adds processed to the feed's
	// cumulative item counter.
	UpdatePollState(ctx context.Context, id int64, checkedAt time.Time, processed int64) error
}

// ImportStore receives new import records and answers duplicate queries.
type ImportStore interface {
	ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)
	ExistsByFeedAndTitle(ctx context.Context, feedID int64, title string) (bool, error)
	Create(ctx context.Context, rec *domain.ImportRecord) (int64, error)
}

// FeedFetcher retrieves and parses one feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.FeedItem, error)
}

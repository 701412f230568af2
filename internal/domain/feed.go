package domain

import "time"

// AutoPublishMode controls what happens to a post created from a feed item.
type AutoPublishMode string

const (
	AutoPublishDraft     AutoPublishMode = "draft"
	AutoPublishScheduled AutoPublishMode = "scheduled"
	AutoPublishPublished AutoPublishMode = "published"
)

// Feed is a polling source configured by an operator. LastChecked and
// ItemsProcessed are mutated only by the poller.
type Feed struct {
	ID               int64
	Title            string
	URL              string
	Enabled          bool
	CheckInterval    time.Duration
	LastChecked      *time.Time
	MaxItemsPerCheck int
	TranslateContent bool
	AutoPublish      AutoPublishMode
	DefaultCategory  *string
	DefaultTags      []string
	ItemsProcessed   int64
	CreatedAt        time.Time
}

// Due reports whether the feed's check interval has elapsed. A feed that was
// never checked is always due.
func (f *Feed) Due(now time.Time) bool {
	if f.LastChecked == nil {
		return true
	}
	return now.Sub(*f.LastChecked) >= f.CheckInterval
}

// FeedItem is a single entry taken from a fetched feed document.
type FeedItem struct {
	Title       string
	Link        string
	Content     string
	Author      string
	PublishedAt *time.Time
	MediaURL    string
}

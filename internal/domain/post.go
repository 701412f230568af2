package domain

import "time"

// PostStatus is the publication state of a CMS post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
)

// Post is the content document created from a completed import. The CMS owns
// posts; the importer only creates them and keeps the reference.
type Post struct {
	ID              int64
	Title           string
	Slug            string
	ContentHTML     string
	Excerpt         string
	Status          PostStatus
	PublishedAt     *time.Time
	HeroImageID     *int64
	Category        *string
	Tags            []string
	MetaTitle       string
	MetaDescription string
	Keywords        []string
	SourceURL       string
	Author          string
	CreatedAt       time.Time
}

// PostCreatedEvent is emitted after an import completes, for downstream CMS
// consumers (cache invalidation, newsletters).
type PostCreatedEvent struct {
	ImportID  int64     `json:"import_id"`
	PostID    int64     `json:"post_id"`
	FeedID    int64     `json:"feed_id"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

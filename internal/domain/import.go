package domain

import "time"

// ImportStatus is the lifecycle state of an import record.
type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// ImportMetadata carries the raw feed-item payload an import was created
// from, so the processor can fall back on it when extraction is thin.
type ImportMetadata struct {
	Content     string     `json:"content,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	MediaURL    string     `json:"media_url,omitempty"`
}

// ImportRecord is one external article candidate queued for processing.
// SourceURL holds the normalized URL and is unique across all records; it is
// the primary de-duplication key.
type ImportRecord struct {
	ID            int64
	SourceURL     string
	OriginalTitle string
	FeedID        int64
	PostID        *int64
	Status        ImportStatus
	ErrorMessage  string
	RetryCount    int
	Metadata      ImportMetadata
	TokensUsed    int
	LockedAt      *time.Time
	LockedBy      string
	ProcessedAt   *time.Time
	CreatedAt     time.Time
}

// LockExpired reports whether the record's processing lock is absent or older
// than the given timeout. Ownership is advisory: any worker may take a record
// whose lock has expired.
func (r *ImportRecord) LockExpired(now time.Time, timeout time.Duration) bool {
	if r.LockedAt == nil {
		return true
	}
	return now.Sub(*r.LockedAt) >= timeout
}

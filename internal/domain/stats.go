package domain

import "time"

// PollStats aggregates one full poller pass across all due feeds.
type PollStats struct {
	FeedsChecked int
	NewItems     int
	Duplicates   int
	Errors       int
	Duration     time.Duration
}

// FeedPollStats summarizes the poll of a single feed.
type FeedPollStats struct {
	FeedID     int64
	Items      int
	NewItems   int
	Duplicates int
}

// BatchStats summarizes one processor batch run.
type BatchStats struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

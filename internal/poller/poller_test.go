package poller

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/zaja/magazin-importer/internal/domain"
	"github.com/zaja/magazin-importer/internal/storage/storagetest"
)

type stubFetcher struct {
	items map[string][]domain.FeedItem
	errs  map[string]error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, feedURL string) ([]domain.FeedItem, error) {
	f.calls++
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}
	return f.items[feedURL], nil
}

type PollerTestSuite struct {
	suite.Suite

	feeds   *storagetest.FeedStore
	imports *storagetest.ImportStore
	fetcher *stubFetcher
	poller  *Poller
}

func (s *PollerTestSuite) SetupTest() {
	s.feeds = storagetest.NewFeedStore()
	s.imports = storagetest.NewImportStore()
	s.fetcher = &stubFetcher{items: map[string][]domain.FeedItem{}, errs: map[string]error{}}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	// Delay of 1ns keeps passes fast while exercising the sleep path.
	s.poller = New(s.feeds, s.imports, s.fetcher, Config{FeedDelayMin: time.Nanosecond, FeedDelayMax: time.Nanosecond}, logger)
}

func TestPollerTestSuite(t *testing.T) {
	suite.Run(t, new(PollerTestSuite))
}

func (s *PollerTestSuite) addFeed(url string, maxItems int) domain.Feed {
	return s.feeds.Put(domain.Feed{
		Title:            "Feed " + url,
		URL:              url,
		Enabled:          true,
		CheckInterval:    30 * time.Minute,
		MaxItemsPerCheck: maxItems,
	})
}

func (s *PollerTestSuite) TestPollAllCreatesPendingImports() {
	feed := s.addFeed("https://src.example/rss", 10)
	published := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.fetcher.items[feed.URL] = []domain.FeedItem{
		{
			Title:       "Foo",
			Link:        "https://news.example/a?utm_source=x",
			Content:     "<p>raw</p>",
			Author:      "Ana",
			PublishedAt: &published,
			MediaURL:    "https://img.example/a.jpg",
		},
	}

	stats, err := s.poller.PollAll(context.Background())
	s.Require().NoError(err)
	s.Equal(1, stats.FeedsChecked)
	s.Equal(1, stats.NewItems)
	s.Equal(0, stats.Duplicates)

	rec, err := s.imports.Get(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal("https://news.example/a", rec.SourceURL)
	s.Equal("Foo", rec.OriginalTitle)
	s.Equal(domain.ImportPending, rec.Status)
	s.Equal(feed.ID, rec.FeedID)
	s.Equal("Ana", rec.Metadata.Author)
	s.Equal("https://img.example/a.jpg", rec.Metadata.MediaURL)

	updated, err := s.feeds.Get(context.Background(), feed.ID)
	s.Require().NoError(err)
	s.NotNil(updated.LastChecked)
	s.Equal(int64(1), updated.ItemsProcessed)
}

func (s *PollerTestSuite) TestSecondPassIsIdempotent() {
	feed := s.addFeed("https://src.example/rss", 10)
	s.fetcher.items[feed.URL] = []domain.FeedItem{
		{Title: "Foo", Link: "https://news.example/a?utm_source=x"},
		{Title: "Bar", Link: "https://news.example/b"},
	}

	stats, err := s.poller.PollAll(context.Background())
	s.Require().NoError(err)
	s.Equal(2, stats.NewItems)

	// Same list again, with tracking-parameter variants of the same URLs.
	s.fetcher.items[feed.URL] = []domain.FeedItem{
		{Title: "Foo", Link: "https://www.news.example/a/"},
		{Title: "Bar", Link: "https://news.example/b#frag"},
	}
	// Feed is no longer due, poll it directly.
	feedStats, err := s.poller.PollFeed(context.Background(), feed.ID)
	s.Require().NoError(err)
	s.Equal(0, feedStats.NewItems)
	s.Equal(2, feedStats.Duplicates)
}

func (s *PollerTestSuite) TestDuplicateTitleWithinFeed() {
	feed := s.addFeed("https://src.example/rss", 10)
	s.fetcher.items[feed.URL] = []domain.FeedItem{
		{Title: "Same headline", Link: "https://news.example/first"},
	}
	_, err := s.poller.PollAll(context.Background())
	s.Require().NoError(err)

	// Different URL, identical title, same feed: treated as duplicate.
	s.fetcher.items[feed.URL] = []domain.FeedItem{
		{Title: "Same headline", Link: "https://news.example/second"},
	}
	stats, err := s.poller.PollFeed(context.Background(), feed.ID)
	s.Require().NoError(err)
	s.Equal(0, stats.NewItems)
	s.Equal(1, stats.Duplicates)
}

func (s *PollerTestSuite) TestDuplicateURLAcrossFeeds() {
	feedA := s.addFeed("https://a.example/rss", 10)
	feedB := s.addFeed("https://b.example/rss", 10)
	s.fetcher.items[feedA.URL] = []domain.FeedItem{
		{Title: "From A", Link: "https://news.example/shared"},
	}
	s.fetcher.items[feedB.URL] = []domain.FeedItem{
		{Title: "From B", Link: "https://news.example/shared?utm_source=b"},
	}

	stats, err := s.poller.PollAll(context.Background())
	s.Require().NoError(err)
	s.Equal(2, stats.FeedsChecked)
	s.Equal(1, stats.NewItems)
	s.Equal(1, stats.Duplicates)
}

func (s *PollerTestSuite) TestFeedErrorDoesNotAbortPass() {
	broken := s.addFeed("https://broken.example/rss", 10)
	healthy := s.addFeed("https://ok.example/rss", 10)
	s.fetcher.errs[broken.URL] = errors.New("connection refused")
	s.fetcher.items[healthy.URL] = []domain.FeedItem{
		{Title: "Ok", Link: "https://news.example/ok"},
	}

	stats, err := s.poller.PollAll(context.Background())
	s.Require().NoError(err)
	s.Equal(2, stats.FeedsChecked)
	s.Equal(1, stats.Errors)
	s.Equal(1, stats.NewItems)
}

func (s *PollerTestSuite) TestMaxItemsPerCheckCapsIntake() {
	feed := s.addFeed("https://src.example/rss", 2)
	s.fetcher.items[feed.URL] = []domain.FeedItem{
		{Title: "One", Link: "https://news.example/1"},
		{Title: "Two", Link: "https://news.example/2"},
		{Title: "Three", Link: "https://news.example/3"},
	}

	stats, err := s.poller.PollAll(context.Background())
	s.Require().NoError(err)
	s.Equal(2, stats.NewItems)

	updated, err := s.feeds.Get(context.Background(), feed.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), updated.ItemsProcessed)
}

func (s *PollerTestSuite) TestItemsWithoutLinkOrTitleSkipped() {
	feed := s.addFeed("https://src.example/rss", 10)
	s.fetcher.items[feed.URL] = []domain.FeedItem{
		{Title: "", Link: "https://news.example/untitled"},
		{Title: "No link", Link: ""},
		{Title: "Valid", Link: "https://news.example/valid"},
	}

	stats, err := s.poller.PollAll(context.Background())
	s.Require().NoError(err)
	s.Equal(1, stats.NewItems)
}

func (s *PollerTestSuite) TestFeedNotDueIsSkipped() {
	feed := s.addFeed("https://src.example/rss", 10)
	recent := time.Now().Add(-time.Minute)
	feed.LastChecked = &recent
	s.feeds.Put(feed)

	stats, err := s.poller.PollAll(context.Background())
	s.Require().NoError(err)
	s.Equal(0, stats.FeedsChecked)
	s.Equal(0, s.fetcher.calls)
}

func (s *PollerTestSuite) TestPollFeedUnknownID() {
	_, err := s.poller.PollFeed(context.Background(), 404)
	s.ErrorIs(err, domain.ErrNotFound)
}

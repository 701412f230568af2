package poller

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/zaja/magazin-importer/internal/domain"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultUserAgent    = "MagazinImporter/1.0 (+https://github.com/zaja/magazin-importer)"
)

// RSSFetcher implements FeedFetcher with gofeed. One instance is shared by
// all feeds; gofeed parsers are safe for sequential reuse and the poller
// visits feeds one at a time.
type RSSFetcher struct {
	parser *gofeed.Parser
}

var _ FeedFetcher = (*RSSFetcher)(nil)

// NewRSSFetcher builds a fetcher with a bounded HTTP client and the importer
// user agent.
func NewRSSFetcher(timeout time.Duration, userAgent string) *RSSFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: timeout}
	return &RSSFetcher{parser: parser}
}

// Fetch downloads and parses the feed, returning items in feed order.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string) ([]domain.FeedItem, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]domain.FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, domain.FeedItem{
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Content:     itemContent(item),
			Author:      itemAuthor(item),
			PublishedAt: itemPublished(item),
			MediaURL:    itemMediaURL(item),
		})
	}
	return items, nil
}

func itemContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

func itemAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return item.Authors[0].Name
	}
	return ""
}

func itemPublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

func itemMediaURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

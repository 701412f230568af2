// Package extractor pulls readable article content out of arbitrary HTML
// pages. Readability runs first; when it finds nothing usable a set of
// heuristics takes over, so extraction returns a best-effort result instead
// of failing on unexpected markup.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/zaja/magazin-importer/internal/domain"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "MagazinImporter/1.0 (+https://github.com/zaja/magazin-importer)"

	maxBodyBytes      = 10 << 20
	excerptMaxChars   = 300
	minReadableLength = 50
)

// Anything that commonly wraps the main article body, tried in order after
// readability gives up.
var contentSelectors = []string{
	"article",
	"#content",
	".content",
	".post-content",
	".entry-content",
	"[role=main]",
	"main",
}

// Config tunes the extractor's HTTP behavior.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// Extractor fetches a page and extracts its main content.
type Extractor struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// New builds an Extractor. Zero config fields fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Extractor{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Extract fetches pageURL and returns the article content found there.
// Fetch failures (timeout, non-2xx) are errors; a page where the heuristics
// find nothing still yields a result with whatever could be salvaged.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*domain.ExtractedArticle, error) {
	body, err := e.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", pageURL, err)
	}

	if art, ok := e.readable(body, parsed); ok {
		return art, nil
	}

	e.logger.Debug("readability found no content, using heuristics", "url", pageURL)
	return e.heuristics(body)
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}
	return body, nil
}

func (e *Extractor) readable(body []byte, pageURL *url.URL) (*domain.ExtractedArticle, bool) {
	art, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, false
	}
	if utf8.RuneCountInString(strings.TrimSpace(art.TextContent)) < minReadableLength {
		return nil, false
	}

	excerpt := strings.TrimSpace(art.Excerpt)
	if excerpt == "" {
		excerpt = Truncate(art.TextContent, excerptMaxChars)
	}

	return &domain.ExtractedArticle{
		Title:       strings.TrimSpace(art.Title),
		ContentHTML: art.Content,
		Excerpt:     excerpt,
		ImageURL:    art.Image,
		Byline:      strings.TrimSpace(art.Byline),
	}, true
}

// heuristics is the fallback path for pages readability cannot handle. A
// missing element means "try the next candidate", never an error.
func (e *Extractor) heuristics(body []byte) (*domain.ExtractedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	var contentHTML string
	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if html, err := node.Html(); err == nil && strings.TrimSpace(node.Text()) != "" {
			contentHTML = html
			break
		}
	}

	imageURL, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	byline, _ := doc.Find(`meta[name="author"]`).First().Attr("content")

	return &domain.ExtractedArticle{
		Title:       title,
		ContentHTML: contentHTML,
		Excerpt:     Truncate(title, excerptMaxChars),
		ImageURL:    imageURL,
		Byline:      strings.TrimSpace(byline),
	}, nil
}

// Truncate cuts plain text to at most max runes, on a rune boundary, with
// whitespace runs collapsed.
func Truncate(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max]))
}

// Package images downloads hero image candidates and re-encodes them for the
// media library. Everything here is best-effort from the pipeline's point of
// view: a failed image never fails an import.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxWidth  = 1200
	defaultQuality   = 85
	maxDownloadBytes = 20 << 20
)

// Config tunes download and re-encode behavior.
type Config struct {
	Timeout     time.Duration
	UserAgent   string
	MaxWidth    int
	JPEGQuality int
}

// Optimizer fetches an image and produces a JPEG sized for the site layout.
type Optimizer struct {
	client    *http.Client
	userAgent string
	maxWidth  int
	quality   int
}

// New builds an Optimizer. Zero config fields fall back to defaults
// (10s timeout, 1200px max width, quality 85).
func New(cfg Config) *Optimizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = defaultMaxWidth
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = defaultQuality
	}
	return &Optimizer{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxWidth:  cfg.MaxWidth,
		quality:   cfg.JPEGQuality,
	}
}

// FetchAndOptimize downloads imageURL, scales it down to the configured max
// width when wider (aspect ratio preserved) and re-encodes it as JPEG.
// Returns the encoded bytes, a filename derived from the URL and the mime
// type.
func (o *Optimizer) FetchAndOptimize(ctx context.Context, imageURL string) ([]byte, string, string, error) {
	raw, err := o.download(ctx, imageURL)
	if err != nil {
		return nil, "", "", err
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", fmt.Errorf("decode image: %w", err)
	}

	if img.Bounds().Dx() > o.maxWidth {
		img = imaging.Resize(img, o.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(o.quality)); err != nil {
		return nil, "", "", fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), filenameFor(imageURL), "image/jpeg", nil
}

func (o *Optimizer) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if o.userAgent != "" {
		req.Header.Set("User-Agent", o.userAgent)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download %s: unexpected status %d", imageURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", imageURL, err)
	}
	return data, nil
}

func filenameFor(imageURL string) string {
	name := "image"
	if u, err := url.Parse(imageURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return name + ".jpg"
}

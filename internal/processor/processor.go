// Package processor runs queued imports through extraction, translation and
// post creation. Items are processed one at a time; only the outbound
// text-generation calls go through the shared rate limiter.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/zaja/magazin-importer/internal/domain"
	"github.com/zaja/magazin-importer/internal/extractor"
	"github.com/zaja/magazin-importer/internal/ratelimit"
	"github.com/zaja/magazin-importer/internal/slugutil"
)

const passthroughExcerptChars = 300

// Config tunes locking, retries and publish scheduling.
type Config struct {
	LockTimeout      time.Duration
	MaxRetries       int
	ScheduleMinDelay time.Duration
	ScheduleMaxDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.LockTimeout == 0 {
		c.LockTimeout = 5 * time.Minute
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.ScheduleMinDelay == 0 {
		c.ScheduleMinDelay = time.Hour
	}
	if c.ScheduleMaxDelay <= c.ScheduleMinDelay {
		c.ScheduleMaxDelay = 48 * time.Hour
	}
}

// Deps wires the processor's collaborators.
type Deps struct {
	Imports    ImportStore
	Feeds      FeedStore
	Posts      PostStore
	Media      MediaStore
	Tx         TxManager
	Extractor  ArticleExtractor
	Translator ArticleTranslator
	Images     ImageOptimizer
	Limiter    *ratelimit.Limiter
	Events     EventPublisher
	Logger     *slog.Logger
}

// Processor drives the per-import pipeline under advisory locks.
type Processor struct {
	imports    ImportStore
	feeds      FeedStore
	posts      PostStore
	media      MediaStore
	tx         TxManager
	extractor  ArticleExtractor
	translator ArticleTranslator
	images     ImageOptimizer
	limiter    *ratelimit.Limiter
	events     EventPublisher
	cfg        Config
	logger     *slog.Logger
	owner      string

	now func() time.Time
}

// New builds a Processor with a process-unique lock owner identity.
func New(deps Deps, cfg Config) *Processor {
	cfg.setDefaults()

	host, _ := os.Hostname()
	if host == "" {
		host = "importer"
	}
	owner := fmt.Sprintf("%s-%d-%04d", host, os.Getpid(), rand.Intn(10000))

	return &Processor{
		imports:    deps.Imports,
		feeds:      deps.Feeds,
		posts:      deps.Posts,
		media:      deps.Media,
		tx:         deps.Tx,
		extractor:  deps.Extractor,
		translator: deps.Translator,
		images:     deps.Images,
		limiter:    deps.Limiter,
		events:     deps.Events,
		cfg:        cfg,
		logger:     deps.Logger,
		owner:      owner,
		now:        time.Now,
	}
}

// Owner returns the lock owner identity, mainly for logging.
func (p *Processor) Owner() string { return p.owner }

// ProcessBatch works through up to batchSize pending imports whose locks are
// absent or expired, oldest first. A record another worker holds is skipped
// without counting as a failure; every processed record releases its lock on
// the way out, success or not.
func (p *Processor) ProcessBatch(ctx context.Context, batchSize int) (*domain.BatchStats, error) {
	start := p.now()

	records, err := p.imports.ListPending(ctx, batchSize, start.Add(-p.cfg.LockTimeout))
	if err != nil {
		return nil, fmt.Errorf("list pending imports: %w", err)
	}

	stats := &domain.BatchStats{}
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		rec := &records[i]

		outcome := p.processItem(ctx, rec)
		switch outcome {
		case outcomeSkipped:
			stats.Skipped++
		case outcomeSucceeded:
			stats.Processed++
			stats.Succeeded++
		case outcomeFailed:
			stats.Processed++
			stats.Failed++
		}
	}

	stats.Duration = p.now().Sub(start)
	p.logger.Info("batch completed",
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)
	return stats, nil
}

// ProcessImport runs one import immediately, for operator tooling. Completed
// imports are refused; reset them first.
func (p *Processor) ProcessImport(ctx context.Context, id int64) error {
	rec, err := p.imports.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == domain.ImportCompleted {
		return fmt.Errorf("import %d already completed", id)
	}

	switch p.processItem(ctx, rec) {
	case outcomeSkipped:
		return fmt.Errorf("import %d is locked by another worker", id)
	case outcomeFailed:
		// The failure is recorded on the record; surface it too.
		updated, err := p.imports.Get(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("process import %d: %s", id, updated.ErrorMessage)
	}
	return nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
)

func (p *Processor) processItem(ctx context.Context, rec *domain.ImportRecord) outcome {
	now := p.now()
	acquired, err := p.imports.AcquireLock(ctx, rec.ID, p.owner, now.Add(-p.cfg.LockTimeout), now)
	if err != nil {
		p.logger.Error("lock acquisition failed", "import_id", rec.ID, "error", err)
		return outcomeSkipped
	}
	if !acquired {
		p.logger.Debug("import locked by another worker", "import_id", rec.ID)
		return outcomeSkipped
	}

	// The lock is released no matter how processing ends.
	defer func() {
		if err := p.imports.ReleaseLock(ctx, rec.ID); err != nil {
			p.logger.Error("lock release failed", "import_id", rec.ID, "error", err)
		}
	}()

	if err := p.runPipeline(ctx, rec); err != nil {
		p.recordFailure(ctx, rec, err)
		return outcomeFailed
	}
	return outcomeSucceeded
}

func (p *Processor) runPipeline(ctx context.Context, rec *domain.ImportRecord) error {
	if rec.FeedID == 0 {
		return fmt.Errorf("import %d has no feed reference", rec.ID)
	}
	feed, err := p.feeds.Get(ctx, rec.FeedID)
	if err != nil {
		return fmt.Errorf("load feed %d: %w", rec.FeedID, err)
	}

	extracted, err := p.extractor.Extract(ctx, rec.SourceURL)
	if err != nil {
		return fmt.Errorf("extract article: %w", err)
	}
	if extracted.Title == "" {
		extracted.Title = rec.OriginalTitle
	}

	article, err := p.translate(ctx, feed, extracted)
	if err != nil {
		return err
	}
	if err := article.Validate(); err != nil {
		return err
	}

	heroID := p.heroImage(ctx, rec, extracted)

	post, err := p.buildPost(ctx, feed, rec, extracted, article, heroID)
	if err != nil {
		return err
	}

	var postID int64
	err = p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		postID, err = p.posts.Create(txCtx, post)
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		if err := p.imports.MarkCompleted(txCtx, rec.ID, postID, article.TokensUsed, p.now()); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Info("import completed",
		"import_id", rec.ID,
		"post_id", postID,
		"slug", post.Slug,
		"tokens", article.TokensUsed,
	)

	if p.events != nil {
		ev := domain.PostCreatedEvent{
			ImportID:  rec.ID,
			PostID:    postID,
			FeedID:    feed.ID,
			Slug:      post.Slug,
			CreatedAt: p.now(),
		}
		if err := p.events.PostCreated(ctx, ev); err != nil {
			p.logger.Warn("post-created event failed", "import_id", rec.ID, "error", err)
		}
	}
	return nil
}

// translate routes through the rate limiter when the feed asks for
// translation; otherwise the extraction passes through as-is.
func (p *Processor) translate(ctx context.Context, feed *domain.Feed, extracted *domain.ExtractedArticle) (*domain.TranslatedArticle, error) {
	if !feed.TranslateContent {
		return passthrough(extracted), nil
	}

	article, err := ratelimit.Submit(ctx, p.limiter, func() (*domain.TranslatedArticle, error) {
		return p.translator.Translate(ctx, extracted)
	})
	if err != nil {
		return nil, fmt.Errorf("translate article: %w", err)
	}
	return article, nil
}

func passthrough(extracted *domain.ExtractedArticle) *domain.TranslatedArticle {
	excerpt := extracted.Excerpt
	if excerpt == "" {
		excerpt = extracted.Title
	}
	return &domain.TranslatedArticle{
		Title:       extracted.Title,
		ContentHTML: extracted.ContentHTML,
		Excerpt:     extractor.Truncate(excerpt, passthroughExcerptChars),
		Keywords:    []string{},
	}
}

// heroImage is best-effort: any failure is logged and the pipeline carries on
// without an image.
func (p *Processor) heroImage(ctx context.Context, rec *domain.ImportRecord, extracted *domain.ExtractedArticle) *int64 {
	imageURL := extracted.ImageURL
	if imageURL == "" {
		imageURL = rec.Metadata.MediaURL
	}
	if imageURL == "" {
		return nil
	}

	data, filename, mime, err := p.images.FetchAndOptimize(ctx, imageURL)
	if err != nil {
		p.logger.Warn("hero image skipped", "import_id", rec.ID, "url", imageURL, "error", err)
		return nil
	}

	id, err := p.media.Create(ctx, data, filename, mime)
	if err != nil {
		p.logger.Warn("hero image registration failed", "import_id", rec.ID, "error", err)
		return nil
	}
	return &id
}

func (p *Processor) buildPost(ctx context.Context, feed *domain.Feed, rec *domain.ImportRecord, extracted *domain.ExtractedArticle, article *domain.TranslatedArticle, heroID *int64) (*domain.Post, error) {
	uniqueSlug, err := slugutil.Unique(slugutil.Make(article.Title), func(candidate string) (bool, error) {
		return p.posts.SlugExists(ctx, candidate)
	})
	if err != nil {
		return nil, fmt.Errorf("generate slug: %w", err)
	}

	post := &domain.Post{
		Title:           article.Title,
		Slug:            uniqueSlug,
		ContentHTML:     article.ContentHTML,
		Excerpt:         article.Excerpt,
		Status:          domain.PostDraft,
		HeroImageID:     heroID,
		Category:        feed.DefaultCategory,
		Tags:            feed.DefaultTags,
		MetaTitle:       article.MetaTitle,
		MetaDescription: article.MetaDescription,
		Keywords:        article.Keywords,
		SourceURL:       rec.SourceURL,
		Author:          firstNonEmpty(extracted.Byline, rec.Metadata.Author),
	}

	switch feed.AutoPublish {
	case domain.AutoPublishPublished:
		post.Status = domain.PostPublished
		at := p.now()
		post.PublishedAt = &at
	case domain.AutoPublishScheduled:
		// Jittered future publish time spreads imported posts out
		// instead of dumping a whole batch at once.
		at := p.now().Add(p.scheduleDelay())
		post.PublishedAt = &at
	}
	return post, nil
}

func (p *Processor) scheduleDelay() time.Duration {
	spread := p.cfg.ScheduleMaxDelay - p.cfg.ScheduleMinDelay
	return p.cfg.ScheduleMinDelay + time.Duration(rand.Int63n(int64(spread)))
}

func (p *Processor) recordFailure(ctx context.Context, rec *domain.ImportRecord, cause error) {
	retries := rec.RetryCount + 1
	terminal := retries >= p.cfg.MaxRetries

	if err := p.imports.MarkFailed(ctx, rec.ID, cause.Error(), retries, terminal, p.now()); err != nil {
		p.logger.Error("failure bookkeeping failed", "import_id", rec.ID, "error", err)
		return
	}

	if terminal {
		p.logger.Error("import failed permanently",
			"import_id", rec.ID,
			"url", rec.SourceURL,
			"retries", retries,
			"error", cause,
		)
		return
	}
	p.logger.Warn("import failed, will retry",
		"import_id", rec.ID,
		"url", rec.SourceURL,
		"retries", retries,
		"error", cause,
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

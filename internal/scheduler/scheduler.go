package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/zaja/magazin-importer/internal/domain"
)

// Poller runs one pass over all due feeds.
type Poller interface {
	PollAll(ctx context.Context) (*domain.PollStats, error)
}

// Processor runs one batch of pending imports.
type Processor interface {
	ProcessBatch(ctx context.Context, limit int) (*domain.BatchStats, error)
}

type Config struct {
	PollInterval    time.Duration
	ProcessInterval time.Duration
	BatchSize       int
	RunTimeout      time.Duration
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Minute
	}
	if c.ProcessInterval <= 0 {
		c.ProcessInterval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 10 * time.Minute
	}
}

// Scheduler drives the poll and process loops on independent tickers.
type Scheduler struct {
	poller    Poller
	processor Processor
	cfg       Config
	logger    *slog.Logger
}

func NewScheduler(poller Poller, processor Processor, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.setDefaults()
	return &Scheduler{
		poller:    poller,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start blocks until ctx is cancelled. Both loops fire once immediately so a
// restart does not wait a full interval to resume work.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"poll_interval", s.cfg.PollInterval,
		"process_interval", s.cfg.ProcessInterval,
	)

	s.runPoll(ctx)
	s.runProcess(ctx)

	pollTicker := time.NewTicker(s.cfg.PollInterval)
	defer pollTicker.Stop()
	processTicker := time.NewTicker(s.cfg.ProcessInterval)
	defer processTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-pollTicker.C:
			s.runPoll(ctx)
		case <-processTicker.C:
			s.runProcess(ctx)
		}
	}
}

func (s *Scheduler) runPoll(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	if _, err := s.poller.PollAll(runCtx); err != nil {
		s.logger.Error("poll pass failed", "error", err)
	}
}

func (s *Scheduler) runProcess(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	if _, err := s.processor.ProcessBatch(runCtx, s.cfg.BatchSize); err != nil {
		s.logger.Error("process batch failed", "error", err)
	}
}

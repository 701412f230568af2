// Package monitor reports pipeline health for the ops endpoints.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/zaja/magazin-importer/internal/domain"
)

// ImportStore is the slice of the import store the monitor reads from.
type ImportStore interface {
	CountByStatus(ctx context.Context, status domain.ImportStatus) (int, error)
	FailureStats(ctx context.Context, since time.Time) (failed, processed int, err error)
	Ping(ctx context.Context) error
}

// AIChecker reports whether the translation backend is usable.
type AIChecker interface {
	Ready() bool
}

// Report is the health snapshot served by GET /api/health.
type Report struct {
	Healthy      bool    `json:"healthy"`
	Database     string  `json:"database"`
	AIConfigured bool    `json:"ai_configured"`
	QueueDepth   int     `json:"queue_depth"`
	Processing   int     `json:"processing"`
	FailureRate  float64 `json:"failure_rate_24h"`
}

// Monitor aggregates store counters into health reports.
type Monitor struct {
	imports ImportStore
	ai      AIChecker
	window  time.Duration
	now     func() time.Time
}

func New(imports ImportStore, ai AIChecker) *Monitor {
	return &Monitor{
		imports: imports,
		ai:      ai,
		window:  24 * time.Hour,
		now:     time.Now,
	}
}

// QueueDepth returns the number of imports waiting to be processed.
func (m *Monitor) QueueDepth(ctx context.Context) (int, error) {
	n, err := m.imports.CountByStatus(ctx, domain.ImportPending)
	if err != nil {
		return 0, fmt.Errorf("count pending imports: %w", err)
	}
	return n, nil
}

// FailureRate returns failed/processed over the monitoring window.
// A window with no processed imports reports 0.
func (m *Monitor) FailureRate(ctx context.Context) (float64, error) {
	failed, processed, err := m.imports.FailureStats(ctx, m.now().Add(-m.window))
	if err != nil {
		return 0, fmt.Errorf("failure stats: %w", err)
	}
	if processed == 0 {
		return 0, nil
	}
	return float64(failed) / float64(processed), nil
}

// Health builds the full report. A failing store ping marks the report
// unhealthy but still returns it, so the endpoint can show what is wrong.
func (m *Monitor) Health(ctx context.Context) Report {
	report := Report{Healthy: true, Database: "ok"}

	if err := m.imports.Ping(ctx); err != nil {
		report.Healthy = false
		report.Database = err.Error()
		return report
	}

	if m.ai != nil {
		report.AIConfigured = m.ai.Ready()
	}

	if depth, err := m.QueueDepth(ctx); err == nil {
		report.QueueDepth = depth
	}
	if processing, err := m.imports.CountByStatus(ctx, domain.ImportProcessing); err == nil {
		report.Processing = processing
	}
	if rate, err := m.FailureRate(ctx); err == nil {
		report.FailureRate = rate
	}
	return report
}

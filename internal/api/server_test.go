package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaja/magazin-importer/internal/domain"
	"github.com/zaja/magazin-importer/internal/monitor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPoller struct {
	stats *domain.FeedPollStats
	err   error
}

func (s *stubPoller) PollFeed(_ context.Context, feedID int64) (*domain.FeedPollStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.stats
	cp.FeedID = feedID
	return &cp, nil
}

type stubProcessor struct {
	err error
}

func (s *stubProcessor) ProcessImport(context.Context, int64) error { return s.err }

type stubImports struct {
	records map[int64]*domain.ImportRecord
	reset   []int64
}

func (s *stubImports) Get(_ context.Context, id int64) (*domain.ImportRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("import %d: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

func (s *stubImports) Reset(_ context.Context, id int64) error {
	s.reset = append(s.reset, id)
	return nil
}

type stubHealth struct {
	report monitor.Report
}

func (s *stubHealth) Health(context.Context) monitor.Report { return s.report }

func newTestServer(poller *stubPoller, proc *stubProcessor, imports *stubImports, health *stubHealth) *Server {
	if poller == nil {
		poller = &stubPoller{stats: &domain.FeedPollStats{}}
	}
	if proc == nil {
		proc = &stubProcessor{}
	}
	if imports == nil {
		imports = &stubImports{records: map[int64]*domain.ImportRecord{}}
	}
	if health == nil {
		health = &stubHealth{report: monitor.Report{Healthy: true, Database: "ok"}}
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewServer(poller, proc, imports, health, logger)
}

func doRequest(t *testing.T, srv *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthOK(t *testing.T) {
	health := &stubHealth{report: monitor.Report{
		Healthy:      true,
		Database:     "ok",
		AIConfigured: true,
		QueueDepth:   5,
	}}
	srv := newTestServer(nil, nil, nil, health)

	rec, body := doRequest(t, srv, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["healthy"])
	assert.Equal(t, float64(5), body["queue_depth"])
}

func TestHealthUnavailableWhenDatabaseDown(t *testing.T) {
	health := &stubHealth{report: monitor.Report{Healthy: false, Database: "connection refused"}}
	srv := newTestServer(nil, nil, nil, health)

	rec, body := doRequest(t, srv, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["healthy"])
}

func TestPollFeed(t *testing.T) {
	poller := &stubPoller{stats: &domain.FeedPollStats{Items: 10, NewItems: 3, Duplicates: 7}}
	srv := newTestServer(poller, nil, nil, nil)

	rec, body := doRequest(t, srv, http.MethodPost, "/api/feeds/4/poll")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4), body["feed_id"])
	assert.Equal(t, float64(3), body["new_items"])
	assert.Equal(t, float64(7), body["duplicates"])
}

func TestPollFeedNotFound(t *testing.T) {
	poller := &stubPoller{err: fmt.Errorf("feed 4: %w", domain.ErrNotFound)}
	srv := newTestServer(poller, nil, nil, nil)

	rec, _ := doRequest(t, srv, http.MethodPost, "/api/feeds/4/poll")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPollFeedBadID(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil)
	rec, _ := doRequest(t, srv, http.MethodPost, "/api/feeds/abc/poll")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessImport(t *testing.T) {
	srv := newTestServer(nil, &stubProcessor{}, nil, nil)

	rec, body := doRequest(t, srv, http.MethodPost, "/api/imports/9/process")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", body["status"])
}

func TestProcessImportFailure(t *testing.T) {
	srv := newTestServer(nil, &stubProcessor{err: errors.New("extract article: timeout")}, nil, nil)

	rec, body := doRequest(t, srv, http.MethodPost, "/api/imports/9/process")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "timeout")
}

func TestResetImport(t *testing.T) {
	imports := &stubImports{records: map[int64]*domain.ImportRecord{
		12: {ID: 12, Status: domain.ImportFailed},
	}}
	srv := newTestServer(nil, nil, imports, nil)

	rec, body := doRequest(t, srv, http.MethodPost, "/api/imports/12/reset")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, []int64{12}, imports.reset)
}

func TestResetImportNotFound(t *testing.T) {
	imports := &stubImports{records: map[int64]*domain.ImportRecord{}}
	srv := newTestServer(nil, nil, imports, nil)

	rec, _ := doRequest(t, srv, http.MethodPost, "/api/imports/99/reset")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

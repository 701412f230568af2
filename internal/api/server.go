// Package api exposes the operator HTTP endpoints: health and the manual
// triggers for polling and processing.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zaja/magazin-importer/internal/domain"
	"github.com/zaja/magazin-importer/internal/monitor"
)

// FeedPoller triggers a poll of a single feed.
type FeedPoller interface {
	PollFeed(ctx context.Context, feedID int64) (*domain.FeedPollStats, error)
}

// ImportProcessor runs the pipeline for a single import record.
type ImportProcessor interface {
	ProcessImport(ctx context.Context, importID int64) error
}

// ImportStore is the slice of the import store the API writes through.
type ImportStore interface {
	Get(ctx context.Context, id int64) (*domain.ImportRecord, error)
	Reset(ctx context.Context, id int64) error
}

// HealthReporter builds the health snapshot.
type HealthReporter interface {
	Health(ctx context.Context) monitor.Report
}

// Server wires the handlers to their collaborators.
type Server struct {
	poller    FeedPoller
	processor ImportProcessor
	imports   ImportStore
	health    HealthReporter
	logger    *slog.Logger
}

func NewServer(poller FeedPoller, processor ImportProcessor, imports ImportStore, health HealthReporter, logger *slog.Logger) *Server {
	return &Server{
		poller:    poller,
		processor: processor,
		imports:   imports,
		health:    health,
		logger:    logger,
	}
}

// Router builds the gin engine with all operator routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	g := r.Group("/api")
	g.GET("/health", s.handleHealth)
	g.POST("/feeds/:id/poll", s.handlePollFeed)
	g.POST("/imports/:id/process", s.handleProcessImport)
	g.POST("/imports/:id/reset", s.handleResetImport)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.health.Health(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (s *Server) handlePollFeed(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	stats, err := s.poller.PollFeed(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("manual feed poll failed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"feed_id":    id,
		"items":      stats.Items,
		"new_items":  stats.NewItems,
		"duplicates": stats.Duplicates,
	})
}

func (s *Server) handleProcessImport(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.processor.ProcessImport(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"import_id": id, "status": string(domain.ImportCompleted)})
}

func (s *Server) handleResetImport(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if _, err := s.imports.Get(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := s.imports.Reset(c.Request.Context(), id); err != nil {
		s.logger.Error("import reset failed", "import_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"import_id": id, "status": string(domain.ImportPending)})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

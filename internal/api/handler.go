package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/domain"
	apperrors "github.com/githunter/githunter/internal/errors"
)

// ReportBuilder builds a profile report synchronously
type ReportBuilder interface {
	Build(ctx context.Context, username string) (*domain.Report, error)
}

// JobQueue is the async surface the handlers need
type JobQueue interface {
	Enqueue(ctx context.Context, username, view, jobContext string) (*domain.Job, error)
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
}

// ReportCache is the read side of the cache-aside store. Both lookups are
// best-effort: a false return only means "recompute or consult the queue".
type ReportCache interface {
	GetAnalysisByUsername(ctx context.Context, login string) (*domain.Analysis, bool)
	GetAnalysisByJobID(ctx context.Context, jobID string) (*domain.Analysis, bool)
}

// Handler handles API requests
type Handler struct {
	builder ReportBuilder
	queue   JobQueue
	cache   ReportCache
	log     *zap.SugaredLogger
}

// NewHandler creates a new API handler
func NewHandler(builder ReportBuilder, queue JobQueue, cache ReportCache, log *zap.SugaredLogger) *Handler {
	return &Handler{
		builder: builder,
		queue:   queue,
		cache:   cache,
		log:     log.Named("api"),
	}
}

// GetUser returns a profile report synchronously, cache first.
// GET /api/user/:username
func (h *Handler) GetUser(c *gin.Context) {
	username := c.Param("username")

	if cached, ok := h.cache.GetAnalysisByUsername(c.Request.Context(), username); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	rep, err := h.builder.Build(c.Request.Context(), username)
	if err != nil {
		h.log.Warnw("sync report failed", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorMessage(err)})
		return
	}

	// Not cached on purpose: only the analysis job writes the cache, so a
	// plain report never overwrites an expired full analysis
	c.JSON(http.StatusOK, domain.Analysis{Report: *rep})
}

// analyzeRequest is the POST /api/analyze body
type analyzeRequest struct {
	Username string `json:"username" binding:"required"`
	View     string `json:"view"`
	Context  string `json:"context"`
}

// Analyze enqueues an asynchronous analysis job.
// POST /api/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	job, err := h.queue.Enqueue(c.Request.Context(), req.Username, req.View, req.Context)
	if err != nil {
		if apperrors.IsUnavailable(err) {
			h.log.Warnw("enqueue failed, broker unavailable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorMessage(err)})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": job.ID})
}

// GetStatus returns the status and progress of a job.
// GET /api/status/:jobId
func (h *Handler) GetStatus(c *gin.Context) {
	job, err := h.queue.GetStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorMessage(err)})
		return
	}

	body := gin.H{"status": job.Status, "progress": job.Progress}
	if job.Error != "" {
		body["error"] = job.Error
	}
	c.JSON(http.StatusOK, body)
}

// GetReport returns the finished analysis for a job. The cached payload
// is the common path and needs no queue lookup at all.
// GET /api/report/:jobId
func (h *Handler) GetReport(c *gin.Context) {
	jobID := c.Param("jobId")

	if analysis, ok := h.cache.GetAnalysisByJobID(c.Request.Context(), jobID); ok {
		c.JSON(http.StatusOK, analysis)
		return
	}

	job, err := h.queue.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorMessage(err)})
		return
	}

	if job.Status != domain.JobStatusCompleted {
		c.JSON(http.StatusAccepted, gin.H{
			"error":    "Report not ready",
			"status":   job.Status,
			"progress": job.Progress,
		})
		return
	}

	// Completed but no cached payload: the report TTL is shorter than the
	// status TTL, so treat it as expired
	c.JSON(http.StatusNotFound, gin.H{"error": "Report expired or not found"})
}

// GetLatestReport returns the most recent cached analysis for a username.
// GET /api/report/latest/:username
func (h *Handler) GetLatestReport(c *gin.Context) {
	if c.Param("jobId") != "latest" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	username := c.Param("username")

	if analysis, ok := h.cache.GetAnalysisByUsername(c.Request.Context(), username); ok {
		c.JSON(http.StatusOK, analysis)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "No cached report for user"})
}

// HealthCheck returns the health status of the API.
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// errorMessage unwraps AppError messages so upstream messages (rate
// limits in particular) pass through verbatim
func errorMessage(err error) string {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.Message
	}
	return err.Error()
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/domain"
	apperrors "github.com/githunter/githunter/internal/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBuilder struct {
	rep   *domain.Report
	err   error
	calls int
}

func (f *fakeBuilder) Build(ctx context.Context, username string) (*domain.Report, error) {
	f.calls++
	return f.rep, f.err
}

type fakeQueue struct {
	job        *domain.Job
	enqueueErr error
	status     *domain.Job
	statusErr  error
}

func (f *fakeQueue) Enqueue(ctx context.Context, username, view, jobContext string) (*domain.Job, error) {
	return f.job, f.enqueueErr
}

func (f *fakeQueue) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.status, f.statusErr
}

type fakeCache struct {
	byUser map[string]*domain.Analysis
	byJob  map[string]*domain.Analysis
}

func (f *fakeCache) GetAnalysisByUsername(ctx context.Context, login string) (*domain.Analysis, bool) {
	a, ok := f.byUser[login]
	return a, ok
}

func (f *fakeCache) GetAnalysisByJobID(ctx context.Context, jobID string) (*domain.Analysis, bool) {
	a, ok := f.byJob[jobID]
	return a, ok
}

func newTestRouter(builder *fakeBuilder, queue *fakeQueue, cache *fakeCache) *gin.Engine {
	if cache.byUser == nil {
		cache.byUser = map[string]*domain.Analysis{}
	}
	if cache.byJob == nil {
		cache.byJob = map[string]*domain.Analysis{}
	}
	handler := NewHandler(builder, queue, cache, zap.NewNop().Sugar())
	return SetupRoutes(handler, zap.NewNop().Sugar())
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetUserCacheHit(t *testing.T) {
	builder := &fakeBuilder{}
	cache := &fakeCache{byUser: map[string]*domain.Analysis{
		"alice": {Report: domain.Report{User: domain.Profile{Login: "alice"}}},
	}}
	router := newTestRouter(builder, &fakeQueue{}, cache)

	w := doRequest(router, http.MethodGet, "/api/user/alice", "")

	assert.Equal(t, http.StatusOK, w.Code)
	// A hit never reaches upstream
	assert.Equal(t, 0, builder.calls)
}

func TestGetUserCacheMiss(t *testing.T) {
	builder := &fakeBuilder{rep: &domain.Report{
		User:  domain.Profile{Login: "Bob"},
		Stats: domain.Stats{Stars: 7},
	}}
	router := newTestRouter(builder, &fakeQueue{}, &fakeCache{})

	w := doRequest(router, http.MethodGet, "/api/user/bob", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, builder.calls)

	var analysis domain.Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, "Bob", analysis.Report.User.Login)
	assert.Equal(t, 7, analysis.Report.Stats.Stars)
	assert.Nil(t, analysis.Score)
}

func TestGetUserUpstreamError(t *testing.T) {
	builder := &fakeBuilder{err: apperrors.NewRateLimitedError("API rate limit exceeded for installation")}
	router := newTestRouter(builder, &fakeQueue{}, &fakeCache{})

	w := doRequest(router, http.MethodGet, "/api/user/alice", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// The upstream rate-limit message passes through verbatim
	assert.Equal(t, "API rate limit exceeded for installation", decodeBody(t, w)["error"])
}

func TestAnalyzeAccepted(t *testing.T) {
	queue := &fakeQueue{job: &domain.Job{ID: "job-1", Status: domain.JobStatusQueued}}
	router := newTestRouter(&fakeBuilder{}, queue, &fakeCache{})

	w := doRequest(router, http.MethodPost, "/api/analyze", `{"username":"alice"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "job-1", decodeBody(t, w)["jobId"])
}

func TestAnalyzeMissingUsername(t *testing.T) {
	router := newTestRouter(&fakeBuilder{}, &fakeQueue{}, &fakeCache{})

	w := doRequest(router, http.MethodPost, "/api/analyze", `{"view":"recruiter"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "username is required", decodeBody(t, w)["error"])
}

func TestAnalyzeBrokerUnavailable(t *testing.T) {
	queue := &fakeQueue{enqueueErr: apperrors.NewUnavailableError("queue broker unavailable", nil)}
	router := newTestRouter(&fakeBuilder{}, queue, &fakeCache{})

	w := doRequest(router, http.MethodPost, "/api/analyze", `{"username":"alice"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	// The body never leaks broker details
	assert.Equal(t, "Service unavailable", decodeBody(t, w)["error"])
}

func TestGetStatus(t *testing.T) {
	queue := &fakeQueue{status: &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing, Progress: 60}}
	router := newTestRouter(&fakeBuilder{}, queue, &fakeCache{})

	w := doRequest(router, http.MethodGet, "/api/status/job-1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, float64(60), body["progress"])
	assert.NotContains(t, body, "error")
}

func TestGetStatusFailedJobCarriesReason(t *testing.T) {
	queue := &fakeQueue{status: &domain.Job{ID: "job-1", Status: domain.JobStatusFailed, Error: "user not found"}}
	router := newTestRouter(&fakeBuilder{}, queue, &fakeCache{})

	w := doRequest(router, http.MethodGet, "/api/status/job-1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user not found", decodeBody(t, w)["error"])
}

func TestGetStatusUnknownJob(t *testing.T) {
	queue := &fakeQueue{statusErr: apperrors.NewNotFoundError("job")}
	router := newTestRouter(&fakeBuilder{}, queue, &fakeCache{})

	w := doRequest(router, http.MethodGet, "/api/status/nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Job not found", decodeBody(t, w)["error"])
}

func TestGetReportCached(t *testing.T) {
	cache := &fakeCache{byJob: map[string]*domain.Analysis{
		"job-1": {Report: domain.Report{User: domain.Profile{Login: "alice"}}},
	}}
	// No queue lookup configured: the cached path must not need one
	router := newTestRouter(&fakeBuilder{}, &fakeQueue{statusErr: apperrors.NewInternalError("must not be called", nil)}, cache)

	w := doRequest(router, http.MethodGet, "/api/report/job-1", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetReportNotReady(t *testing.T) {
	queue := &fakeQueue{status: &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing, Progress: 85}}
	router := newTestRouter(&fakeBuilder{}, queue, &fakeCache{})

	w := doRequest(router, http.MethodGet, "/api/report/job-1", "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Report not ready", body["error"])
	assert.Equal(t, float64(85), body["progress"])
}

func TestGetReportExpired(t *testing.T) {
	queue := &fakeQueue{status: &domain.Job{ID: "job-1", Status: domain.JobStatusCompleted, Progress: 100}}
	router := newTestRouter(&fakeBuilder{}, queue, &fakeCache{})

	w := doRequest(router, http.MethodGet, "/api/report/job-1", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Report expired or not found", decodeBody(t, w)["error"])
}

func TestGetLatestReport(t *testing.T) {
	cache := &fakeCache{byUser: map[string]*domain.Analysis{
		"alice": {Report: domain.Report{User: domain.Profile{Login: "alice"}}},
	}}
	router := newTestRouter(&fakeBuilder{}, &fakeQueue{}, cache)

	w := doRequest(router, http.MethodGet, "/api/report/latest/alice", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/report/latest/bob", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&fakeBuilder{}, &fakeQueue{}, &fakeCache{})

	w := doRequest(router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

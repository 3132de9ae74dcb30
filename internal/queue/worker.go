package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/cache"
	"github.com/githunter/githunter/internal/domain"
	"github.com/githunter/githunter/internal/metrics"
	"github.com/githunter/githunter/internal/report"
	"github.com/githunter/githunter/internal/sampler"
	"github.com/githunter/githunter/internal/scoring"
)

// dequeueWait is how long one poll blocks; short enough that Run notices
// context cancellation promptly
const dequeueWait = 2 * time.Second

// Progress checkpoints. Aggregation is the expensive stage, so most of
// the bar is spent on it.
const (
	progressPickedUp   = 5
	progressAggregated = 60
	progressSampled    = 85
	progressDone       = 100
)

// Worker executes analysis jobs from the queue. Each job runs the
// aggregation, sampling and scoring stages sequentially, each under its
// own deadline; the worker is the only mutator of a job after pickup.
type Worker struct {
	queue        *Queue
	builder      *report.Builder
	sampler      *sampler.Sampler
	scorer       scoring.Scorer
	store        *cache.Store
	concurrency  int
	stageTimeout time.Duration
	log          *zap.SugaredLogger
}

// NewWorker creates a worker. scorer may be nil when no scoring backend
// is configured; jobs then complete with the aggregation result only.
func NewWorker(q *Queue, builder *report.Builder, smp *sampler.Sampler, scorer scoring.Scorer,
	store *cache.Store, concurrency int, stageTimeout time.Duration, log *zap.SugaredLogger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:        q,
		builder:      builder,
		sampler:      smp,
		scorer:       scorer,
		store:        store,
		concurrency:  concurrency,
		stageTimeout: stageTimeout,
		log:          log.Named("worker"),
	}
}

// Run polls the queue until ctx is cancelled. Throughput is bounded by
// the upstream rate limit rather than local compute, so the default
// concurrency is one.
func (w *Worker) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < w.concurrency; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			w.loop(ctx)
		}()
	}
	for i := 0; i < w.concurrency; i++ {
		<-done
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		req, err := w.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warnw("dequeue failed, backing off", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueWait):
			}
			continue
		}
		if req == nil {
			continue
		}

		w.process(ctx, req)
	}
}

// process runs one job to a terminal state. Any stage error fails the
// job with its reason; there is no retry — rate limits, missing profiles
// and scoring outages are not usefully transient within one job's budget.
func (w *Worker) process(ctx context.Context, req *domain.JobRequest) {
	log := w.log.With("job_id", req.ID, "username", req.Username)
	log.Infow("job picked up")

	w.setStatus(ctx, req.ID, domain.JobStatusProcessing, progressPickedUp, "")

	rep, err := w.buildStage(ctx, req.Username)
	if err != nil {
		w.fail(ctx, req.ID, log, err)
		return
	}
	w.setStatus(ctx, req.ID, domain.JobStatusProcessing, progressAggregated, "")

	samples := w.sampleStage(ctx, rep.Repos)
	w.setStatus(ctx, req.ID, domain.JobStatusProcessing, progressSampled, "")

	analysis := &domain.Analysis{Report: *rep}
	if w.scorer != nil {
		score, err := w.scoreStage(ctx, rep, samples, req.View, req.Context)
		if err != nil {
			w.fail(ctx, req.ID, log, err)
			return
		}
		analysis.Score = score
	}

	// Cache under both the job id and the canonical login, which may
	// differ in case from the enqueued input
	w.store.SetAnalysisByJobID(ctx, req.ID, analysis)
	w.store.SetAnalysisByUsername(ctx, rep.User.Login, analysis)

	w.setStatus(ctx, req.ID, domain.JobStatusCompleted, progressDone, "")
	metrics.JobsProcessed.WithLabelValues(string(domain.JobStatusCompleted)).Inc()
	log.Infow("job completed", "login", rep.User.Login)
}

func (w *Worker) buildStage(ctx context.Context, username string) (*domain.Report, error) {
	stageCtx, cancel := w.stageContext(ctx)
	defer cancel()
	return w.builder.Build(stageCtx, username)
}

func (w *Worker) sampleStage(ctx context.Context, repos []domain.Repo) *domain.CodeSamples {
	if w.sampler == nil {
		return nil
	}
	stageCtx, cancel := w.stageContext(ctx)
	defer cancel()
	return w.sampler.Collect(stageCtx, repos)
}

func (w *Worker) scoreStage(ctx context.Context, rep *domain.Report, samples *domain.CodeSamples, view, jobContext string) (*domain.ScoreResult, error) {
	stageCtx, cancel := w.stageContext(ctx)
	defer cancel()
	return w.scorer.Score(stageCtx, rep, samples, view, jobContext)
}

// stageContext applies the per-stage deadline so an unresponsive
// upstream cannot stall the worker indefinitely
func (w *Worker) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.stageTimeout)
}

func (w *Worker) fail(ctx context.Context, jobID string, log *zap.SugaredLogger, err error) {
	w.setStatus(ctx, jobID, domain.JobStatusFailed, 0, err.Error())
	metrics.JobsProcessed.WithLabelValues(string(domain.JobStatusFailed)).Inc()
	log.Warnw("job failed", "error", err)
}

func (w *Worker) setStatus(ctx context.Context, jobID string, status domain.JobStatus, progress int, errMsg string) {
	// Use a detached context so a cancelled job can still record its
	// terminal state
	if err := w.queue.SetStatus(context.WithoutCancel(ctx), jobID, status, progress, errMsg); err != nil {
		w.log.Warnw("failed to write job status", "job_id", jobID, "status", status, "error", err)
	}
}

// Package queue implements the durable analysis job queue and its status
// protocol over a Redis broker.
//
// Unlike the cache store, the broker is a hard dependency of the async
// path: an enqueue that cannot reach it surfaces as service-unavailable.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/domain"
	apperrors "github.com/githunter/githunter/internal/errors"
)

// pendingKey is the list the worker pops job payloads from
const pendingKey = "analysis:pending"

func statusKey(jobID string) string { return "analysis:job:" + jobID }

// Queue is the broker handle shared by the API (enqueue, status reads)
// and the worker (dequeue, status writes)
type Queue struct {
	client    *redis.Client
	statusTTL time.Duration
	log       *zap.SugaredLogger
}

// New creates a queue over the given Redis URL
func New(redisURL string, statusTTL time.Duration, log *zap.SugaredLogger) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &Queue{
		client:    redis.NewClient(opts),
		statusTTL: statusTTL,
		log:       log.Named("queue"),
	}, nil
}

// Enqueue creates a job and pushes it onto the pending list. The initial
// status record is written before the push so a client polling right
// after enqueue never sees "not found"; if the push then fails, the
// record is removed so no partial job is left behind.
func (q *Queue) Enqueue(ctx context.Context, username, view, jobContext string) (*domain.Job, error) {
	job := &domain.Job{
		ID:     uuid.New().String(),
		Status: domain.JobStatusQueued,
	}

	if err := q.SetStatus(ctx, job.ID, domain.JobStatusQueued, 0, ""); err != nil {
		return nil, apperrors.NewUnavailableError("queue broker unavailable", err)
	}

	payload, err := json.Marshal(domain.JobRequest{
		ID:       job.ID,
		Username: username,
		View:     view,
		Context:  jobContext,
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode job", err)
	}

	if err := q.client.LPush(ctx, pendingKey, payload).Err(); err != nil {
		if delErr := q.client.Del(context.WithoutCancel(ctx), statusKey(job.ID)).Err(); delErr != nil {
			q.log.Warnw("failed to remove orphaned status record", "job_id", job.ID, "error", delErr)
		}
		return nil, apperrors.NewUnavailableError("queue broker unavailable", err)
	}

	return job, nil
}

// Dequeue blocks up to timeout for the next job payload. It returns
// (nil, nil) when the wait times out with nothing pending.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.JobRequest, error) {
	res, err := q.client.BRPop(ctx, timeout, pendingKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, nil
	}

	var req domain.JobRequest
	if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
		q.log.Errorw("dropping undecodable job payload", "error", err)
		return nil, nil
	}
	return &req, nil
}

// statusRecord is the stored shape. Progress is kept raw so a
// non-numeric value degrades to 0 instead of failing the status read.
type statusRecord struct {
	Status   domain.JobStatus `json:"status"`
	Progress json.RawMessage  `json:"progress"`
	Error    string           `json:"error,omitempty"`
}

// GetStatus returns the public status of a job, or a not-found error for
// an unrecognized id
func (q *Queue) GetStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	data, err := q.client.Get(ctx, statusKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NewNotFoundError("job")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read job status", err)
	}

	var rec statusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, apperrors.NewInternalError("failed to decode job status", err)
	}

	// Anything that doesn't decode as an int reads as 0
	progress := 0
	var v int
	if err := json.Unmarshal(rec.Progress, &v); err == nil {
		progress = v
	}

	return &domain.Job{
		ID:       jobID,
		Status:   rec.Status,
		Progress: progress,
		Error:    rec.Error,
	}, nil
}

// SetStatus writes a job's status record with the status TTL
func (q *Queue) SetStatus(ctx context.Context, jobID string, status domain.JobStatus, progress int, errMsg string) error {
	data, err := json.Marshal(struct {
		Status   domain.JobStatus `json:"status"`
		Progress int              `json:"progress"`
		Error    string           `json:"error,omitempty"`
	}{status, progress, errMsg})
	if err != nil {
		return err
	}
	return q.client.Set(ctx, statusKey(jobID), data, q.statusTTL).Err()
}

// Ping checks broker reachability
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases the underlying connection
func (q *Queue) Close() error {
	return q.client.Close()
}

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/domain"
	apperrors "github.com/githunter/githunter/internal/errors"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := New("redis://"+mr.Addr(), time.Hour, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestEnqueueWritesStatusBeforePush(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "alice", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobStatusQueued, job.Status)

	// The status record is readable immediately after enqueue
	got, err := q.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Empty(t, got.Error)

	pending, err := mr.List(pendingKey)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestEnqueueBrokerDown(t *testing.T) {
	q, mr := newTestQueue(t)
	mr.Close()

	_, err := q.Enqueue(context.Background(), "alice", "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))
}

func TestDequeueRoundTrip(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "alice", "recruiter", "backend role")
	require.NoError(t, err)

	req, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, job.ID, req.ID)
	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "recruiter", req.View)
	assert.Equal(t, "backend role", req.Context)
}

func TestDequeueDropsUndecodablePayload(t *testing.T) {
	q, mr := newTestQueue(t)

	mr.Lpush(pendingKey, "{not json")

	req, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestGetStatusUnknownJob(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.GetStatus(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSetStatusRoundTrip(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SetStatus(ctx, "j1", domain.JobStatusFailed, 0, "user not found"))

	got, err := q.GetStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "user not found", got.Error)
}

func TestGetStatusToleratesNonNumericProgress(t *testing.T) {
	q, mr := newTestQueue(t)

	require.NoError(t, mr.Set(statusKey("j2"), `{"status":"processing","progress":"soon"}`))

	got, err := q.GetStatus(context.Background(), "j2")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
	assert.Equal(t, 0, got.Progress)

	// A record with no progress field at all reads the same way
	require.NoError(t, mr.Set(statusKey("j3"), `{"status":"queued"}`))

	got, err = q.GetStatus(context.Background(), "j3")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Equal(t, 0, got.Progress)
}

func TestStatusRecordsExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	q, err := New("redis://"+mr.Addr(), time.Minute, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	job, err := q.Enqueue(ctx, "alice", "", "")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = q.GetStatus(ctx, job.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

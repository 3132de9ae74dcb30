package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := New("redis://"+mr.Addr(), time.Hour, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func sampleAnalysis(login string) *domain.Analysis {
	return &domain.Analysis{
		Report: domain.Report{
			User: domain.Profile{Login: login},
			Repos: []domain.Repo{
				{Name: "proj", Owner: login, Language: "Go", StargazersCount: 3},
			},
			Stats: domain.Stats{Language: map[string]int{"Go": 1}, Stars: 3},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.True(t, store.Init(ctx))
	require.True(t, store.Available())

	_, ok := store.GetAnalysisByUsername(ctx, "alice")
	assert.False(t, ok)

	store.SetAnalysisByUsername(ctx, "alice", sampleAnalysis("alice"))

	got, ok := store.GetAnalysisByUsername(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Report.User.Login)
	assert.Equal(t, 3, got.Report.Stats.Stars)
}

func TestStoreJobKeyIndependentOfUserKey(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	store.Init(ctx)

	store.SetAnalysisByJobID(ctx, "job-1", sampleAnalysis("bob"))

	_, ok := store.GetAnalysisByUsername(ctx, "bob")
	assert.False(t, ok)

	got, ok := store.GetAnalysisByJobID(ctx, "job-1")
	require.True(t, ok)
	assert.Equal(t, "bob", got.Report.User.Login)
}

func TestStoreEntriesExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := New("redis://"+mr.Addr(), time.Minute, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	store.Init(ctx)
	store.SetAnalysisByUsername(ctx, "carol", sampleAnalysis("carol"))

	mr.FastForward(2 * time.Minute)

	_, ok := store.GetAnalysisByUsername(ctx, "carol")
	assert.False(t, ok)
}

func TestStoreFailOpenWhenBackendNeverUp(t *testing.T) {
	// A port nothing listens on: the probe fails and every later call must
	// return immediately without erroring
	store, err := New("redis://127.0.0.1:1", time.Hour, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	assert.False(t, store.Init(ctx))
	assert.False(t, store.Available())

	start := time.Now()
	_, ok := store.GetAnalysisByUsername(ctx, "alice")
	assert.False(t, ok)
	store.SetAnalysisByUsername(ctx, "alice", sampleAnalysis("alice"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestStoreFlipsUnavailableOnConnectionLoss(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	store.Init(ctx)

	store.SetAnalysisByUsername(ctx, "dave", sampleAnalysis("dave"))
	_, ok := store.GetAnalysisByUsername(ctx, "dave")
	require.True(t, ok)

	mr.Close()

	// First call after the loss flips the store; everything after is a
	// zero-network miss
	_, ok = store.GetAnalysisByUsername(ctx, "dave")
	assert.False(t, ok)
	assert.False(t, store.Available())

	_, ok = store.GetAnalysisByUsername(ctx, "dave")
	assert.False(t, ok)
}

func TestStoreInitIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	assert.True(t, store.Init(ctx))
	assert.True(t, store.Init(ctx))
}

func TestStoreInvalidURL(t *testing.T) {
	_, err := New("not-a-url", time.Hour, zap.NewNop().Sugar())
	assert.Error(t, err)
}

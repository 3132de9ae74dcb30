// Package cache implements the fail-open, cache-aside report store.
//
// The store can never be the reason a request fails: when the backing
// Redis is unreachable, every call degrades to an immediate miss or no-op
// with zero network calls. Unavailability is terminal for the process
// lifetime; there is no reconnect loop.
package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/domain"
	"github.com/githunter/githunter/internal/metrics"
)

// probeTimeout bounds the one-time startup liveness check
const probeTimeout = 3 * time.Second

// Store states
const (
	stateUninitialized int32 = iota
	stateProbing
	stateAvailable
	stateUnavailable
)

// Store is a cache-aside wrapper over Redis. Construct one per process
// and inject it; there is no package-level singleton so tests can build
// independent instances.
type Store struct {
	client    *redis.Client
	log       *zap.SugaredLogger
	reportTTL time.Duration
	state     atomic.Int32
}

// New creates a Store from a Redis URL. The connection is not probed
// until Init.
func New(redisURL string, reportTTL time.Duration, log *zap.SugaredLogger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = probeTimeout
	opts.MaxRetries = 0

	s := &Store{
		client:    redis.NewClient(opts),
		log:       log.Named("cache"),
		reportTTL: reportTTL,
	}
	s.state.Store(stateUninitialized)
	return s, nil
}

// Init probes the backing store once. On success the store becomes
// Available; any later operation error flips it to Unavailable the moment
// the connection reports one. On probe failure the store is Unavailable
// for the rest of the process lifetime, logged once.
func (s *Store) Init(ctx context.Context) bool {
	if !s.state.CompareAndSwap(stateUninitialized, stateProbing) {
		return s.Available()
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := s.client.Ping(probeCtx).Err(); err != nil {
		s.state.Store(stateUnavailable)
		s.log.Warnw("cache backend not available at startup, caching disabled", "error", err)
		return false
	}

	s.state.Store(stateAvailable)
	s.log.Infow("cache backend connected, caching enabled")
	return true
}

// Available reports whether the store accepts operations
func (s *Store) Available() bool {
	return s.state.Load() == stateAvailable
}

// GetAnalysisByUsername returns the cached analysis for a canonical login
func (s *Store) GetAnalysisByUsername(ctx context.Context, login string) (*domain.Analysis, bool) {
	return s.getAnalysis(ctx, userKey(login))
}

// SetAnalysisByUsername caches an analysis under the canonical login
func (s *Store) SetAnalysisByUsername(ctx context.Context, login string, analysis *domain.Analysis) {
	s.setJSON(ctx, userKey(login), analysis)
}

// GetAnalysisByJobID returns the cached analysis for a job id
func (s *Store) GetAnalysisByJobID(ctx context.Context, jobID string) (*domain.Analysis, bool) {
	return s.getAnalysis(ctx, jobKey(jobID))
}

// SetAnalysisByJobID caches an analysis under a job id
func (s *Store) SetAnalysisByJobID(ctx context.Context, jobID string, analysis *domain.Analysis) {
	s.setJSON(ctx, jobKey(jobID), analysis)
}

// Close releases the underlying connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) getAnalysis(ctx context.Context, key string) (*domain.Analysis, bool) {
	data, ok := s.get(ctx, key)
	if !ok {
		return nil, false
	}
	var analysis domain.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		s.log.Warnw("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return &analysis, true
}

// get returns (nil, false) on miss, unavailability, or any error. Callers
// always have a recompute path that does not depend on cache presence.
func (s *Store) get(ctx context.Context, key string) ([]byte, bool) {
	if !s.Available() {
		metrics.CacheDegraded.Inc()
		return nil, false
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	if err != nil {
		s.markUnavailable(err)
		return nil, false
	}

	metrics.CacheHits.Inc()
	return data, true
}

// setJSON is a no-op when the store is not available; a write error flips
// the store to Unavailable and is swallowed
func (s *Store) setJSON(ctx context.Context, key string, value interface{}) {
	if !s.Available() {
		metrics.CacheDegraded.Inc()
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warnw("failed to encode cache entry", "key", key, "error", err)
		return
	}

	if err := s.client.Set(ctx, key, data, s.reportTTL).Err(); err != nil {
		s.markUnavailable(err)
	}
}

func (s *Store) markUnavailable(err error) {
	if s.state.CompareAndSwap(stateAvailable, stateUnavailable) {
		metrics.CacheDegraded.Inc()
		s.log.Warnw("cache connection lost, caching disabled for the rest of the process", "error", err)
	}
}

func userKey(login string) string { return "report:user:" + login }
func jobKey(jobID string) string  { return "report:job:" + jobID }

package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/api"
	"github.com/githunter/githunter/internal/cache"
	"github.com/githunter/githunter/internal/config"
	"github.com/githunter/githunter/internal/github"
	"github.com/githunter/githunter/internal/queue"
	"github.com/githunter/githunter/internal/report"
	"github.com/githunter/githunter/internal/sampler"
	"github.com/githunter/githunter/internal/scoring"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := zl.Sugar()

	gh, err := github.NewClient(cfg.GitHubToken, logger)
	if err != nil {
		logger.Fatalw("failed to initialize github client", "error", err)
	}
	if cfg.GitHubToken == "" {
		logger.Warnw("GITHUB_TOKEN not set, running with the anonymous rate ceiling")
	}

	// The cache is fail-open: a failed probe only disables caching
	store, err := cache.New(cfg.RedisURL, cfg.ReportCacheTTL, logger)
	if err != nil {
		logger.Fatalw("invalid cache configuration", "error", err)
	}
	store.Init(ctx)
	defer store.Close()

	q, err := queue.New(cfg.RedisURL, cfg.StatusCacheTTL, logger)
	if err != nil {
		logger.Fatalw("invalid queue configuration", "error", err)
	}
	defer q.Close()

	builder := report.NewBuilder(gh, logger)

	var scorer scoring.Scorer
	var smp *sampler.Sampler
	if cfg.OpenAIKey != "" {
		scorer = scoring.NewOpenAIScorer(cfg.OpenAIKey, cfg.OpenAIModel, logger)
		smp = sampler.New(gh, logger)
	} else {
		logger.Warnw("OPENAI_API_KEY not set, jobs will complete without AI scoring")
	}

	worker := queue.NewWorker(q, builder, smp, scorer, store,
		cfg.WorkerConcurrency, cfg.StageTimeout, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	handler := api.NewHandler(builder, q, store, logger)
	router := api.SetupRoutes(handler, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infow("starting API server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("server shutdown error", "error", err)
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warnw("worker did not stop before shutdown deadline")
	}
}

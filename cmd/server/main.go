package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/brandpulse/internal/aggregate"
	"github.com/pscheid92/brandpulse/internal/app"
	"github.com/pscheid92/brandpulse/internal/classifier"
	"github.com/pscheid92/brandpulse/internal/config"
	"github.com/pscheid92/brandpulse/internal/database"
	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/pscheid92/brandpulse/internal/logging"
	"github.com/pscheid92/brandpulse/internal/query"
	"github.com/pscheid92/brandpulse/internal/redis"
	"github.com/pscheid92/brandpulse/internal/server"
)

const cacheEvictionInterval = time.Minute

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupRepository connects to PostgreSQL when configured, otherwise falls
// back to the in-memory store for single-binary mode.
func setupRepository(cfg *config.Config, clock clockwork.Clock) (domain.PostRepository, func()) {
	if cfg.DatabaseURL == "" {
		slog.Info("No DATABASE_URL configured, using in-memory storage")
		return database.NewMemoryRepo(clock), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return database.NewPostRepo(pool), pool.Close
}

// setupClassifier wires the remote model behind the cache, fallback, retry
// and backpressure layers.
func setupClassifier(cfg *config.Config, clock clockwork.Clock) (domain.Classifier, func()) {
	model := classifier.NewHuggingFaceClient(cfg.InferenceURL, cfg.InferenceAPIKey, cfg.ModelName)

	var fallback domain.Classifier
	if cfg.LexiconFallback {
		fallback = classifier.NewLexicon()
	}

	cache, stopCache := setupResultCache(cfg, clock)

	adapter := classifier.NewAdapter(model, fallback, cache, classifier.AdapterConfig{
		MaxInflight: cfg.ClassifierMaxInflight,
		QueueWait:   cfg.ClassifierQueueWait,
		Timeout:     cfg.ClassifierTimeout,
		MaxAttempts: cfg.ClassifierMaxAttempts,
	})
	return adapter, stopCache
}

// setupResultCache prefers Redis so repeated content dedups across
// instances; without Redis an in-process LRU serves the same purpose.
func setupResultCache(cfg *config.Config, clock clockwork.Clock) (classifier.ResultCache, func()) {
	if cfg.RedisURL == "" {
		cache := classifier.NewLRUCache(cfg.CacheSize, cfg.CacheTTL, clock)
		return cache, cache.StartEvictionTimer(cacheEvictionInterval)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return redis.NewClassifierCache(client, cfg.CacheTTL), func() { _ = client.Close() }
}

// startReconciler periodically checks the in-memory aggregates against the
// persisted ground truth.
func startReconciler(engine *aggregate.Engine, repo domain.PostRepository, interval time.Duration, clock clockwork.Clock) func() {
	ticker := clock.NewTicker(interval)
	stopCh := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if err := engine.Reconcile(context.Background(), repo); err != nil {
					slog.Error("Aggregate reconciliation failed", "error", err)
				}
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(stopCh) }
}

func runGracefulShutdown(srv *server.Server, gateway *app.Service, stops ...func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Let in-flight pipelines persist and aggregate before exit.
		gateway.Stop()

		for _, stop := range stops {
			stop()
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	repo, closeRepo := setupRepository(cfg, clock)
	defer closeRepo()

	classifierSvc, stopCache := setupClassifier(cfg, clock)

	// Aggregates are derived state: replay the persisted ground truth before
	// serving any queries.
	engine := aggregate.NewEngine(cfg.Granularity)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := engine.Rebuild(ctx, repo); err != nil {
			slog.Error("Failed to rebuild aggregates", "error", err)
			os.Exit(1)
		}
	}
	stopReconciler := startReconciler(engine, repo, cfg.ReconcileInterval, clock)

	gateway := app.NewService(repo, classifierSvc, engine, clock, cfg.MaxTextLength)
	queries := query.NewService(repo, engine)

	srv := server.NewServer(cfg, gateway, queries, repo)

	done := runGracefulShutdown(srv, gateway, stopReconciler, stopCache)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

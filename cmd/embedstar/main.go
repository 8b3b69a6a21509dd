// Command embedstar is the background worker entrypoint: it wires config,
// logging, metrics, the database pool, the embedding provider, and the
// engine/discovery pair, then blocks until a shutdown signal drains cleanly.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/internal/cache"
	"github.com/iskng/embed-star/internal/circuitbreaker"
	"github.com/iskng/embed-star/internal/database"
	"github.com/iskng/embed-star/internal/discovery"
	"github.com/iskng/embed-star/internal/embedding"
	"github.com/iskng/embed-star/internal/engine"
	"github.com/iskng/embed-star/internal/metrics"
	"github.com/iskng/embed-star/internal/ratelimit"
	"github.com/iskng/embed-star/internal/retry"
	"github.com/iskng/embed-star/internal/server"
	"github.com/iskng/embed-star/internal/shutdown"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	logger := initLogger()
	defer logger.Sync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("starting embed-star", zap.String("version", Version), zap.String("build_time", BuildTime),
		zap.String("provider", string(cfg.Provider.Active)), zap.String("model", cfg.Provider.Model))

	reg := metrics.NewRegistry("embedstar")

	db, err := database.NewPool(cfg.Database, reg, logger)
	if err != nil {
		logger.Fatal("database pool initialization failed", zap.Error(err))
	}
	defer db.Close()

	provider, err := embedding.New(cfg.Provider, int(cfg.ProviderTimeout.Seconds()))
	if err != nil {
		logger.Fatal("embedding provider initialization failed", zap.Error(err))
	}

	embeddingCache := cache.New(cfg.Cache.Size, cfg.Cache.TTL)
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)
	breaker := circuitbreaker.New(provider.Name(), &circuitbreaker.Config{
		Threshold:        cfg.Breaker.FailureThreshold,
		Timeout:          cfg.ProviderTimeout,
		ResetTimeout:     cfg.Breaker.Cooldown,
		HalfOpenMaxCalls: 1,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Info("circuit breaker transition",
				zap.String("provider", provider.Name()),
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}, logger)
	retryer := retry.New(retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
		MaxDelay:    cfg.Retry.MaxDelay,
		Jitter:      0.20,
	}, logger)

	inflight := engine.NewInFlight()

	eng := engine.New(engine.Config{
		ActiveModel:     cfg.Provider.Model,
		CharBudget:      cfg.TokenLimit,
		BatchDelay:      cfg.BatchDelay,
		ProviderTimeout: cfg.ProviderTimeout,
		DatabaseTimeout: cfg.DatabaseTimeout,
	}, embeddingCache, limiter, breaker, retryer, provider, db, reg, inflight, logger, cfg.ParallelWorkers*2)

	disco := discovery.New(discovery.Config{
		ActiveModel:     cfg.Provider.Model,
		BatchSize:       cfg.BatchSize,
		Tick:            cfg.DiscoveryTick,
		DatabaseTimeout: cfg.DatabaseTimeout,
	}, db, inflight, eng.Queue(), reg, logger)

	coord := shutdown.New(context.Background(), cfg.ShutdownTimeout, logger)

	group, groupCtx := errgroup.WithContext(coord.Context())
	for i := 0; i < cfg.ParallelWorkers; i++ {
		workerID := uuid.NewString()
		workerIndex := i
		logger.Info("starting embedding worker", zap.String("worker_id", workerID), zap.Int("worker_index", workerIndex))
		group.Go(func() error {
			done := coord.Track()
			defer done()
			eng.Run(groupCtx)
			return nil
		})
	}
	group.Go(func() error {
		done := coord.Track()
		defer done()
		disco.Run(groupCtx)
		return nil
	})

	httpSrv := newHealthServer(db, logger)
	if err := httpSrv.Start(); err != nil {
		logger.Fatal("health server failed to start", zap.Error(err))
	}

	coord.Wait()
	if err := httpSrv.Shutdown(context.Background()); err != nil {
		logger.Warn("health server shutdown error", zap.Error(err))
	}

	if err := group.Wait(); err != nil {
		logger.Error("worker group exited with error", zap.Error(err))
	}

	logger.Info("embed-star stopped")
}

// newHealthServer mounts /health (pool-gated liveness probe) and /metrics
// (Prometheus scrape target) behind a server.Manager.
func newHealthServer(db *database.Pool, logger *zap.Logger) *server.Manager {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := db.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	cfg := server.DefaultConfig()
	if addr := os.Getenv("HEALTH_ADDR"); addr != "" {
		cfg.Addr = addr
	} else {
		cfg.Addr = ":9090"
	}
	return server.NewManager(mux, cfg, logger)
}

func initLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller())
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// Package engine is the worker pool / batch processor: a channel-fed set
// of workers consuming whole repository batches pushed by the discovery
// loop.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iskng/embed-star/internal/cache"
	"github.com/iskng/embed-star/internal/circuitbreaker"
	"github.com/iskng/embed-star/internal/database"
	"github.com/iskng/embed-star/internal/domain"
	"github.com/iskng/embed-star/internal/embedding"
	"github.com/iskng/embed-star/internal/metrics"
	"github.com/iskng/embed-star/internal/ratelimit"
	"github.com/iskng/embed-star/internal/retry"
	"github.com/iskng/embed-star/internal/transform"
)

// Config tunes one engine instance.
type Config struct {
	ActiveModel     string
	CharBudget      int
	BatchDelay      time.Duration
	ProviderTimeout time.Duration
	DatabaseTimeout time.Duration
}

// Engine drains repository batches pushed by the discovery loop and runs
// each repository through cache -> rate limiter -> breaker -> retry ->
// provider -> validate -> batched writeback.
type Engine struct {
	cfg Config

	cache    *cache.Cache
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.Breaker
	retryer  *retry.Executor
	provider embedding.Provider
	db       *database.Pool
	metrics  *metrics.Registry
	inflight *InFlight
	logger   *zap.Logger

	queue chan []domain.Repository
}

// New wires one engine from its already-constructed components.
func New(
	cfg Config,
	c *cache.Cache,
	l *ratelimit.Limiter,
	b *circuitbreaker.Breaker,
	r *retry.Executor,
	p embedding.Provider,
	db *database.Pool,
	reg *metrics.Registry,
	inflight *InFlight,
	logger *zap.Logger,
	queueSize int,
) *Engine {
	return &Engine{
		cfg:      cfg,
		cache:    c,
		limiter:  l,
		breaker:  b,
		retryer:  r,
		provider: p,
		db:       db,
		metrics:  reg,
		inflight: inflight,
		logger:   logger.With(zap.String("component", "engine")),
		queue:    make(chan []domain.Repository, queueSize),
	}
}

// Queue is the bounded work queue the discovery loop feeds; workers block
// reading from it.
func (e *Engine) Queue() chan<- []domain.Repository {
	return e.queue
}

// Run is one worker's cycle loop: it owns its own local state
// and contends with siblings only on the shared components passed to New.
// Run returns when ctx is cancelled or the queue is closed; batches still
// queued at cancellation are not processed.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-e.queue:
			if !ok {
				return
			}
			e.processBatch(ctx, batch)

			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.BatchDelay):
			}
		}
	}
}

func (e *Engine) processBatch(ctx context.Context, batch []domain.Repository) {
	results := make([]domain.EmbeddingResult, 0, len(batch))

	for _, repo := range batch {
		select {
		case <-ctx.Done():
			e.releaseAll(batch)
			return
		default:
		}

		result, err := e.processOne(ctx, repo)
		if err != nil {
			if domain.Kind(err) == domain.ErrCancelled {
				e.releaseAll(batch)
				return
			}
			e.logger.Debug("skipping repository this cycle",
				zap.String("repo_id", repo.ID), zap.Error(err))
			continue
		}
		results = append(results, result)
	}

	if len(results) > 0 {
		dbCtx, cancel := context.WithTimeout(ctx, e.cfg.DatabaseTimeout)
		succeeded, failed := e.db.BatchUpdateEmbeddings(dbCtx, results)
		cancel()
		e.metrics.EmbeddingsTotal.Add(float64(len(succeeded)))
		if len(failed) > 0 {
			e.metrics.EmbeddingsErrorsTotal.WithLabelValues("writeback").Add(float64(len(failed)))
		}
	}

	for _, repo := range batch {
		e.inflight.Release(repo.ID)
	}
}

func (e *Engine) releaseAll(batch []domain.Repository) {
	for _, repo := range batch {
		e.inflight.Release(repo.ID)
	}
}

func (e *Engine) processOne(ctx context.Context, repo domain.Repository) (domain.EmbeddingResult, error) {
	item, ok := transform.Build(repo, e.cfg.ActiveModel, e.cfg.CharBudget)
	if !ok {
		return domain.EmbeddingResult{}, domain.NewError(domain.ErrValidationFailed, "repository no longer needs embedding")
	}

	key := domain.CacheKey{Model: e.cfg.ActiveModel, Fingerprint: item.Fingerprint}
	vector, hit := e.cache.Get(key)
	if hit {
		e.metrics.CacheHitsTotal.Inc()
	} else {
		e.metrics.CacheMissesTotal.Inc()

		var err error
		vector, err = e.callProvider(ctx, item.Text)
		if err != nil {
			e.recordFailure(err)
			return domain.EmbeddingResult{}, err
		}
	}

	if err := domain.ValidateVector(vector, e.provider.Dimensions()); err != nil {
		e.metrics.EmbeddingsErrorsTotal.WithLabelValues("validation").Inc()
		return domain.EmbeddingResult{}, err
	}

	if !hit {
		e.cache.Set(key, vector)
	}

	return domain.EmbeddingResult{
		RepoID:      repo.ID,
		Vector:      vector,
		Model:       e.cfg.ActiveModel,
		GeneratedAt: time.Now(),
	}, nil
}

// callProvider runs the cache-miss path: rate limiter gate, then the retry
// executor wrapping the circuit breaker wrapping the provider call, per
// the cache → rate limiter → breaker gate → retry(request) pipeline. The
// breaker gates every individual attempt, not just the outcome of the
// whole retry run, so a tripped breaker aborts the run immediately instead
// of letting retry burn through MaxAttempts against a provider it already
// knows is down — domain.ErrCircuitOpen is never retryable, so the retry
// executor returns on the first rejection.
func (e *Engine) callProvider(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Acquire(ctx); err != nil {
		e.metrics.RateLimitsTotal.WithLabelValues(e.provider.Name()).Inc()
		return nil, err
	}

	started := time.Now()
	defer func() {
		e.metrics.EmbeddingDurationSeconds.WithLabelValues(e.provider.Name()).Observe(time.Since(started).Seconds())
	}()

	vector, err := retry.DoWithResultTyped[[]float32](e.retryer, ctx, func() ([]float32, error) {
		return circuitbreaker.CallWithResultTyped[[]float32](e.breaker, ctx, func() ([]float32, error) {
			callCtx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
			defer cancel()
			v, err := e.provider.Embed(callCtx, text)
			if err != nil {
				e.metrics.RetriesTotal.WithLabelValues(e.provider.Name(), string(domain.Kind(err))).Inc()
			}
			return v, err
		})
	})

	e.metrics.CircuitBreakerState.WithLabelValues(e.provider.Name()).
		Set(metrics.BreakerStateValue(e.breaker.State().String()))

	return vector, err
}

func (e *Engine) recordFailure(err error) {
	kind := domain.Kind(err)
	if kind == "" {
		kind = domain.ErrProviderTransient
	}
	e.metrics.EmbeddingsErrorsTotal.WithLabelValues(string(kind)).Inc()
}

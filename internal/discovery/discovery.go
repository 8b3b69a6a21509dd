// Package discovery is the periodic poll loop: it finds
// repositories needing embedding and pushes them into the engine's bounded
// work queue, tracking an in-flight skip set to suppress duplicates.
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iskng/embed-star/internal/database"
	"github.com/iskng/embed-star/internal/domain"
	"github.com/iskng/embed-star/internal/engine"
	"github.com/iskng/embed-star/internal/metrics"
)

// Config tunes one discovery loop.
type Config struct {
	ActiveModel     string
	BatchSize       int
	Tick            time.Duration
	DatabaseTimeout time.Duration
}

// Loop queries fetch_pending on Tick, feeding results to queue while
// excluding ids already claimed in inflight.
type Loop struct {
	cfg      Config
	db       *database.Pool
	inflight *engine.InFlight
	queue    chan<- []domain.Repository
	metrics  *metrics.Registry
	logger   *zap.Logger
}

func New(cfg Config, db *database.Pool, inflight *engine.InFlight, queue chan<- []domain.Repository, reg *metrics.Registry, logger *zap.Logger) *Loop {
	return &Loop{
		cfg:      cfg,
		db:       db,
		inflight: inflight,
		queue:    queue,
		metrics:  reg,
		logger:   logger.With(zap.String("component", "discovery")),
	}
}

// Run performs the startup initial sweep (paginate until exhausted), then
// polls on cfg.Tick until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.initialSweep(ctx)

	ticker := time.NewTicker(l.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.pollOnce(ctx)
		}
	}
}

// initialSweep paginates through every pending row before steady-state
// polling begins.
func (l *Loop) initialSweep(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		n := l.pollOnce(ctx)
		if n == 0 {
			return
		}
	}
}

// pollOnce fetches one batch and pushes it to the queue, returning how many
// repositories were found (0 means nothing pending right now).
func (l *Loop) pollOnce(ctx context.Context) int {
	dbCtx, cancel := context.WithTimeout(ctx, l.cfg.DatabaseTimeout)
	defer cancel()

	skip := l.inflight.Snapshot()
	repos, err := l.db.FetchPending(dbCtx, l.cfg.ActiveModel, l.cfg.BatchSize, skip)
	if err != nil {
		l.logger.Warn("fetch_pending failed", zap.Error(err))
		return 0
	}
	if len(repos) == 0 {
		l.metrics.ReposPending.Set(0)
		return 0
	}

	claimed := make([]domain.Repository, 0, len(repos))
	for _, repo := range repos {
		if l.inflight.Claim(repo.ID) {
			claimed = append(claimed, repo)
		}
	}
	l.metrics.ReposPending.Set(float64(len(claimed)))

	if len(claimed) == 0 {
		return 0
	}

	select {
	case l.queue <- claimed:
	case <-ctx.Done():
		for _, repo := range claimed {
			l.inflight.Release(repo.ID)
		}
	}

	return len(claimed)
}

// Package database wraps github.com/surrealdb/surrealdb.go with the pool
// semantics and query operations this worker needs: a health probe on
// checkout, context-bounded checkout, and retryable-error classification, re-pointed
// at a document store reached over a websocket RPC protocol instead of a
// database/sql driver.
package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/internal/domain"
	"github.com/iskng/embed-star/internal/metrics"
)

// Pool holds up to PoolMaxSize signed-in connections, handing them out for
// the duration of a single operation and validating on checkout.
type Pool struct {
	cfg     config.DatabaseConfig
	logger  *zap.Logger
	metrics *metrics.Registry

	mu      sync.Mutex
	idle    []*conn
	active  int
	waiting int
	closed  bool
	sem     chan struct{}
}

// NewPool dials one connection up front and lets checkout dial the remaining
// PoolMaxSize-1 on demand; a failure of that first dial is a fatal
// DatabaseConnectivity error at startup.
func NewPool(cfg config.DatabaseConfig, reg *metrics.Registry, logger *zap.Logger) (*Pool, error) {
	p := &Pool{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "database_pool")),
		metrics: reg,
		sem:     make(chan struct{}, cfg.PoolMaxSize),
	}

	first, err := p.createWithTimeout()
	if err != nil {
		return nil, domain.NewError(domain.ErrDatabaseConnectivity, "initial database connection failed").
			WithCause(err)
	}
	p.idle = append(p.idle, first)
	for i := 1; i < cfg.PoolMaxSize; i++ {
		p.sem <- struct{}{}
	}

	p.logger.Info("database pool initialized", zap.Int("pool_max_size", cfg.PoolMaxSize))
	return p, nil
}

func (p *Pool) createWithTimeout() (*conn, error) {
	done := make(chan struct{})
	var c *conn
	var err error
	go func() {
		c, err = dial(p.cfg)
		close(done)
	}()

	select {
	case <-done:
		return c, err
	case <-time.After(p.cfg.PoolCreateTimeout):
		return nil, fmt.Errorf("database: connection create timed out after %s", p.cfg.PoolCreateTimeout)
	}
}

// checkout waits up to PoolWaitTimeout for an idle connection, validating
// it with health() before handing it out; a failed validation discards and
// dials a replacement.
func (p *Pool) checkout(ctx context.Context) (*conn, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.PoolWaitTimeout)
	defer cancel()

	p.mu.Lock()
	p.waiting++
	p.metrics.PoolConnectionsWaiting.Set(float64(p.waiting))
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.waiting--
		p.metrics.PoolConnectionsWaiting.Set(float64(p.waiting))
		p.mu.Unlock()
	}()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("database: pool closed")
		}
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.active++
			p.metrics.PoolConnectionsActive.Set(float64(p.active))
			p.metrics.PoolConnectionsIdle.Set(float64(len(p.idle)))
			p.mu.Unlock()

			if err := c.health(); err != nil {
				p.metrics.PoolHealthCheckFailuresTotal.Inc()
				c.close()
				replacement, dialErr := p.createWithTimeout()
				p.mu.Lock()
				p.active--
				p.mu.Unlock()
				if dialErr != nil {
					p.metrics.PoolConnectionErrorsTotal.Inc()
					return nil, dialErr
				}
				p.mu.Lock()
				p.active++
				p.metrics.PoolConnectionsActive.Set(float64(p.active))
				p.mu.Unlock()
				return replacement, nil
			}
			return c, nil
		}
		p.mu.Unlock()

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("database: pool checkout timed out: %w", waitCtx.Err())
		case <-p.sem:
			c, err := p.createWithTimeout()
			if err != nil {
				p.sem <- struct{}{}
				p.metrics.PoolConnectionErrorsTotal.Inc()
				return nil, err
			}
			p.mu.Lock()
			p.active++
			p.metrics.PoolConnectionsActive.Set(float64(p.active))
			p.mu.Unlock()
			return c, nil
		}
	}
}

func (p *Pool) checkin(c *conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	if p.closed {
		c.close()
		p.sem <- struct{}{}
		return
	}
	p.idle = append(p.idle, c)
	p.metrics.PoolConnectionsActive.Set(float64(p.active))
	p.metrics.PoolConnectionsIdle.Set(float64(len(p.idle)))
}

// Close discards every idle connection. In-flight checkouts close on return.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, c := range p.idle {
		c.close()
	}
	p.idle = nil
}

// Health probes a checked-out connection and immediately returns it; it
// backs the external HTTP health endpoint.
func (p *Pool) Health(ctx context.Context) error {
	c, err := p.checkout(ctx)
	if err != nil {
		return domain.NewError(domain.ErrDatabaseConnectivity, "health probe failed").WithCause(err)
	}
	defer p.checkin(c)
	return c.health()
}

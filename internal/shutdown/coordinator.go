// Package shutdown is the single broadcast signal wired to every
// long-running task: a generic, non-HTTP coordinator that cancels a
// context on SIGINT/SIGTERM and waits for tracked goroutines to drain.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Coordinator cancels a shared context on SIGINT/SIGTERM and gives
// registered tasks up to a deadline to drain before the process exits.
type Coordinator struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	deadline time.Duration
}

// New derives a cancellable context from parent; Context() is what every
// worker and the discovery loop should select on.
func New(parent context.Context, deadline time.Duration, logger *zap.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{
		logger:   logger.With(zap.String("component", "shutdown")),
		ctx:      ctx,
		cancel:   cancel,
		deadline: deadline,
	}
}

// Context is cancelled the moment a termination signal arrives.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Track registers one goroutine that must finish before the drain deadline
// is considered satisfied.
func (c *Coordinator) Track() func() {
	c.wg.Add(1)
	return c.wg.Done
}

// Wait blocks for SIGINT/SIGTERM, cancels the context, then waits up to the
// configured deadline for every tracked goroutine to finish. Work still
// running past the deadline is abandoned — its database writes are simply
// lost and retried on the next start, which is idempotent by construction.
func (c *Coordinator) Wait() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	sig := <-quit
	c.logger.Info("received shutdown signal, draining", zap.String("signal", sig.String()))
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("drain complete")
	case <-time.After(c.deadline):
		c.logger.Warn("drain deadline exceeded, abandoning in-flight work", zap.Duration("deadline", c.deadline))
	}
}

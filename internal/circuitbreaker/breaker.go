// Package circuitbreaker implements a per-provider three-state breaker
// (closed/open/half-open) guarding calls to an unreliable backend.
package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iskng/embed-star/internal/domain"
)

// State is one of closed, open, half-open.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Config tunes one provider's breaker.
type Config struct {
	Threshold        int
	Timeout          time.Duration
	ResetTimeout     time.Duration
	HalfOpenMaxCalls int
	OnStateChange    func(from, to State)
}

func DefaultConfig() *Config {
	return &Config{
		Threshold:        5,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Breaker guards calls to a single provider.
type Breaker struct {
	config *Config
	logger *zap.Logger
	name   string

	mu                sync.RWMutex
	state             State
	failureCount      int
	lastFailureTime   time.Time
	halfOpenCallCount int
}

// New constructs a breaker named for logging/metrics purposes (typically
// the provider name).
func New(name string, config *Config, logger *zap.Logger) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}

	return &Breaker{
		config: config,
		logger: logger,
		name:   name,
		state:  StateClosed,
	}
}

type callResult struct {
	result any
	err    error
}

// Call runs fn if the breaker allows it, returning domain.ErrCircuitOpen
// without calling fn when it does not.
func (b *Breaker) Call(ctx context.Context, fn func() error) error {
	_, err := b.CallWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// CallWithResult is the state-machine core: gate on beforeCall, run fn
// under a per-attempt timeout, classify the outcome via afterCall.
func (b *Breaker) CallWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	resultCh := make(chan callResult, 1)
	go func() {
		result, err := fn()
		resultCh <- callResult{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		b.afterCall(false)
		return nil, domain.NewError(domain.ErrProviderTransient, "provider call timed out").
			WithRetryable(true).
			WithCause(callCtx.Err())

	case res := <-resultCh:
		terminal := isTerminal(res.err)
		success := res.err == nil || terminal
		b.afterCall(success)
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	}
}

// CallWithResultTyped is a type-safe wrapper eliminating the caller-side
// type assertion on the any-typed result.
func CallWithResultTyped[T any](b *Breaker, ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := b.CallWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// isTerminal reports whether err is a terminal (client-side) provider
// error, which should not count against the breaker's failure threshold —
// a bad request or auth failure will keep failing regardless of breaker
// state, so it is surfaced to the caller without tripping the breaker.
func isTerminal(err error) bool {
	if err == nil {
		return false
	}
	return domain.Kind(err) == domain.ErrProviderTerminal || domain.Kind(err) == domain.ErrValidationFailed
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.lastFailureTime) > b.config.ResetTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenCallCount = 0
			b.logger.Info("circuit breaker entering half-open", zap.String("provider", b.name))
			return nil
		}
		return domain.NewError(domain.ErrCircuitOpen, fmt.Sprintf("circuit open for %s", b.name)).
			WithProvider(b.name)

	case StateHalfOpen:
		if b.halfOpenCallCount >= b.config.HalfOpenMaxCalls {
			return domain.NewError(domain.ErrCircuitOpen, fmt.Sprintf("too many half-open probes for %s", b.name)).
				WithProvider(b.name)
		}
		b.halfOpenCallCount++
		return nil

	default:
		return fmt.Errorf("circuitbreaker: unknown state %v", b.state)
	}
}

func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.logger.Info("circuit breaker recovered", zap.String("provider", b.name))
		b.setState(StateClosed)
		b.failureCount = 0
		b.halfOpenCallCount = 0
	case StateOpen:
		b.logger.Warn("success observed while circuit open", zap.String("provider", b.name))
	}
}

func (b *Breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.Threshold {
			b.logger.Warn("circuit breaker opening",
				zap.String("provider", b.name),
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold))
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.logger.Warn("half-open probe failed, reopening", zap.String("provider", b.name))
		b.setState(StateOpen)
		b.halfOpenCallCount = 0
	case StateOpen:
		b.logger.Warn("failure observed while circuit open", zap.String("provider", b.name))
	}
}

func (b *Breaker) setState(newState State) {
	oldState := b.state
	b.state = newState
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(oldState, newState)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forces the breaker back to closed, e.g. for tests or an operator
// override.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenCallCount = 0
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(old, StateClosed)
	}
}

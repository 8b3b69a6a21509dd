package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iskng/embed-star/internal/domain"
)

func testConfig() *Config {
	return &Config{
		Threshold:        3,
		Timeout:          50 * time.Millisecond,
		ResetTimeout:     20 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	}
}

func transientErr() error {
	return domain.NewError(domain.ErrProviderTransient, "boom").WithRetryable(true)
}

func TestBreaker_OpensAfterThresholdFailures(t *testing.T) {
	b := New("ollama", testConfig(), zap.NewNop())

	for i := 0; i < 3; i++ {
		err := b.Call(context.Background(), func() error { return transientErr() })
		require.Error(t, err)
	}

	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_RejectsCallsWhileOpen(t *testing.T) {
	b := New("ollama", testConfig(), zap.NewNop())
	for i := 0; i < 3; i++ {
		_ = b.Call(context.Background(), func() error { return transientErr() })
	}
	require.Equal(t, StateOpen, b.State())

	calls := 0
	err := b.Call(context.Background(), func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, domain.ErrCircuitOpen, domain.Kind(err))
	assert.Equal(t, 0, calls, "fn must not run while circuit is open")
}

func TestBreaker_TransitionsToHalfOpenAfterResetTimeout(t *testing.T) {
	cfg := testConfig()
	b := New("ollama", cfg, zap.NewNop())
	for i := 0; i < cfg.Threshold; i++ {
		_ = b.Call(context.Background(), func() error { return transientErr() })
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(cfg.ResetTimeout + 10*time.Millisecond)

	called := false
	err := b.Call(context.Background(), func() error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called, "half-open probe should have run fn")
	assert.Equal(t, StateClosed, b.State(), "successful half-open probe closes the circuit")
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cfg := testConfig()
	b := New("ollama", cfg, zap.NewNop())
	for i := 0; i < cfg.Threshold; i++ {
		_ = b.Call(context.Background(), func() error { return transientErr() })
	}
	time.Sleep(cfg.ResetTimeout + 10*time.Millisecond)

	err := b.Call(context.Background(), func() error { return transientErr() })

	require.Error(t, err)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenRejectsExtraProbes(t *testing.T) {
	cfg := testConfig()
	cfg.HalfOpenMaxCalls = 1
	b := New("ollama", cfg, zap.NewNop())
	for i := 0; i < cfg.Threshold; i++ {
		_ = b.Call(context.Background(), func() error { return transientErr() })
	}
	time.Sleep(cfg.ResetTimeout + 10*time.Millisecond)

	block := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Call(context.Background(), func() error {
			<-block
			return nil
		})
	}()
	// give the goroutine time to enter beforeCall and claim the single
	// half-open slot before the second probe is attempted
	time.Sleep(10 * time.Millisecond)

	err := b.Call(context.Background(), func() error { return nil })
	close(block)
	<-done

	require.Error(t, err)
	assert.Equal(t, domain.ErrCircuitOpen, domain.Kind(err))
}

func TestBreaker_TerminalErrorDoesNotTripBreaker(t *testing.T) {
	cfg := testConfig()
	b := New("ollama", cfg, zap.NewNop())
	terminal := domain.NewError(domain.ErrProviderTerminal, "bad request").WithRetryable(false)

	for i := 0; i < cfg.Threshold+2; i++ {
		err := b.Call(context.Background(), func() error { return terminal })
		require.Error(t, err)
	}

	assert.Equal(t, StateClosed, b.State(), "terminal errors must not count toward the failure threshold")
}

func TestBreaker_CallTimesOutAndCountsAsFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 5 * time.Millisecond
	cfg.Threshold = 1
	b := New("ollama", cfg, zap.NewNop())

	err := b.Call(context.Background(), func() error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderTransient, domain.Kind(err))
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, StateOpen, b.State())
}

func TestCallWithResultTyped_ReturnsTypedValue(t *testing.T) {
	b := New("ollama", testConfig(), zap.NewNop())

	v, err := CallWithResultTyped(b, context.Background(), func() ([]float32, error) {
		return []float32{1, 2, 3}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestCallWithResultTyped_ZeroValueOnError(t *testing.T) {
	b := New("ollama", testConfig(), zap.NewNop())

	v, err := CallWithResultTyped(b, context.Background(), func() ([]float32, error) {
		return nil, errors.New("boom")
	})

	require.Error(t, err)
	assert.Nil(t, v)
}

func TestBreaker_Reset(t *testing.T) {
	cfg := testConfig()
	b := New("ollama", cfg, zap.NewNop())
	for i := 0; i < cfg.Threshold; i++ {
		_ = b.Call(context.Background(), func() error { return transientErr() })
	}
	require.Equal(t, StateOpen, b.State())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	err := b.Call(context.Background(), func() error { return nil })
	assert.NoError(t, err)
}

func TestNew_AppliesDefaultsForInvalidConfigFields(t *testing.T) {
	b := New("ollama", &Config{}, zap.NewNop())

	assert.Equal(t, 5, b.config.Threshold)
	assert.Equal(t, 30*time.Second, b.config.Timeout)
	assert.Equal(t, 60*time.Second, b.config.ResetTimeout)
	assert.Equal(t, 1, b.config.HalfOpenMaxCalls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Closed", StateClosed.String())
	assert.Equal(t, "Open", StateOpen.String())
	assert.Equal(t, "HalfOpen", StateHalfOpen.String())
	assert.Equal(t, "Unknown", State(99).String())
}

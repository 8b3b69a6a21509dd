package shutdown

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCoordinator_SignalCancelsContext(t *testing.T) {
	c := New(context.Background(), time.Second, zap.NewNop())

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after SIGINT")
	}

	assert.Error(t, c.Context().Err(), "context must be cancelled on signal")
}

func TestCoordinator_WaitBlocksForTrackedGoroutines(t *testing.T) {
	c := New(context.Background(), time.Second, zap.NewNop())

	finished := false
	done := c.Track()
	go func() {
		<-c.Context().Done()
		time.Sleep(20 * time.Millisecond)
		finished = true
		done()
	}()

	waitDone := make(chan struct{})
	go func() {
		c.Wait()
		close(waitDone)
	}()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}

	assert.True(t, finished, "Wait should have blocked until the tracked goroutine finished")
}

func TestCoordinator_WaitAbandonsWorkPastDeadline(t *testing.T) {
	c := New(context.Background(), 10*time.Millisecond, zap.NewNop())

	done := c.Track()
	defer done() // release the leaked goroutine's wg entry after the test

	waitDone := make(chan struct{})
	go func() {
		c.Wait()
		close(waitDone)
	}()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return by the drain deadline")
	}
}

package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func newTestBreaker() *CircuitBreaker {
	return NewCircuitBreaker("test", Config{
		MaxRequests:      1,
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	})
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), ErrOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker()
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	require.NoError(t, cb.Execute(ctx, succeed))
	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	cb := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	require.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	cb := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
}

func TestBreakerLimitsHalfOpenProbes(t *testing.T) {
	cb := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = cb.Execute(ctx, func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrTooManyRequests)
	close(release)
}

func TestBreakerRespectsContext(t *testing.T) {
	cb := newTestBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, cb.Execute(ctx, succeed), context.Canceled)
}

func TestBreakerNotifiesOnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("notify", Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), fail)
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), succeed))

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

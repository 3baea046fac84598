// Package circuitbreaker stops hammering the completion API once it is
// clearly failing. After enough consecutive errors the breaker opens and
// callers fail fast; after a cooldown a limited number of probe requests
// decide whether to close it again.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrOpen is returned while the breaker is open and requests are
	// being rejected without running.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe quota is
	// already in flight.
	ErrTooManyRequests = errors.New("circuit breaker probe limit reached")
)

type Config struct {
	// MaxRequests caps in-flight probes while half-open.
	MaxRequests int
	// Interval resets the consecutive-failure count while closed, so
	// sporadic errors spread over a long period never trip the breaker.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// FailureThreshold is the consecutive failures that open the breaker.
	FailureThreshold int
	// SuccessThreshold is the consecutive half-open successes that close it.
	SuccessThreshold int
	OnStateChange    func(name string, from, to State)
	Logger           *zap.Logger
}

type CircuitBreaker struct {
	name string
	cfg  Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	inFlight    int
	windowStart time.Time
	openedAt    time.Time
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}

	return &CircuitBreaker{
		name:        name,
		cfg:         cfg,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// Execute runs fn through the breaker. It returns ErrOpen or
// ErrTooManyRequests without calling fn when the breaker is rejecting,
// ctx.Err() if the context is already done, and fn's error otherwise.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.settle(err == nil)
	return err
}

// State reports the current state, transitioning open to half-open if
// the cooldown has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh(time.Now())
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refresh(time.Now())

	switch cb.state {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.MaxRequests {
			return ErrTooManyRequests
		}
	}

	cb.inFlight++
	return nil
}

func (cb *CircuitBreaker) settle(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.inFlight--

	if ok {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe re-opens immediately and restarts the cooldown.
		cb.transition(StateOpen)
	}
}

// refresh applies time-driven transitions. Callers must hold mu.
func (cb *CircuitBreaker) refresh(now time.Time) {
	switch cb.state {
	case StateClosed:
		if cb.cfg.Interval > 0 && now.Sub(cb.windowStart) >= cb.cfg.Interval {
			cb.windowStart = now
			cb.failures = 0
		}
	case StateOpen:
		if now.Sub(cb.openedAt) >= cb.cfg.Timeout {
			cb.transition(StateHalfOpen)
		}
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.failures = 0
	cb.successes = 0

	switch to {
	case StateOpen:
		cb.openedAt = time.Now()
	case StateClosed:
		cb.windowStart = time.Now()
	}

	if cb.cfg.Logger != nil {
		cb.cfg.Logger.Warn("Circuit breaker state changed",
			zap.String("breaker", cb.name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

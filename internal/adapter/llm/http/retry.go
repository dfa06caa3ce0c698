package http

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds bounds for the retry state machine.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// Sleep waits for the backoff interval. Nil uses a context-aware
	// time.After wait; tests inject a fake to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns the retry bounds used for completion calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     32 * time.Second,
		Multiplier:     2.0,
	}
}

// ExponentialBackoff calculates wait time with jitter.
// Formula: min(initial * multiplier^retries, maxBackoff) ± 25% jitter.
func ExponentialBackoff(retries int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.Multiplier, float64(retries))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	jitterRange := 0.25 * backoff
	jitter := (rand.Float64() * 2 * jitterRange) - jitterRange
	result := backoff + jitter

	if result > float64(config.MaxBackoff) {
		result = float64(config.MaxBackoff)
	}
	if result < 0 {
		result = 0
	}
	return time.Duration(result)
}

// ShouldRetry reports whether an error is a transient condition.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.IsRetryable()
	}
	return false
}

// State is a phase in the lifecycle of a retried operation.
type State int

const (
	StatePending State = iota
	StateInFlight
	StateSucceeded
	StateRetryScheduled
	StateFailed
)

// String returns the state name for logs and test failure messages.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in-flight"
	case StateSucceeded:
		return "succeeded"
	case StateRetryScheduled:
		return "retry-scheduled"
	default:
		return "failed"
	}
}

// Machine is an explicit bounded-attempt state machine:
//
//	Pending -> InFlight -> {Succeeded, RetryScheduled, Failed}
//	RetryScheduled -> InFlight
//
// It holds no clock; Observe returns the backoff to wait before the next
// attempt, so tests can drive the machine without sleeping.
type Machine struct {
	config  RetryConfig
	state   State
	attempt int // attempts started so far
	lastErr error
}

// NewMachine creates a retry machine in the Pending state.
func NewMachine(config RetryConfig) *Machine {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Machine{config: config}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Attempt returns the number of attempts started.
func (m *Machine) Attempt() int { return m.attempt }

// LastErr returns the error from the most recent failed attempt.
func (m *Machine) LastErr() error { return m.lastErr }

// Begin transitions Pending or RetryScheduled to InFlight.
func (m *Machine) Begin() {
	if m.state != StatePending && m.state != StateRetryScheduled {
		panic("retry: Begin called in state " + m.state.String())
	}
	m.attempt++
	m.state = StateInFlight
}

// Observe records the outcome of the in-flight attempt and returns the new
// state plus the backoff to wait when another attempt is scheduled.
func (m *Machine) Observe(err error) (State, time.Duration) {
	if m.state != StateInFlight {
		panic("retry: Observe called in state " + m.state.String())
	}

	if err == nil {
		m.state = StateSucceeded
		return m.state, 0
	}
	m.lastErr = err

	if !ShouldRetry(err) || m.attempt >= m.config.MaxAttempts {
		m.state = StateFailed
		return m.state, 0
	}

	m.state = StateRetryScheduled
	return m.state, ExponentialBackoff(m.attempt-1, m.config)
}

// Operation is a single attempt of the work being retried.
type Operation func(ctx context.Context) error

// RetryWithBackoff drives an operation through the retry machine until it
// succeeds, exhausts its attempts, hits a non-retryable error, or the
// context is cancelled.
func RetryWithBackoff(ctx context.Context, operation Operation, config RetryConfig) error {
	sleep := config.Sleep
	if sleep == nil {
		sleep = waitCtx
	}

	m := NewMachine(config)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.Begin()
		state, backoff := m.Observe(operation(ctx))

		switch state {
		case StateSucceeded:
			return nil
		case StateFailed:
			return m.LastErr()
		case StateRetryScheduled:
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
		}
	}
}

func waitCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

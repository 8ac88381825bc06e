package resilient

import (
	"sync"
	"time"

	"github.com/jwalitptl/exchange-api/pkg/errors"
)

const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// Breaker guards one remote endpoint. Each endpoint owns its own instance so
// a failing node never blocks calls to a healthy one.
type Breaker struct {
	endpoint      string
	threshold     int
	resetTimeout  time.Duration
	onStateChange func(endpoint, from, to string)

	mu       sync.Mutex
	state    string
	failures int
	openedAt time.Time
}

func NewBreaker(endpoint string, threshold int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		endpoint:     endpoint,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// OnStateChange registers a hook invoked after every state transition. The
// hook runs outside the breaker lock.
func (b *Breaker) OnStateChange(fn func(endpoint, from, to string)) {
	b.onStateChange = fn
}

// Allow reports whether a call may proceed. While open it fails fast with a
// CircuitOpen error until the reset timeout elapses; then exactly one caller
// is let through as the half-open trial and the rest keep failing fast until
// the trial resolves.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return nil
	case StateHalfOpen:
		b.mu.Unlock()
		return errors.CircuitOpen(b.endpoint)
	default:
		if time.Since(b.openedAt) < b.resetTimeout {
			b.mu.Unlock()
			return errors.CircuitOpen(b.endpoint)
		}
		b.state = StateHalfOpen
		b.mu.Unlock()
		b.notify(StateOpen, StateHalfOpen)
		return nil
	}
}

// RecordSuccess resets the failure counter and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.mu.Unlock()
	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}

// RecordFailure counts one infrastructure failure. Reaching the threshold,
// or failing the half-open trial, opens the circuit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	from := b.state
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
	to := b.state
	b.mu.Unlock()
	if from != to {
		b.notify(from, to)
	}
}

// RecordPermanent notes a call that reached the endpoint but failed for
// business reasons. It resolves a half-open trial as reachable; in the
// closed state it leaves the failure counter untouched, since permanent
// failures say nothing about infrastructure health.
func (b *Breaker) RecordPermanent() {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.failures = 0
		b.mu.Unlock()
		b.notify(StateHalfOpen, StateClosed)
		return
	}
	b.mu.Unlock()
}

// Abandon returns a half-open breaker to open without counting a failure.
// Used when the trial call was cancelled before producing an outcome.
func (b *Breaker) Abandon() {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.mu.Unlock()
		b.notify(StateHalfOpen, StateOpen)
		return
	}
	b.mu.Unlock()
}

// State returns the current breaker state.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) notify(from, to string) {
	if b.onStateChange != nil {
		b.onStateChange(b.endpoint, from, to)
	}
}

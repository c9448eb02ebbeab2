// Package circuit implements a two-state circuit breaker for calls to
// unreliable backends.
package circuit

import "sync"

// State is the breaker position.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen means the backend is considered down; callers fail fast.
	StateOpen
)

// StateChange reports a transition caused by the last recorded outcome.
// At most one of the fields is set.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker counts consecutive outcomes. After failureThreshold consecutive
// failures the circuit opens; after successThreshold consecutive successes
// while open it closes again. A success in either state resets the failure
// count.
type Breaker struct {
	mu               sync.Mutex
	state            State
	name             string
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
// Default 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive successes close an open
// circuit. Default 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// New creates a closed breaker. The name is used in log lines only.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the breaker's log name.
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen reports whether callers should fail fast.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen
}

// RecordFailure counts one failed call. open reports the resulting state;
// change is set when this failure tripped the circuit.
func (b *Breaker) RecordFailure() (open bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.successCount = 0

	if b.state == StateOpen {
		return true, StateChange{}
	}
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess counts one successful call. closed reports whether the
// circuit is closed after this call; change is set when this success closed
// it.
func (b *Breaker) RecordSuccess() (closed bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			return true, StateChange{Closed: true}
		}
		return false, StateChange{}
	}

	b.failureCount = 0
	return true, StateChange{}
}

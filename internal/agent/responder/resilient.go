package responder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cynergists/internal/agent"
	"cynergists/internal/conversation"
	dErrors "cynergists/pkg/domain-errors"
	"cynergists/pkg/platform/circuit"
)

const defaultProbeInterval = 30 * time.Second

// Resilient wraps a Responder with circuit breaker protection. After
// consecutive failures the circuit opens and calls fail fast instead of
// tying up a request for the full backend timeout. While open, one probe
// per interval is let through so the circuit can close again.
type Resilient struct {
	delegate Responder
	breaker  *circuit.Breaker
	logger   *slog.Logger

	probeInterval time.Duration
	mu            sync.Mutex
	lastProbe     time.Time
}

// ResilientOption configures a Resilient responder.
type ResilientOption func(*Resilient)

// WithFailureThreshold sets the consecutive failures that open the circuit.
func WithFailureThreshold(n int) ResilientOption {
	return func(r *Resilient) {
		r.breaker = circuit.New("responder",
			circuit.WithFailureThreshold(n),
			circuit.WithSuccessThreshold(1),
		)
	}
}

// WithProbeInterval sets how often an open circuit lets a call through.
func WithProbeInterval(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.probeInterval = d
		}
	}
}

// NewResilient creates a circuit-breaker-protected responder.
func NewResilient(delegate Responder, logger *slog.Logger, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		delegate: delegate,
		breaker: circuit.New("responder",
			circuit.WithSuccessThreshold(1),
		),
		logger:        logger,
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resilient) Generate(ctx context.Context, persona *agent.Agent, history []conversation.Message) (string, error) {
	if r.breaker.IsOpen() && !r.probeDue() {
		return "", dErrors.New(dErrors.CodeUnavailable, "responder circuit open")
	}

	reply, err := r.delegate.Generate(ctx, persona, history)
	if err != nil {
		_, change := r.breaker.RecordFailure()
		if change.Opened {
			r.mu.Lock()
			r.lastProbe = time.Now()
			r.mu.Unlock()
			if r.logger != nil {
				r.logger.ErrorContext(ctx, "responder circuit opened",
					"circuit", r.breaker.Name(),
					"error", err,
				)
			}
		}
		return "", err
	}

	_, change := r.breaker.RecordSuccess()
	if change.Closed && r.logger != nil {
		r.logger.InfoContext(ctx, "responder circuit closed", "circuit", r.breaker.Name())
	}
	return reply, nil
}

// probeDue reports whether an open circuit should let this call through.
// At most one probe per interval.
func (r *Resilient) probeDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastProbe) < r.probeInterval {
		return false
	}
	r.lastProbe = time.Now()
	return true
}

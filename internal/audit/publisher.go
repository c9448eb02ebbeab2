package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "cynergists/pkg/domain"
	dErrors "cynergists/pkg/domain-errors"
)

// Sink receives a copy of every entry after it is durably stored.
// Sink failures are logged and never propagate to callers.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}

// Publisher captures structured audit entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  Store
	sinks  []Sink
	events chan Entry
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Entries are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Entry, size)
			p.async = true
		}
	}
}

// WithSink adds a fan-out sink (e.g. the Kafka audit topic).
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEntries()
	}
	return p
}

func (p *Publisher) processEntries() {
	defer p.wg.Done()
	for entry := range p.events {
		p.persist(context.Background(), entry)
	}
}

func (p *Publisher) persist(ctx context.Context, entry Entry) {
	if err := p.store.Append(ctx, entry); err != nil && p.logger != nil {
		p.logger.Error("failed to persist audit entry",
			"error", err,
			"event", entry.Event,
			"tenant_id", entry.TenantID,
		)
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, entry); err != nil && p.logger != nil {
			p.logger.Warn("audit sink publish failed",
				"error", err,
				"event", entry.Event,
				"tenant_id", entry.TenantID,
			)
		}
	}
}

// Close shuts down the async publisher and waits for pending entries to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

// Emit records an entry. In async mode the send never blocks: when the buffer
// is full the entry is dropped with a warning rather than stalling a request.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ID == (id.AuditEntryID{}) {
		entry.ID = id.NewAuditEntryID()
	}
	if p.async {
		select {
		case p.events <- entry:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			if p.logger != nil {
				p.logger.Warn("audit buffer full, entry dropped",
					"event", entry.Event,
					"tenant_id", entry.TenantID,
				)
			}
			return dErrors.New(dErrors.CodeInternal, "audit buffer full")
		}
	}
	p.persist(ctx, entry)
	return nil
}

// List returns the stored entries for a tenant.
func (p *Publisher) List(ctx context.Context, tenantID id.TenantID) ([]Entry, error) {
	return p.store.ListByTenant(ctx, tenantID)
}

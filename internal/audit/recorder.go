package audit

import (
	"context"
	"log/slog"

	"cynergists/internal/platform/privacy"
	"cynergists/pkg/requestcontext"
)

// Emitter is the interface for audit entry emission. Satisfied by Publisher.
type Emitter interface {
	Emit(ctx context.Context, entry Entry) error
}

// Recorder provides structured audit logging with optional entry emission.
// Services call Record for every audited action; the contract is "always log,
// conditionally transition" — no-op state transitions still produce entries.
type Recorder struct {
	textLogger *slog.Logger
	emitter    Emitter
}

// NewRecorder creates an audit recorder.
// textLogger is used for structured logging; emitter is optional for persistence.
func NewRecorder(textLogger *slog.Logger, emitter Emitter) *Recorder {
	return &Recorder{
		textLogger: textLogger,
		emitter:    emitter,
	}
}

// Record logs an audit entry to text and optionally emits it to the store.
// Automatically enriches metadata with request_id and device summary from context.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		entry.Metadata = withMetadata(entry.Metadata, "request_id", requestID)
	}
	if device := requestcontext.DeviceSummary(ctx); device != "" {
		entry.Metadata = withMetadata(entry.Metadata, "device", device)
	}
	// Only the anonymized form is ever persisted.
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		entry.Metadata = withMetadata(entry.Metadata, "ip", privacy.AnonymizeIP(ip))
	}

	if r.textLogger != nil {
		r.textLogger.InfoContext(ctx, string(entry.Event),
			"log_type", "audit",
			"event", entry.Event,
			"tenant_id", entry.TenantID,
			"agent", entry.Agent,
			"actor_user_id", entry.ActorUserID,
		)
	}

	if r.emitter == nil {
		return
	}
	if err := r.emitter.Emit(ctx, entry); err != nil && r.textLogger != nil {
		r.textLogger.ErrorContext(ctx, "failed to emit audit entry",
			"error", err,
			"event", entry.Event,
		)
	}
}

func withMetadata(m map[string]string, key, value string) map[string]string {
	if m == nil {
		m = make(map[string]string, 1)
	}
	if _, exists := m[key]; !exists {
		m[key] = value
	}
	return m
}

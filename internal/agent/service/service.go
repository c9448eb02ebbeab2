package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cynergists/internal/agent"
	"cynergists/internal/agent/metrics"
	"cynergists/internal/agent/responder"
	"cynergists/internal/conversation"
	"cynergists/internal/onboarding/gate"
	onboardingmodels "cynergists/internal/onboarding/models"
	"cynergists/internal/platform/tracer"
	tenantmodels "cynergists/internal/tenant/models"
	id "cynergists/pkg/domain"
	dErrors "cynergists/pkg/domain-errors"
	platformsync "cynergists/pkg/platform/sync"
)

// completionMarker is emitted by onboarding personas when the conversation
// has collected everything it needs. It is stripped before the reply goes
// back to the client.
const completionMarker = "[onboarding_complete]"

// ErrGateRejected wraps a gate decision so the handler can render the
// structured 403 payload.
type ErrGateRejected struct {
	Decision gate.Decision
}

func (e *ErrGateRejected) Error() string {
	return "gate rejected message: " + e.Decision.ErrorCode
}

// TenantSource resolves tenants for status checks.
type TenantSource interface {
	GetTenant(ctx context.Context, tenantID id.TenantID) (*tenantmodels.Tenant, error)
}

// OnboardingTracker is the write-side of onboarding state the pipeline
// drives from conversational signals.
type OnboardingTracker interface {
	GetOrCreateState(ctx context.Context, tenantID id.TenantID, agentName string) (*onboardingmodels.OnboardingState, error)
	MarkStarted(ctx context.Context, tenantID id.TenantID, agentName string, actorUserID id.UserID) (*onboardingmodels.OnboardingState, error)
	MarkCompleted(ctx context.Context, tenantID id.TenantID, agentName string, actorUserID id.UserID) (*onboardingmodels.OnboardingState, error)
}

// Notifier receives completion events. Implementations swallow their own
// failures; a dead webhook never blocks a conversation.
type Notifier interface {
	OnboardingCompleted(ctx context.Context, tenantID id.TenantID, agentName string)
}

// MessageResult is the outcome of one processed message.
type MessageResult struct {
	Agent               string
	Reply               string
	OnboardingCompleted bool
}

// Service runs the agent message pipeline: resolve persona, gate, persist
// the user turn, window history, call the model backend, persist the reply,
// and drive onboarding transitions from conversational signals.
type Service struct {
	catalog    *agent.Catalog
	tenants    TenantSource
	gate       *gate.Gate
	store      conversation.Store
	responder  responder.Responder
	onboarding OnboardingTracker
	notifier   Notifier

	maxMessages   int
	maxCharacters int

	// locks serializes the pipeline per (tenant, agent) so concurrent
	// messages to one conversation cannot interleave history writes.
	locks *platformsync.ShardedMutex

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithWindowBudgets overrides the conversation window limits.
func WithWindowBudgets(maxMessages, maxCharacters int) Option {
	return func(s *Service) {
		s.maxMessages = maxMessages
		s.maxCharacters = maxCharacters
	}
}

func New(
	catalog *agent.Catalog,
	tenants TenantSource,
	g *gate.Gate,
	store conversation.Store,
	r responder.Responder,
	onboarding OnboardingTracker,
	opts ...Option,
) *Service {
	s := &Service{
		catalog:       catalog,
		tenants:       tenants,
		gate:          g,
		store:         store,
		responder:     r,
		onboarding:    onboarding,
		maxMessages:   24,
		maxCharacters: 48000,
		locks:         platformsync.NewShardedMutex(),
		tracer:        tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Message processes one inbound user message for an agent.
func (s *Service) Message(ctx context.Context, tenantID id.TenantID, agentName string, userID id.UserID, text string) (res *MessageResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanAgentMessage,
		tracer.String("tenant_id", tenantID.String()),
		tracer.String("agent", agentName),
	)
	defer func() { span.End(err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "message is required")
	}

	persona, err := s.catalog.Resolve(agentName)
	if err != nil {
		return nil, err
	}

	lockKey := tenantID.String() + "/" + persona.Name
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive() {
		s.metrics.IncrementMessage(persona.Name, "rejected")
		return nil, dErrors.New(dErrors.CodeForbidden, "tenant is suspended")
	}

	decision, err := s.gate.Check(ctx, tenantID, persona)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.metrics.IncrementMessage(persona.Name, "rejected")
		return nil, &ErrGateRejected{Decision: decision}
	}

	now := time.Now()
	userMsg := conversation.Message{Role: conversation.RoleUser, Content: text, CreatedAt: now}
	if err := s.store.Append(ctx, tenantID, persona.Name, userMsg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store message")
	}

	history, err := s.store.History(ctx, tenantID, persona.Name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
	}
	windowed := conversation.Window(history, s.maxMessages, s.maxCharacters)

	reply, err := s.generate(ctx, persona, windowed)
	if err != nil {
		// The user turn stays stored; retrying the message resends it
		// with the same history.
		s.metrics.IncrementMessage(persona.Name, "failed")
		return nil, err
	}

	completed := strings.Contains(reply, completionMarker)
	reply = strings.TrimSpace(strings.ReplaceAll(reply, completionMarker, ""))

	assistantMsg := conversation.Message{Role: conversation.RoleAssistant, Content: reply, CreatedAt: time.Now()}
	if err := s.store.Append(ctx, tenantID, persona.Name, assistantMsg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reply")
	}

	s.trackOnboarding(ctx, tenantID, persona, userID, completed)
	s.metrics.IncrementMessage(persona.Name, "allowed")

	return &MessageResult{
		Agent:               persona.Name,
		Reply:               reply,
		OnboardingCompleted: completed,
	}, nil
}

// History returns the stored conversation for a pair. Gating happens at the
// route: the handler mounts the gate middleware in front of this call.
func (s *Service) History(ctx context.Context, tenantID id.TenantID, agentName string) (string, []conversation.Message, error) {
	persona, err := s.catalog.Resolve(agentName)
	if err != nil {
		return "", nil, err
	}
	history, err := s.store.History(ctx, tenantID, persona.Name)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
	}
	return persona.Name, history, nil
}

func (s *Service) generate(ctx context.Context, persona *agent.Agent, history []conversation.Message) (reply string, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanResponder,
		tracer.String("agent", persona.Name),
		tracer.Int("window_messages", len(history)),
	)
	defer func() { span.End(err) }()

	start := time.Now()
	reply, err = s.responder.Generate(ctx, persona, history)
	s.metrics.ObserveResponderDuration(persona.Name, time.Since(start))
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "responder call failed", "error", err, "agent", persona.Name)
		}
		if dErrors.HasCode(err, dErrors.CodeUnavailable) || dErrors.HasCode(err, dErrors.CodeTimeout) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "responder call failed")
	}
	return reply, nil
}

// trackOnboarding drives state transitions from the conversation itself.
// The gate only reads state; this is the single place the pipeline writes
// it. Tracking failures are logged, never surfaced: the user already has
// their reply.
func (s *Service) trackOnboarding(ctx context.Context, tenantID id.TenantID, persona *agent.Agent, userID id.UserID, completed bool) {
	if !persona.Primary && !persona.RequiresOnboarding {
		return
	}

	if completed {
		if _, err := s.onboarding.MarkCompleted(ctx, tenantID, persona.Name, userID); err != nil {
			s.logWarn(ctx, "failed to mark onboarding completed", err, persona.Name)
			return
		}
		if s.notifier != nil {
			s.notifier.OnboardingCompleted(ctx, tenantID, persona.Name)
		}
		return
	}

	state, err := s.onboarding.GetOrCreateState(ctx, tenantID, persona.Name)
	if err != nil {
		s.logWarn(ctx, "failed to load onboarding state", err, persona.Name)
		return
	}
	if state.State == onboardingmodels.StateNotStarted {
		if _, err := s.onboarding.MarkStarted(ctx, tenantID, persona.Name, userID); err != nil {
			s.logWarn(ctx, "failed to mark onboarding started", err, persona.Name)
		}
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, err error, agentName string) {
	if s.logger == nil {
		return
	}
	s.logger.WarnContext(ctx, msg, "error", err, "agent", agentName)
}

package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	id "cynergists/pkg/domain"
)

// Notifier posts portal events to a Slack incoming webhook. Failures are
// logged and swallowed: a dead webhook must never block a conversation or
// an onboarding completion.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// New creates a Slack notifier. An empty webhook URL disables posting.
func New(webhookURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// OnboardingCompleted announces a finished onboarding conversation.
func (n *Notifier) OnboardingCompleted(ctx context.Context, tenantID id.TenantID, agentName string) {
	n.post(ctx, fmt.Sprintf(":tada: Tenant %s completed %s onboarding", tenantID, agentName))
}

// TenantCreated announces a new tenant signup.
func (n *Notifier) TenantCreated(ctx context.Context, tenantID id.TenantID, companyName string) {
	n.post(ctx, fmt.Sprintf(":new: Tenant created: %s (%s)", companyName, tenantID))
}

func (n *Notifier) post(ctx context.Context, text string) {
	if n.webhookURL == "" {
		return
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		n.warn(ctx, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.warn(ctx, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.warn(ctx, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.warn(ctx, fmt.Errorf("slack webhook returned status %d", resp.StatusCode))
	}
}

func (n *Notifier) warn(ctx context.Context, err error) {
	if n.logger == nil {
		return
	}
	n.logger.WarnContext(ctx, "slack notification failed", "error", err)
}

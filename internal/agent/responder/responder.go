package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cynergists/internal/agent"
	"cynergists/internal/conversation"
	dErrors "cynergists/pkg/domain-errors"
)

// Responder generates an assistant reply for a windowed conversation.
type Responder interface {
	Generate(ctx context.Context, persona *agent.Agent, history []conversation.Message) (string, error)
}

// Config holds the model backend connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPResponder calls the Anthropic messages API. One synchronous call with
// a timeout; failures surface to the caller, which degrades without retrying.
type HTTPResponder struct {
	cfg    Config
	client *http.Client
}

// NewHTTP creates a responder backed by the Anthropic messages API.
func NewHTTP(cfg Config) *HTTPResponder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPResponder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (r *HTTPResponder) Generate(ctx context.Context, persona *agent.Agent, history []conversation.Message) (string, error) {
	req := apiRequest{
		Model:     r.cfg.Model,
		MaxTokens: 4096,
		System:    systemPrompt(persona),
		Messages:  toAPIMessages(history),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal responder request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build responder request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", r.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "responder request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("responder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to decode responder response")
	}

	var sb strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "responder returned empty reply")
	}
	return reply, nil
}

// toAPIMessages maps portal roles onto the two roles the API accepts.
// Tool results travel as user-role content.
func toAPIMessages(history []conversation.Message) []apiMessage {
	out := make([]apiMessage, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == conversation.RoleAssistant {
			role = "assistant"
		}
		out = append(out, apiMessage{Role: role, Content: m.Content})
	}
	return out
}

func systemPrompt(persona *agent.Agent) string {
	return fmt.Sprintf("You are %s, an AI agent for a client business. Focus: %s.", persona.Name, persona.Tagline)
}

// Scripted returns canned replies in order, then repeats the last one.
// Used by the demo seeder and tests.
type Scripted struct {
	Replies []string
	calls   int
}

func NewScripted(replies ...string) *Scripted {
	return &Scripted{Replies: replies}
}

func (s *Scripted) Generate(_ context.Context, _ *agent.Agent, _ []conversation.Message) (string, error) {
	if len(s.Replies) == 0 {
		return "", dErrors.New(dErrors.CodeUnavailable, "no scripted replies configured")
	}
	i := s.calls
	if i >= len(s.Replies) {
		i = len(s.Replies) - 1
	}
	s.calls++
	return s.Replies[i], nil
}

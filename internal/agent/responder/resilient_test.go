package responder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cynergists/internal/agent"
	"cynergists/internal/conversation"
	dErrors "cynergists/pkg/domain-errors"
)

type flakyResponder struct {
	failures int
	calls    int
}

func (f *flakyResponder) Generate(_ context.Context, _ *agent.Agent, _ []conversation.Message) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", dErrors.New(dErrors.CodeUnavailable, "backend down")
	}
	return "ok", nil
}

func testPersona() *agent.Agent {
	return &agent.Agent{Name: "cynessa", Tagline: "onboarding"}
}

func TestResilient_PassesThroughWhileClosed(t *testing.T) {
	delegate := &flakyResponder{}
	r := NewResilient(delegate, discardLogger())

	reply, err := r.Generate(context.Background(), testPersona(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestResilient_OpensAfterConsecutiveFailures(t *testing.T) {
	delegate := &flakyResponder{failures: 100}
	r := NewResilient(delegate, discardLogger(), WithFailureThreshold(3))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := r.Generate(ctx, testPersona(), nil)
		require.Error(t, err)
	}
	callsAtOpen := delegate.calls

	// Circuit is open and the probe window was consumed by the opening call,
	// so the next call fails fast without reaching the delegate.
	_, err := r.Generate(ctx, testPersona(), nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Equal(t, callsAtOpen, delegate.calls)
}

func TestResilient_ProbeClosesCircuitAfterRecovery(t *testing.T) {
	delegate := &flakyResponder{failures: 3}
	r := NewResilient(delegate, discardLogger(),
		WithFailureThreshold(3),
		WithProbeInterval(time.Millisecond),
	)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := r.Generate(ctx, testPersona(), nil)
		require.Error(t, err)
	}

	// Backend recovered; the next probe succeeds and closes the circuit.
	time.Sleep(5 * time.Millisecond)
	reply, err := r.Generate(ctx, testPersona(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	// Fully closed: subsequent calls pass straight through.
	reply, err = r.Generate(ctx, testPersona(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package agent

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patienthero/patienthero/internal/domain"
	"github.com/patienthero/patienthero/internal/guard"
	"github.com/patienthero/patienthero/internal/intake"
	"github.com/patienthero/patienthero/internal/llm"
	"github.com/patienthero/patienthero/internal/logging"
	"github.com/patienthero/patienthero/internal/monitor"
	"github.com/patienthero/patienthero/internal/prompts"
	"github.com/patienthero/patienthero/internal/store"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

type fixture struct {
	runner  *Runner
	store   store.SessionStore
	monitor *monitor.Monitor
	mock    *llm.MockClient
}

func newFixture(t *testing.T, clients ...llm.Client) *fixture {
	t.Helper()

	mock := &llm.MockClient{ProviderName: "mock"}
	if len(clients) == 0 {
		clients = []llm.Client{mock}
	}
	reg := llm.NewRegistry(testLogger())
	var names []string
	for _, c := range clients {
		reg.Register(c.Name(), c)
		names = append(names, c.Name())
	}
	reg.SetDefault(names[0])
	reg.SetFallbacks(names[1:])

	pack, err := prompts.Load("")
	require.NoError(t, err)

	st := store.NewMemoryStore()
	mon := monitor.New(testLogger())
	runner := NewRunner(intake.NewKeywordClassifier(), guard.NewValidator(), reg, st, mon, pack, testLogger())
	return &fixture{runner: runner, store: st, monitor: mon, mock: mock}
}

func TestHandleRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner.Handle(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHandleGeneratesSessionID(t *testing.T) {
	f := newFixture(t)
	turn, err := f.runner.Handle(context.Background(), "", "hello, I have a headache")
	require.NoError(t, err)
	assert.NotEmpty(t, turn.SessionID)

	_, ok, err := f.store.Get(turn.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandleEmergencyShortCircuits(t *testing.T) {
	f := newFixture(t)

	turn, err := f.runner.Handle(context.Background(), "s1", "I'm having chest pain right now")
	require.NoError(t, err)

	assert.Equal(t, "emergency_system", turn.Agent)
	assert.Equal(t, domain.NextEmergencyDetected, turn.NextStep)
	assert.Contains(t, turn.Response, "911")
	assert.Equal(t, domain.StageCollecting, turn.Stage)
	assert.Zero(t, f.mock.Calls, "emergencies never reach the LLM")

	stats := f.monitor.Snapshot()
	assert.Equal(t, int64(1), stats.GuardrailTriggers[guard.KindEmergency])
}

func TestHandleEmergencyAtAnyStage(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.GetOrCreate("s1")
	require.NoError(t, err)
	require.NoError(t, f.store.Update("s1", func(s *domain.Session) error {
		s.AdvanceTo(domain.StageReasoning)
		return nil
	}))

	turn, err := f.runner.Handle(context.Background(), "s1", "severe bleeding, help")
	require.NoError(t, err)
	assert.Equal(t, domain.NextEmergencyDetected, turn.NextStep)
	assert.Equal(t, domain.StageReasoning, turn.Stage, "stage unchanged by emergency")
}

func TestHandleBlockedInput(t *testing.T) {
	f := newFixture(t)

	turn, err := f.runner.Handle(context.Background(), "s1", "what medication is best for this")
	require.NoError(t, err)
	assert.Equal(t, "guardrail_system", turn.Agent)
	assert.Equal(t, domain.NextInputValidationFail, turn.NextStep)
	assert.Zero(t, f.mock.Calls)
}

func TestHandleCollectsFields(t *testing.T) {
	f := newFixture(t)

	turn, err := f.runner.Handle(context.Background(), "s1", "I have a bad headache")
	require.NoError(t, err)
	assert.Equal(t, "Intake Coordinator", turn.Agent)
	assert.Equal(t, domain.NextContinueBasicInfo, turn.NextStep)
	assert.Equal(t, "I have a bad headache", turn.Data.MedicalCondition)
	assert.Contains(t, turn.Data.Symptoms, "headache")
	assert.Equal(t, domain.StageCollecting, turn.Stage)

	turn, err = f.runner.Handle(context.Background(), "s1", "my zip is 94105")
	require.NoError(t, err)
	assert.Equal(t, "94105", turn.Data.ZipCode)
	assert.Equal(t, domain.StageCollecting, turn.Stage)
}

func TestHandleAdvancesThroughStages(t *testing.T) {
	extractorJSON := `{"medical_condition":"headache","urgency":"low"}`
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: extractorJSON}, nil
		},
	}
	f := newFixture(t, mock)

	// All four fields in one message completes intake.
	turn, err := f.runner.Handle(context.Background(), "s1",
		"I have a headache, zip 94105, phone 555-123-4567, insurance is aetna")
	require.NoError(t, err)
	assert.True(t, turn.Data.Complete())
	assert.Equal(t, domain.StageReasoning, turn.Stage)
	assert.Equal(t, domain.NextReasoningAnalysis, turn.NextStep)

	// Reasoning turn.
	turn, err = f.runner.Handle(context.Background(), "s1", "it started two days ago")
	require.NoError(t, err)
	assert.Equal(t, "Clinical Reasoner", turn.Agent)
	assert.Equal(t, domain.StageExtracting, turn.Stage)
	assert.Equal(t, domain.NextContinueSymptoms, turn.NextStep)
	assert.NotEmpty(t, turn.Data.Reasoning)

	// Extraction turn parses the JSON and finishes.
	turn, err = f.runner.Handle(context.Background(), "s1", "anything else you need?")
	require.NoError(t, err)
	assert.Equal(t, "Data Extractor", turn.Agent)
	assert.Equal(t, domain.StageDone, turn.Stage)
	assert.Equal(t, domain.NextExtractionComplete, turn.NextStep)
	assert.Equal(t, "low", turn.Data.Structured["urgency"])

	// After DONE the reasoner keeps answering; the stage stays put.
	turn, err = f.runner.Handle(context.Background(), "s1", "thank you")
	require.NoError(t, err)
	assert.Equal(t, "Clinical Reasoner", turn.Agent)
	assert.Equal(t, domain.StageDone, turn.Stage)
	assert.Equal(t, domain.NextConversationComplete, turn.NextStep)

	stats := f.monitor.Snapshot()
	assert.Equal(t, int64(4), stats.Interactions)
	assert.Equal(t, int64(1), stats.StageTransitions[domain.StageDone.String()])
}

func TestHandleFallbackOnTotalFailure(t *testing.T) {
	failing := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Message: "down", Code: 503}
		},
	}
	f := newFixture(t, failing)

	turn, err := f.runner.Handle(context.Background(), "s1", "I have a headache")
	require.NoError(t, err, "fallback is not an error")
	assert.True(t, turn.Fallback)
	assert.NotEmpty(t, turn.Response)
	assert.Equal(t, 1, failing.Calls, "exactly one attempt per provider")

	stats := f.monitor.Snapshot()
	assert.Equal(t, int64(1), stats.Fallbacks)
}

func TestHandleFallbackChainOrder(t *testing.T) {
	failing := &llm.MockClient{
		ProviderName: "primary",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "primary", Message: "down", Code: 500}
		},
	}
	backup := &llm.MockClient{
		ProviderName: "backup",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "backup says hi"}, nil
		},
	}
	f := newFixture(t, failing, backup)

	turn, err := f.runner.Handle(context.Background(), "s1", "hello there")
	require.NoError(t, err)
	assert.False(t, turn.Fallback)
	assert.Equal(t, "backup says hi", turn.Response)
	assert.Equal(t, 1, failing.Calls)
	assert.Equal(t, 1, backup.Calls)
}

func TestHandleOutputGuardrail(t *testing.T) {
	diagnosing := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "Based on your symptoms, you have cancer."}, nil
		},
	}
	f := newFixture(t, diagnosing)

	turn, err := f.runner.Handle(context.Background(), "s1", "I have a headache")
	require.NoError(t, err)
	assert.NotContains(t, turn.Response, "you have cancer")
	assert.Contains(t, turn.Response, "consult")

	stats := f.monitor.Snapshot()
	assert.Equal(t, int64(1), stats.GuardrailTriggers[guard.KindDiagnosisGiven])
}

func TestHandleAppendsDisclaimer(t *testing.T) {
	advising := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "You should take it easy and rest today."}, nil
		},
	}
	f := newFixture(t, advising)

	turn, err := f.runner.Handle(context.Background(), "s1", "I have a headache")
	require.NoError(t, err)
	assert.Contains(t, turn.Response, "You should take it easy")
	assert.Contains(t, turn.Response, guard.Disclaimer)
}

func TestHandlePersistsHistory(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner.Handle(context.Background(), "s1", "hello")
	require.NoError(t, err)
	_, err = f.runner.Handle(context.Background(), "s1", "I have a rash")
	require.NoError(t, err)

	sess, ok, err := f.store.Get("s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, sess.Interactions)
	require.Len(t, sess.History, 4)
	assert.Equal(t, "user", sess.History[0].Role)
	assert.Equal(t, "assistant", sess.History[1].Role)
	assert.Equal(t, "Intake Coordinator", sess.History[1].Agent)
}

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string // value of "k", empty means nil map
	}{
		{"bare", `{"k":"v"}`, "v"},
		{"fenced", "```json\n{\"k\":\"v\"}\n```", "v"},
		{"padded", `Here you go: {"k":"v"} hope that helps`, "v"},
		{"no json", "sorry, I can't do that", ""},
		{"broken json", `{"k": `, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseStructured(tt.reply)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got["k"])
		})
	}
}

// Package agent runs the staged chat pipeline: guardrails, intake
// classification, persona selection, one LLM attempt with provider fallback,
// and stage progression. Every turn ends with a persisted session update.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patienthero/patienthero/internal/domain"
	"github.com/patienthero/patienthero/internal/guard"
	"github.com/patienthero/patienthero/internal/intake"
	"github.com/patienthero/patienthero/internal/llm"
	"github.com/patienthero/patienthero/internal/logging"
	"github.com/patienthero/patienthero/internal/monitor"
	"github.com/patienthero/patienthero/internal/prompts"
	"github.com/patienthero/patienthero/internal/store"
)

// ErrEmptyMessage is returned when a chat request carries no text.
var ErrEmptyMessage = errors.New("message must not be empty")

// Agent names reported for turns no persona produced.
const (
	emergencyAgent = "emergency_system"
	guardrailAgent = "guardrail_system"
)

// historyWindow caps how many prior turns are sent to the model.
const historyWindow = 12

// Runner orchestrates one chat turn end to end.
type Runner struct {
	classifier intake.Classifier
	guard      *guard.Validator
	registry   *llm.Registry
	store      store.SessionStore
	monitor    *monitor.Monitor
	pack       *prompts.Pack
	log        *logging.Logger
}

// NewRunner wires the pipeline together.
func NewRunner(
	classifier intake.Classifier,
	validator *guard.Validator,
	registry *llm.Registry,
	st store.SessionStore,
	mon *monitor.Monitor,
	pack *prompts.Pack,
	log *logging.Logger,
) *Runner {
	return &Runner{
		classifier: classifier,
		guard:      validator,
		registry:   registry,
		store:      st,
		monitor:    mon,
		pack:       pack,
		log:        log.Sub("agent"),
	}
}

// Handle processes one patient message. A blank session id starts a new
// session. The returned turn always reflects persisted state; a total LLM
// failure is answered with a local templated reply, not an error.
func (r *Runner) Handle(ctx context.Context, sessionID, message string) (*domain.AgentTurn, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	sess, err := r.store.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}

	log := r.log.WithSession(sessionID)
	log.Info().Str("stage", sess.Stage.String()).Int("history", len(sess.History)).Msg("processing message")

	// Guardrails see the raw message before anything else does. An
	// emergency bypasses the whole pipeline at any stage.
	if verdict := r.guard.CheckInput(message); verdict.Blocked {
		return r.blockedTurn(sess, message, verdict)
	}

	extraction := r.classifier.Classify(message)

	// Work on a merged snapshot for prompt building; the authoritative
	// merge happens again inside the store update below.
	data := sess.Data
	intake.Merge(&data, extraction)

	persona, stageAgent := r.personaFor(sess.Stage)

	reply, provider, fellBack := r.complete(ctx, persona, data, sess.History, message)
	if fellBack {
		reply = r.fallbackReply(extraction, data)
		r.monitor.Emit(monitor.EventFallback, sessionID, map[string]any{"stage": sess.Stage.String()})
		log.Warn().Msg("all providers failed, using templated fallback")
	}

	// Reasoning and extraction each complete in a single turn.
	turnDone := false
	var structured map[string]any
	switch sess.Stage {
	case domain.StageReasoning:
		turnDone = true
	case domain.StageExtracting:
		turnDone = true
		structured = parseStructured(reply)
	}

	if verdict := r.guard.CheckOutput(reply); verdict.Kind != "" {
		reply = verdict.Response
		r.monitor.Emit(monitor.EventGuardrail, sessionID, map[string]any{
			"kind": verdict.Kind, "direction": "output",
		})
		log.Warn().Str("kind", verdict.Kind).Msg("output guardrail triggered")
	}

	prevStage := sess.Stage
	var finalStage domain.Stage
	var finalData domain.PatientData
	now := time.Now()

	err = r.store.Update(sessionID, func(s *domain.Session) error {
		intake.Merge(&s.Data, extraction)
		switch s.Stage {
		case domain.StageReasoning:
			s.Data.Reasoning = reply
		case domain.StageExtracting:
			if structured == nil {
				structured = heuristicStructured(s.Data)
			}
			s.Data.Structured = structured
		}

		s.AdvanceTo(intake.NextStage(s.Stage, s.Data, turnDone))
		s.Append(domain.Message{Role: "user", Content: message, Timestamp: now})
		s.Append(domain.Message{Role: "assistant", Agent: stageAgent, Content: reply, Timestamp: now})
		s.Interactions++

		finalStage = s.Stage
		finalData = s.Data
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.monitor.Emit(monitor.EventInteraction, sessionID, map[string]any{
		"stage": finalStage.String(), "provider": provider, "fallback": fellBack,
	})
	if finalStage != prevStage {
		r.monitor.Emit(monitor.EventStageChange, sessionID, map[string]any{
			"from": prevStage.String(), "to": finalStage.String(),
		})
		log.Info().Str("from", prevStage.String()).Str("to", finalStage.String()).Msg("stage advanced")
	}

	return &domain.AgentTurn{
		SessionID: sessionID,
		Agent:     stageAgent,
		Response:  reply,
		Data:      finalData,
		NextStep:  nextStepFor(prevStage, finalStage),
		Stage:     finalStage,
		Fallback:  fellBack,
	}, nil
}

// blockedTurn records a guardrail hit and returns its fixed response. The
// stage never moves on a blocked turn.
func (r *Runner) blockedTurn(sess *domain.Session, message string, verdict guard.Verdict) (*domain.AgentTurn, error) {
	agentName := guardrailAgent
	nextStep := domain.NextInputValidationFail
	if verdict.Emergency {
		agentName = emergencyAgent
		nextStep = domain.NextEmergencyDetected
	}

	now := time.Now()
	var finalData domain.PatientData
	err := r.store.Update(sess.ID, func(s *domain.Session) error {
		s.Append(domain.Message{Role: "user", Content: message, Timestamp: now})
		s.Append(domain.Message{Role: "assistant", Agent: agentName, Content: verdict.Response, Timestamp: now})
		s.Interactions++
		finalData = s.Data
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.monitor.Emit(monitor.EventGuardrail, sess.ID, map[string]any{
		"kind": verdict.Kind, "rule": verdict.Rule, "direction": "input",
	})
	r.log.WithSession(sess.ID).Warn().Str("kind", verdict.Kind).Msg("input guardrail triggered")

	return &domain.AgentTurn{
		SessionID: sess.ID,
		Agent:     agentName,
		Response:  verdict.Response,
		Data:      finalData,
		NextStep:  nextStep,
		Stage:     sess.Stage,
	}, nil
}

// complete makes exactly one attempt against each provider in the fallback
// chain. No retries: a patient is waiting on the other end.
func (r *Runner) complete(ctx context.Context, persona prompts.Persona, data domain.PatientData, history []domain.Message, message string) (reply, provider string, fellBack bool) {
	req := llm.CompletionRequest{
		System:   BuildSystemPrompt(persona, data),
		Messages: buildMessages(history, message),
	}

	for _, client := range r.registry.Chain() {
		resp, err := client.Complete(ctx, req)
		if err != nil {
			r.log.Warn().Str("provider", client.Name()).Err(err).Msg("provider failed, trying next")
			continue
		}
		return resp.Content, client.Name(), false
	}
	return "", "", true
}

// personaFor picks the pipeline persona for a stage. A finished session is
// still answered, by the reasoner.
func (r *Runner) personaFor(stage domain.Stage) (prompts.Persona, string) {
	var p prompts.Persona
	switch stage {
	case domain.StageCollecting:
		p = r.pack.Personas.Collector
	case domain.StageExtracting:
		p = r.pack.Personas.Extractor
	default:
		p = r.pack.Personas.Reasoner
	}
	return p, p.Name
}

// fallbackReply picks the local template matching the message's intent.
func (r *Runner) fallbackReply(extraction intake.Extraction, data domain.PatientData) string {
	fb := r.pack.Fallbacks
	var template string
	switch {
	case extraction.Greeting:
		template = fb.Greeting
	case !data.Complete():
		template = fb.MissingFields
	case data.MedicalCondition != "":
		template = fb.Medical
	default:
		template = fb.General
	}
	return prompts.Render(template, data.Missing(), data.MedicalCondition)
}

// buildMessages converts recent session history plus the new message into
// the request transcript.
func buildMessages(history []domain.Message, message string) []llm.Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}

// nextStepFor maps the turn's stage movement to the tag the frontend keys on.
func nextStepFor(prev, current domain.Stage) string {
	if prev == domain.StageExtracting && current == domain.StageDone {
		return domain.NextExtractionComplete
	}
	return intake.NextStep(current)
}

// parseStructured pulls a JSON object out of the extractor's reply. Models
// fence or pad their JSON, so it takes the outermost braces. Returns nil if
// nothing parses.
func parseStructured(reply string) map[string]any {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return nil
	}
	return out
}

// heuristicStructured summarizes the collected fields when the extractor's
// output was unusable.
func heuristicStructured(data domain.PatientData) map[string]any {
	return map[string]any{
		"medical_condition": data.MedicalCondition,
		"zip_code":          data.ZipCode,
		"phone_number":      data.PhoneNumber,
		"insurance":         data.Insurance,
		"symptoms":          data.Symptoms,
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/patienthero/patienthero/internal/agent"
	"github.com/patienthero/patienthero/internal/comfort"
	"github.com/patienthero/patienthero/internal/domain"
	"github.com/patienthero/patienthero/internal/monitor"
	"github.com/patienthero/patienthero/internal/store"
	"github.com/patienthero/patienthero/internal/version"
)

// envelope is the response shape of every /api endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// handleChat runs one pipeline turn. LLM failures are absorbed by the
// runner's fallback templates, so the only client errors here are bad input.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	turn, err := s.runner.Handle(ctx, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyMessage) {
			respondError(w, http.StatusBadRequest, "message is required")
			return
		}
		s.log.Error().Err(err).Msg("chat turn failed")
		respondError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	respond(w, http.StatusOK, turn)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"session_id":      sess.ID,
		"stage":           sess.Stage,
		"patient_data":    sess.Data,
		"interactions":    sess.Interactions,
		"flow_started":    sess.FlowStarted,
		"guidance_rounds": sess.GuidanceRounds,
		"institutions":    len(sess.Institutions),
		"created_at":      sess.CreatedAt,
		"updated_at":      sess.UpdatedAt,
	})
}

// handleCompleteFlow searches for institutions, kicks the appointment scrape
// into the background, and returns the first comfort-guidance round. Intake
// must be complete first.
func (s *Server) handleCompleteFlow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if !sess.Data.Complete() {
		respondError(w, http.StatusConflict, "patient intake is not complete")
		return
	}

	institutions := sess.Institutions
	if s.searcher != nil && len(institutions) == 0 {
		found, err := s.searcher.FindInstitutions(r.Context(), sess.Data.MedicalCondition, sess.Data.ZipCode, sess.Data.Insurance)
		if err != nil {
			s.log.Error().Err(err).Str("session_id", sess.ID).Msg("institution search failed")
			respondError(w, http.StatusBadGateway, "institution search failed")
			return
		}
		institutions = found
	}

	err := s.store.Update(sess.ID, func(cur *domain.Session) error {
		if len(cur.Institutions) == 0 {
			cur.Institutions = institutions
		}
		cur.FlowStarted = true
		if cur.GuidanceRounds < 1 {
			cur.GuidanceRounds = 1
		}
		return nil
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save flow state")
		return
	}

	s.monitor.Emit(monitor.EventFlowStarted, sess.ID, map[string]any{
		"institutions": len(institutions),
	})

	// Appointment scraping happens after the response; the patient polls
	// the status endpoint for results.
	if s.appts != nil && s.cfg.Appointments.AppointmentsEnabled() && len(institutions) > 0 {
		go func(id string, insts []domain.Institution) {
			ctx, cancel := context.WithTimeout(context.Background(), flowTimeout)
			defer cancel()
			s.appts.Run(ctx, id, insts)
		}(sess.ID, institutions)
	}

	sess.Institutions = institutions
	guidance, err := s.guide.Round(sess, 1)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build guidance")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"session_id":   sess.ID,
		"institutions": institutions,
		"appointments": map[string]any{
			"total_institutions":             len(institutions),
			"institutions_with_appointments": institutionsWithAppointments(institutions),
			"processing":                     s.appts != nil && len(institutions) > 0,
		},
		"comfort_guidance": guidance,
	})
}

func institutionsWithAppointments(institutions []domain.Institution) []string {
	out := []string{}
	for _, inst := range institutions {
		if len(inst.Appointments) > 0 {
			out = append(out, inst.Name)
		}
	}
	return out
}

// handleComfortGuidance returns round N of the supportive messaging. The cap
// is two rounds; anything past that is a client error.
func (s *Server) handleComfortGuidance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	round := 1
	if raw := r.URL.Query().Get("round_number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "round_number must be an integer")
			return
		}
		round = n
	}

	guidance, err := s.guide.Round(sess, round)
	if err != nil {
		if errors.Is(err, comfort.ErrGuidanceComplete) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to build guidance")
		return
	}

	if round > sess.GuidanceRounds {
		_ = s.store.Update(sess.ID, func(cur *domain.Session) error {
			if round > cur.GuidanceRounds {
				cur.GuidanceRounds = round
			}
			return nil
		})
	}

	respond(w, http.StatusOK, map[string]any{
		"session_id":              sess.ID,
		"round":                   guidance.Round,
		"guidance":                guidance.Message,
		"journey_progress":        guidance.JourneyProgress,
		"next_guidance_available": guidance.NextGuidanceAvailable,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	type instSummary struct {
		Name             string `json:"name"`
		Type             string `json:"type"`
		AcceptsInsurance string `json:"accepts_insurance"`
		Appointments     int    `json:"appointments"`
	}
	insts := make([]instSummary, 0, len(sess.Institutions))
	for _, inst := range sess.Institutions {
		insts = append(insts, instSummary{
			Name:             inst.Name,
			Type:             inst.Type,
			AcceptsInsurance: inst.AcceptsInsurance,
			Appointments:     len(inst.Appointments),
		})
	}

	respond(w, http.StatusOK, map[string]any{
		"session_id":   sess.ID,
		"stage":        sess.Stage,
		"patient_data": sess.Data,
		"messages":     len(sess.History),
		"institutions": insts,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(sess.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	s.monitor.Emit(monitor.EventSessionDeleted, sess.ID, nil)

	respond(w, http.StatusOK, map[string]any{"session_id": sess.ID, "deleted": true})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	type item struct {
		SessionID    string    `json:"session_id"`
		Stage        string    `json:"stage"`
		Interactions int       `json:"interactions"`
		UpdatedAt    time.Time `json:"updated_at"`
	}
	items := make([]item, 0, len(sessions))
	for _, sess := range sessions {
		items = append(items, item{
			SessionID:    sess.ID,
			Stage:        sess.Stage.String(),
			Interactions: sess.Interactions,
			UpdatedAt:    sess.UpdatedAt,
		})
	}

	respond(w, http.StatusOK, map[string]any{"sessions": items, "total": len(items)})
}

func (s *Server) handleGuardrailStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.monitor.Snapshot()
	respond(w, http.StatusOK, map[string]any{
		"enabled":  true,
		"rules":    s.guard.Rules(),
		"triggers": stats.GuardrailTriggers,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read sessions")
		return
	}

	stats := s.monitor.Snapshot()
	respond(w, http.StatusOK, map[string]any{
		"sessions":           len(sessions),
		"interactions":       stats.Interactions,
		"fallbacks":          stats.Fallbacks,
		"guardrail_triggers": stats.GuardrailTriggers,
		"stage_transitions":  stats.StageTransitions,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// handleNotFound returns a 404 envelope for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not found: "+r.URL.Path)
}

// loadSession resolves the {session_id} path value; on miss it writes the
// 404 envelope and reports false.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	id := r.PathValue("session_id")
	sess, ok, err := s.store.Get(id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	if !ok {
		respondError(w, http.StatusNotFound, "unknown session: "+id)
		return nil, false
	}
	return sess, true
}

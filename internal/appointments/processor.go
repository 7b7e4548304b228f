// Package appointments checks institutions for bookable appointment slots.
// Pages are fetched concurrently and an LLM extracts slots from the page
// text; the whole pass runs in the background after the complete flow starts
// and never blocks a patient-facing request.
package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patienthero/patienthero/internal/config"
	"github.com/patienthero/patienthero/internal/domain"
	"github.com/patienthero/patienthero/internal/llm"
	"github.com/patienthero/patienthero/internal/logging"
	"github.com/patienthero/patienthero/internal/monitor"
	"github.com/patienthero/patienthero/internal/store"
)

const extractSystemPrompt = "You are a helpful assistant that processes healthcare appointment data. " +
	"Extract available appointment slots from the given webpage text. " +
	"Output only a JSON array of objects with 'date' and 'time' fields, for example " +
	`[{"date": "2025-08-08", "time": "9:00 AM"}]. ` +
	"If the page lists no bookable times, output an empty array []."

// Fetched pages are truncated before being handed to the model; appointment
// listings live near the top of booking pages.
const maxPageBytes = 16 * 1024

// Processor scrapes institution pages for appointment availability.
type Processor struct {
	registry *llm.Registry
	store    store.SessionStore
	monitor  *monitor.Monitor
	client   *http.Client
	maxConc  int
	log      *logging.Logger

	now func() time.Time
}

// NewProcessor builds a processor from the appointments config section.
func NewProcessor(cfg config.AppointmentsConfig, registry *llm.Registry, st store.SessionStore, mon *monitor.Monitor, log *logging.Logger) *Processor {
	timeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 3
	}
	return &Processor{
		registry: registry,
		store:    st,
		monitor:  mon,
		client:   &http.Client{Timeout: timeout},
		maxConc:  maxConc,
		log:      log.Sub("appointments"),
		now:      time.Now,
	}
}

// Run checks every institution for appointment slots and writes the results
// back to the session. It respects ctx, so the fire-and-forget caller can put
// a hard deadline on the whole pass.
func (p *Processor) Run(ctx context.Context, sessionID string, institutions []domain.Institution) {
	if len(institutions) == 0 {
		return
	}

	slots := make([][]domain.AppointmentSlot, len(institutions))
	sem := make(chan struct{}, p.maxConc)
	var wg sync.WaitGroup

	for i, inst := range institutions {
		wg.Add(1)
		go func(i int, inst domain.Institution) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			found, err := p.checkInstitution(ctx, inst)
			if err != nil {
				p.log.Debug().Err(err).Str("institution", inst.Name).Msg("appointment check failed")
				return
			}
			slots[i] = found
		}(i, inst)
	}
	wg.Wait()

	withSlots := 0
	err := p.store.Update(sessionID, func(sess *domain.Session) error {
		for i := range sess.Institutions {
			for j, inst := range institutions {
				if sess.Institutions[i].ID == inst.ID && len(slots[j]) > 0 {
					sess.Institutions[i].Appointments = slots[j]
					withSlots++
				}
			}
		}
		return nil
	})
	if err != nil {
		p.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to store appointment results")
		return
	}

	p.monitor.Emit(monitor.EventAppointmentsReady, sessionID, map[string]any{
		"institutions": len(institutions),
		"with_slots":   withSlots,
	})
	p.log.Info().Str("session_id", sessionID).
		Int("institutions", len(institutions)).Int("with_slots", withSlots).
		Msg("appointment pass complete")
}

// checkInstitution fetches one institution's page and extracts slots from it.
func (p *Processor) checkInstitution(ctx context.Context, inst domain.Institution) ([]domain.AppointmentSlot, error) {
	page, err := p.fetchPage(ctx, inst.URL)
	if err != nil {
		return nil, err
	}

	raw, err := p.extractSlots(ctx, inst.Name, page)
	if err != nil {
		return nil, err
	}
	return p.cleanSlots(raw), nil
}

func (p *Processor) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "patienthero/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// extractSlots asks the LLM chain for a JSON slot array. One attempt per
// provider, same as the chat pipeline.
func (p *Processor) extractSlots(ctx context.Context, name, page string) ([]domain.AppointmentSlot, error) {
	prompt := fmt.Sprintf("Extract available appointment times for %s from this page text:\n\n%s", name, page)

	var lastErr error
	for _, client := range p.registry.Chain() {
		resp, err := client.Complete(ctx, llm.CompletionRequest{
			System:   extractSystemPrompt,
			Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		})
		if err != nil {
			lastErr = err
			continue
		}
		return parseSlotJSON(resp.Content)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no LLM providers registered")
	}
	return nil, lastErr
}

// parseSlotJSON tolerates fenced or bare JSON arrays in the model output.
func parseSlotJSON(content string) ([]domain.AppointmentSlot, error) {
	text := strings.TrimSpace(content)
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.LastIndex(text, "]"); end > start {
			text = text[start : end+1]
		}
	}

	var slots []domain.AppointmentSlot
	if err := json.Unmarshal([]byte(text), &slots); err != nil {
		return nil, fmt.Errorf("parsing slot output: %w", err)
	}
	return slots, nil
}

// cleanSlots drops slots with missing fields or dates already past. Model
// output is untrusted; bogus slots are common enough to filter every time.
func (p *Processor) cleanSlots(slots []domain.AppointmentSlot) []domain.AppointmentSlot {
	today := p.now().Format("2006-01-02")

	var out []domain.AppointmentSlot
	for _, s := range slots {
		if s.Date == "" || s.Time == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", s.Date); err != nil {
			continue
		}
		if s.Date < today {
			continue
		}
		out = append(out, s)
	}
	return out
}

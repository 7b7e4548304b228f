// Package comfort produces the two rounds of supportive guidance shown to a
// patient after intake completes. The text is templated locally, never
// generated, so it cannot trip the output guardrails.
package comfort

import (
	"fmt"
	"strings"

	"github.com/patienthero/patienthero/internal/domain"
)

// MaxRounds is the fixed guidance cap. Round 1 reassures, round 2 prepares;
// there is no round 3.
const MaxRounds = 2

// ErrGuidanceComplete is returned for round requests past the cap.
var ErrGuidanceComplete = fmt.Errorf("guidance complete: %d rounds is the maximum", MaxRounds)

// Guidance is one round of supportive messaging.
type Guidance struct {
	Round                 int    `json:"round"`
	Message               string `json:"guidance"`
	JourneyProgress       string `json:"journey_progress,omitempty"`
	NextGuidanceAvailable bool   `json:"next_guidance_available"`
}

// Guide builds guidance from session state. The zero value is usable.
type Guide struct{}

// NewGuide returns a Guide.
func NewGuide() *Guide { return &Guide{} }

// Round produces guidance for round n of a session. n must be 1 or 2.
func (g *Guide) Round(sess *domain.Session, n int) (*Guidance, error) {
	switch n {
	case 1:
		return &Guidance{
			Round:                 1,
			Message:               g.reassurance(sess),
			NextGuidanceAvailable: true,
		}, nil
	case 2:
		return &Guidance{
			Round:                 2,
			Message:               g.preparation(sess),
			JourneyProgress:       g.journeyProgress(sess),
			NextGuidanceAvailable: false,
		}, nil
	default:
		return nil, ErrGuidanceComplete
	}
}

// reassurance is the round-1 message: acknowledge the concern and say what
// happens next.
func (g *Guide) reassurance(sess *domain.Session) string {
	condition := sess.Data.MedicalCondition
	if condition == "" {
		condition = "your health concern"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You've taken an important step by sharing %s with us. ", condition)
	b.WriteString("It's completely normal to feel worried before seeing a provider, " +
		"and reaching out for care is exactly the right thing to do.\n\n")

	switch n := len(sess.Institutions); {
	case n > 1:
		fmt.Fprintf(&b, "We've found %d medical facilities near you and are checking their "+
			"appointment availability right now. ", n)
	case n == 1:
		fmt.Fprintf(&b, "We've found %s near you and are checking its appointment "+
			"availability right now. ", sess.Institutions[0].Name)
	default:
		b.WriteString("We're searching for medical facilities near you right now. ")
	}

	b.WriteString("You'll be able to review the options and pick the one that works best for you. " +
		"Until then, try to rest and stay hydrated.")
	return b.String()
}

// preparation is the round-2 message: a checklist for the visit.
func (g *Guide) preparation(sess *domain.Session) string {
	var b strings.Builder
	b.WriteString("Here's how to prepare for your visit:\n\n")
	b.WriteString("1. Bring a photo ID and your insurance card")
	if sess.Data.Insurance != "" {
		fmt.Fprintf(&b, " (%s)", sess.Data.Insurance)
	}
	b.WriteString(".\n")
	b.WriteString("2. Write down when your symptoms started and anything that makes them better or worse.\n")
	b.WriteString("3. List any medications or supplements you currently take.\n")
	b.WriteString("4. Prepare questions you want answered, and don't hesitate to ask them.\n")
	b.WriteString("5. Arrive a little early for any paperwork.\n\n")
	b.WriteString("You've done the hard part already. The care team will take it from here.")
	return b.String()
}

// journeyProgress summarizes how far the patient has come, shown with the
// final guidance round.
func (g *Guide) journeyProgress(sess *domain.Session) string {
	steps := []string{"intake complete"}
	if len(sess.Institutions) > 0 {
		steps = append(steps, fmt.Sprintf("%d facilities found", len(sess.Institutions)))
	}
	withAppts := 0
	for _, inst := range sess.Institutions {
		if len(inst.Appointments) > 0 {
			withAppts++
		}
	}
	if withAppts > 0 {
		steps = append(steps, fmt.Sprintf("appointments available at %d", withAppts))
	}
	steps = append(steps, "ready to book")
	return strings.Join(steps, ", ")
}

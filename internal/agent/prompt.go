package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/patienthero/patienthero/internal/domain"
	"github.com/patienthero/patienthero/internal/prompts"
)

// BuildSystemPrompt renders a persona's system prompt and appends the
// conversation context: today's date and whatever intake fields the patient
// has given so far.
func BuildSystemPrompt(persona prompts.Persona, data domain.PatientData) string {
	var b strings.Builder

	b.WriteString(prompts.Render(persona.System, data.Missing(), data.MedicalCondition))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Current date: %s\n", time.Now().Format("2006-01-02"))

	b.WriteString("\nPatient information collected so far:\n")
	writeField(&b, "Medical condition", data.MedicalCondition)
	writeField(&b, "ZIP code", data.ZipCode)
	writeField(&b, "Phone number", data.PhoneNumber)
	writeField(&b, "Insurance", data.Insurance)
	if len(data.Symptoms) > 0 {
		fmt.Fprintf(&b, "- Noted symptoms: %s\n", strings.Join(data.Symptoms, ", "))
	}

	b.WriteString("\nGuidelines:\n")
	b.WriteString("- Never give a diagnosis or recommend specific medications.\n")
	b.WriteString("- Remind the patient to consult a healthcare professional for medical decisions.\n")
	b.WriteString("- Keep replies short and warm.\n")

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		value = "(not yet provided)"
	}
	fmt.Fprintf(b, "- %s: %s\n", label, value)
}

// Package guard scans patient input and generated replies against fixed
// safety rules. It is an allow/deny filter, not a policy engine: no scoring,
// no configurable rules.
package guard

import (
	"regexp"
	"strings"
)

// Verdict kinds, in decreasing order of severity.
const (
	KindEmergency      = "emergency"
	KindSuicideRisk    = "suicide_ideation"
	KindDangerousDose  = "dangerous_dosage"
	KindIllegalContent = "illegal_content"
	KindAdviceRequest  = "medical_advice_request"
	KindDiagnosisGiven = "diagnosis_given"
	KindMedicationTold = "medication_advice"
	KindCureClaim      = "cure_claims"
	KindNoDisclaimer   = "missing_disclaimer"
)

// Fixed replies substituted when a rule fires.
const (
	EmergencyResponse = "This sounds like a medical emergency. Please call 911 or go to " +
		"your nearest emergency room immediately. I cannot provide emergency medical care."

	suicideResponse = "I'm concerned about your safety. Please contact emergency services (911) " +
		"or a crisis helpline (988) if you're in immediate danger."

	dosageResponse = "I'm very concerned about this request. Taking large amounts of medication " +
		"can be extremely dangerous. Please contact emergency services (911) or poison control " +
		"(1-800-222-1222) immediately if you're considering this."

	illegalResponse = "I can only provide information about legal medical treatments and services."

	adviceResponse = "I cannot provide specific medical advice or diagnoses. Please consult " +
		"with a healthcare professional for medical guidance."

	// Disclaimer appended to replies that give specific advice without one.
	Disclaimer = "\n\nPlease consult a healthcare professional for guidance specific to your situation."
)

// Verdict is the outcome of scanning one text.
type Verdict struct {
	Blocked   bool
	Emergency bool
	Kind      string // rule family that fired, empty if clean
	Rule      string // the matched pattern or keyword
	Response  string // substituted reply when Blocked or Emergency
}

var emergencyKeywords = []string{
	"emergency", "urgent", "911", "chest pain", "heart attack", "stroke",
	"can't breathe", "cannot breathe", "difficulty breathing", "severe pain",
	"severe bleeding", "unconscious", "seizure", "choking", "overdose",
}

type inputRule struct {
	re       *regexp.Regexp
	kind     string
	response string
}

var inputRules = []inputRule{
	{regexp.MustCompile(`\b(kill|suicide|harm|hurt)\s+(myself|me)\b`), KindSuicideRisk, suicideResponse},
	{regexp.MustCompile(`\b(want to die|end my life)\b`), KindSuicideRisk, suicideResponse},
	{regexp.MustCompile(`\b(take|ingest|swallow)\s+(\d{2,}|\d+\s+(pills|tablets))\b`), KindDangerousDose, dosageResponse},
	{regexp.MustCompile(`\b(\d{2,})\s+(pills|tablets|capsules)\b`), KindDangerousDose, dosageResponse},
	{regexp.MustCompile(`\bwhole bottle\b.*\b(pills|medication)\b`), KindDangerousDose, dosageResponse},
	{regexp.MustCompile(`\b(illegal drugs|street drugs)\b`), KindIllegalContent, illegalResponse},
	{regexp.MustCompile(`\b(prescription fraud|fake prescription)\b`), KindIllegalContent, illegalResponse},
	{regexp.MustCompile(`\bshould i take\b.*\b(medication|pills|drugs)\b`), KindAdviceRequest, adviceResponse},
	{regexp.MustCompile(`\bwhat medication\b`), KindAdviceRequest, adviceResponse},
	{regexp.MustCompile(`\bhow much\b.*\b(dosage|dose)\b`), KindAdviceRequest, adviceResponse},
	{regexp.MustCompile(`\bdiagnose me\b`), KindAdviceRequest, adviceResponse},
	{regexp.MustCompile(`\bis it cancer\b`), KindAdviceRequest, adviceResponse},
}

type outputRule struct {
	re   *regexp.Regexp
	kind string
}

var outputRules = []outputRule{
	{regexp.MustCompile(`\byou have\b.*\b(cancer|diabetes|heart disease)\b`), KindDiagnosisGiven},
	{regexp.MustCompile(`\byou are diagnosed with\b`), KindDiagnosisGiven},
	{regexp.MustCompile(`\btake this medication\b`), KindMedicationTold},
	{regexp.MustCompile(`\bstop taking your medication\b`), KindMedicationTold},
	{regexp.MustCompile(`\byou don't need a doctor\b`), KindMedicationTold},
	{regexp.MustCompile(`\bthis will cure\b`), KindCureClaim},
	{regexp.MustCompile(`\bguaranteed to work\b`), KindCureClaim},
}

var adviceMarkers = []string{
	"you should take", "i recommend", "my advice is", "you need to", "definitely do this",
}

var disclaimerMarkers = []string{
	"consult", "healthcare provider", "medical professional", "doctor", "emergency",
}

// Validator scans texts against the rule tables. The zero value is usable.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator { return &Validator{} }

// CheckInput scans a patient message. Emergencies take priority over every
// other rule so that "chest pain" always produces the emergency response,
// whatever else the message contains.
func (v *Validator) CheckInput(text string) Verdict {
	lower := strings.ToLower(text)

	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			return Verdict{
				Blocked:   true,
				Emergency: true,
				Kind:      KindEmergency,
				Rule:      kw,
				Response:  EmergencyResponse,
			}
		}
	}

	for _, r := range inputRules {
		if r.re.MatchString(lower) {
			return Verdict{
				Blocked:  true,
				Kind:     r.kind,
				Rule:     r.re.String(),
				Response: r.response,
			}
		}
	}

	return Verdict{}
}

// CheckOutput scans a generated reply. A hard pattern replaces the reply
// with the refusal text; specific advice without a disclaimer gets one
// appended instead of being replaced.
func (v *Validator) CheckOutput(text string) Verdict {
	lower := strings.ToLower(text)

	for _, r := range outputRules {
		if r.re.MatchString(lower) {
			return Verdict{
				Blocked:  true,
				Kind:     r.kind,
				Rule:     r.re.String(),
				Response: adviceResponse,
			}
		}
	}

	if containsAny(lower, adviceMarkers) && !containsAny(lower, disclaimerMarkers) {
		return Verdict{
			Kind:     KindNoDisclaimer,
			Response: text + Disclaimer,
		}
	}

	return Verdict{}
}

// Rules reports the active rule families, for the guardrails status endpoint.
func (v *Validator) Rules() []string {
	return []string{
		"emergency_detection",
		"suicide_prevention",
		"dangerous_dosage_detection",
		"illegal_content_filtering",
		"medical_advice_filtering",
		"ai_response_validation",
		"medical_disclaimer_enforcement",
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

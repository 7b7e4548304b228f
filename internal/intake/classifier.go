// Package intake turns free-text patient messages into structured intake
// fields and drives the conversation's stage progression.
package intake

import (
	"regexp"
	"strings"

	"github.com/patienthero/patienthero/internal/domain"
)

// Extraction is what a classifier pulled out of one message. Empty string
// means the field was not found in this message.
type Extraction struct {
	Condition string
	Zip       string
	Phone     string
	Insurance string
	Symptoms  []string
	Greeting  bool
}

// Classifier is the strategy for extracting intake fields from free text.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(text string) Extraction
}

var (
	zipPattern = regexp.MustCompile(`\b\d{5}\b`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.]?\d{4}`),
		regexp.MustCompile(`\d{3}[-.]\d{3}[-.]?\d{4}`),
		regexp.MustCompile(`\b\d{10}\b`),
	}

	insuranceKeywords = []string{
		"insurance", "aetna", "blue cross", "bluecross", "medicare", "medicaid",
		"cigna", "humana", "anthem", "kaiser", "bcbs",
		"united healthcare", "unitedhealthcare",
	}

	medicalKeywords = []string{
		"pain", "ache", "hurt", "sick", "condition", "problem", "headache",
		"fever", "nausea", "dizzy", "cough", "cold", "flu", "infection",
		"injury", "broken", "sprain", "cut", "burn", "rash", "allergy",
	}

	greetings = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening"}
)

// KeywordClassifier extracts intake fields with keyword and regex
// heuristics. False positives and negatives are accepted; the point is a
// cheap first pass, not NLP.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the default heuristic classifier.
func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

// Classify scans one message for intake fields.
func (c *KeywordClassifier) Classify(text string) Extraction {
	var ex Extraction
	lower := strings.ToLower(text)

	ex.Phone = matchPhone(text)

	// A phone number contains digit runs that look like ZIPs; strip the
	// phone match before looking for one.
	zipSource := text
	if ex.Phone != "" {
		zipSource = strings.Replace(text, ex.Phone, "", 1)
	}
	ex.Zip = zipPattern.FindString(zipSource)

	for _, kw := range insuranceKeywords {
		if strings.Contains(lower, kw) {
			ex.Insurance = strings.TrimSpace(text)
			break
		}
	}

	for _, kw := range medicalKeywords {
		if strings.Contains(lower, kw) {
			if ex.Condition == "" {
				ex.Condition = strings.TrimSpace(text)
			}
			ex.Symptoms = append(ex.Symptoms, kw)
		}
	}

	trimmed := strings.TrimRight(strings.TrimSpace(lower), "!.,?")
	for _, g := range greetings {
		if trimmed == g {
			ex.Greeting = true
			break
		}
		if rest, ok := strings.CutPrefix(trimmed, g); ok && rest != "" {
			switch rest[0] {
			case ' ', ',', '!', '.':
				ex.Greeting = true
			}
			if ex.Greeting {
				break
			}
		}
	}

	return ex
}

func matchPhone(text string) string {
	for _, p := range phonePatterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// Merge folds an extraction into patient data without ever overwriting a
// field the patient already gave.
func Merge(data *domain.PatientData, ex Extraction) {
	if data.MedicalCondition == "" && ex.Condition != "" {
		data.MedicalCondition = ex.Condition
	}
	if data.ZipCode == "" && ex.Zip != "" {
		data.ZipCode = ex.Zip
	}
	if data.PhoneNumber == "" && ex.Phone != "" {
		data.PhoneNumber = ex.Phone
	}
	if data.Insurance == "" && ex.Insurance != "" {
		data.Insurance = ex.Insurance
	}
	for _, s := range ex.Symptoms {
		data.AddSymptom(s)
	}
}

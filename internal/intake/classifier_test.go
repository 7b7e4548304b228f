package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patienthero/patienthero/internal/domain"
)

func TestClassifyZip(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare zip", "I live in 94105", "94105"},
		{"zip with punctuation", "12345, insurance Blue Cross", "12345"},
		{"no zip", "I have a headache", ""},
		{"four digits is not a zip", "room 1234 please", ""},
		{"zip inside phone number ignored", "call me at 555-123-4567", ""},
		{"zip and phone both present", "94105 and 555-123-4567", "94105"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text).Zip)
		})
	}
}

func TestClassifyPhone(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"dashed", "my number is 555-123-4567", "555-123-4567"},
		{"dotted", "555.123.4567", "555.123.4567"},
		{"parenthesized", "(415) 555-0199", "(415) 555-0199"},
		{"bare ten digits", "4155550199", "4155550199"},
		{"none", "no number here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text).Phone)
		})
	}
}

func TestClassifyInsurance(t *testing.T) {
	c := NewKeywordClassifier()

	assert.NotEmpty(t, c.Classify("I have Blue Cross").Insurance)
	assert.NotEmpty(t, c.Classify("my INSURANCE is through work").Insurance)
	assert.NotEmpty(t, c.Classify("kaiser member").Insurance)
	assert.Empty(t, c.Classify("I have a headache").Insurance)
}

func TestClassifyMedicalCondition(t *testing.T) {
	c := NewKeywordClassifier()

	ex := c.Classify("I have a headache and some nausea")
	assert.Equal(t, "I have a headache and some nausea", ex.Condition)
	assert.Equal(t, []string{"headache", "nausea"}, ex.Symptoms)

	assert.Empty(t, c.Classify("what time do you open").Condition)
}

func TestClassifyGreeting(t *testing.T) {
	c := NewKeywordClassifier()

	assert.True(t, c.Classify("Hello!").Greeting)
	assert.True(t, c.Classify("good morning, I need help").Greeting)
	// "hi" embedded in another word is not a greeting
	assert.False(t, c.Classify("my hip hurts").Greeting)
}

func TestMergeNeverOverwrites(t *testing.T) {
	data := domain.PatientData{ZipCode: "94105"}
	Merge(&data, Extraction{Zip: "10001", Phone: "555-123-4567"})
	assert.Equal(t, "94105", data.ZipCode)
	assert.Equal(t, "555-123-4567", data.PhoneNumber)
}

func TestNextStageForward(t *testing.T) {
	complete := domain.PatientData{
		MedicalCondition: "headache",
		ZipCode:          "94105",
		PhoneNumber:      "555-123-4567",
		Insurance:        "aetna",
	}
	partial := domain.PatientData{MedicalCondition: "headache"}

	tests := []struct {
		name     string
		current  domain.Stage
		data     domain.PatientData
		turnDone bool
		want     domain.Stage
	}{
		{"collecting stays with partial data", domain.StageCollecting, partial, false, domain.StageCollecting},
		{"collecting advances when complete", domain.StageCollecting, complete, false, domain.StageReasoning},
		{"reasoning waits for turn", domain.StageReasoning, complete, false, domain.StageReasoning},
		{"reasoning advances after turn", domain.StageReasoning, complete, true, domain.StageExtracting},
		{"extracting advances after turn", domain.StageExtracting, complete, true, domain.StageDone},
		{"done is terminal", domain.StageDone, complete, true, domain.StageDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStage(tt.current, tt.data, tt.turnDone))
		})
	}
}

func TestNextStageNeverRegresses(t *testing.T) {
	// Even with empty data, a later stage never falls back to COLLECTING.
	var empty domain.PatientData
	assert.Equal(t, domain.StageReasoning, NextStage(domain.StageReasoning, empty, false))
	assert.Equal(t, domain.StageDone, NextStage(domain.StageDone, empty, false))
}

func TestNextStepTags(t *testing.T) {
	assert.Equal(t, domain.NextContinueBasicInfo, NextStep(domain.StageCollecting))
	assert.Equal(t, domain.NextReasoningAnalysis, NextStep(domain.StageReasoning))
	assert.Equal(t, domain.NextContinueSymptoms, NextStep(domain.StageExtracting))
	assert.Equal(t, domain.NextConversationComplete, NextStep(domain.StageDone))
}

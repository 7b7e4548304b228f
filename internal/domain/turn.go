package domain

// Next-step tags returned to the frontend with every chat reply.
const (
	NextContinueBasicInfo    = "continue_basic_info"
	NextReasoningAnalysis    = "reasoning_analysis"
	NextContinueSymptoms     = "continue_symptom_analysis"
	NextExtractionComplete   = "extraction_complete"
	NextConversationComplete = "conversation_complete"
	NextInputValidationFail  = "input_validation_failed"
	NextEmergencyDetected    = "emergency_detected"
)

// AgentTurn is the per-request result of running the pipeline: which persona
// answered, what it said, and where the session stands now. It is built for
// the HTTP response and not retained.
type AgentTurn struct {
	SessionID string      `json:"session_id"`
	Agent     string      `json:"agent"`
	Response  string      `json:"response"`
	Data      PatientData `json:"patient_data"`
	NextStep  string      `json:"next_step"`
	Stage     Stage       `json:"stage"`
	Fallback  bool        `json:"-"`
}

package intake

import "github.com/patienthero/patienthero/internal/domain"

// NextStage decides where the session goes after a pipeline turn. The rules
// are strictly forward:
//
//	COLLECTING -> REASONING   once all four intake fields are present
//	REASONING  -> EXTRACTING  after one reasoning turn completes
//	EXTRACTING -> DONE        once structured output was produced
//
// turnDone reports whether the current stage's persona finished its work
// this turn (the reasoner produced an analysis, the extractor produced
// structured data). DONE is terminal.
func NextStage(current domain.Stage, data domain.PatientData, turnDone bool) domain.Stage {
	switch current {
	case domain.StageCollecting:
		if data.Complete() {
			return domain.StageReasoning
		}
	case domain.StageReasoning:
		if turnDone {
			return domain.StageExtracting
		}
	case domain.StageExtracting:
		if turnDone {
			return domain.StageDone
		}
	}
	return current
}

// NextStep maps a session's position to the tag the frontend keys on.
func NextStep(stage domain.Stage) string {
	switch stage {
	case domain.StageCollecting:
		return domain.NextContinueBasicInfo
	case domain.StageReasoning:
		return domain.NextReasoningAnalysis
	case domain.StageExtracting:
		return domain.NextContinueSymptoms
	default:
		return domain.NextConversationComplete
	}
}

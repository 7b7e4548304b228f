package domain

import "fmt"

// Stage is the coarse phase of a patient intake conversation. Stages only
// move forward; nothing in the system transitions a session backward.
type Stage int

const (
	StageCollecting Stage = iota
	StageReasoning
	StageExtracting
	StageDone
)

var stageNames = [...]string{"COLLECTING", "REASONING", "EXTRACTING", "DONE"}

func (s Stage) String() string {
	if s < StageCollecting || s > StageDone {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Before reports whether s comes strictly earlier than other.
func (s Stage) Before(other Stage) bool { return s < other }

// ParseStage converts a stored stage name back to its value.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return StageCollecting, fmt.Errorf("unknown stage %q", name)
}

// MarshalText makes Stage round-trip through JSON as its name.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

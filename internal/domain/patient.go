package domain

// PatientData holds the four intake fields plus everything the pipeline
// derives from the conversation. Empty string means not yet collected.
type PatientData struct {
	MedicalCondition string         `json:"medical_condition,omitempty"`
	ZipCode          string         `json:"zip_code,omitempty"`
	PhoneNumber      string         `json:"phone_number,omitempty"`
	Insurance        string         `json:"insurance,omitempty"`
	Symptoms         []string       `json:"symptoms,omitempty"`
	Reasoning        string         `json:"reasoning,omitempty"`
	Structured       map[string]any `json:"structured,omitempty"`
}

// Complete reports whether all four intake fields have been collected.
func (p PatientData) Complete() bool {
	return p.MedicalCondition != "" && p.ZipCode != "" && p.PhoneNumber != "" && p.Insurance != ""
}

// Missing returns the intake fields still to collect, in ask order.
func (p PatientData) Missing() []string {
	var out []string
	if p.MedicalCondition == "" {
		out = append(out, "medical_condition")
	}
	if p.ZipCode == "" {
		out = append(out, "zip_code")
	}
	if p.PhoneNumber == "" {
		out = append(out, "phone_number")
	}
	if p.Insurance == "" {
		out = append(out, "insurance")
	}
	return out
}

// AddSymptom appends a symptom unless it is already recorded.
func (p *PatientData) AddSymptom(s string) {
	for _, have := range p.Symptoms {
		if have == s {
			return
		}
	}
	p.Symptoms = append(p.Symptoms, s)
}

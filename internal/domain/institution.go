package domain

// Institution is a medical facility found near the patient's ZIP code.
type Institution struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	URL              string            `json:"url"`
	Type             string            `json:"type"`
	AcceptsInsurance string            `json:"accepts_insurance"` // "true", "false", "unknown"
	Appointments     []AppointmentSlot `json:"appointments,omitempty"`
}

// Recognized institution types, roughest first.
const (
	TypeEmergencyRoom      = "Emergency Room"
	TypeUrgentCare         = "Urgent Care"
	TypeHospital           = "Hospital"
	TypeClinic             = "Clinic"
	TypeMedicalCenter      = "Medical Center"
	TypeGovernmentFacility = "Government Facility"
	TypeHealthcareFacility = "Healthcare Facility"
)

// AppointmentSlot is one bookable opening scraped from an institution's site.
type AppointmentSlot struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Provider string `json:"provider,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

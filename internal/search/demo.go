package search

import (
	"context"
	"fmt"

	"github.com/patienthero/patienthero/internal/domain"
)

// DemoSearcher returns deterministic institutions when no Exa API key is
// configured, so the complete flow stays exercisable in demo mode.
type DemoSearcher struct{}

// NewDemoSearcher returns a demo searcher.
func NewDemoSearcher() *DemoSearcher { return &DemoSearcher{} }

// FindInstitutions fabricates three plausible facilities near the ZIP code.
func (d *DemoSearcher) FindInstitutions(ctx context.Context, condition, zip, insurance string) ([]domain.Institution, error) {
	return []domain.Institution{
		{
			ID:               "demo-hospital-" + zip,
			Name:             fmt.Sprintf("Community General Hospital (%s)", zip),
			URL:              "https://communitygeneral.org",
			Type:             domain.TypeHospital,
			AcceptsInsurance: "true",
		},
		{
			ID:               "demo-urgent-" + zip,
			Name:             fmt.Sprintf("QuickCare Urgent Care (%s)", zip),
			URL:              "https://quickcareuc.org",
			Type:             domain.TypeUrgentCare,
			AcceptsInsurance: "unknown",
		},
		{
			ID:               "demo-clinic-" + zip,
			Name:             fmt.Sprintf("Neighborhood Health Clinic (%s)", zip),
			URL:              "https://health.gov/clinics",
			Type:             domain.TypeClinic,
			AcceptsInsurance: "unknown",
		},
	}, nil
}

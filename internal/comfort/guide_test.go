package comfort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patienthero/patienthero/internal/domain"
)

func testSession() *domain.Session {
	return &domain.Session{
		ID:    "s1",
		Stage: domain.StageDone,
		Data: domain.PatientData{
			MedicalCondition: "persistent headache",
			ZipCode:          "94105",
			PhoneNumber:      "555-123-4567",
			Insurance:        "blue cross",
		},
		Institutions: []domain.Institution{
			{ID: "i1", Name: "General Hospital", Type: domain.TypeHospital,
				Appointments: []domain.AppointmentSlot{{Date: "2025-08-08", Time: "9:00 AM"}}},
			{ID: "i2", Name: "Downtown Clinic", Type: domain.TypeClinic},
		},
	}
}

func TestRoundOne(t *testing.T) {
	g := NewGuide()
	got, err := g.Round(testSession(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, got.Round)
	assert.True(t, got.NextGuidanceAvailable)
	assert.Empty(t, got.JourneyProgress)
	assert.Contains(t, got.Message, "persistent headache")
	assert.Contains(t, got.Message, "2 medical facilities")
}

func TestRoundOneNoInstitutionsYet(t *testing.T) {
	sess := testSession()
	sess.Institutions = nil

	got, err := NewGuide().Round(sess, 1)
	require.NoError(t, err)
	assert.Contains(t, got.Message, "searching for medical facilities")
}

func TestRoundTwo(t *testing.T) {
	g := NewGuide()
	got, err := g.Round(testSession(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, got.Round)
	assert.False(t, got.NextGuidanceAvailable)
	assert.Contains(t, got.Message, "insurance card (blue cross)")
	assert.Contains(t, got.JourneyProgress, "intake complete")
	assert.Contains(t, got.JourneyProgress, "2 facilities found")
	assert.Contains(t, got.JourneyProgress, "appointments available at 1")
}

func TestRoundsPastCap(t *testing.T) {
	g := NewGuide()
	for _, n := range []int{0, 3, 7} {
		_, err := g.Round(testSession(), n)
		assert.ErrorIs(t, err, ErrGuidanceComplete, "round %d", n)
	}
}

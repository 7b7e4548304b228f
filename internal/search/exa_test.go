package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patienthero/patienthero/internal/domain"
	"github.com/patienthero/patienthero/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

func TestGuessInstitutionType(t *testing.T) {
	tests := []struct {
		title string
		url   string
		want  string
	}{
		{"County Emergency Services", "https://county.org", domain.TypeEmergencyRoom},
		{"Downtown Urgent Care", "https://duc.org", domain.TypeUrgentCare},
		{"St. Mary's Hospital", "https://stmarys.org", domain.TypeHospital},
		{"Family Health Clinic", "https://fhc.org", domain.TypeClinic},
		{"Bayview Medical Center", "https://bayview.org", domain.TypeMedicalCenter},
		{"Veterans Health Services", "https://vha.org", domain.TypeGovernmentFacility},
		{"Health Services Directory", "https://health.gov", domain.TypeGovernmentFacility},
		{"Wellness Network", "https://wellness.org", domain.TypeHealthcareFacility},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessInstitutionType(tt.title, tt.url))
		})
	}
}

func TestFindInstitutions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		switch r.URL.Path {
		case "/search":
			var req exaSearchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Contains(t, req.Query, "94105")
			assert.Contains(t, req.Query, "site:.org OR site:.gov")

			json.NewEncoder(w).Encode(exaSearchResponse{Results: []exaResult{
				{Title: "St. Mary's Hospital", URL: "https://stmarys.org/er"},
				{Title: "Paid Listing Site", URL: "https://hospitals-near-me.com"},
				{Title: "County Health Clinic", URL: "https://county.gov/clinic"},
			}})
		case "/answer":
			var req exaAnswerRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Query == "Does St. Mary's Hospital accept blue cross?" {
				json.NewEncoder(w).Encode(exaAnswerResponse{Answer: "Yes, they accept Blue Cross."})
			} else {
				json.NewEncoder(w).Encode(exaAnswerResponse{Answer: "It is unclear."})
			}
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewExaClient("test-key", 5, testLogger())
	c.baseURL = srv.URL

	insts, err := c.FindInstitutions(context.Background(), "headache", "94105", "blue cross")
	require.NoError(t, err)
	require.Len(t, insts, 2) // the .com listing is filtered out

	assert.Equal(t, "St. Mary's Hospital", insts[0].Name)
	assert.Equal(t, domain.TypeHospital, insts[0].Type)
	assert.Equal(t, "true", insts[0].AcceptsInsurance)
	assert.Equal(t, "unknown", insts[1].AcceptsInsurance)
}

func TestFindInstitutionsCapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/answer" {
			json.NewEncoder(w).Encode(exaAnswerResponse{Answer: "unclear"})
			return
		}
		var results []exaResult
		for i := 0; i < 10; i++ {
			results = append(results, exaResult{Title: "Hospital", URL: "https://h.org"})
		}
		json.NewEncoder(w).Encode(exaSearchResponse{Results: results})
	}))
	defer srv.Close()

	c := NewExaClient("test-key", 5, testLogger())
	c.baseURL = srv.URL

	insts, err := c.FindInstitutions(context.Background(), "flu", "10001", "")
	require.NoError(t, err)
	assert.Len(t, insts, 5)
}

func TestFindInstitutionsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid key"}`)
	}))
	defer srv.Close()

	c := NewExaClient("bad-key", 5, testLogger())
	c.baseURL = srv.URL

	_, err := c.FindInstitutions(context.Background(), "flu", "10001", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDemoSearcher(t *testing.T) {
	d := NewDemoSearcher()
	insts, err := d.FindInstitutions(context.Background(), "headache", "94105", "aetna")
	require.NoError(t, err)
	require.Len(t, insts, 3)
	assert.Contains(t, insts[0].Name, "94105")
}

// Package search finds medical institutions near a patient via the Exa.ai
// search API, restricted to .org and .gov domains.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patienthero/patienthero/internal/domain"
	"github.com/patienthero/patienthero/internal/logging"
)

const exaBaseURL = "https://api.exa.ai"

// Searcher locates institutions for a patient. Implementations must be safe
// for concurrent use.
type Searcher interface {
	FindInstitutions(ctx context.Context, condition, zip, insurance string) ([]domain.Institution, error)
}

// ExaClient talks to the Exa.ai REST API.
type ExaClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
	log        *logging.Logger
}

// NewExaClient creates a client capped at maxResults institutions per search.
func NewExaClient(apiKey string, maxResults int, log *logging.Logger) *ExaClient {
	return &ExaClient{
		apiKey:     apiKey,
		baseURL:    exaBaseURL,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        log.Sub("search"),
	}
}

type exaSearchRequest struct {
	Query      string          `json:"query"`
	NumResults int             `json:"numResults"`
	Contents   exaContentsSpec `json:"contents"`
}

type exaContentsSpec struct {
	Text bool `json:"text"`
}

type exaSearchResponse struct {
	Results []exaResult `json:"results"`
}

type exaResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

type exaAnswerRequest struct {
	Query string `json:"query"`
}

type exaAnswerResponse struct {
	Answer string `json:"answer"`
}

// FindInstitutions searches for hospitals, medical centers, and clinics near
// the patient's ZIP code, keeps only .org/.gov results, and checks insurance
// acceptance for each through the answer API.
func (e *ExaClient) FindInstitutions(ctx context.Context, condition, zip, insurance string) ([]domain.Institution, error) {
	query := fmt.Sprintf("best hospitals OR medical centers OR clinics for %s near %s site:.org OR site:.gov",
		condition, zip)

	var resp exaSearchResponse
	err := e.post(ctx, "/search", exaSearchRequest{
		Query:      query,
		NumResults: 15,
		Contents:   exaContentsSpec{Text: true},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("institution search: %w", err)
	}

	var institutions []domain.Institution
	for _, r := range resp.Results {
		if !strings.Contains(r.URL, ".org") && !strings.Contains(r.URL, ".gov") {
			continue
		}
		institutions = append(institutions, domain.Institution{
			ID:               uuid.New().String(),
			Name:             r.Title,
			URL:              r.URL,
			Type:             GuessInstitutionType(r.Title, r.URL),
			AcceptsInsurance: e.checkInsurance(ctx, r.Title, insurance),
		})
		if len(institutions) == e.maxResults {
			break
		}
	}

	e.log.Info().Str("zip", zip).Int("found", len(institutions)).Msg("institution search complete")
	return institutions, nil
}

// checkInsurance asks the answer API whether a facility takes the patient's
// plan. Any failure degrades to "unknown"; insurance verification is
// best-effort by design.
func (e *ExaClient) checkInsurance(ctx context.Context, name, insurance string) string {
	if insurance == "" || name == "" {
		return "unknown"
	}

	var resp exaAnswerResponse
	err := e.post(ctx, "/answer", exaAnswerRequest{
		Query: fmt.Sprintf("Does %s accept %s?", name, insurance),
	}, &resp)
	if err != nil {
		e.log.Debug().Err(err).Str("institution", name).Msg("insurance check failed")
		return "unknown"
	}

	answer := strings.ToLower(resp.Answer)
	switch {
	case strings.Contains(answer, "yes") || strings.Contains(answer, "accept"):
		return "true"
	case strings.Contains(answer, "not accept") || strings.Contains(answer, "no"):
		return "false"
	default:
		return "unknown"
	}
}

func (e *ExaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exa API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return json.Unmarshal(respBody, out)
}

// GuessInstitutionType maps a search result to a coarse facility type from
// its title and URL.
func GuessInstitutionType(title, url string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "emergency"):
		return domain.TypeEmergencyRoom
	case strings.Contains(lower, "urgent"):
		return domain.TypeUrgentCare
	case strings.Contains(lower, "hospital"):
		return domain.TypeHospital
	case strings.Contains(lower, "clinic"):
		return domain.TypeClinic
	case strings.Contains(lower, "medical center"):
		return domain.TypeMedicalCenter
	case strings.Contains(lower, "veterans") || strings.Contains(lower, " va ") || strings.Contains(url, ".gov"):
		return domain.TypeGovernmentFacility
	default:
		return domain.TypeHealthcareFacility
	}
}

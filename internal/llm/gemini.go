package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient is a direct HTTP client for the Google Gemini API.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiClient creates a Gemini client for the given model.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name.
func (g *GeminiClient) Name() string { return "gemini" }

// Complete sends a completion request to the Gemini API.
func (g *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.model
	}

	payload, err := json.Marshal(g.buildRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, model, url.QueryEscape(g.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: "gemini",
			Code:     resp.StatusCode,
			Message:  strings.TrimSpace(string(respBody)),
		}
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return g.toCompletion(&result, model, time.Since(start)), nil
}

func (g *GeminiClient) buildRequestBody(req CompletionRequest) map[string]any {
	// Gemini has no system role on this endpoint; the system prompt is
	// folded into a single user turn.
	contents := []map[string]any{
		{
			"role": "user",
			"parts": []map[string]string{
				{"text": g.buildPrompt(req)},
			},
		},
	}

	genConfig := map[string]any{}
	if req.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}

	body := map[string]any{"contents": contents}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}
	return body
}

func (g *GeminiClient) buildPrompt(req CompletionRequest) string {
	var prompt strings.Builder

	if req.System != "" {
		prompt.WriteString("System: ")
		prompt.WriteString(req.System)
		prompt.WriteString("\n\n")
	}

	for _, msg := range req.Messages {
		if msg.Role != RoleUser {
			prompt.WriteString(fmt.Sprintf("%s: ", msg.Role))
		}
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n\n")
	}

	return prompt.String()
}

func (g *GeminiClient) toCompletion(resp *geminiResponse, model string, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			content.WriteString(part.Text)
		}
	}

	return &CompletionResponse{
		Content: content.String(),
		Model:   model,
		Usage: Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
		Duration: duration,
	}
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content struct {
		Parts []geminiPart `json:"parts"`
		Role  string       `json:"role"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

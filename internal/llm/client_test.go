package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patienthero/patienthero/internal/config"
	"github.com/patienthero/patienthero/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "contents")

		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"parts": []map[string]any{{"text": "What is your ZIP code?"}},
					"role":  "model",
				}},
			},
			"usageMetadata": map[string]any{"promptTokenCount": 12, "candidatesTokenCount": 6},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g := NewGeminiClient("test-key", "gemini-2.5-flash")
	g.baseURL = srv.URL

	resp, err := g.Complete(context.Background(), CompletionRequest{
		System:   "You are an intake coordinator.",
		Messages: []Message{{Role: RoleUser, Content: "I have a headache"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "What is your ZIP code?", resp.Content)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 6, resp.Usage.OutputTokens)
}

func TestGeminiCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": "quota exceeded"}`)
	}))
	defer srv.Close()

	g := NewGeminiClient("test-key", "gemini-2.5-flash")
	g.baseURL = srv.URL

	_, err := g.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "gemini", perr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, perr.Code)
}

func TestDemoClientKeyedResponses(t *testing.T) {
	d := NewDemoClient()

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"headache", "I have a bad headache", "Headaches"},
		{"stomach", "my stomach hurts", "Stomach"},
		{"fever", "running a fever since yesterday", "Fever"},
		{"default", "something else entirely", "general health information"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := d.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: RoleUser, Content: tt.message}},
			})
			require.NoError(t, err)
			assert.Contains(t, resp.Content, tt.want)
		})
	}
}

func TestRegistryResolveAndChain(t *testing.T) {
	reg := NewRegistry(testLogger())
	gemini := &MockClient{ProviderName: "gemini"}
	openai := &MockClient{ProviderName: "openai"}
	demo := &MockClient{ProviderName: "demo"}
	reg.Register("gemini", gemini)
	reg.Register("openai", openai)
	reg.Register("demo", demo)
	reg.SetDefault("gemini")
	reg.SetFallbacks([]string{"openai", "demo"})

	c, err := reg.Resolve("openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	_, err = reg.Resolve("nonexistent")
	assert.Error(t, err)

	chain := reg.Chain()
	require.Len(t, chain, 3)
	assert.Equal(t, "gemini", chain[0].Name())
	assert.Equal(t, "openai", chain[1].Name())
	assert.Equal(t, "demo", chain[2].Name())
}

func TestRegistryChainSkipsUnregistered(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register("demo", &MockClient{ProviderName: "demo"})
	reg.SetDefault("gemini")
	reg.SetFallbacks([]string{"openai", "demo"})

	chain := reg.Chain()
	require.Len(t, chain, 1)
	assert.Equal(t, "demo", chain[0].Name())
}

func TestNewRegistryFromConfigDemoOnly(t *testing.T) {
	cfg := config.Defaults().LLM
	// No keys configured anywhere: only the demo provider registers.
	reg := NewRegistryFromConfig(cfg, testLogger())

	assert.ElementsMatch(t, []string{"demo"}, reg.List())
	chain := reg.Chain()
	require.Len(t, chain, 1)
	assert.Equal(t, "demo", chain[0].Name())
}

func TestNewRegistryFromConfigWithKeys(t *testing.T) {
	cfg := config.Defaults().LLM
	cfg.Gemini.APIKey = "g-key"
	cfg.OpenAI.APIKey = "o-key"
	reg := NewRegistryFromConfig(cfg, testLogger())

	assert.ElementsMatch(t, []string{"gemini", "openai", "demo"}, reg.List())
	chain := reg.Chain()
	require.Len(t, chain, 3)
	assert.Equal(t, "gemini", chain[0].Name())
}

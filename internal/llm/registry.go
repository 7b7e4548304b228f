package llm

import (
	"fmt"
	"sync"

	"github.com/patienthero/patienthero/internal/config"
	"github.com/patienthero/patienthero/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages LLM provider clients and the fallback chain consulted
// when the default provider fails.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client
	defName  string
	fallback []string
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// SetDefault names the provider consulted first.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defName = name
}

// SetFallbacks names the providers consulted, in order, after the default fails.
func (r *Registry) SetFallbacks(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = append([]string(nil), names...)
}

// Resolve returns the client registered under name.
func (r *Registry) Resolve(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no LLM provider named %q", name)
}

// Chain returns the default client followed by its fallbacks, skipping names
// with no registered client. The chain is never empty as long as anything is
// registered: with no default configured it degrades to every client.
func (r *Registry) Chain() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var chain []Client
	seen := map[string]bool{}
	for _, name := range append([]string{r.defName}, r.fallback...) {
		if name == "" || seen[name] {
			continue
		}
		if c, ok := r.clients[name]; ok {
			chain = append(chain, c)
			seen[name] = true
		}
	}
	if len(chain) == 0 {
		for name, c := range r.clients {
			if !seen[name] {
				chain = append(chain, c)
			}
		}
	}
	return chain
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	return names
}

// NewRegistryFromConfig builds a Registry from the llm config section.
// Providers without an API key are skipped; the demo provider is always
// registered so the chain can never be empty.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	if cfg.Gemini.APIKey != "" {
		reg.Register("gemini", NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model))
	}
	if cfg.OpenAI.APIKey != "" || cfg.OpenAI.BaseURL != "" {
		reg.Register("openai", NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL))
	}
	reg.Register("demo", NewDemoClient())

	reg.SetDefault(cfg.Default)
	fallbacks := cfg.Fallbacks
	if len(fallbacks) == 0 {
		fallbacks = []string{"demo"}
	}
	reg.SetFallbacks(fallbacks)

	return reg
}

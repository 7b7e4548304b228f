package config

// Config is the root configuration for PatientHero.
type Config struct {
	Server       ServerConfig       `yaml:"server,omitempty"`
	Logging      LoggingConfig      `yaml:"logging,omitempty"`
	Storage      StorageConfig      `yaml:"storage,omitempty"`
	LLM          LLMConfig          `yaml:"llm,omitempty"`
	Search       SearchConfig       `yaml:"search,omitempty"`
	Appointments AppointmentsConfig `yaml:"appointments,omitempty"`
	Prompts      PromptsConfig      `yaml:"prompts,omitempty"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Bind        string   `yaml:"bind,omitempty"` // host:port
	CORSOrigins []string `yaml:"corsOrigins,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}

// StorageConfig selects and configures the session store backend.
type StorageConfig struct {
	Backend    string `yaml:"backend,omitempty"` // "memory" | "sqlite"
	SQLitePath string `yaml:"sqlitePath,omitempty"`
}

// LLMConfig configures model providers and the fallback chain.
type LLMConfig struct {
	Default   string       `yaml:"default,omitempty"` // provider consulted first
	Fallbacks []string     `yaml:"fallbacks,omitempty"`
	Gemini    GeminiConfig `yaml:"gemini,omitempty"`
	OpenAI    OpenAIConfig `yaml:"openai,omitempty"`
}

// GeminiConfig configures the Gemini provider. An empty API key puts the
// provider in demo mode rather than failing startup.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// OpenAIConfig configures the OpenAI-compatible provider. BaseURL may point
// at a self-hosted completion server.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// SearchConfig configures the institution search provider.
type SearchConfig struct {
	ExaAPIKey  string `yaml:"exaApiKey,omitempty"`
	MaxResults int    `yaml:"maxResults,omitempty"`
}

// AppointmentsConfig controls the background appointment checker.
type AppointmentsConfig struct {
	Enabled             *bool `yaml:"enabled,omitempty"`
	MaxConcurrent       int   `yaml:"maxConcurrent,omitempty"`
	FetchTimeoutSeconds int   `yaml:"fetchTimeoutSeconds,omitempty"`
}

// PromptsConfig points at an optional prompt-pack file overriding the
// embedded persona prompts and fallback templates.
type PromptsConfig struct {
	Path string `yaml:"path,omitempty"`
}

// AppointmentsEnabled resolves the tri-state enabled flag (default true).
func (c AppointmentsConfig) AppointmentsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

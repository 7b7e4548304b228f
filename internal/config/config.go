package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Bind:        "127.0.0.1:8000",
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		LLM: LLMConfig{
			Default:   "gemini",
			Fallbacks: []string{"openai", "demo"},
			Gemini:    GeminiConfig{Model: "gemini-2.5-flash"},
			OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		},
		Search: SearchConfig{
			MaxResults: 5,
		},
		Appointments: AppointmentsConfig{
			MaxConcurrent:       3,
			FetchTimeoutSeconds: 15,
		},
	}
}

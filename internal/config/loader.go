package config

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys can be stored as ${ENV_VAR}. A reference to
// an unset variable resolves to empty, which selects demo mode rather than
// leaving the literal placeholder in the key.
func expandSensitiveFields(cfg *Config) {
	cfg.LLM.Gemini.APIKey = expandKey(cfg.LLM.Gemini.APIKey)
	cfg.LLM.OpenAI.APIKey = expandKey(cfg.LLM.OpenAI.APIKey)
	cfg.Search.ExaAPIKey = expandKey(cfg.Search.ExaAPIKey)
}

func expandKey(s string) string {
	expanded := expandEnvVars(s)
	if envVarPattern.MatchString(expanded) {
		return ""
	}
	return expanded
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults, so a partial
// config file does not wipe them out.
func applyDefaults(cfg *Config) {
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "127.0.0.1:8000"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.LLM.Default == "" {
		cfg.LLM.Default = "gemini"
	}
	if cfg.LLM.Fallbacks == nil {
		cfg.LLM.Fallbacks = []string{"openai", "demo"}
	}
	if cfg.LLM.Gemini.Model == "" {
		cfg.LLM.Gemini.Model = "gemini-2.5-flash"
	}
	if cfg.LLM.OpenAI.Model == "" {
		cfg.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 5
	}
	if cfg.Appointments.MaxConcurrent == 0 {
		cfg.Appointments.MaxConcurrent = 3
	}
	if cfg.Appointments.FetchTimeoutSeconds == 0 {
		cfg.Appointments.FetchTimeoutSeconds = 15
	}
}

// applyEnvOverrides reads PATIENTHERO_* environment variables and overrides
// config values. API-key overrides exist so deployments can skip the config
// file entirely.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PATIENTHERO_SERVER_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("PATIENTHERO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PATIENTHERO_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("PATIENTHERO_GEMINI_API_KEY"); v != "" {
		cfg.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("PATIENTHERO_OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("PATIENTHERO_EXA_API_KEY"); v != "" {
		cfg.Search.ExaAPIKey = v
	}
}

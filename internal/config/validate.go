package config

import (
	"fmt"
	"net"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid. Absent API
// keys are deliberately not issues: a missing key selects demo mode.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Bind != "" {
		if _, _, err := net.SplitHostPort(cfg.Server.Bind); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "server.bind",
				Message: fmt.Sprintf("must be host:port, got %q", cfg.Server.Bind),
			})
		}
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validBackends := []string{"memory", "sqlite"}
	if cfg.Storage.Backend != "" && !slices.Contains(validBackends, cfg.Storage.Backend) {
		issues = append(issues, ValidationIssue{
			Path:    "storage.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", validBackends, cfg.Storage.Backend),
		})
	}

	validProviders := []string{"gemini", "openai", "demo"}
	if cfg.LLM.Default != "" && !slices.Contains(validProviders, cfg.LLM.Default) {
		issues = append(issues, ValidationIssue{
			Path:    "llm.default",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.LLM.Default),
		})
	}
	for i, name := range cfg.LLM.Fallbacks {
		if !slices.Contains(validProviders, name) {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("llm.fallbacks[%d]", i),
				Message: fmt.Sprintf("must be one of %v, got %q", validProviders, name),
			})
		}
	}

	if cfg.Search.MaxResults < 1 || cfg.Search.MaxResults > 20 {
		issues = append(issues, ValidationIssue{
			Path:    "search.maxResults",
			Message: fmt.Sprintf("must be 1-20, got %d", cfg.Search.MaxResults),
		})
	}

	if cfg.Appointments.MaxConcurrent < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "appointments.maxConcurrent",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Appointments.MaxConcurrent),
		})
	}
	if cfg.Appointments.FetchTimeoutSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "appointments.fetchTimeoutSeconds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Appointments.FetchTimeoutSeconds),
		})
	}

	return issues
}

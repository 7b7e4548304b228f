package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patienthero/patienthero/internal/config"
	"github.com/patienthero/patienthero/internal/llm"
	"github.com/patienthero/patienthero/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show PatientHero status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("PatientHero %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Server:  bind=%s\n", cfg.Server.Bind)

			backend := cfg.Storage.Backend
			if backend == "" {
				backend = "memory"
			}
			fmt.Printf("Storage: backend=%s\n", backend)

			registry := llm.NewRegistryFromConfig(cfg.LLM, log)
			fmt.Printf("LLM:     %s (default %s)\n", strings.Join(registry.List(), ", "), cfg.LLM.Default)

			if cfg.Search.ExaAPIKey != "" {
				fmt.Printf("Search:  exa (max %d results)\n", cfg.Search.MaxResults)
			} else {
				fmt.Println("Search:  demo mode (no API key)")
			}

			if cfg.Appointments.AppointmentsEnabled() {
				fmt.Printf("Appts:   enabled (max %d concurrent, %ds fetch timeout)\n",
					cfg.Appointments.MaxConcurrent, cfg.Appointments.FetchTimeoutSeconds)
			} else {
				fmt.Println("Appts:   disabled")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

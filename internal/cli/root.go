// Package cli implements the patienthero command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/patienthero/patienthero/internal/config"
	"github.com/patienthero/patienthero/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patienthero",
		Short: "PatientHero — healthcare intake chatbot backend",
		Long: "PatientHero runs a staged medical-intake chat pipeline over HTTP: it collects\n" +
			"patient information, reasons about symptoms, finds nearby care, and keeps\n" +
			"safety guardrails on every message.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.patienthero/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

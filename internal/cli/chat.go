package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patienthero/patienthero/internal/agent"
	"github.com/patienthero/patienthero/internal/config"
	"github.com/patienthero/patienthero/internal/guard"
	"github.com/patienthero/patienthero/internal/intake"
	"github.com/patienthero/patienthero/internal/llm"
	"github.com/patienthero/patienthero/internal/monitor"
	"github.com/patienthero/patienthero/internal/prompts"
	"github.com/patienthero/patienthero/internal/store"
)

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message through the pipeline and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			pack, err := prompts.Load(cfg.Prompts.Path)
			if err != nil {
				return err
			}

			registry := llm.NewRegistryFromConfig(cfg.LLM, log)
			runner := agent.NewRunner(
				intake.NewKeywordClassifier(),
				guard.NewValidator(),
				registry,
				store.NewMemoryStore(),
				monitor.New(log),
				pack,
				log,
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			turn, err := runner.Handle(ctx, sessionID, message)
			if err != nil {
				return err
			}

			fmt.Println(turn.Response)
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[session=%s agent=%s stage=%s next=%s]\n",
				turn.SessionID, turn.Agent, turn.Stage, turn.NextStep)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id to continue")

	return cmd
}

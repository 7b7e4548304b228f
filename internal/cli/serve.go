package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patienthero/patienthero/internal/agent"
	"github.com/patienthero/patienthero/internal/appointments"
	"github.com/patienthero/patienthero/internal/config"
	"github.com/patienthero/patienthero/internal/guard"
	"github.com/patienthero/patienthero/internal/intake"
	"github.com/patienthero/patienthero/internal/llm"
	"github.com/patienthero/patienthero/internal/monitor"
	"github.com/patienthero/patienthero/internal/prompts"
	"github.com/patienthero/patienthero/internal/search"
	"github.com/patienthero/patienthero/internal/server"
	"github.com/patienthero/patienthero/internal/store"
)

func newServeCmd() *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the PatientHero API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			pack, err := prompts.Load(cfg.Prompts.Path)
			if err != nil {
				return err
			}

			registry := llm.NewRegistryFromConfig(cfg.LLM, log)
			log.Info().Strs("providers", registry.List()).Msg("LLM providers available")

			// Session store: the SQLite backend doubles as the durable
			// event sink for the monitor.
			var (
				sessions store.SessionStore
				sinks    []monitor.Sink
			)
			if cfg.Storage.Backend == "sqlite" {
				dbPath := paths.SQLitePath(&cfg)
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sqliteStore := store.NewSQLiteStore(db)
				sessions = sqliteStore
				sinks = append(sinks, sqliteStore)
				log.Info().Str("path", dbPath).Msg("using SQLite session store")
			} else {
				sessions = store.NewMemoryStore()
				log.Info().Msg("using in-memory session store")
			}

			mon := monitor.New(log, sinks...)
			validator := guard.NewValidator()

			var searcher search.Searcher
			if cfg.Search.ExaAPIKey != "" {
				searcher = search.NewExaClient(cfg.Search.ExaAPIKey, cfg.Search.MaxResults, log)
			} else {
				searcher = search.NewDemoSearcher()
				log.Warn().Msg("no search API key configured — using demo institutions")
			}

			runner := agent.NewRunner(
				intake.NewKeywordClassifier(),
				validator,
				registry,
				sessions,
				mon,
				pack,
				log,
			)

			opts := []server.ServerOption{server.WithSearcher(searcher)}
			if cfg.Appointments.AppointmentsEnabled() {
				processor := appointments.NewProcessor(cfg.Appointments, registry, sessions, mon, log)
				opts = append(opts, server.WithAppointments(processor))
			} else {
				log.Info().Msg("appointment checking disabled")
			}

			srv := server.New(cfg, runner, sessions, validator, mon, log, opts...)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "override listen address (host:port)")

	return cmd
}

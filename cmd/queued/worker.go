package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/queued-dev/queued/audit"
	"github.com/queued-dev/queued/cron"
	"github.com/queued-dev/queued/engine"
	"github.com/queued-dev/queued/hook"
)

// cronEntry is the config-file shape of a cron definition, e.g.
//
//	cron:
//	  - name: heartbeat
//	    schedule: "@every 1m"
//	    command: "curl -fsS https://hc.example.com/ping"
//	    max_retries: 1
type cronEntry struct {
	Name       string `mapstructure:"name"`
	Schedule   string `mapstructure:"schedule"`
	Command    string `mapstructure:"command"`
	MaxRetries int    `mapstructure:"max_retries"`
}

func newWorkerCmd() *cobra.Command {
	var (
		count           int
		interval        time.Duration
		commandTimeout  time.Duration
		shutdownTimeout time.Duration
		rateLimit       float64
		auditLog        string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run workers until interrupted",
		Long: `Worker claims pending jobs and executes them with a pool of concurrent
workers. On SIGINT or SIGTERM the pool stops claiming and finishes the
jobs it holds, up to --shutdown-timeout.

Cron definitions from the config file (see --config) are scheduled for
the lifetime of the process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := newLogger()
			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			opts := []engine.Option{
				engine.WithLogger(logger),
				engine.WithConcurrency(count),
				engine.WithPollInterval(interval),
				engine.WithCommandTimeout(commandTimeout),
				engine.WithShutdownTimeout(shutdownTimeout),
				engine.WithRateLimit(rateLimit),
				engine.WithHook(hook.NewMetricsHook()),
			}
			if auditLog != "" {
				f, err := os.OpenFile(auditLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open audit log: %w", err)
				}
				defer f.Close()
				opts = append(opts, engine.WithHook(
					audit.New(audit.NewJSONRecorder(f), audit.WithLogger(logger))))
			}

			eng, err := engine.New(s, opts...)
			if err != nil {
				return err
			}

			var entries []cronEntry
			if err := viper.UnmarshalKey("cron", &entries); err != nil {
				return fmt.Errorf("parse cron config: %w", err)
			}
			for _, e := range entries {
				def := cron.Definition{
					Name:       e.Name,
					Schedule:   e.Schedule,
					Command:    e.Command,
					MaxRetries: e.MaxRetries,
				}
				if err := eng.AddCron(def); err != nil {
					return fmt.Errorf("cron %q: %w", e.Name, err)
				}
			}

			return eng.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&count, "count", 4, "concurrent workers")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "idle poll interval")
	cmd.Flags().DurationVar(&commandTimeout, "command-timeout", 0, "per-command deadline (0 = none)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "grace period for in-flight jobs on shutdown")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "max job starts per second across the pool (0 = unlimited)")
	cmd.Flags().StringVar(&auditLog, "audit-log", "", "append lifecycle events as JSON lines to this file")
	return cmd
}

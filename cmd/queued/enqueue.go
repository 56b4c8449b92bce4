package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/queued-dev/queued/job"
)

func newEnqueueCmd() *cobra.Command {
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "enqueue <id> <command...>",
		Short: "Add a job to the queue",
		Long: `Enqueue persists a shell command as a pending job. The id is chosen by
you and must be unique; re-enqueuing an existing id fails without touching
the stored job.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			j, err := job.New(args[0], strings.Join(args[1:], " "),
				job.WithMaxRetries(maxRetries))
			if err != nil {
				return err
			}
			if err := s.Enqueue(ctx, j); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (max retries %d)\n", j.ID, j.MaxRetries)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "attempts before the job is dead-lettered")
	return cmd
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/queued-dev/queued/dlq"
	"github.com/queued-dev/queued/job"
)

func newDLQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered jobs",
	}
	cmd.AddCommand(newDLQListCmd(), newDLQRequeueCmd(), newDLQPurgeCmd())
	return cmd
}

func newDLQListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs that exhausted their retry budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			dead, err := dlq.NewService(s, nil).List(ctx, job.ListOpts{Limit: limit})
			if err != nil {
				return err
			}
			if len(dead) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "dead-letter queue is empty")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tATTEMPTS\tDIED\tLAST ERROR")
			for _, j := range dead {
				fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\n",
					j.ID, j.Attempts, j.MaxRetries,
					j.UpdatedAt.UTC().Format(time.RFC3339),
					truncate(j.LastError, 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum jobs to show (0 = all)")
	return cmd
}

func newDLQRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Move a dead job back to pending with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			j, err := dlq.NewService(s, nil).Requeue(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", j.ID)
			return nil
		},
	}
}

func newDLQPurgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete dead jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			var before time.Time
			if olderThan > 0 {
				before = time.Now().UTC().Add(-olderThan)
			}
			n, err := dlq.NewService(s, nil).Purge(ctx, before)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d job(s)\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only purge jobs dead longer than this (0 = all)")
	return cmd
}

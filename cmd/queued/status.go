package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/queued-dev/queued/job"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			counts, err := s.Summary(ctx)
			if err != nil {
				return err
			}

			total := 0
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, st := range job.States() {
				fmt.Fprintf(w, "%s\t%d\n", st, counts[st])
				total += counts[st]
			}
			fmt.Fprintf(w, "total\t%d\n", total)
			return w.Flush()
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a job from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

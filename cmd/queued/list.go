package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/queued-dev/queued/job"
)

func newListCmd() *cobra.Command {
	var (
		stateFlag string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			var state job.State
			if stateFlag != "" {
				parsed, err := job.ParseState(stateFlag)
				if err != nil {
					return err
				}
				state = parsed
			}

			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			jobs, err := s.List(ctx, state, job.ListOpts{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tCREATED\tLAST ERROR")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
					j.ID, j.State, j.Attempts, j.MaxRetries,
					j.CreatedAt.UTC().Format(time.RFC3339),
					truncate(j.LastError, 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "filter by state: pending|processing|completed|dead")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum jobs to show (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "jobs to skip")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

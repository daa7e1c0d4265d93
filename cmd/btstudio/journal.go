package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxhq/btstudio/internal/journal"
)

func newJournalCmd(a *app) *cobra.Command {
	var (
		limit int
		files bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent runs recorded in BTSTUDIO_JOURNAL_DSN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.Open(a.cfg.JournalDSN, a.cfg.RetentionRuns, a.log)
			if err != nil {
				return err
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			if !j.IsEnabled() {
				fmt.Fprintln(out, "journal disabled: set BTSTUDIO_JOURNAL_DSN")
				return nil
			}
			runs, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, run := range runs {
				status := "ok"
				if !run.Success {
					status = "failed: " + run.Error
				}
				fmt.Fprintf(out, "%s  %s  %-13s %5dms  %d warnings, %d errors  %s  %s\n",
					run.StartedAt.Local().Format(time.DateTime), run.ID, run.Kind, run.DurationMS,
					run.Warnings, run.Errors, run.Manifest, status)
				if files {
					for _, f := range run.Files {
						fmt.Fprintf(out, "    %-9s %-7s %s\n", f.Action, f.Role, f.Path)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&files, "files", false, "Also list the files of each run")
	return cmd
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"habla/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded download runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in the configuration")
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No downloads recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				detail := entry.OutputPath
				if entry.Status == history.StatusFailed {
					detail = entry.Error
				}
				rows = append(rows, []string{
					entry.CreatedAt.Local().Format(time.DateTime),
					entry.Status,
					entry.Title,
					entry.Decision,
					entry.Quality,
					detail,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"When", "Status", "Title", "Decision", "Quality", "Detail"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")

	return cmd
}

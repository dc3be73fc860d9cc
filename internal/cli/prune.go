package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"anchor-router/internal/app"
)

var (
	pruneBefore    string
	pruneOlderThan time.Duration
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old switch events from storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.PruneOptions{OlderThan: pruneOlderThan}

		if pruneBefore != "" {
			before, err := time.Parse(time.RFC3339, pruneBefore)
			if err != nil {
				return fmt.Errorf("invalid --before value: %w", err)
			}
			opts.Before = before
		}

		return getApp().Prune(cmd.Context(), opts)
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneBefore, "before", "", "Delete events before this timestamp (RFC3339)")
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "Delete events older than this duration, e.g. 720h")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"anchor-router/internal/app"
)

var (
	showLimit    int
	showSwitches bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent routing decisions or switch events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:    showLimit,
			Switches: showSwitches,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
	showCmd.Flags().BoolVar(&showSwitches, "switches", false, "Show switch events instead of decisions")
}

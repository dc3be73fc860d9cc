package cli

import (
	"github.com/spf13/cobra"

	"anchor-router/internal/app"
)

var (
	routePair          string
	routeAmount        float64
	routeOperation     string
	routeStrategy      string
	routeRequiresKYC   bool
	routeMinReputation int
	routeWeights       []float64
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Evaluate a single routing request against live anchor feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RouteOptions{
			Pair:          routePair,
			Amount:        routeAmount,
			Operation:     routeOperation,
			Strategy:      routeStrategy,
			RequiresKYC:   routeRequiresKYC,
			MinReputation: routeMinReputation,
			Weights:       routeWeights,
		}
		return getApp().Route(cmd.Context(), opts)
	},
}

func init() {
	routeCmd.Flags().StringVar(&routePair, "pair", "", "Asset pair, e.g. USDC:XLM")
	routeCmd.Flags().Float64Var(&routeAmount, "amount", 0, "Amount to route")
	routeCmd.Flags().StringVar(&routeOperation, "operation", "any", "Operation type: deposit|withdrawal|any")
	routeCmd.Flags().StringVar(&routeStrategy, "strategy", "best_rate", "Routing strategy")
	routeCmd.Flags().BoolVar(&routeRequiresKYC, "requires-kyc", false, "Only consider KYC-capable anchors")
	routeCmd.Flags().IntVar(&routeMinReputation, "min-reputation", 0, "Minimum reputation score (0 disables the floor)")
	routeCmd.Flags().Float64SliceVar(&routeWeights, "weights", nil, "Custom weights rate,fee,settlement,liquidity")
}

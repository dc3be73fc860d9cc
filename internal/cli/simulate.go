package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"anchor-router/internal/app"
)

var (
	simulatePair        string
	simulateAmount      float64
	simulateCurrentRate float64
	simulateBestRate    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-switch",
	Short: "模拟一次切换建议并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePair == "" {
			return errors.New("--pair 必须提供")
		}
		if simulateAmount <= 0 || simulateCurrentRate <= 0 || simulateBestRate <= 0 {
			return errors.New("--amount、--current-rate 与 --best-rate 必须大于 0")
		}

		opts := app.SimulateOptions{
			Pair:        simulatePair,
			Amount:      simulateAmount,
			CurrentRate: simulateCurrentRate,
			BestRate:    simulateBestRate,
		}
		return getApp().SimulateSwitch(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePair, "pair", "", "资产对, 例如 USDC:XLM")
	simulateCmd.Flags().Float64Var(&simulateAmount, "amount", 0, "模拟金额")
	simulateCmd.Flags().Float64Var(&simulateCurrentRate, "current-rate", 0, "当前 anchor 报价")
	simulateCmd.Flags().Float64Var(&simulateBestRate, "best-rate", 0, "候选 anchor 报价")
}

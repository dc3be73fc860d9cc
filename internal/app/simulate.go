package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"anchor-router/internal/alerting"
	"anchor-router/internal/anchor"
	"anchor-router/internal/health"
	"anchor-router/internal/quotebook"
	"anchor-router/internal/registry"
	"anchor-router/internal/routing"
)

// SimulateSwitch 用静态报价模拟一次切换评估并触发告警链路。
// Two synthetic anchors with identical attributes are registered so that the
// rate gap alone drives the advisor; no network access is involved.
func (a *App) SimulateSwitch(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	pair := anchor.AssetPair(opts.Pair)
	amount := decimal.NewFromFloat(opts.Amount)

	reg := registry.New(a.Logger)
	for _, id := range []string{"current.anchor", "candidate.anchor"} {
		seed := anchor.Anchor{
			ID:                id,
			ReputationScore:   80,
			SettlementMinutes: 30,
			LiquidityScore:    80,
		}
		if err := reg.Register(seed); err != nil {
			return err
		}
	}

	quotes := quotebook.New(reg, a.Config.Engine.QuoteTTL, a.Logger)
	bounds := amount.Mul(decimal.NewFromInt(10))
	submit := func(id string, rate float64) error {
		return quotes.Submit(id, anchor.Quote{
			Pair:       pair,
			Rate:       decimal.NewFromFloat(rate),
			FeePercent: decimal.NewFromInt(1),
			MinAmount:  decimal.Zero,
			MaxAmount:  bounds,
		})
	}
	if err := submit("current.anchor", opts.CurrentRate); err != nil {
		return err
	}
	if err := submit("candidate.anchor", opts.BestRate); err != nil {
		return err
	}

	monitor := health.New(reg, a.Config.Engine.DegradedAvailability, a.Logger)
	engine := routing.NewEngine(reg, quotes, monitor, routing.Options{}, a.Logger)
	advisor := routing.NewSwitchAdvisor(engine, a.Config.Engine.SwitchThresholdPct, a.Logger)

	req := anchor.RoutingRequest{
		Amount:   amount,
		Pair:     pair,
		Strategy: anchor.Strategy{Kind: anchor.BestRate},
	}

	rec, err := advisor.Evaluate("current.anchor", req, 0)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintln(os.Stdout, "no switch recommendation (improvement below threshold)")
		return nil
	}

	note := alerting.Notification{
		Bucket:             time.Now().UTC().Truncate(a.Config.Probes.Interval),
		Pair:               pair,
		Strategy:           anchor.BestRate,
		FromAnchorID:       rec.FromAnchorID,
		ToAnchorID:         rec.ToAnchorID,
		ImprovementPercent: rec.ImprovementPercent,
		ThresholdPercent:   a.Config.Engine.SwitchThresholdPct,
		Reason:             rec.Reason,
		Channels:           a.Config.Alerting.Channels,
		AdditionalMsg:      "simulated",
	}
	return notifier.Notify(ctx, note)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"anchor-router/internal/anchor"
	"anchor-router/internal/config"
	"anchor-router/internal/service"
)

// Route performs a one-shot evaluation: seed the registry, poll every
// anchor's feeds once, then print the ranked decision.
func (a *App) Route(ctx context.Context, opts RouteOptions) error {
	req, err := buildRequest(opts)
	if err != nil {
		return err
	}

	engines, err := a.buildEngine()
	if err != nil {
		return err
	}

	quoteSource, healthSource, reference := a.newSources()

	// Reuse the service's polling path with the request's pair as the
	// watch target so quotes land in the book before evaluation.
	cfg := *a.Config
	cfg.Watch.Pair = opts.Pair
	cfg.Watch.Amount = opts.Amount

	svc, err := service.New(&cfg, service.Deps{
		Registry:     engines.registry,
		Quotes:       engines.quotes,
		Monitor:      engines.monitor,
		Engine:       engines.engine,
		Advisor:      engines.advisor,
		QuoteSource:  quoteSource,
		HealthSource: healthSource,
		Reference:    reference,
	}, a.Logger)
	if err != nil {
		return err
	}
	svc.PollFeeds(ctx)

	result, err := engines.engine.Route(req)
	if err != nil {
		if errors.Is(err, anchor.ErrNoEligibleAnchor) {
			fmt.Fprintln(os.Stdout, "no eligible anchor for this request")
			return nil
		}
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tAnchor\tScore\tStrategy")
	fmt.Fprintf(writer, "1\t%s\t%d\t%s\n", result.SelectedAnchorID, result.Score, result.StrategyUsed.Kind)
	for i, alt := range result.Alternatives {
		fmt.Fprintf(writer, "%d\t%s\t%d\t\n", i+2, alt.AnchorID, alt.Score)
	}
	writer.Flush()
	return nil
}

func buildRequest(opts RouteOptions) (anchor.RoutingRequest, error) {
	if opts.Pair == "" {
		return anchor.RoutingRequest{}, errors.New("--pair is required")
	}
	if opts.Amount <= 0 {
		return anchor.RoutingRequest{}, errors.New("--amount must be greater than zero")
	}

	operation, err := config.ParseService(opts.Operation)
	if err != nil {
		return anchor.RoutingRequest{}, err
	}

	strategy, err := buildStrategy(opts)
	if err != nil {
		return anchor.RoutingRequest{}, err
	}

	req := anchor.RoutingRequest{
		Amount:      decimal.NewFromFloat(opts.Amount),
		Pair:        anchor.AssetPair(opts.Pair),
		Operation:   operation,
		RequiresKYC: opts.RequiresKYC,
		Strategy:    strategy,
	}
	if opts.MinReputation > 0 {
		min := opts.MinReputation
		req.MinReputation = &min
	}
	return req, nil
}

func buildStrategy(opts RouteOptions) (anchor.Strategy, error) {
	if len(opts.Weights) > 0 {
		if len(opts.Weights) != 4 {
			return anchor.Strategy{}, errors.New("--weights 需要 4 个值: rate,fee,settlement,liquidity")
		}
		return anchor.CustomStrategy(anchor.Weights{
			Rate:       opts.Weights[0],
			Fee:        opts.Weights[1],
			Settlement: opts.Weights[2],
			Liquidity:  opts.Weights[3],
		}), nil
	}

	kind, err := anchor.ParseStrategyKind(opts.Strategy)
	if err != nil {
		return anchor.Strategy{}, err
	}
	return anchor.Strategy{Kind: kind}, nil
}

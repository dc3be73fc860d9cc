package routing

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"anchor-router/internal/anchor"
	"anchor-router/internal/health"
	"anchor-router/internal/quotebook"
	"anchor-router/internal/registry"
	"anchor-router/internal/scoring"
)

// Options tune engine behaviour.
type Options struct {
	// MaxAlternatives caps the ranked alternatives list; 0 = unlimited.
	MaxAlternatives int
	// Now overrides the clock, for deterministic tests.
	Now func() time.Time
}

// Engine orchestrates filtering and scoring into a ranked routing decision.
// Each Route call is a single pure evaluation over a snapshot of the three
// stores; the engine holds no per-request state and calls never block each
// other.
type Engine struct {
	registry *registry.Registry
	quotes   *quotebook.Book
	monitor  *health.Monitor
	opts     Options
	logger   zerolog.Logger
}

// NewEngine wires the three stores into a routing engine.
func NewEngine(reg *registry.Registry, quotes *quotebook.Book, monitor *health.Monitor, opts Options, logger zerolog.Logger) *Engine {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		registry: reg,
		quotes:   quotes,
		monitor:  monitor,
		opts:     opts,
		logger:   logger.With().Str("component", "routing_engine").Logger(),
	}
}

// Route selects the best eligible anchor for the request and ranks the rest.
// Filters: active, operation support, KYC, reputation floor, Healthy status,
// and a non-stale quote covering the amount. An empty candidate set fails
// with ErrNoEligibleAnchor; there is no silent fallback to degraded anchors.
func (e *Engine) Route(req anchor.RoutingRequest) (anchor.RoutingResult, error) {
	now := e.opts.Now()

	scored, _, err := e.evaluate(req, now)
	if err != nil {
		return anchor.RoutingResult{}, err
	}

	result := e.buildResult(scored, req.Strategy, now)
	e.logger.Debug().
		Str("pair", string(req.Pair)).
		Str("strategy", req.Strategy.Kind.String()).
		Str("selected", result.SelectedAnchorID).
		Int64("score", result.Score).
		Int("candidates", len(scored)).
		Msg("routing decision")
	return result, nil
}

// FindBestAnchor is the convenience form of Route with open filters: it
// returns only the winning anchor id for a pair, amount, and strategy.
func (e *Engine) FindBestAnchor(pair anchor.AssetPair, amount decimal.Decimal, strategy anchor.Strategy) (string, error) {
	result, err := e.Route(anchor.RoutingRequest{
		Amount:   amount,
		Pair:     pair,
		Strategy: strategy,
	})
	if err != nil {
		return "", err
	}
	return result.SelectedAnchorID, nil
}

// CompareRates surveys non-stale quotes from active anchors that cover the
// amount, without strategy scoring. Best is the highest rate, ties broken by
// ascending anchor id.
func (e *Engine) CompareRates(pair anchor.AssetPair, amount decimal.Decimal) (anchor.RateComparison, error) {
	now := e.opts.Now()
	quotes := e.quotes.Snapshot(pair, now)

	all := make([]anchor.Quote, 0, len(quotes))
	for _, a := range e.registry.Snapshot() {
		q, ok := quotes[a.ID]
		if !ok || !a.Active || !q.Covers(amount) {
			continue
		}
		all = append(all, q)
	}
	if len(all) == 0 {
		return anchor.RateComparison{}, fmt.Errorf("%w: no quotes cover %s %s", anchor.ErrNoEligibleAnchor, amount, pair)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].Rate.Equal(all[j].Rate) {
			return all[i].Rate.GreaterThan(all[j].Rate)
		}
		return all[i].AnchorID < all[j].AnchorID
	})

	return anchor.RateComparison{Best: all[0], All: all, ComparedAt: now}, nil
}

// evaluate runs the filter pipeline and scoring over one snapshot instant.
// The scored set is shared with the switch advisor so both sides of a
// comparison see the same normalization baseline.
func (e *Engine) evaluate(req anchor.RoutingRequest, now time.Time) ([]scoring.Scored, anchor.Weights, error) {
	weights, err := req.Strategy.EffectiveWeights()
	if err != nil {
		return nil, anchor.Weights{}, err
	}

	anchors := e.registry.Snapshot()
	quotes := e.quotes.Snapshot(req.Pair, now)
	healthSamples := e.monitor.Snapshot()

	candidates := collectCandidates(anchors, quotes, healthSamples, req)
	if len(candidates) == 0 {
		return nil, anchor.Weights{}, fmt.Errorf("%w: pair %s amount %s", anchor.ErrNoEligibleAnchor, req.Pair, req.Amount)
	}

	scored, err := scoring.Score(candidates, req.Strategy)
	if err != nil {
		return nil, anchor.Weights{}, err
	}
	return scored, weights, nil
}

func (e *Engine) buildResult(scored []scoring.Scored, strategy anchor.Strategy, now time.Time) anchor.RoutingResult {
	winner := scored[0]

	alternatives := make([]anchor.RankedAnchor, 0, len(scored)-1)
	for _, s := range scored[1:] {
		alternatives = append(alternatives, anchor.RankedAnchor{AnchorID: s.AnchorID, Score: s.Score})
	}
	if max := e.opts.MaxAlternatives; max > 0 && len(alternatives) > max {
		alternatives = alternatives[:max]
	}

	return anchor.RoutingResult{
		SelectedAnchorID: winner.AnchorID,
		Score:            winner.Score,
		Alternatives:     alternatives,
		StrategyUsed:     strategy,
		DecidedAt:        now,
	}
}

// collectCandidates applies the eligibility pipeline over immutable
// snapshots. Anchors arrive sorted by id, so candidate order is
// deterministic before scoring's own tie-break.
func collectCandidates(anchors []anchor.Anchor, quotes map[string]anchor.Quote, healthSamples map[string]anchor.HealthSample, req anchor.RoutingRequest) []scoring.Candidate {
	candidates := make([]scoring.Candidate, 0, len(anchors))
	for _, a := range anchors {
		quote, ok := quotes[a.ID]
		if !ok || !eligible(a, quote, healthSamples, req) {
			continue
		}
		candidates = append(candidates, scoring.Candidate{
			AnchorID:          a.ID,
			Rate:              quote.Rate,
			FeePercent:        quote.FeePercent,
			SettlementMinutes: a.SettlementMinutes,
			LiquidityScore:    a.LiquidityScore,
		})
	}
	return candidates
}

func eligible(a anchor.Anchor, quote anchor.Quote, healthSamples map[string]anchor.HealthSample, req anchor.RoutingRequest) bool {
	if !a.Active {
		return false
	}
	if !a.SupportsService(req.Operation) {
		return false
	}
	if req.RequiresKYC && !a.SupportsKYC {
		return false
	}
	if req.MinReputation != nil && a.ReputationScore < *req.MinReputation {
		return false
	}
	// Absent from the health snapshot means never sampled, which is Healthy.
	if sample, ok := healthSamples[a.ID]; ok && sample.Status != anchor.Healthy {
		return false
	}
	return quote.Covers(req.Amount)
}

package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"anchor-router/internal/anchor"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// The three-anchor set used across strategy tests.
func candidates() []Candidate {
	return []Candidate{
		{AnchorID: "a1.anchor", Rate: d("1.00"), FeePercent: d("1.0"), SettlementMinutes: 30, LiquidityScore: 75},
		{AnchorID: "a2.anchor", Rate: d("1.05"), FeePercent: d("1.5"), SettlementMinutes: 60, LiquidityScore: 85},
		{AnchorID: "a3.anchor", Rate: d("0.98"), FeePercent: d("0.5"), SettlementMinutes: 45, LiquidityScore: 70},
	}
}

func TestFixedStrategyWinners(t *testing.T) {
	cases := []struct {
		kind   anchor.StrategyKind
		winner string
	}{
		{anchor.BestRate, "a2.anchor"},
		{anchor.LowestFee, "a3.anchor"},
		{anchor.FastestSettlement, "a1.anchor"},
		{anchor.HighestLiquidity, "a2.anchor"},
	}
	for _, tc := range cases {
		scored, err := Score(candidates(), anchor.Strategy{Kind: tc.kind})
		if err != nil {
			t.Fatalf("%s: score failed: %v", tc.kind, err)
		}
		if scored[0].AnchorID != tc.winner {
			t.Fatalf("%s: winner = %s, want %s", tc.kind, scored[0].AnchorID, tc.winner)
		}
		if scored[0].Score != MaxScore {
			t.Fatalf("%s: single-factor winner should score %d, got %d", tc.kind, MaxScore, scored[0].Score)
		}
	}
}

func TestNormalizationEndpoints(t *testing.T) {
	scored, err := Score(candidates(), anchor.Strategy{Kind: anchor.BestRate})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}

	// a2 holds the best rate, a3 the worst; a1 sits at 2/7 of the span.
	byID := map[string]Scored{}
	for _, s := range scored {
		byID[s.AnchorID] = s
	}
	if byID["a2.anchor"].Normalized.Rate != 1.0 {
		t.Fatalf("best rate should normalize to 1.0, got %f", byID["a2.anchor"].Normalized.Rate)
	}
	if byID["a3.anchor"].Normalized.Rate != 0.0 {
		t.Fatalf("worst rate should normalize to 0.0, got %f", byID["a3.anchor"].Normalized.Rate)
	}
	if got := byID["a1.anchor"].Normalized.Rate; math.Abs(got-2.0/7.0) > 1e-9 {
		t.Fatalf("a1 rate normalization = %f, want %f", got, 2.0/7.0)
	}
}

func TestDegenerateFactorScoresFull(t *testing.T) {
	same := []Candidate{
		{AnchorID: "b.anchor", Rate: d("1.00"), FeePercent: d("1.0"), SettlementMinutes: 30, LiquidityScore: 70},
		{AnchorID: "a.anchor", Rate: d("1.00"), FeePercent: d("1.0"), SettlementMinutes: 30, LiquidityScore: 70},
	}
	scored, err := Score(same, anchor.Strategy{Kind: anchor.BestRate})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	for _, s := range scored {
		if s.Score != MaxScore {
			t.Fatalf("degenerate factor should score %d for everyone, got %d for %s", MaxScore, s.Score, s.AnchorID)
		}
	}
	// Ties resolve by ascending anchor id.
	if scored[0].AnchorID != "a.anchor" || scored[1].AnchorID != "b.anchor" {
		t.Fatalf("tie-break order wrong: %s, %s", scored[0].AnchorID, scored[1].AnchorID)
	}
}

func TestCustomWeightsRenormalized(t *testing.T) {
	strategy := anchor.CustomStrategy(anchor.Weights{Rate: 2, Fee: 1, Settlement: 1, Liquidity: 0})
	scored, err := Score(candidates(), strategy)
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("expected 3 scored candidates, got %d", len(scored))
	}
	for _, s := range scored {
		if s.Score < 0 || s.Score > MaxScore {
			t.Fatalf("score %d outside [0, %d]", s.Score, MaxScore)
		}
	}
}

func TestCustomWeightValidation(t *testing.T) {
	_, err := Score(candidates(), anchor.CustomStrategy(anchor.Weights{Rate: -1, Fee: 2}))
	if !errors.Is(err, anchor.ErrInvalidStrategyWeights) {
		t.Fatalf("negative weight should fail, got %v", err)
	}

	_, err = Score(candidates(), anchor.CustomStrategy(anchor.Weights{}))
	if !errors.Is(err, anchor.ErrInvalidStrategyWeights) {
		t.Fatalf("zero-sum weights should fail, got %v", err)
	}
}

func TestEmptyCandidateSet(t *testing.T) {
	scored, err := Score(nil, anchor.Strategy{Kind: anchor.BestRate})
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if len(scored) != 0 {
		t.Fatalf("empty input should yield empty output, got %d", len(scored))
	}
}

func TestScoreDeterminism(t *testing.T) {
	first, err := Score(candidates(), anchor.CustomStrategy(anchor.Weights{Rate: 1, Fee: 1, Settlement: 1, Liquidity: 1}))
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Score(candidates(), anchor.CustomStrategy(anchor.Weights{Rate: 1, Fee: 1, Settlement: 1, Liquidity: 1}))
		if err != nil {
			t.Fatalf("score failed: %v", err)
		}
		for j := range first {
			if again[j].AnchorID != first[j].AnchorID || again[j].Score != first[j].Score {
				t.Fatalf("run %d diverged at position %d", i, j)
			}
		}
	}
}

func TestDominantGapFactor(t *testing.T) {
	best := Normalized{Rate: 1.0, Fee: 0.2, Settlement: 0.5, Liquidity: 0.5}
	current := Normalized{Rate: 0.4, Fee: 0.9, Settlement: 0.5, Liquidity: 0.5}

	// Equal weights: the rate gap (0.6) beats the fee gap (-0.7 weighted negative).
	even := anchor.Weights{Rate: 0.25, Fee: 0.25, Settlement: 0.25, Liquidity: 0.25}
	if got := DominantGapFactor(best, current, even); got != anchor.FactorRate {
		t.Fatalf("dominant factor = %s, want %s", got, anchor.FactorRate)
	}

	// Skewing weight onto liquidity does not help when its gap is zero.
	skewed := anchor.Weights{Rate: 0.1, Fee: 0.1, Settlement: 0.1, Liquidity: 0.7}
	if got := DominantGapFactor(best, current, skewed); got != anchor.FactorRate {
		t.Fatalf("dominant factor = %s, want %s", got, anchor.FactorRate)
	}

	feeBest := Normalized{Rate: 0.5, Fee: 1.0, Settlement: 0.5, Liquidity: 0.5}
	feeCurrent := Normalized{Rate: 0.5, Fee: 0.0, Settlement: 0.5, Liquidity: 0.5}
	if got := DominantGapFactor(feeBest, feeCurrent, even); got != anchor.FactorFee {
		t.Fatalf("dominant factor = %s, want %s", got, anchor.FactorFee)
	}
}

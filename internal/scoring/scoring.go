// Package scoring computes strategy-weighted composite scores over an
// eligible candidate set. Everything here is a pure function of its inputs;
// the routing layer owns snapshotting and filtering.
package scoring

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"anchor-router/internal/anchor"
)

// MaxScore is the upper bound of the integer composite score.
const MaxScore int64 = 1_000_000

// Candidate carries the four scored factors for one eligible anchor.
type Candidate struct {
	AnchorID          string
	Rate              decimal.Decimal
	FeePercent        decimal.Decimal
	SettlementMinutes int
	LiquidityScore    int
}

// Normalized is a candidate's per-factor value in [0,1], better toward 1.
type Normalized struct {
	Rate       float64
	Fee        float64
	Settlement float64
	Liquidity  float64
}

// Scored is the outcome for one candidate: the integer composite plus the
// normalized factor values the composite was blended from. Keeping the
// breakdown lets the switch advisor attribute a score gap to one factor.
type Scored struct {
	AnchorID   string
	Score      int64
	Normalized Normalized
}

// Score ranks the candidate set under the given strategy. The result is
// sorted by descending score with exact ties broken by ascending anchor id,
// making the ordering a deterministic total order. An empty candidate set
// yields an empty result; strategy weight validation errors pass through.
func Score(candidates []Candidate, strategy anchor.Strategy) ([]Scored, error) {
	weights, err := strategy.EffectiveWeights()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Scored{}, nil
	}

	rates := make([]float64, len(candidates))
	fees := make([]float64, len(candidates))
	settlements := make([]float64, len(candidates))
	liquidity := make([]float64, len(candidates))
	for i, c := range candidates {
		rates[i] = c.Rate.InexactFloat64()
		fees[i] = c.FeePercent.InexactFloat64()
		settlements[i] = float64(c.SettlementMinutes)
		liquidity[i] = float64(c.LiquidityScore)
	}

	// Min-max normalization across the candidate set only, better toward 1.
	rateN := normalize(rates, true)
	feeN := normalize(fees, false)
	settleN := normalize(settlements, false)
	liqN := normalize(liquidity, true)

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		n := Normalized{
			Rate:       rateN[i],
			Fee:        feeN[i],
			Settlement: settleN[i],
			Liquidity:  liqN[i],
		}
		scored[i] = Scored{
			AnchorID:   c.AnchorID,
			Score:      scale(composite(n, weights)),
			Normalized: n,
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].AnchorID < scored[j].AnchorID
	})
	return scored, nil
}

// DominantGapFactor names the factor with the largest weighted contribution
// to the score gap between best and current. Used as the switch reason.
func DominantGapFactor(best, current Normalized, weights anchor.Weights) anchor.Factor {
	gaps := [4]float64{
		weights.Rate * (best.Rate - current.Rate),
		weights.Fee * (best.Fee - current.Fee),
		weights.Settlement * (best.Settlement - current.Settlement),
		weights.Liquidity * (best.Liquidity - current.Liquidity),
	}
	factors := [4]anchor.Factor{anchor.FactorRate, anchor.FactorFee, anchor.FactorSettlement, anchor.FactorLiquidity}

	dominant := 0
	for i := 1; i < len(gaps); i++ {
		if gaps[i] > gaps[dominant] {
			dominant = i
		}
	}
	return factors[dominant]
}

func composite(n Normalized, w anchor.Weights) float64 {
	return n.Rate*w.Rate + n.Fee*w.Fee + n.Settlement*w.Settlement + n.Liquidity*w.Liquidity
}

func scale(v float64) int64 {
	scaled := int64(math.Round(v * float64(MaxScore)))
	if scaled < 0 {
		return 0
	}
	if scaled > MaxScore {
		return MaxScore
	}
	return scaled
}

// normalize maps values onto [0,1] by min-max over the set. When every value
// is equal the factor cannot discriminate, so all candidates get 1.0 rather
// than a penalty.
func normalize(values []float64, higherBetter bool) []float64 {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(values))
	span := max - min
	if span == 0 {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}

	for i, v := range values {
		n := (v - min) / span
		if !higherBetter {
			n = 1 - n
		}
		out[i] = n
	}
	return out
}

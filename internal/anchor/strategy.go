package anchor

import "fmt"

// StrategyKind is the closed set of routing objectives.
type StrategyKind uint8

const (
	BestRate StrategyKind = iota
	LowestFee
	FastestSettlement
	HighestLiquidity
	Custom
)

func (k StrategyKind) String() string {
	switch k {
	case BestRate:
		return "best_rate"
	case LowestFee:
		return "lowest_fee"
	case FastestSettlement:
		return "fastest_settlement"
	case HighestLiquidity:
		return "highest_liquidity"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(k))
	}
}

// Weights is the blend applied over the four normalized factors.
type Weights struct {
	Rate       float64
	Fee        float64
	Settlement float64
	Liquidity  float64
}

// Strategy is a tagged objective; Weights is only meaningful for Custom.
type Strategy struct {
	Kind    StrategyKind
	Weights Weights
}

// CustomStrategy builds a caller-weighted strategy.
func CustomStrategy(w Weights) Strategy {
	return Strategy{Kind: Custom, Weights: w}
}

// ParseStrategyKind maps a config/CLI token onto a StrategyKind.
func ParseStrategyKind(v string) (StrategyKind, error) {
	switch v {
	case "best_rate", "rate":
		return BestRate, nil
	case "lowest_fee", "fee":
		return LowestFee, nil
	case "fastest_settlement", "settlement":
		return FastestSettlement, nil
	case "highest_liquidity", "liquidity":
		return HighestLiquidity, nil
	case "custom":
		return Custom, nil
	default:
		return BestRate, fmt.Errorf("unknown strategy %q", v)
	}
}

// EffectiveWeights resolves the strategy into a weight vector summing to 1.
// Fixed strategies map onto unit vectors; Custom weights are validated and
// renormalized. Negative weights or an all-zero vector fail with
// ErrInvalidStrategyWeights.
func (s Strategy) EffectiveWeights() (Weights, error) {
	switch s.Kind {
	case BestRate:
		return Weights{Rate: 1}, nil
	case LowestFee:
		return Weights{Fee: 1}, nil
	case FastestSettlement:
		return Weights{Settlement: 1}, nil
	case HighestLiquidity:
		return Weights{Liquidity: 1}, nil
	case Custom:
		w := s.Weights
		if w.Rate < 0 || w.Fee < 0 || w.Settlement < 0 || w.Liquidity < 0 {
			return Weights{}, fmt.Errorf("%w: negative weight", ErrInvalidStrategyWeights)
		}
		sum := w.Rate + w.Fee + w.Settlement + w.Liquidity
		if sum == 0 {
			return Weights{}, fmt.Errorf("%w: weights sum to zero", ErrInvalidStrategyWeights)
		}
		return Weights{
			Rate:       w.Rate / sum,
			Fee:        w.Fee / sum,
			Settlement: w.Settlement / sum,
			Liquidity:  w.Liquidity / sum,
		}, nil
	default:
		return Weights{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidStrategyWeights, s.Kind)
	}
}

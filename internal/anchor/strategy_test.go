package anchor

import (
	"errors"
	"math"
	"testing"
)

func TestParseStrategyKind(t *testing.T) {
	cases := map[string]StrategyKind{
		"best_rate":          BestRate,
		"rate":               BestRate,
		"lowest_fee":         LowestFee,
		"fee":                LowestFee,
		"fastest_settlement": FastestSettlement,
		"settlement":         FastestSettlement,
		"highest_liquidity":  HighestLiquidity,
		"liquidity":          HighestLiquidity,
		"custom":             Custom,
	}
	for token, want := range cases {
		got, err := ParseStrategyKind(token)
		if err != nil {
			t.Fatalf("parse %q failed: %v", token, err)
		}
		if got != want {
			t.Fatalf("parse %q = %s, want %s", token, got, want)
		}
	}

	if _, err := ParseStrategyKind("cheapest"); err == nil {
		t.Fatal("unknown token should fail")
	}
}

func TestFixedStrategyUnitVectors(t *testing.T) {
	cases := []struct {
		kind StrategyKind
		want Weights
	}{
		{BestRate, Weights{Rate: 1}},
		{LowestFee, Weights{Fee: 1}},
		{FastestSettlement, Weights{Settlement: 1}},
		{HighestLiquidity, Weights{Liquidity: 1}},
	}
	for _, tc := range cases {
		got, err := Strategy{Kind: tc.kind}.EffectiveWeights()
		if err != nil {
			t.Fatalf("%s: %v", tc.kind, err)
		}
		if got != tc.want {
			t.Fatalf("%s weights = %+v, want %+v", tc.kind, got, tc.want)
		}
	}
}

func TestCustomWeightsRenormalize(t *testing.T) {
	got, err := CustomStrategy(Weights{Rate: 2, Fee: 1, Settlement: 1, Liquidity: 0}).EffectiveWeights()
	if err != nil {
		t.Fatalf("effective weights failed: %v", err)
	}
	if got.Rate != 0.5 || got.Fee != 0.25 || got.Settlement != 0.25 || got.Liquidity != 0 {
		t.Fatalf("renormalized weights wrong: %+v", got)
	}
	sum := got.Rate + got.Fee + got.Settlement + got.Liquidity
	if math.Abs(sum-1.0) > 1e-12 {
		t.Fatalf("weights must sum to 1, got %f", sum)
	}
}

func TestCustomWeightsRejected(t *testing.T) {
	_, err := CustomStrategy(Weights{Rate: -0.1, Fee: 1.1}).EffectiveWeights()
	if !errors.Is(err, ErrInvalidStrategyWeights) {
		t.Fatalf("negative weight should fail, got %v", err)
	}

	_, err = CustomStrategy(Weights{}).EffectiveWeights()
	if !errors.Is(err, ErrInvalidStrategyWeights) {
		t.Fatalf("zero-sum weights should fail, got %v", err)
	}
}

func TestSupportsService(t *testing.T) {
	open := Anchor{ID: "open.anchor"}
	if !open.SupportsService(ServiceDeposits) || !open.SupportsService(ServiceWithdrawals) {
		t.Fatal("empty service list should match every operation")
	}

	depositOnly := Anchor{ID: "d.anchor", Services: []Service{ServiceDeposits}}
	if !depositOnly.SupportsService(ServiceDeposits) {
		t.Fatal("listed service should match")
	}
	if depositOnly.SupportsService(ServiceWithdrawals) {
		t.Fatal("unlisted service should not match")
	}
	if !depositOnly.SupportsService(ServiceAny) {
		t.Fatal("ServiceAny should always match")
	}
}

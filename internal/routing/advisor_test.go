package routing

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"anchor-router/internal/anchor"
)

func evenWeights() anchor.Strategy {
	return anchor.CustomStrategy(anchor.Weights{Rate: 1, Fee: 1, Settlement: 1, Liquidity: 1})
}

func TestAdvisorStaysOnCurrentWinner(t *testing.T) {
	f := newFixture(t, Options{})
	advisor := NewSwitchAdvisor(f.engine, 10.0, zerolog.Nop())

	rec, err := advisor.Evaluate("a2.anchor", request(anchor.BestRate), 0)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("current winner should yield no recommendation, got %+v", rec)
	}
}

func TestAdvisorRecommendsSwitch(t *testing.T) {
	f := newFixture(t, Options{})
	advisor := NewSwitchAdvisor(f.engine, 10.0, zerolog.Nop())

	// Under best-rate, a3 scores 0 against a2's full score.
	rec, err := advisor.Evaluate("a3.anchor", request(anchor.BestRate), 0)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a recommendation")
	}
	if rec.FromAnchorID != "a3.anchor" || rec.ToAnchorID != "a2.anchor" {
		t.Fatalf("recommendation %s -> %s, want a3.anchor -> a2.anchor", rec.FromAnchorID, rec.ToAnchorID)
	}
	if rec.ImprovementPercent < 10.0 {
		t.Fatalf("improvement %.2f should clear the threshold", rec.ImprovementPercent)
	}
	if rec.Reason != anchor.FactorRate {
		t.Fatalf("reason = %s, want %s", rec.Reason, anchor.FactorRate)
	}
}

func TestAdvisorBelowThresholdStays(t *testing.T) {
	f := newFixture(t, Options{})
	advisor := NewSwitchAdvisor(f.engine, 10.0, zerolog.Nop())

	// Under even weights a1 beats a2 by roughly 6%, under the default 10%.
	req := request(anchor.BestRate)
	req.Strategy = evenWeights()
	rec, err := advisor.Evaluate("a2.anchor", req, 0)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("sub-threshold improvement should yield nil, got %+v", rec)
	}
}

func TestAdvisorThresholdOverride(t *testing.T) {
	f := newFixture(t, Options{})
	advisor := NewSwitchAdvisor(f.engine, 10.0, zerolog.Nop())

	req := request(anchor.BestRate)
	req.Strategy = evenWeights()
	rec, err := advisor.Evaluate("a2.anchor", req, 3.0)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if rec == nil {
		t.Fatal("a 3% threshold should trigger the ~6% improvement")
	}
	if rec.ToAnchorID != "a1.anchor" {
		t.Fatalf("recommended %s, want a1.anchor", rec.ToAnchorID)
	}
	// a1's edge over a2 under even weights is its fast settlement.
	if rec.Reason != anchor.FactorSettlement {
		t.Fatalf("reason = %s, want %s", rec.Reason, anchor.FactorSettlement)
	}
}

func TestAdvisorIneligibleCurrentScoresZero(t *testing.T) {
	f := newFixture(t, Options{})
	advisor := NewSwitchAdvisor(f.engine, 10.0, zerolog.Nop())

	if err := f.reg.Deactivate("a2.anchor"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	// a2 is no longer in the candidate set, so its score is 0 and any
	// eligible winner is an unbounded improvement.
	rec, err := advisor.Evaluate("a2.anchor", request(anchor.BestRate), 0)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a recommendation away from the ineligible anchor")
	}
	if rec.FromAnchorID != "a2.anchor" || rec.ToAnchorID != "a1.anchor" {
		t.Fatalf("recommendation %s -> %s, want a2.anchor -> a1.anchor", rec.FromAnchorID, rec.ToAnchorID)
	}
}

func TestAdvisorErrorPassThrough(t *testing.T) {
	f := newFixture(t, Options{})
	advisor := NewSwitchAdvisor(f.engine, 10.0, zerolog.Nop())

	req := request(anchor.BestRate)
	req.Pair = "USDC:EURC"
	_, err := advisor.Evaluate("a1.anchor", req, 0)
	if !errors.Is(err, anchor.ErrNoEligibleAnchor) {
		t.Fatalf("expected ErrNoEligibleAnchor, got %v", err)
	}
}

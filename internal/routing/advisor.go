package routing

import (
	"github.com/rs/zerolog"

	"anchor-router/internal/anchor"
	"anchor-router/internal/scoring"
)

// SwitchAdvisor compares an already-chosen anchor against freshly scored
// alternatives and recommends re-routing when the improvement clears a
// threshold.
type SwitchAdvisor struct {
	engine              *Engine
	defaultThresholdPct float64
	logger              zerolog.Logger
}

// NewSwitchAdvisor constructs an advisor over a routing engine.
// defaultThresholdPct is the minimum improvement in percent before a switch
// is recommended; non-positive values fall back to 10.
func NewSwitchAdvisor(engine *Engine, defaultThresholdPct float64, logger zerolog.Logger) *SwitchAdvisor {
	if defaultThresholdPct <= 0 {
		defaultThresholdPct = 10.0
	}
	return &SwitchAdvisor{
		engine:              engine,
		defaultThresholdPct: defaultThresholdPct,
		logger:              logger.With().Str("component", "switch_advisor").Logger(),
	}
}

// Evaluate re-runs routing for the request and compares the winner against
// the currently assigned anchor under the same normalization baseline. A nil
// recommendation with nil error means "stay put". The current anchor scores 0
// when it is no longer eligible. thresholdPct <= 0 selects the default.
func (s *SwitchAdvisor) Evaluate(currentAnchorID string, req anchor.RoutingRequest, thresholdPct float64) (*anchor.SwitchRecommendation, error) {
	if thresholdPct <= 0 {
		thresholdPct = s.defaultThresholdPct
	}

	now := s.engine.opts.Now()
	scored, weights, err := s.engine.evaluate(req, now)
	if err != nil {
		return nil, err
	}

	best := scored[0]
	if best.AnchorID == currentAnchorID {
		return nil, nil
	}

	var currentScore int64
	var currentNorm scoring.Normalized
	for _, sc := range scored {
		if sc.AnchorID == currentAnchorID {
			currentScore = sc.Score
			currentNorm = sc.Normalized
			break
		}
	}

	baseline := currentScore
	if baseline < 1 {
		baseline = 1
	}
	improvement := float64(best.Score-currentScore) / float64(baseline) * 100

	if improvement < thresholdPct {
		s.logger.Debug().
			Str("current", currentAnchorID).
			Str("best", best.AnchorID).
			Float64("improvement_pct", improvement).
			Float64("threshold_pct", thresholdPct).
			Msg("improvement below threshold; staying")
		return nil, nil
	}

	rec := &anchor.SwitchRecommendation{
		FromAnchorID:       currentAnchorID,
		ToAnchorID:         best.AnchorID,
		ImprovementPercent: improvement,
		Reason:             scoring.DominantGapFactor(best.Normalized, currentNorm, weights),
	}

	s.logger.Info().
		Str("from", rec.FromAnchorID).
		Str("to", rec.ToAnchorID).
		Float64("improvement_pct", rec.ImprovementPercent).
		Str("reason", rec.Reason.String()).
		Msg("switch recommended")
	return rec, nil
}

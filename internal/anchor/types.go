package anchor

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetPair identifies a tradable pair, e.g. "USDC:XLM".
type AssetPair string

// Service enumerates operations an anchor is able to settle.
type Service uint8

const (
	// ServiceAny matches every anchor; zero value of a request filter.
	ServiceAny Service = iota
	// ServiceDeposits marks support for inbound settlement.
	ServiceDeposits
	// ServiceWithdrawals marks support for outbound settlement.
	ServiceWithdrawals
)

// String renders the service for logs and persistence.
func (s Service) String() string {
	switch s {
	case ServiceDeposits:
		return "deposits"
	case ServiceWithdrawals:
		return "withdrawals"
	default:
		return "any"
	}
}

// Anchor is the registry-owned record of a settlement/liquidity provider.
// Identity is the opaque ID (typically a domain); it never changes after
// registration and records are deactivated, never deleted.
type Anchor struct {
	ID                string
	ReputationScore   int // 0-100
	SettlementMinutes int // > 0
	LiquidityScore    int // 0-100
	SupportsKYC       bool
	Active            bool
	Services          []Service
	RegisteredAt      time.Time
}

// SupportsService reports whether the anchor settles the given operation.
// ServiceAny always matches; an empty service list matches everything so
// that registrations without an explicit capability set stay routable.
func (a Anchor) SupportsService(s Service) bool {
	if s == ServiceAny || len(a.Services) == 0 {
		return true
	}
	for _, have := range a.Services {
		if have == s {
			return true
		}
	}
	return false
}

// Quote is an anchor's current offer for one asset pair. At most one current
// quote exists per (anchor, pair); submission overwrites.
type Quote struct {
	AnchorID    string
	Pair        AssetPair
	Rate        decimal.Decimal
	FeePercent  decimal.Decimal
	MinAmount   decimal.Decimal
	MaxAmount   decimal.Decimal
	SubmittedAt time.Time
	// Quality annotates provenance checks done by the ingestion layer
	// ("unchecked", "verified", "divergent"). Advisory only; never gates
	// eligibility.
	Quality string
}

// Stale reports whether the quote has outlived ttl at the given instant.
func (q Quote) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(q.SubmittedAt) > ttl
}

// Covers reports whether amount falls inside [MinAmount, MaxAmount].
func (q Quote) Covers(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(q.MinAmount) && amount.LessThanOrEqual(q.MaxAmount)
}

// HealthStatus is the binary classification derived from availability.
type HealthStatus uint8

const (
	// Healthy anchors are routable; never-sampled anchors default here.
	Healthy HealthStatus = iota
	// Degraded anchors are excluded from routing until availability recovers.
	Degraded
)

func (s HealthStatus) String() string {
	if s == Degraded {
		return "degraded"
	}
	return "healthy"
}

// HealthSample is the monitor-owned rolling health record for one anchor.
type HealthSample struct {
	AnchorID            string
	LatencyMs           int64
	FailureCount        int64 // monotonic; reset only by operator action
	AvailabilityPercent float64
	Status              HealthStatus
	CheckedAt           time.Time
}

// RoutingRequest describes one deposit/withdrawal to place. Transient.
type RoutingRequest struct {
	Amount        decimal.Decimal
	Pair          AssetPair
	Operation     Service // ServiceAny = no operation filter
	RequiresKYC   bool
	MinReputation *int // nil = no reputation floor
	Strategy      Strategy
}

// RankedAnchor pairs an anchor with its composite score.
type RankedAnchor struct {
	AnchorID string `json:"anchor_id"`
	Score    int64  `json:"score"`
}

// RoutingResult is the ranked decision for one request.
type RoutingResult struct {
	SelectedAnchorID string
	Score            int64
	Alternatives     []RankedAnchor // descending score, winner excluded
	StrategyUsed     Strategy
	DecidedAt        time.Time
}

// RateComparison lists the best and all candidate quotes for a pair/amount,
// without strategy scoring.
type RateComparison struct {
	Best       Quote
	All        []Quote
	ComparedAt time.Time
}

// Factor names one of the four scored dimensions.
type Factor uint8

const (
	FactorRate Factor = iota
	FactorFee
	FactorSettlement
	FactorLiquidity
)

func (f Factor) String() string {
	switch f {
	case FactorRate:
		return "rate"
	case FactorFee:
		return "fee"
	case FactorSettlement:
		return "settlement"
	default:
		return "liquidity"
	}
}

// SwitchRecommendation advises moving an in-flight decision to a better anchor.
type SwitchRecommendation struct {
	FromAnchorID       string
	ToAnchorID         string
	ImprovementPercent float64
	Reason             Factor // dominant contributor to the score gap
}

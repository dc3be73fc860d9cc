package feed

import (
	"context"

	"github.com/shopspring/decimal"

	"anchor-router/internal/anchor"
)

// QuoteSource retrieves an anchor's current quote for a pair from its feed
// endpoint.
type QuoteSource interface {
	FetchQuote(ctx context.Context, endpoint string, pair anchor.AssetPair) (anchor.Quote, error)
}

// ProbeResult is one health-probe observation.
type ProbeResult struct {
	LatencyMs           int64
	AvailabilityPercent float64
}

// HealthSource probes an anchor's health endpoint, measuring latency around
// the request.
type HealthSource interface {
	Probe(ctx context.Context, endpoint string) (ProbeResult, error)
}

// ReferenceSource retrieves an external reference rate used to annotate
// ingested quotes.
type ReferenceSource interface {
	FetchReference(ctx context.Context) (decimal.Decimal, error)
}

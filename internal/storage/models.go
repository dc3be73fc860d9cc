package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DecisionRecord persists one evaluated routing decision for auditing and
// history export. Alternatives keeps the ranked list as raw JSON.
type DecisionRecord struct {
	Bucket         time.Time
	Pair           string
	Strategy       string
	SelectedAnchor string
	Score          int64
	Alternatives   json.RawMessage
	EligibleCount  int
	Status         string
	Error          *string
	CreatedAt      time.Time
}

// SwitchRecord captures an emitted switch recommendation for
// de-duplication/auditing.
type SwitchRecord struct {
	ID             int64
	Bucket         time.Time
	FromAnchor     string
	ToAnchor       string
	ImprovementPct decimal.Decimal
	ThresholdPct   decimal.Decimal
	Reason         string
	Channels       []string
	CreatedAt      time.Time
}

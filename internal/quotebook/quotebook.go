package quotebook

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"anchor-router/internal/anchor"
)

var (
	feeFloor   = decimal.Zero
	feeCeiling = decimal.NewFromInt(100)
)

// Directory is the slice of the registry the book needs: existence checks.
type Directory interface {
	Has(id string) bool
}

type key struct {
	anchorID string
	pair     anchor.AssetPair
}

// Book holds the most recent quote per (anchor, asset pair). A submission
// overwrites the previous current quote for that key; staleness is judged at
// read time against the configured TTL.
type Book struct {
	mu        sync.RWMutex
	quotes    map[key]anchor.Quote
	directory Directory
	ttl       time.Duration
	logger    zerolog.Logger
}

// New constructs an empty Book bound to an anchor directory.
func New(directory Directory, ttl time.Duration, logger zerolog.Logger) *Book {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Book{
		quotes:    make(map[key]anchor.Quote),
		directory: directory,
		ttl:       ttl,
		logger:    logger.With().Str("component", "quotebook").Logger(),
	}
}

// TTL exposes the configured staleness horizon.
func (b *Book) TTL() time.Duration {
	return b.ttl
}

// Submit stores the anchor's current quote for its pair, replacing any prior
// one. The anchor must be registered and the quote well-formed.
func (b *Book) Submit(anchorID string, q anchor.Quote) error {
	if !b.directory.Has(anchorID) {
		return fmt.Errorf("%w: %s", anchor.ErrNotFound, anchorID)
	}
	if err := validate(q); err != nil {
		return err
	}

	q.AnchorID = anchorID
	if q.SubmittedAt.IsZero() {
		q.SubmittedAt = time.Now().UTC()
	}

	b.mu.Lock()
	b.quotes[key{anchorID: anchorID, pair: q.Pair}] = q
	b.mu.Unlock()

	b.logger.Debug().
		Str("anchor", anchorID).
		Str("pair", string(q.Pair)).
		Str("rate", q.Rate.String()).
		Msg("quote submitted")
	return nil
}

// Current returns the anchor's quote for a pair unless it is stale or absent.
func (b *Book) Current(anchorID string, pair anchor.AssetPair, now time.Time) (anchor.Quote, bool) {
	b.mu.RLock()
	q, ok := b.quotes[key{anchorID: anchorID, pair: pair}]
	b.mu.RUnlock()

	if !ok || q.Stale(now, b.ttl) {
		return anchor.Quote{}, false
	}
	return q, true
}

// Snapshot returns copies of every non-stale quote for the pair, keyed by
// anchor id, judged at a single instant.
func (b *Book) Snapshot(pair anchor.AssetPair, now time.Time) map[string]anchor.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]anchor.Quote)
	for k, q := range b.quotes {
		if k.pair != pair || q.Stale(now, b.ttl) {
			continue
		}
		out[k.anchorID] = q
	}
	return out
}

func validate(q anchor.Quote) error {
	if q.Pair == "" {
		return fmt.Errorf("%w: empty asset pair", anchor.ErrInvalidQuote)
	}
	if !q.Rate.IsPositive() {
		return fmt.Errorf("%w: rate %s must be positive", anchor.ErrInvalidQuote, q.Rate)
	}
	if q.FeePercent.LessThan(feeFloor) || q.FeePercent.GreaterThan(feeCeiling) {
		return fmt.Errorf("%w: fee %s%% outside [0,100]", anchor.ErrInvalidQuote, q.FeePercent)
	}
	if q.MinAmount.GreaterThan(q.MaxAmount) {
		return fmt.Errorf("%w: min amount %s exceeds max %s", anchor.ErrInvalidQuote, q.MinAmount, q.MaxAmount)
	}
	return nil
}

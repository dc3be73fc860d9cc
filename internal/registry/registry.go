package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"anchor-router/internal/anchor"
)

// Registry is the authoritative directory of known anchors. All mutation is
// funnelled through its methods; callers only ever see copies, so the shared
// map is never aliased outside the lock.
type Registry struct {
	mu      sync.RWMutex
	anchors map[string]anchor.Anchor
	logger  zerolog.Logger
}

// New constructs an empty Registry.
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		anchors: make(map[string]anchor.Anchor),
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// Register inserts a new anchor with active = true. The id must be unused.
func (r *Registry) Register(a anchor.Anchor) error {
	if a.ID == "" {
		return fmt.Errorf("%w: empty id", anchor.ErrInvalidAttribute)
	}
	if err := validateReputation(a.ReputationScore); err != nil {
		return err
	}
	if err := validateSettlement(a.SettlementMinutes); err != nil {
		return err
	}
	if err := validateLiquidity(a.LiquidityScore); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.anchors[a.ID]; exists {
		return fmt.Errorf("%w: %s", anchor.ErrDuplicateAnchor, a.ID)
	}

	a.Active = true
	if a.RegisteredAt.IsZero() {
		a.RegisteredAt = time.Now().UTC()
	}
	a.Services = append([]anchor.Service(nil), a.Services...)
	r.anchors[a.ID] = a

	r.logger.Info().Str("anchor", a.ID).Int("reputation", a.ReputationScore).Msg("anchor registered")
	return nil
}

// Activate marks an anchor routable again. Idempotent.
func (r *Registry) Activate(id string) error {
	return r.setActive(id, true)
}

// Deactivate removes an anchor from routing without deleting it, so history
// stays attributable. Idempotent.
func (r *Registry) Deactivate(id string) error {
	return r.setActive(id, false)
}

func (r *Registry) setActive(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.anchors[id]
	if !ok {
		return fmt.Errorf("%w: %s", anchor.ErrNotFound, id)
	}
	if a.Active == active {
		return nil
	}
	a.Active = active
	r.anchors[id] = a

	r.logger.Info().Str("anchor", id).Bool("active", active).Msg("anchor active flag changed")
	return nil
}

// SetReputation updates the operator-assigned trust score (0-100).
func (r *Registry) SetReputation(id string, score int) error {
	if err := validateReputation(score); err != nil {
		return err
	}
	return r.update(id, func(a *anchor.Anchor) { a.ReputationScore = score })
}

// SetLiquidity updates the capacity indicator (0-100).
func (r *Registry) SetLiquidity(id string, score int) error {
	if err := validateLiquidity(score); err != nil {
		return err
	}
	return r.update(id, func(a *anchor.Anchor) { a.LiquidityScore = score })
}

// SetSettlementMinutes updates average settlement time (must be positive).
func (r *Registry) SetSettlementMinutes(id string, minutes int) error {
	if err := validateSettlement(minutes); err != nil {
		return err
	}
	return r.update(id, func(a *anchor.Anchor) { a.SettlementMinutes = minutes })
}

// SetServices replaces the supported-service set.
func (r *Registry) SetServices(id string, services []anchor.Service) error {
	copied := append([]anchor.Service(nil), services...)
	return r.update(id, func(a *anchor.Anchor) { a.Services = copied })
}

func (r *Registry) update(id string, mutate func(*anchor.Anchor)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.anchors[id]
	if !ok {
		return fmt.Errorf("%w: %s", anchor.ErrNotFound, id)
	}
	mutate(&a)
	r.anchors[id] = a
	return nil
}

// Get returns a copy of one anchor record.
func (r *Registry) Get(id string) (anchor.Anchor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.anchors[id]
	if !ok {
		return anchor.Anchor{}, fmt.Errorf("%w: %s", anchor.ErrNotFound, id)
	}
	a.Services = append([]anchor.Service(nil), a.Services...)
	return a, nil
}

// Has reports whether the id is registered, active or not.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.anchors[id]
	return ok
}

// List returns copies of all anchors ordered by ascending id.
func (r *Registry) List() []anchor.Anchor {
	return r.Snapshot()
}

// Snapshot returns a deep copy of the directory ordered by ascending id.
// Routing evaluates over such copies so concurrent writes never tear a
// decision in progress.
func (r *Registry) Snapshot() []anchor.Anchor {
	r.mu.RLock()
	out := make([]anchor.Anchor, 0, len(r.anchors))
	for _, a := range r.anchors {
		a.Services = append([]anchor.Service(nil), a.Services...)
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validateReputation(score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: reputation %d outside [0,100]", anchor.ErrInvalidAttribute, score)
	}
	return nil
}

func validateLiquidity(score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: liquidity %d outside [0,100]", anchor.ErrInvalidAttribute, score)
	}
	return nil
}

func validateSettlement(minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: settlement minutes %d must be positive", anchor.ErrInvalidAttribute, minutes)
	}
	return nil
}

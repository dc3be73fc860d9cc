package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"anchor-router/internal/anchor"
)

// Directory is the slice of the registry the monitor needs.
type Directory interface {
	Has(id string) bool
}

// Monitor tracks rolling latency/failure/availability per anchor and derives
// the Healthy/Degraded status on every update. Anchors never sampled default
// to Healthy so brand-new registrations are not falsely excluded.
type Monitor struct {
	mu                sync.RWMutex
	samples           map[string]anchor.HealthSample
	directory         Directory
	degradedThreshold float64
	logger            zerolog.Logger
}

// New constructs a Monitor. degradedThreshold is the availability floor, in
// percent, below which an anchor is classified Degraded.
func New(directory Directory, degradedThreshold float64, logger zerolog.Logger) *Monitor {
	if degradedThreshold <= 0 || degradedThreshold > 100 {
		degradedThreshold = 95.0
	}
	return &Monitor{
		samples:           make(map[string]anchor.HealthSample),
		directory:         directory,
		degradedThreshold: degradedThreshold,
		logger:            logger.With().Str("component", "health_monitor").Logger(),
	}
}

// Update records a health observation. The failure counter is monotonic:
// failureDelta accumulates onto the stored count. Availability is
// most-recent-wins. Status is recomputed on every call.
func (m *Monitor) Update(anchorID string, latencyMs int64, failureDelta int64, availabilityPercent float64) error {
	if !m.directory.Has(anchorID) {
		return fmt.Errorf("%w: %s", anchor.ErrNotFound, anchorID)
	}
	if availabilityPercent < 0 || availabilityPercent > 100 {
		return fmt.Errorf("%w: availability %.2f outside [0,100]", anchor.ErrInvalidAttribute, availabilityPercent)
	}
	if failureDelta < 0 {
		return fmt.Errorf("%w: failure delta %d cannot be negative", anchor.ErrInvalidAttribute, failureDelta)
	}

	m.mu.Lock()
	sample := m.samples[anchorID]
	sample.AnchorID = anchorID
	sample.LatencyMs = latencyMs
	sample.FailureCount += failureDelta
	sample.AvailabilityPercent = availabilityPercent
	sample.Status = m.classify(availabilityPercent)
	sample.CheckedAt = time.Now().UTC()
	m.samples[anchorID] = sample
	m.mu.Unlock()

	if sample.Status == anchor.Degraded {
		m.logger.Warn().
			Str("anchor", anchorID).
			Float64("availability", availabilityPercent).
			Msg("anchor degraded")
	}
	return nil
}

// ResetFailures zeroes the monotonic failure counter. Operator action only.
func (m *Monitor) ResetFailures(anchorID string) error {
	if !m.directory.Has(anchorID) {
		return fmt.Errorf("%w: %s", anchor.ErrNotFound, anchorID)
	}

	m.mu.Lock()
	if sample, ok := m.samples[anchorID]; ok {
		sample.FailureCount = 0
		m.samples[anchorID] = sample
	}
	m.mu.Unlock()

	m.logger.Info().Str("anchor", anchorID).Msg("failure counter reset")
	return nil
}

// Status classifies one anchor. Unsampled anchors are Healthy.
func (m *Monitor) Status(anchorID string) anchor.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sample, ok := m.samples[anchorID]
	if !ok {
		return anchor.Healthy
	}
	return sample.Status
}

// Sample returns a copy of the stored health record, if any.
func (m *Monitor) Sample(anchorID string) (anchor.HealthSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sample, ok := m.samples[anchorID]
	return sample, ok
}

// Snapshot returns copies of every stored sample keyed by anchor id. Anchors
// absent from the map are Healthy by default.
func (m *Monitor) Snapshot() map[string]anchor.HealthSample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]anchor.HealthSample, len(m.samples))
	for id, sample := range m.samples {
		out[id] = sample
	}
	return out
}

func (m *Monitor) classify(availabilityPercent float64) anchor.HealthStatus {
	if availabilityPercent < m.degradedThreshold {
		return anchor.Degraded
	}
	return anchor.Healthy
}

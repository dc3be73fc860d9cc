package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ProberOptions parameterise the health prober.
type ProberOptions struct {
	Timeout   time.Duration
	UserAgent string
}

// Prober measures anchor health: GET {endpoint} with latency timed around
// the request. The endpoint reports its own availability figure; the probe
// only supplies the latency measurement and request outcome.
type Prober struct {
	opts   ProberOptions
	client *http.Client
	logger zerolog.Logger
}

// NewProber constructs a health prober.
func NewProber(opts ProberOptions, logger zerolog.Logger) *Prober {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "health_prober").Logger(),
	}
}

// Probe performs one health check. A transport failure or non-2xx status is
// returned as an error; the caller decides how to count it.
func (p *Prober) Probe(ctx context.Context, endpoint string) (ProbeResult, error) {
	if endpoint == "" {
		return ProbeResult{}, errors.New("health endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("create health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(p.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	started := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(started).Milliseconds()
	if err != nil {
		return ProbeResult{LatencyMs: latency}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProbeResult{LatencyMs: latency}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ProbeResult{LatencyMs: latency}, parseHTTPError(resp.StatusCode, payload)
	}

	var body struct {
		AvailabilityPercent float64 `json:"availability_percent"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ProbeResult{LatencyMs: latency}, fmt.Errorf("decode health payload: %w", err)
	}
	if body.AvailabilityPercent < 0 || body.AvailabilityPercent > 100 {
		return ProbeResult{LatencyMs: latency}, fmt.Errorf("availability %.2f outside [0,100]", body.AvailabilityPercent)
	}

	return ProbeResult{
		LatencyMs:           latency,
		AvailabilityPercent: body.AvailabilityPercent,
	}, nil
}

var _ HealthSource = (*Prober)(nil)

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"anchor-router/internal/alerting"
	"anchor-router/internal/anchor"
	"anchor-router/internal/config"
	"anchor-router/internal/feed"
	"anchor-router/internal/health"
	"anchor-router/internal/quotebook"
	"anchor-router/internal/registry"
	"anchor-router/internal/routing"
	"anchor-router/internal/scheduler"
	"anchor-router/internal/storage"
)

// Endpoints are the polled URLs for one anchor.
type Endpoints struct {
	QuoteURL  string
	HealthURL string
}

// Deps bundles the collaborators the service drives each cycle. Stores,
// notifier, and reference source may be nil; the corresponding step is
// skipped.
type Deps struct {
	Scheduler    *scheduler.Scheduler
	Registry     *registry.Registry
	Quotes       *quotebook.Book
	Monitor      *health.Monitor
	Engine       *routing.Engine
	Advisor      *routing.SwitchAdvisor
	QuoteSource  feed.QuoteSource
	HealthSource feed.HealthSource
	Reference    feed.ReferenceSource
	Decisions    storage.DecisionStore
	Switches     storage.SwitchStore
	Notifier     alerting.Notifier
	Locker       storage.AdvisoryLocker
}

// Service orchestrates feed polling, routing evaluation, persistence, and
// switch alerting. One cycle ingests fresh quotes and health samples for
// every registered anchor, re-routes the configured watch request, and asks
// the advisor whether the previously selected anchor should be abandoned.
type Service struct {
	deps      Deps
	endpoints map[string]Endpoints
	logger    zerolog.Logger

	watch    anchor.RoutingRequest
	hasWatch bool

	maxDeviationPct decimal.Decimal
	thresholdPct    float64
	channels        []string
	alertsOn        bool
	lockKey         int64

	// currentAnchor is the standing assignment the advisor compares
	// against. Only the polling goroutine touches it.
	currentAnchor string
}

// New constructs the routing service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Service, error) {
	watch, hasWatch, err := cfg.WatchRequest()
	if err != nil {
		return nil, err
	}

	endpoints := make(map[string]Endpoints, len(cfg.Anchors))
	for _, ac := range cfg.Anchors {
		endpoints[ac.ID] = Endpoints{QuoteURL: ac.QuoteURL, HealthURL: ac.HealthURL}
	}

	return &Service{
		deps:            deps,
		endpoints:       endpoints,
		logger:          logger.With().Str("component", "service").Logger(),
		watch:           watch,
		hasWatch:        hasWatch,
		maxDeviationPct: decimal.NewFromFloat(cfg.Reference.MaxDeviationPct),
		thresholdPct:    cfg.Engine.SwitchThresholdPct,
		channels:        cfg.Alerting.Channels,
		alertsOn:        cfg.Alerting.Enabled,
		lockKey:         cfg.Probes.AdvisoryLockKey,
	}, nil
}

// Run begins the aligned polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle 执行单个时间桶的轮询与重评估逻辑。
func (s *Service) ProcessCycle(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	s.PollFeeds(ctx)
	return s.evaluateWatch(ctx, bucket)
}

// PollFeeds ingests one round of quotes and health samples for every
// registered anchor. Individual anchor failures are recorded, never fatal.
func (s *Service) PollFeeds(ctx context.Context) {
	reference := s.fetchReference(ctx)

	for _, a := range s.deps.Registry.Snapshot() {
		endpoints, ok := s.endpoints[a.ID]
		if !ok {
			continue
		}
		s.probeAnchor(ctx, a.ID, endpoints.HealthURL)
		s.pollQuote(ctx, a.ID, endpoints.QuoteURL, reference)
	}
}

func (s *Service) fetchReference(ctx context.Context) decimal.Decimal {
	if s.deps.Reference == nil {
		return decimal.Decimal{}
	}
	rate, err := s.deps.Reference.FetchReference(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reference rate unavailable; quotes will be unchecked")
		return decimal.Decimal{}
	}
	return rate
}

func (s *Service) probeAnchor(ctx context.Context, anchorID, healthURL string) {
	if s.deps.HealthSource == nil || healthURL == "" {
		return
	}

	result, err := s.deps.HealthSource.Probe(ctx, healthURL)
	if err != nil {
		// An unreachable anchor counts one failure and zero availability,
		// which classifies it Degraded until a probe succeeds again.
		s.logger.Warn().Err(err).Str("anchor", anchorID).Msg("health probe failed")
		if updateErr := s.deps.Monitor.Update(anchorID, result.LatencyMs, 1, 0); updateErr != nil {
			s.logger.Error().Err(updateErr).Str("anchor", anchorID).Msg("failed to record probe failure")
		}
		return
	}

	if err := s.deps.Monitor.Update(anchorID, result.LatencyMs, 0, result.AvailabilityPercent); err != nil {
		s.logger.Error().Err(err).Str("anchor", anchorID).Msg("failed to record health sample")
	}
}

func (s *Service) pollQuote(ctx context.Context, anchorID, quoteURL string, reference decimal.Decimal) {
	if s.deps.QuoteSource == nil || quoteURL == "" || !s.hasWatch {
		return
	}

	quote, err := s.deps.QuoteSource.FetchQuote(ctx, quoteURL, s.watch.Pair)
	if err != nil {
		// No submission; the previous quote ages out via the TTL.
		s.logger.Warn().Err(err).Str("anchor", anchorID).Msg("quote feed failed")
		return
	}

	quote.Quality = s.classifyQuote(quote.Rate, reference)
	if err := s.deps.Quotes.Submit(anchorID, quote); err != nil {
		s.logger.Error().Err(err).Str("anchor", anchorID).Msg("quote rejected")
	}
}

// classifyQuote marks how a quote relates to the on-chain reference rate.
// Advisory only; eligibility never depends on it.
func (s *Service) classifyQuote(rate, reference decimal.Decimal) string {
	if reference.IsZero() {
		return "unchecked"
	}
	deviation := rate.Div(reference).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Abs()
	if deviation.GreaterThan(s.maxDeviationPct) {
		return "divergent"
	}
	return "verified"
}

func (s *Service) evaluateWatch(ctx context.Context, bucket time.Time) error {
	if !s.hasWatch {
		return nil
	}

	result, err := s.deps.Engine.Route(s.watch)
	if err != nil {
		if errors.Is(err, anchor.ErrNoEligibleAnchor) {
			s.logger.Warn().Time("bucket", bucket).Msg("no eligible anchor this cycle")
			s.persistDecision(ctx, storage.DecisionRecord{
				Bucket:   bucket,
				Pair:     string(s.watch.Pair),
				Strategy: s.watch.Strategy.Kind.String(),
				Status:   "no_eligible",
				Error:    errText(err),
			})
			return nil
		}
		return err
	}

	alternatives, marshalErr := json.Marshal(result.Alternatives)
	if marshalErr != nil {
		alternatives = json.RawMessage("[]")
	}
	s.persistDecision(ctx, storage.DecisionRecord{
		Bucket:         bucket,
		Pair:           string(s.watch.Pair),
		Strategy:       s.watch.Strategy.Kind.String(),
		SelectedAnchor: result.SelectedAnchorID,
		Score:          result.Score,
		Alternatives:   alternatives,
		EligibleCount:  len(result.Alternatives) + 1,
		Status:         "complete",
	})

	s.logger.Info().Time("bucket", bucket).
		Str("selected", result.SelectedAnchorID).
		Int64("score", result.Score).
		Msg("watch request routed")

	if s.currentAnchor == "" {
		s.currentAnchor = result.SelectedAnchorID
		return nil
	}

	return s.adviseSwitch(ctx, bucket)
}

func (s *Service) adviseSwitch(ctx context.Context, bucket time.Time) error {
	rec, err := s.deps.Advisor.Evaluate(s.currentAnchor, s.watch, s.thresholdPct)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	if s.deps.Switches != nil {
		record := storage.SwitchRecord{
			Bucket:         bucket,
			FromAnchor:     rec.FromAnchorID,
			ToAnchor:       rec.ToAnchorID,
			ImprovementPct: decimal.NewFromFloat(rec.ImprovementPercent),
			ThresholdPct:   decimal.NewFromFloat(s.thresholdPct),
			Reason:         rec.Reason.String(),
			Channels:       s.channels,
		}
		if _, err := s.deps.Switches.InsertSwitch(ctx, record); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to persist switch event")
		}
	}

	if s.alertsOn && s.deps.Notifier != nil {
		note := alerting.Notification{
			Bucket:             bucket,
			Pair:               s.watch.Pair,
			Strategy:           s.watch.Strategy.Kind,
			FromAnchorID:       rec.FromAnchorID,
			ToAnchorID:         rec.ToAnchorID,
			ImprovementPercent: rec.ImprovementPercent,
			ThresholdPercent:   s.thresholdPct,
			Reason:             rec.Reason,
			Channels:           s.channels,
		}
		if err := s.deps.Notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch switch alert")
		}
	}

	s.currentAnchor = rec.ToAnchorID
	return nil
}

func (s *Service) persistDecision(ctx context.Context, record storage.DecisionRecord) {
	if s.deps.Decisions == nil {
		return
	}
	record.CreatedAt = time.Now().UTC()
	if err := s.deps.Decisions.UpsertDecision(ctx, record); err != nil {
		s.logger.Error().Err(err).Time("bucket", record.Bucket).Msg("failed to upsert decision")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.deps.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.deps.Locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func errText(err error) *string {
	msg := err.Error()
	return &msg
}

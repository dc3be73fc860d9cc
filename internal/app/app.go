package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"anchor-router/internal/alerting"
	"anchor-router/internal/config"
	"anchor-router/internal/feed"
	"anchor-router/internal/health"
	"anchor-router/internal/quotebook"
	"anchor-router/internal/registry"
	"anchor-router/internal/routing"
	"anchor-router/internal/scheduler"
	"anchor-router/internal/service"
	"anchor-router/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// engineSet bundles the three stores plus the engines built over them.
type engineSet struct {
	registry *registry.Registry
	quotes   *quotebook.Book
	monitor  *health.Monitor
	engine   *routing.Engine
	advisor  *routing.SwitchAdvisor
}

// buildEngine constructs the stores, seeds the registry from the static
// anchor definitions, and wires the routing engine and switch advisor.
func (a *App) buildEngine() (*engineSet, error) {
	reg := registry.New(a.Logger)
	for _, ac := range a.Config.Anchors {
		seed, err := ac.ToAnchor()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(seed); err != nil {
			return nil, err
		}
	}

	quotes := quotebook.New(reg, a.Config.Engine.QuoteTTL, a.Logger)
	monitor := health.New(reg, a.Config.Engine.DegradedAvailability, a.Logger)
	engine := routing.NewEngine(reg, quotes, monitor, routing.Options{
		MaxAlternatives: a.Config.Engine.MaxAlternatives,
	}, a.Logger)
	advisor := routing.NewSwitchAdvisor(engine, a.Config.Engine.SwitchThresholdPct, a.Logger)

	return &engineSet{
		registry: reg,
		quotes:   quotes,
		monitor:  monitor,
		engine:   engine,
		advisor:  advisor,
	}, nil
}

func (a *App) newSources() (feed.QuoteSource, feed.HealthSource, feed.ReferenceSource) {
	quoteSource := feed.NewQuoteClient(feed.QuoteClientOptions{
		Timeout:   a.Config.Probes.RequestTimeout,
		UserAgent: a.Config.Probes.UserAgent,
	}, a.Logger)

	healthSource := feed.NewProber(feed.ProberOptions{
		Timeout:   a.Config.Probes.RequestTimeout,
		UserAgent: a.Config.Probes.UserAgent,
	}, a.Logger)

	var reference feed.ReferenceSource
	if a.Config.Reference.Enabled {
		reference = feed.NewReference(feed.ReferenceOptions{
			RPCURL:            a.Config.Reference.RPCURL,
			AggregatorAddress: a.Config.Reference.AggregatorAddress,
			Decimals:          a.Config.Reference.Decimals,
			Timeout:           a.Config.Reference.RequestTimeout,
		}, a.Logger)
	}

	return quoteSource, healthSource, reference
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running polling and re-evaluation service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	engines, err := a.buildEngine()
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Probes.Interval,
		AlignToStart: a.Config.Probes.AlignToBucket,
		StartupDelay: a.Config.Probes.StartupDelay,
	}, a.Logger)

	quoteSource, healthSource, reference := a.newSources()
	notifier := a.newNotifier()

	deps := service.Deps{
		Scheduler:    sched,
		Registry:     engines.registry,
		Quotes:       engines.quotes,
		Monitor:      engines.monitor,
		Engine:       engines.engine,
		Advisor:      engines.advisor,
		QuoteSource:  quoteSource,
		HealthSource: healthSource,
		Reference:    reference,
		Notifier:     notifier,
	}
	if store != nil {
		deps.Decisions = store
		deps.Switches = store
		deps.Locker = store
	}

	svc, err := service.New(a.Config, deps, a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().Msg("starting anchor routing service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("anchor routing service stopped")
	return nil
}

// RouteOptions configure a one-shot routing evaluation.
type RouteOptions struct {
	Pair          string
	Amount        float64
	Operation     string
	Strategy      string
	RequiresKYC   bool
	MinReputation int
	Weights       []float64 // rate,fee,settlement,liquidity; implies custom
}

// ExportOptions hold parameters for exporting decision history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit    int
	Switches bool
}

// PruneOptions select the switch events to delete. Before wins when both
// are set.
type PruneOptions struct {
	Before    time.Time
	OlderThan time.Duration
}

// SimulateOptions configure the switch simulation.
type SimulateOptions struct {
	Pair        string
	Amount      float64
	CurrentRate float64
	BestRate    float64
}

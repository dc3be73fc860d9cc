package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"anchor-router/internal/anchor"
	"anchor-router/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Probes    ProbesConfig    `mapstructure:"probes"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Anchors   []AnchorConfig  `mapstructure:"anchors"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// EngineConfig carries the routing engine's tunable constants. The source
// material leaves these open, so they are configuration rather than
// hard-coded guesses.
type EngineConfig struct {
	QuoteTTL             time.Duration `mapstructure:"quote_ttl"`
	DegradedAvailability float64       `mapstructure:"degraded_availability"`
	SwitchThresholdPct   float64       `mapstructure:"switch_threshold_pct"`
	MaxAlternatives      int           `mapstructure:"max_alternatives"`
}

// ProbesConfig governs the quote/health polling cadence.
type ProbesConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// ReferenceConfig covers the optional on-chain reference rate used to mark
// quote quality.
type ReferenceConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RPCURL            string        `mapstructure:"rpc_url"`
	AggregatorAddress string        `mapstructure:"aggregator_address"`
	Decimals          int           `mapstructure:"decimals"`
	MaxDeviationPct   float64       `mapstructure:"max_deviation_pct"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines switch-recommendation alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// WatchConfig describes the standing routing request the run loop
// re-evaluates every tick.
type WatchConfig struct {
	Pair          string  `mapstructure:"pair"`
	Amount        float64 `mapstructure:"amount"`
	Operation     string  `mapstructure:"operation"`
	Strategy      string  `mapstructure:"strategy"`
	RequiresKYC   bool    `mapstructure:"requires_kyc"`
	MinReputation int     `mapstructure:"min_reputation"`
}

// AnchorConfig statically describes one anchor to seed into the registry,
// plus the endpoints its quotes and health are polled from.
type AnchorConfig struct {
	ID                string   `mapstructure:"id"`
	ReputationScore   int      `mapstructure:"reputation_score"`
	SettlementMinutes int      `mapstructure:"settlement_minutes"`
	LiquidityScore    int      `mapstructure:"liquidity_score"`
	SupportsKYC       bool     `mapstructure:"supports_kyc"`
	Services          []string `mapstructure:"services"`
	QuoteURL          string   `mapstructure:"quote_url"`
	HealthURL         string   `mapstructure:"health_url"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANCHORROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "anchorrouter")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.quote_ttl", "5m")
	v.SetDefault("engine.degraded_availability", 95.0)
	v.SetDefault("engine.switch_threshold_pct", 10.0)
	v.SetDefault("engine.max_alternatives", 0)

	v.SetDefault("probes.interval", "1m")
	v.SetDefault("probes.align_to_bucket", true)
	v.SetDefault("probes.startup_delay", "0s")
	v.SetDefault("probes.request_timeout", "10s")
	v.SetDefault("probes.user_agent", "anchorrouter/1.0")
	v.SetDefault("probes.advisory_lock_key", int64(0x616e6368))

	v.SetDefault("reference.enabled", false)
	v.SetDefault("reference.decimals", 8)
	v.SetDefault("reference.max_deviation_pct", 2.0)
	v.SetDefault("reference.request_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("watch.strategy", "best_rate")
	v.SetDefault("watch.operation", "any")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Engine.QuoteTTL <= 0 {
		return fmt.Errorf("engine.quote_ttl must be greater than zero")
	}
	if c.Engine.DegradedAvailability <= 0 || c.Engine.DegradedAvailability > 100 {
		return fmt.Errorf("engine.degraded_availability must be in (0,100]")
	}
	if c.Engine.SwitchThresholdPct < 0 {
		return fmt.Errorf("engine.switch_threshold_pct cannot be negative")
	}
	if c.Engine.MaxAlternatives < 0 {
		return fmt.Errorf("engine.max_alternatives cannot be negative")
	}
	if c.Probes.Interval <= 0 {
		return fmt.Errorf("probes.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Watch.Pair != "" && c.Watch.Amount <= 0 {
		return fmt.Errorf("watch.amount must be greater than zero when watch.pair is set")
	}
	if c.Reference.Enabled {
		if c.Reference.RPCURL == "" {
			return fmt.Errorf("reference.rpc_url is required when reference is enabled")
		}
		if c.Reference.AggregatorAddress == "" {
			return fmt.Errorf("reference.aggregator_address is required when reference is enabled")
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}

	seen := make(map[string]bool, len(c.Anchors))
	for i, ac := range c.Anchors {
		if ac.ID == "" {
			return fmt.Errorf("anchors[%d].id is required", i)
		}
		if seen[ac.ID] {
			return fmt.Errorf("anchors[%d].id %q duplicated", i, ac.ID)
		}
		seen[ac.ID] = true
		if _, err := ac.ToAnchor(); err != nil {
			return fmt.Errorf("anchors[%d] (%s): %w", i, ac.ID, err)
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// WatchRequest materialises the standing routing request, or ok=false when
// no watch pair is configured.
func (c *Config) WatchRequest() (anchor.RoutingRequest, bool, error) {
	if c.Watch.Pair == "" {
		return anchor.RoutingRequest{}, false, nil
	}

	kind, err := anchor.ParseStrategyKind(c.Watch.Strategy)
	if err != nil {
		return anchor.RoutingRequest{}, false, fmt.Errorf("watch.strategy: %w", err)
	}
	operation, err := ParseService(c.Watch.Operation)
	if err != nil {
		return anchor.RoutingRequest{}, false, fmt.Errorf("watch.operation: %w", err)
	}

	req := anchor.RoutingRequest{
		Amount:      decimal.NewFromFloat(c.Watch.Amount),
		Pair:        anchor.AssetPair(c.Watch.Pair),
		Operation:   operation,
		RequiresKYC: c.Watch.RequiresKYC,
		Strategy:    anchor.Strategy{Kind: kind},
	}
	if c.Watch.MinReputation > 0 {
		min := c.Watch.MinReputation
		req.MinReputation = &min
	}
	return req, true, nil
}

// ToAnchor converts the static definition into a registry record.
func (ac AnchorConfig) ToAnchor() (anchor.Anchor, error) {
	services := make([]anchor.Service, 0, len(ac.Services))
	for _, s := range ac.Services {
		parsed, err := ParseService(s)
		if err != nil {
			return anchor.Anchor{}, err
		}
		if parsed != anchor.ServiceAny {
			services = append(services, parsed)
		}
	}
	return anchor.Anchor{
		ID:                ac.ID,
		ReputationScore:   ac.ReputationScore,
		SettlementMinutes: ac.SettlementMinutes,
		LiquidityScore:    ac.LiquidityScore,
		SupportsKYC:       ac.SupportsKYC,
		Services:          services,
	}, nil
}

// ParseService maps a config token onto a Service.
func ParseService(v string) (anchor.Service, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "any":
		return anchor.ServiceAny, nil
	case "deposits", "deposit":
		return anchor.ServiceDeposits, nil
	case "withdrawals", "withdrawal":
		return anchor.ServiceWithdrawals, nil
	default:
		return anchor.ServiceAny, fmt.Errorf("unknown service %q", v)
	}
}

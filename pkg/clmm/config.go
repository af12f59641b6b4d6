package clmm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"clmm-lp-agent/pkg/confkit"
	"clmm-lp-agent/pkg/money"
)

// Config is the validated configuration surface for one pool controller
// (spec §6). Ratio fields are always stored as (0,1) fractions; the raw
// YAML percent-point forms are rejected at load time rather than silently
// divided by 100.
type Config struct {
	ControllerID string `yaml:"controller_id"`
	Venue        string `yaml:"venue"` // "uniswap_v3" or "meteora"
	PoolAddress  string `yaml:"pool_address"`
	TradingPair  string `yaml:"trading_pair"`
	ConnectorName string `yaml:"connector_name"`

	PositionValueQuote money.Decimal `yaml:"position_value_quote"`
	PositionWidthPct   money.Decimal `yaml:"position_width_pct"`

	RebalanceEnabled bool `yaml:"rebalance_enabled"`

	RebalanceSecondsRaw string  `yaml:"rebalance_seconds"`
	RebalanceSeconds    float64 `yaml:"-"`

	HysteresisPct money.Decimal `yaml:"hysteresis_pct"`

	CooldownSecondsRaw string  `yaml:"cooldown_seconds"`
	CooldownSeconds    float64 `yaml:"-"`

	MaxRebalancesPerHour int `yaml:"max_rebalances_per_hour"`

	ReopenDelaySecRaw string  `yaml:"reopen_delay_sec"`
	ReopenDelaySec    float64 `yaml:"-"`

	AutoSwapEnabled  bool          `yaml:"auto_swap_enabled"`
	SwapMinValuePct  money.Decimal `yaml:"swap_min_value_pct"`
	SwapSafetyBufferPct money.Decimal `yaml:"swap_safety_buffer_pct"`
	SwapSlippagePct  money.Decimal `yaml:"swap_slippage_pct"`

	StopLossPnLPct   money.Decimal `yaml:"stop_loss_pnl_pct"`
	TakeProfitPnLPct money.Decimal `yaml:"take_profit_pnl_pct"`

	ExitFullLiquidation bool `yaml:"exit_full_liquidation"`
	ReenterEnabled      bool `yaml:"reenter_enabled"`

	BalanceRefreshIntervalSecRaw string  `yaml:"balance_refresh_interval_sec"`
	BalanceRefreshIntervalSec    float64 `yaml:"-"`
	BalanceRefreshTimeoutSecRaw  string  `yaml:"balance_refresh_timeout_sec"`
	BalanceRefreshTimeoutSec     float64 `yaml:"-"`

	OpenTimeoutSecRaw string  `yaml:"open_timeout_sec"`
	OpenTimeoutSec    float64 `yaml:"-"`

	MinNativeReserve money.Decimal `yaml:"min_native_reserve"`
	FixedReserveQuote money.Decimal `yaml:"fixed_reserve_quote"`

	CostFilterEnabled                   bool          `yaml:"cost_filter_enabled"`
	CostFilterFeeRateBootstrapQuotePerHour money.Decimal `yaml:"cost_filter_fee_rate_bootstrap_quote_per_hour"`
	CostFilterFixedCostQuote            money.Decimal `yaml:"cost_filter_fixed_cost_quote"`
	CostFilterMaxPaybackSec             money.Decimal `yaml:"cost_filter_max_payback_sec"`

	RatioClampTickMultiplier int           `yaml:"ratio_clamp_tick_multiplier"`
	RatioEdgeBufferPct       money.Decimal `yaml:"ratio_edge_buffer_pct"`
	TickBase                 money.Decimal `yaml:"-"`
	MeteoraStrategyType      int           `yaml:"meteora_strategy_type"`

	TargetPrice   *money.Decimal `yaml:"target_price"`
	TriggerAbove  bool           `yaml:"trigger_above"`
}

// LoadConfig reads a controller Config from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clmm config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads the controller config from the default project location
// and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/clmm.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read clmm config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal clmm config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RebalanceSecondsRaw == "" {
		c.RebalanceSecondsRaw = "300s"
	}
	if c.CooldownSecondsRaw == "" {
		c.CooldownSecondsRaw = "60s"
	}
	if c.ReopenDelaySecRaw == "" {
		c.ReopenDelaySecRaw = "5s"
	}
	if c.BalanceRefreshIntervalSecRaw == "" {
		c.BalanceRefreshIntervalSecRaw = "5s"
	}
	if c.BalanceRefreshTimeoutSecRaw == "" {
		c.BalanceRefreshTimeoutSecRaw = "10s"
	}
	if c.OpenTimeoutSecRaw == "" {
		c.OpenTimeoutSecRaw = "120s"
	}
	if c.RatioClampTickMultiplier <= 0 {
		c.RatioClampTickMultiplier = 2
	}
	if c.TickBase.IsZero() {
		c.TickBase = money.MustFromString("1.0001")
	}
	if c.CostFilterMaxPaybackSec.IsZero() {
		c.CostFilterMaxPaybackSec = money.NewFromInt(3600)
	}
}

func (c *Config) parseDurations() error {
	durations := []struct {
		raw  string
		name string
		dst  *float64
	}{
		{c.RebalanceSecondsRaw, "rebalance_seconds", &c.RebalanceSeconds},
		{c.CooldownSecondsRaw, "cooldown_seconds", &c.CooldownSeconds},
		{c.ReopenDelaySecRaw, "reopen_delay_sec", &c.ReopenDelaySec},
		{c.BalanceRefreshIntervalSecRaw, "balance_refresh_interval_sec", &c.BalanceRefreshIntervalSec},
		{c.BalanceRefreshTimeoutSecRaw, "balance_refresh_timeout_sec", &c.BalanceRefreshTimeoutSec},
		{c.OpenTimeoutSecRaw, "open_timeout_sec", &c.OpenTimeoutSec},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("clmm config: invalid %s %q: %w", d.name, d.raw, err)
		}
		if parsed < 0 {
			return fmt.Errorf("clmm config: %s must be non-negative, got %s", d.name, parsed)
		}
		*d.dst = parsed.Seconds()
	}
	return nil
}

func ratioInUnitInterval(name string, v money.Decimal, allowZero bool) error {
	if v.IsNegative() {
		return fmt.Errorf("clmm config: %s must be >= 0", name)
	}
	if !allowZero && v.IsZero() {
		return fmt.Errorf("clmm config: %s must be > 0", name)
	}
	if !v.LessThan(money.One) {
		return fmt.Errorf("clmm config: %s must be < 1 (a ratio, not a percent-points value)", name)
	}
	return nil
}

// Validate rejects percent-points ratio values (e.g. 12 meaning "12%") and
// other configuration that would make the controller's arithmetic unsafe.
func (c *Config) Validate() error {
	if c.ControllerID == "" {
		return errors.New("clmm config: controller_id is required")
	}
	if c.Venue != "uniswap_v3" && c.Venue != "meteora" {
		return fmt.Errorf("clmm config: unknown venue %q", c.Venue)
	}
	if c.PositionValueQuote.IsNegative() {
		return errors.New("clmm config: position_value_quote must be >= 0")
	}
	if err := ratioInUnitInterval("position_width_pct", c.PositionWidthPct, false); err != nil {
		return err
	}
	if err := ratioInUnitInterval("hysteresis_pct", c.HysteresisPct, true); err != nil {
		return err
	}
	if c.RebalanceSeconds < 0 {
		return errors.New("clmm config: rebalance_seconds must be >= 0")
	}
	if c.CooldownSeconds < 0 {
		return errors.New("clmm config: cooldown_seconds must be >= 0")
	}
	if c.MaxRebalancesPerHour < 0 {
		return errors.New("clmm config: max_rebalances_per_hour must be >= 0")
	}
	if c.ReopenDelaySec < 0 {
		return errors.New("clmm config: reopen_delay_sec must be >= 0")
	}
	if err := ratioInUnitInterval("swap_min_value_pct", c.SwapMinValuePct, false); err != nil {
		return err
	}
	if err := ratioInUnitInterval("swap_safety_buffer_pct", c.SwapSafetyBufferPct, true); err != nil {
		return err
	}
	if err := ratioInUnitInterval("swap_slippage_pct", c.SwapSlippagePct, false); err != nil {
		return err
	}
	if err := ratioInUnitInterval("stop_loss_pnl_pct", c.StopLossPnLPct, false); err != nil {
		return err
	}
	if err := ratioInUnitInterval("take_profit_pnl_pct", c.TakeProfitPnLPct, false); err != nil {
		return err
	}
	if c.BalanceRefreshIntervalSec < 0 || c.BalanceRefreshTimeoutSec < 0 {
		return errors.New("clmm config: balance_refresh_* durations must be >= 0")
	}
	return nil
}

// RebalanceConfig projects the subset of Config the RebalanceEngine needs.
func (c *Config) RebalanceConfig() RebalanceConfig {
	return RebalanceConfig{
		Enabled:                      c.RebalanceEnabled,
		HysteresisPct:                c.HysteresisPct,
		RebalanceSeconds:             c.RebalanceSeconds,
		CooldownSeconds:              c.CooldownSeconds,
		MaxRebalancesPerHour:         c.MaxRebalancesPerHour,
		CostFilterEnabled:            c.CostFilterEnabled,
		FeeRateBootstrapQuotePerHour: c.CostFilterFeeRateBootstrapQuotePerHour,
		AutoSwapEnabled:              c.AutoSwapEnabled,
		SwapSlippagePct:              c.SwapSlippagePct,
		CostFilterFixedCostQuote:     c.CostFilterFixedCostQuote,
		CostFilterMaxPaybackSec:      c.CostFilterMaxPaybackSec,
	}
}

// BuildPolicy constructs the venue-specific Policy implementation described
// by the config.
func (c *Config) BuildPolicy() Policy {
	switch c.Venue {
	case "meteora":
		return NewMeteoraPolicy(c.PositionWidthPct, c.RatioEdgeBufferPct, c.MeteoraStrategyType)
	default:
		return NewV3Policy(c.PositionWidthPct, c.TickBase, c.RatioClampTickMultiplier)
	}
}

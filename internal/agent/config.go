package agent

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"clmm-lp-agent/pkg/clmm"
	"clmm-lp-agent/pkg/confkit"
)

// Config is the top-level agent runtime configuration: a fleet of
// independently-ticking pool controllers sharing one wallet budget.
// Mirrors the shape of the teacher's multi-trader manager config, retargeted
// from perp traders to per-pool CLMM controllers.
type Config struct {
	Runtime RuntimeConfig `yaml:"runtime"`
	Pools   []PoolConfig  `yaml:"pools"`

	baseDir string
}

// RuntimeConfig controls the shared tick loop.
type RuntimeConfig struct {
	TickIntervalRaw string        `yaml:"tick_interval"`
	TickInterval    time.Duration `yaml:"-"`

	TotalEquityQuote float64 `yaml:"total_equity_quote"`
}

// PoolConfig binds one pkg/clmm controller config file to a venue connector.
type PoolConfig struct {
	ControllerID   string `yaml:"controller_id"`
	ConfigFile     string `yaml:"config_file"`
	ConnectorName  string `yaml:"connector_name"`
	AutoStart      bool   `yaml:"auto_start"`
	JournalEnabled bool   `yaml:"journal_enabled"`
	JournalDir     string `yaml:"journal_dir"`

	DecisionIntervalRaw string        `yaml:"decision_interval"`
	DecisionInterval    time.Duration `yaml:"-"`

	Controller *clmm.Config `yaml:"-"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open agent config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file, filepath.Dir(path))
}

// MustLoad reads agent configuration from the default project location and
// panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/agent.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader with the provided
// base directory, used to resolve relative per-pool config file paths.
func LoadConfigFromReader(r io.Reader, baseDir string) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read agent config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal agent config: %w", err)
	}
	cfg.baseDir = baseDir

	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.hydratePools(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Runtime.TickIntervalRaw) == "" {
		c.Runtime.TickIntervalRaw = "5s"
	}
	for i := range c.Pools {
		if strings.TrimSpace(c.Pools[i].DecisionIntervalRaw) == "" {
			c.Pools[i].DecisionIntervalRaw = c.Runtime.TickIntervalRaw
		}
	}
}

func (c *Config) parseDurations() error {
	d, err := parsePositiveDuration("runtime.tick_interval", c.Runtime.TickIntervalRaw)
	if err != nil {
		return err
	}
	c.Runtime.TickInterval = d

	for i := range c.Pools {
		d, err := parsePositiveDuration(fmt.Sprintf("pools[%d].decision_interval", i), c.Pools[i].DecisionIntervalRaw)
		if err != nil {
			return err
		}
		c.Pools[i].DecisionInterval = d
	}
	return nil
}

func (c *Config) hydratePools() error {
	for i := range c.Pools {
		p := &c.Pools[i]
		if strings.TrimSpace(p.ControllerID) == "" {
			return fmt.Errorf("agent config: pools[%d] missing controller_id", i)
		}
		if strings.TrimSpace(p.ConfigFile) == "" {
			return fmt.Errorf("agent config: pool %s missing config_file", p.ControllerID)
		}
		ctrlCfg, err := clmm.LoadConfig(confkit.ResolvePath(c.baseDir, p.ConfigFile))
		if err != nil {
			return fmt.Errorf("agent config: pool %s: %w", p.ControllerID, err)
		}
		if strings.TrimSpace(p.ConnectorName) == "" {
			p.ConnectorName = ctrlCfg.ConnectorName
		}
		if p.JournalDir != "" {
			p.JournalDir = confkit.ResolvePath(c.baseDir, p.JournalDir)
		}
		p.Controller = ctrlCfg
	}
	return nil
}

func parsePositiveDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("agent config: %s is required", field)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("agent config: %s invalid duration %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("agent config: %s must be positive, got %s", field, d)
	}
	return d, nil
}

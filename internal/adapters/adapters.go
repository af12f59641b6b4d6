// Package adapters wires pkg/clmm's collaborator interfaces (PriceProvider,
// PoolInfoResolver, ActionSink, BalanceManager) to concrete venue connectors.
// The registry/config shape mirrors the provider-builder pattern the teacher
// used for exchange connectors, retargeted from perp venues to DEX pools.
package adapters

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"clmm-lp-agent/pkg/clmm"
)

// DexAdapter is the full collaborator surface a venue connector must
// implement to drive one or more controllers against a real pool.
type DexAdapter interface {
	clmm.PriceProvider
	clmm.PoolInfoResolver
	clmm.ActionSink
	clmm.BalanceManager
	ExecutorObserver
}

// ExecutorObserver reports the live state of previously submitted executors,
// used by the tick loop to rebuild a Snapshot's LP/Swaps views each cycle.
type ExecutorObserver interface {
	LPStatus(ctx context.Context, executorID string) (clmm.LPView, bool, error)
	SwapStatus(ctx context.Context, executorID string) (clmm.SwapView, bool, error)
}

// ProviderConfig describes how to construct a single venue connector.
type ProviderConfig struct {
	Type         string `yaml:"type"`
	RPCEndpoint  string `yaml:"rpc_endpoint"`
	WalletKey    string `yaml:"wallet_key"`
	WalletAddr   string `yaml:"wallet_address"`
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// Config captures configuration for one or more venue connectors, keyed by
// connector name (matching Config.ConnectorName in pkg/clmm).
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderBuilder constructs a DexAdapter from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (DexAdapter, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider associates a builder with a connector type name
// (e.g. "uniswap_v3", "meteora", "sim").
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads adapter configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open adapters config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read adapters config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal adapters config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		provider.expandEnv()
		if err := provider.parseDurations(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.Type = strings.TrimSpace(os.ExpandEnv(p.Type))
	p.RPCEndpoint = strings.TrimSpace(os.ExpandEnv(p.RPCEndpoint))
	p.WalletKey = strings.TrimSpace(os.ExpandEnv(p.WalletKey))
	p.WalletAddr = strings.TrimSpace(os.ExpandEnv(p.WalletAddr))
	p.APIKey = strings.TrimSpace(os.ExpandEnv(p.APIKey))
	p.APISecret = strings.TrimSpace(os.ExpandEnv(p.APISecret))
	p.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.TimeoutRaw))
}

func (p *ProviderConfig) parseDurations(name string) error {
	if p.TimeoutRaw == "" {
		p.Timeout = 0
		return nil
	}
	d, err := time.ParseDuration(p.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("adapter %s: invalid timeout %q: %w", name, p.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("adapter %s: timeout must be positive, got %s", name, d)
	}
	p.Timeout = d
	return nil
}

// Validate ensures all connectors have sane configuration.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("adapters config: providers cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return fmt.Errorf("adapters config: default connector %q not defined", c.Default)
		}
	}
	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("adapters config: connector name cannot be empty")
		}
		if err := provider.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("adapters config: connector %s is nil", name)
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("adapters config: connector %s must specify type", name)
	}
	if _, ok := lookupProviderBuilder(p.Type); !ok {
		return fmt.Errorf("adapters config: connector %s has unsupported type %q", name, p.Type)
	}
	return nil
}

// BuildAdapters instantiates venue connectors according to the configuration.
func (c *Config) BuildAdapters() (map[string]DexAdapter, error) {
	result := make(map[string]DexAdapter, len(c.Providers))
	for name, providerCfg := range c.Providers {
		builder, ok := lookupProviderBuilder(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("adapter %s: unsupported type %q", name, providerCfg.Type)
		}
		adapter, err := builder(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("adapter %s: %w", name, err)
		}
		result[name] = adapter
	}
	return result, nil
}

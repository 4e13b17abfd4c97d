package exchange

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures configuration for one or more execution backends.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes how to construct a specific backend instance.
type ProviderConfig struct {
	Type         string  `yaml:"type"`
	PrivateKey   string  `yaml:"private_key"`
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	VaultAddress string  `yaml:"vault_address"`
	MainAddress  string  `yaml:"main_address"`
	Testnet      bool    `yaml:"testnet"`
	RateLimit    float64 `yaml:"rate_limit"` // requests per second, 0 = backend default
	Slippage     float64 `yaml:"slippage"`   // fraction, 0.05 = 5%
	Equity       float64 `yaml:"equity"`     // starting equity for paper backends

	TimeoutRaw      string        `yaml:"timeout"`
	Timeout         time.Duration `yaml:"-"`
	PairCacheTTLRaw string        `yaml:"pair_cache_ttl"`
	PairCacheTTL    time.Duration `yaml:"-"`
}

// ProviderBuilder constructs a Backend from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Backend, error)

// requirement checks type-specific fields during validation.
type requirement func(cfg *ProviderConfig) error

type registration struct {
	build    ProviderBuilder
	requires requirement
}

var (
	providerRegistry   = make(map[string]registration)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider associates a builder with a backend type.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	RegisterProviderWithRequirements(typeName, builder, nil)
}

// RegisterProviderWithRequirements also installs a validation hook run by
// Config.Validate before any builder executes.
func RegisterProviderWithRequirements(typeName string, builder ProviderBuilder, requires func(cfg *ProviderConfig) error) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[canonicalType(typeName)] = registration{build: builder, requires: requires}
}

// RegisteredTypes lists known backend types in sorted order.
func RegisteredTypes() []string {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	out := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func lookupProvider(typeName string) (registration, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	reg, ok := providerRegistry[canonicalType(typeName)]
	return reg, ok
}

func canonicalType(typeName string) string {
	return strings.ToLower(strings.TrimSpace(typeName))
}

// GetProvider constructs a single backend for the given type.
func GetProvider(typeName string, cfg *ProviderConfig) (Backend, error) {
	if cfg == nil {
		cfg = &ProviderConfig{}
	}
	cfgCopy := *cfg
	cfgCopy.Type = typeName
	if err := cfgCopy.validate("inline"); err != nil {
		return nil, err
	}
	reg, _ := lookupProvider(cfgCopy.Type)
	return reg.build("inline", &cfgCopy)
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exchange config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read exchange config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal exchange config: %w", err)
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
	c.Default = strings.TrimSpace(os.ExpandEnv(c.Default))
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
	for _, field := range []*string{
		&p.Type, &p.PrivateKey, &p.APIKey, &p.BaseURL, &p.VaultAddress,
		&p.MainAddress, &p.TimeoutRaw, &p.PairCacheTTLRaw,
	} {
		*field = strings.TrimSpace(os.ExpandEnv(*field))
	}
}

func (p *ProviderConfig) parseDurations(name string) error {
	var err error
	if p.Timeout, err = parsePositiveDuration(name, "timeout", p.TimeoutRaw); err != nil {
		return err
	}
	if p.PairCacheTTL, err = parsePositiveDuration(name, "pair_cache_ttl", p.PairCacheTTLRaw); err != nil {
		return err
	}
	return nil
}

func parsePositiveDuration(provider, field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("exchange provider %s: invalid %s %q: %w", provider, field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("exchange provider %s: %s must be positive, got %s", provider, field, d)
	}
	return d, nil
}

// Validate ensures all providers have sane configuration.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("exchange config: providers cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return fmt.Errorf("exchange config: default provider %q not defined", c.Default)
		}
	}
	for name, provider := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("exchange config: provider name cannot be empty")
		}
		if err := provider.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("exchange config: provider %s is nil", name)
	}
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("exchange config: provider %s must specify type", name)
	}
	reg, ok := lookupProvider(p.Type)
	if !ok {
		return fmt.Errorf("exchange config: provider %s has unsupported type %q", name, p.Type)
	}
	if p.Slippage < 0 || p.Slippage >= 1 {
		return fmt.Errorf("exchange config: provider %s slippage must be in [0,1)", name)
	}
	if p.RateLimit < 0 {
		return fmt.Errorf("exchange config: provider %s rate_limit cannot be negative", name)
	}
	if reg.requires != nil {
		if err := reg.requires(p); err != nil {
			return fmt.Errorf("exchange config: provider %s: %w", name, err)
		}
	}
	return nil
}

// DefaultName returns the configured default, or the only provider when
// exactly one is defined.
func (c *Config) DefaultName() (string, error) {
	if c.Default != "" {
		return c.Default, nil
	}
	if len(c.Providers) == 1 {
		for name := range c.Providers {
			return name, nil
		}
	}
	return "", fmt.Errorf("exchange config: default provider required when %d providers are defined", len(c.Providers))
}

// BuildDefault instantiates only the default backend.
func (c *Config) BuildDefault() (string, Backend, error) {
	name, err := c.DefaultName()
	if err != nil {
		return "", nil, err
	}
	providerCfg := c.Providers[name]
	reg, ok := lookupProvider(providerCfg.Type)
	if !ok {
		return "", nil, fmt.Errorf("exchange provider %s: unsupported type %q", name, providerCfg.Type)
	}
	backend, err := reg.build(name, providerCfg)
	if err != nil {
		return "", nil, fmt.Errorf("exchange provider %s: %w", name, err)
	}
	return name, backend, nil
}

// BuildProviders instantiates every configured backend.
func (c *Config) BuildProviders() (map[string]Backend, error) {
	result := make(map[string]Backend, len(c.Providers))
	for name, providerCfg := range c.Providers {
		reg, ok := lookupProvider(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("exchange provider %s: unsupported type %q", name, providerCfg.Type)
		}
		backend, err := reg.build(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("exchange provider %s: %w", name, err)
		}
		result[name] = backend
	}
	return result, nil
}

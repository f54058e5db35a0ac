package syncjob

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pricesync/pkg/chunk"
	"pricesync/pkg/confkit"
	"pricesync/pkg/fallback"
	"pricesync/pkg/market"
)

// Config holds the sync job tunables loaded from etc/sync.yaml.
type Config struct {
	ChunkYears           int           `yaml:"chunk_years"`
	RateLimitCooldownRaw string        `yaml:"rate_limit_cooldown"`
	RateLimitCooldown    time.Duration `yaml:"-"`
	TransientRetries     *int          `yaml:"transient_retries"`
	TransientDelayRaw    string        `yaml:"transient_delay"`
	TransientDelay       time.Duration `yaml:"-"`
	SkipLeadingEmpty     bool          `yaml:"skip_leading_empty"`
	UpdateEnabled        *bool         `yaml:"update_enabled"`
	// Symbols seeds an empty store on the first SyncAll.
	Symbols []string `yaml:"symbols"`
}

// DefaultConfig returns the settings used when no file is configured.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = cfg.normalise()
	return cfg
}

// LoadConfig reads job configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sync config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads etc/sync.yaml from the project root and panics on error.
func MustLoad() *Config {
	cfg, err := LoadConfig(confkit.MustProjectPath("etc/sync.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from r.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sync config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal sync config: %w", err)
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
	if c.ChunkYears == 0 {
		c.ChunkYears = chunk.DefaultYears
	}
	c.RateLimitCooldown = fallback.DefaultCooldown
	if raw := strings.TrimSpace(c.RateLimitCooldownRaw); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("sync config: invalid rate_limit_cooldown %q: %w", raw, err)
		}
		c.RateLimitCooldown = d
	}
	c.TransientDelay = fallback.DefaultTransientDelay
	if raw := strings.TrimSpace(c.TransientDelayRaw); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("sync config: invalid transient_delay %q: %w", raw, err)
		}
		c.TransientDelay = d
	}
	if c.TransientRetries == nil {
		n := fallback.DefaultTransientRetries
		c.TransientRetries = &n
	}
	if c.UpdateEnabled == nil {
		enabled := true
		c.UpdateEnabled = &enabled
	}
	c.Symbols = market.NormalizeSymbols(c.Symbols)
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.ChunkYears < 1 || c.ChunkYears > 19 {
		return fmt.Errorf("sync config: chunk_years must be between 1 and 19, got %d", c.ChunkYears)
	}
	if c.RateLimitCooldown < 0 {
		return fmt.Errorf("sync config: rate_limit_cooldown cannot be negative")
	}
	if c.TransientDelay < 0 {
		return fmt.Errorf("sync config: transient_delay cannot be negative")
	}
	if c.TransientRetries != nil && *c.TransientRetries < 0 {
		return fmt.Errorf("sync config: transient_retries cannot be negative")
	}
	return nil
}

// Updates reports whether scheduled runs are enabled.
func (c *Config) Updates() bool {
	return c.UpdateEnabled == nil || *c.UpdateEnabled
}

// OrchestratorOptions maps the retry settings onto fallback options.
func (c *Config) OrchestratorOptions() []fallback.Option {
	opts := []fallback.Option{
		fallback.WithCooldown(c.RateLimitCooldown),
		fallback.WithTransientDelay(c.TransientDelay),
	}
	if c.TransientRetries != nil {
		opts = append(opts, fallback.WithTransientRetries(*c.TransientRetries))
	}
	return opts
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for nftdropd.
type Config struct {
	ListenAddress string `yaml:"listen"`
	DatabasePath  string `yaml:"database"`
	ManifestPath  string `yaml:"manifest"`

	Ledger     LedgerConfig     `yaml:"ledger"`
	Signer     SignerConfig     `yaml:"signer"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Auth       AuthConfig       `yaml:"auth"`
}

// SignerConfig points at the external signing service.
type SignerConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// LedgerConfig points at the ledger query/submission endpoint.
type LedgerConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	RequestTimeout Duration `yaml:"request_timeout"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
}

// ReconcilerConfig tunes the reconciliation loop.
type ReconcilerConfig struct {
	BusyDelay    Duration `yaml:"busy_delay"`
	IdleDelay    Duration `yaml:"idle_delay"`
	AutoComplete bool     `yaml:"auto_complete"`
	StartLedger  uint64   `yaml:"start_ledger"`
}

// AuthConfig configures operator authentication. The signing secret is read
// from the named environment variable, never from the file itself.
type AuthConfig struct {
	SecretEnv string `yaml:"secret_env"`
	Audience  string `yaml:"audience"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7480"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "nftdrop.db"
	}
	if cfg.Ledger.RequestTimeout.Duration <= 0 {
		cfg.Ledger.RequestTimeout.Duration = 15 * time.Second
	}
	if cfg.Ledger.RateLimit <= 0 {
		cfg.Ledger.RateLimit = 5
	}
	if cfg.Ledger.RateBurst <= 0 {
		cfg.Ledger.RateBurst = 5
	}
	if cfg.Signer.RequestTimeout.Duration <= 0 {
		cfg.Signer.RequestTimeout.Duration = 10 * time.Second
	}
	if cfg.Reconciler.BusyDelay.Duration <= 0 {
		cfg.Reconciler.BusyDelay.Duration = 2 * time.Second
	}
	if cfg.Reconciler.IdleDelay.Duration <= 0 {
		cfg.Reconciler.IdleDelay.Duration = 10 * time.Second
	}
	if cfg.Auth.SecretEnv == "" {
		cfg.Auth.SecretEnv = "NFTDROP_ADMIN_SECRET"
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "nftdropd"
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Ledger.Endpoint) == "" {
		return fmt.Errorf("ledger endpoint required")
	}
	if strings.TrimSpace(cfg.Signer.Endpoint) == "" {
		return fmt.Errorf("signer endpoint required")
	}
	if strings.TrimSpace(cfg.ManifestPath) == "" {
		return fmt.Errorf("campaign manifest required")
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nftdropd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
manifest: campaign.toml
ledger:
  endpoint: wss://ledger.example.com
signer:
  endpoint: https://signer.internal:8443
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":7480" {
		t.Fatalf("unexpected listen default: %s", cfg.ListenAddress)
	}
	if cfg.DatabasePath != "nftdrop.db" {
		t.Fatalf("unexpected database default: %s", cfg.DatabasePath)
	}
	if cfg.Ledger.RequestTimeout.Duration != 15*time.Second {
		t.Fatalf("unexpected ledger timeout: %s", cfg.Ledger.RequestTimeout.Duration)
	}
	if cfg.Ledger.RateLimit != 5 || cfg.Ledger.RateBurst != 5 {
		t.Fatalf("unexpected rate defaults: %+v", cfg.Ledger)
	}
	if cfg.Reconciler.BusyDelay.Duration != 2*time.Second || cfg.Reconciler.IdleDelay.Duration != 10*time.Second {
		t.Fatalf("unexpected delay defaults: %+v", cfg.Reconciler)
	}
	if cfg.Auth.SecretEnv != "NFTDROP_ADMIN_SECRET" || cfg.Auth.Audience != "nftdropd" {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
listen: ":9000"
database: /var/lib/nftdrop/state.db
manifest: campaign.toml
ledger:
  endpoint: wss://ledger.example.com
  request_timeout: 30s
  rate_limit: 2
  rate_burst: 1
signer:
  endpoint: https://signer.internal:8443
reconciler:
  busy_delay: 500ms
  idle_delay: 1m
  auto_complete: true
  start_ledger: 70000000
auth:
  secret_env: DROP_SECRET
  audience: drop-admin
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" || cfg.DatabasePath != "/var/lib/nftdrop/state.db" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Ledger.RequestTimeout.Duration != 30*time.Second {
		t.Fatalf("ledger timeout not parsed: %s", cfg.Ledger.RequestTimeout.Duration)
	}
	if cfg.Reconciler.BusyDelay.Duration != 500*time.Millisecond || cfg.Reconciler.IdleDelay.Duration != time.Minute {
		t.Fatalf("delays not parsed: %+v", cfg.Reconciler)
	}
	if !cfg.Reconciler.AutoComplete || cfg.Reconciler.StartLedger != 70000000 {
		t.Fatalf("reconciler overrides not applied: %+v", cfg.Reconciler)
	}
	if cfg.Auth.SecretEnv != "DROP_SECRET" || cfg.Auth.Audience != "drop-admin" {
		t.Fatalf("auth overrides not applied: %+v", cfg.Auth)
	}
}

func TestLoadRejectsMissingEndpoints(t *testing.T) {
	cases := map[string]string{
		"ledger endpoint": `
manifest: campaign.toml
signer:
  endpoint: https://signer.internal:8443
`,
		"signer endpoint": `
manifest: campaign.toml
ledger:
  endpoint: wss://ledger.example.com
`,
		"campaign manifest": `
ledger:
  endpoint: wss://ledger.example.com
signer:
  endpoint: https://signer.internal:8443
`,
	}
	for want, body := range cases {
		_, err := Load(writeConfig(t, body))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q error, got %v", want, err)
		}
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
manifest: campaign.toml
ledger:
  endpoint: wss://ledger.example.com
  request_timeout: soon
signer:
  endpoint: https://signer.internal:8443
`))
	if err == nil {
		t.Fatalf("expected duration parse error")
	}
}

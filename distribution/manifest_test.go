package distribution

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleManifest = `
name = "spring-drop"
project = "gallery"
strategy = "on-demand"
treasuryAccount = "rTreasury"
paymentAccount = "rPayments"

[currency]
type = "XRP"
amount = "1000000"

[[tokens]]
tokenId = "000800006203F49C21D5D6E022CB16DE3538F248662FC73C00000001"
source = "ipfs://QmOne"

[[tokens]]
tokenId = "000800006203F49C21D5D6E022CB16DE3538F248662FC73C00000002"
source = "ipfs://QmTwo"
`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campaign.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestManifestInitialize(t *testing.T) {
	manifest, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	dist, err := manifest.Initialize(500)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if dist.Name != "spring-drop" || dist.Strategy != StrategyOnDemand {
		t.Fatalf("unexpected campaign: %+v", dist)
	}
	if dist.Status != StatusActive {
		t.Fatalf("fresh campaign should be active, got %s", dist.Status)
	}
	if dist.LedgerIndexStart != 500 || dist.LastHandledLedgerIndex != 500 {
		t.Fatalf("unexpected ledger window: %+v", dist)
	}
	if len(dist.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(dist.Records))
	}
	for _, rec := range dist.Records {
		if rec.Status != RecordPending {
			t.Fatalf("fresh record not pending: %+v", rec)
		}
	}
	if dist.PaymentDestination() != "rPayments" {
		t.Fatalf("payment account should win: %s", dist.PaymentDestination())
	}
}

func TestManifestRejectsUnknownStrategy(t *testing.T) {
	manifest := &Manifest{Name: "x", Strategy: "auction", TreasuryAccount: "rT"}
	if _, err := manifest.Initialize(0); err == nil {
		t.Fatalf("expected strategy error")
	}
}

func TestManifestRejectsDuplicateTokens(t *testing.T) {
	manifest := &Manifest{
		Name:            "x",
		Strategy:        "simple",
		TreasuryAccount: "rT",
		Currency:        ManifestCurrency{Type: "XRP", Amount: "1"},
		Tokens: []ManifestToken{
			{TokenID: "SAME"},
			{TokenID: "SAME"},
		},
	}
	if _, err := manifest.Initialize(0); err == nil {
		t.Fatalf("expected duplicate token error")
	}
}

func TestManifestRejectsPaymentAccountForSimple(t *testing.T) {
	manifest := &Manifest{
		Name:            "x",
		Strategy:        "simple",
		TreasuryAccount: "rT",
		PaymentAccount:  "rP",
		Currency:        ManifestCurrency{Type: "XRP", Amount: "1"},
		Tokens:          []ManifestToken{{TokenID: "A"}},
	}
	if _, err := manifest.Initialize(0); err == nil {
		t.Fatalf("expected payment-account error for simple strategy")
	}
}

func TestManifestIssuedCurrencyRequiresIssuer(t *testing.T) {
	manifest := &Manifest{
		Name:            "x",
		Strategy:        "trustline",
		TreasuryAccount: "rT",
		Currency:        ManifestCurrency{Type: "issued", Code: "USD", Amount: "5"},
		Tokens:          []ManifestToken{{TokenID: "A"}},
	}
	if _, err := manifest.Initialize(0); err == nil {
		t.Fatalf("expected issuer error")
	}
}

package distribution

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Manifest is the operator-authored campaign definition. One manifest seeds
// one Distribution aggregate with every record in the pending state.
type Manifest struct {
	Name     string `toml:"name"`
	Project  string `toml:"project"`
	Strategy string `toml:"strategy"`

	TreasuryAccount string `toml:"treasuryAccount"`
	PaymentAccount  string `toml:"paymentAccount"`

	Currency ManifestCurrency `toml:"currency"`
	Tokens   []ManifestToken  `toml:"tokens"`
}

// ManifestCurrency is the campaign unit price in manifest form.
type ManifestCurrency struct {
	Type   string `toml:"type"`
	Code   string `toml:"code"`
	Issuer string `toml:"issuer"`
	Amount string `toml:"amount"`
}

// ManifestToken names one NFT and its source artefact.
type ManifestToken struct {
	TokenID string `toml:"tokenId"`
	Source  string `toml:"source"`
}

// LoadManifest reads and decodes a TOML campaign manifest.
func LoadManifest(path string) (*Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("distribution: manifest path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("distribution: read manifest: %w", err)
	}
	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("distribution: decode manifest: %w", err)
	}
	return &manifest, nil
}

// Initialize builds the campaign aggregate from the manifest. Every record
// starts pending; startLedger anchors the reconciliation window.
func (m *Manifest) Initialize(startLedger uint64) (*Distribution, error) {
	strategy, err := ParseStrategy(m.Strategy)
	if err != nil {
		return nil, err
	}
	currencyType := CurrencyType(strings.TrimSpace(m.Currency.Type))
	if strings.EqualFold(string(currencyType), string(CurrencyXRP)) {
		currencyType = CurrencyXRP
	}
	dist := &Distribution{
		ID:      uuid.New(),
		Name:    strings.TrimSpace(m.Name),
		Project: strings.TrimSpace(m.Project),
		Status:  StatusActive,

		Strategy: strategy,
		Currency: Currency{
			Type:   currencyType,
			Code:   strings.TrimSpace(m.Currency.Code),
			Issuer: strings.TrimSpace(m.Currency.Issuer),
			Amount: strings.TrimSpace(m.Currency.Amount),
		},

		TreasuryAccount:        strings.TrimSpace(m.TreasuryAccount),
		PaymentAccount:         strings.TrimSpace(m.PaymentAccount),
		LedgerIndexStart:       startLedger,
		LastHandledLedgerIndex: startLedger,
	}
	dist.Records = make([]*Record, 0, len(m.Tokens))
	for _, token := range m.Tokens {
		dist.Records = append(dist.Records, &Record{
			TokenID: strings.TrimSpace(token.TokenID),
			Source:  strings.TrimSpace(token.Source),
			Status:  RecordPending,
		})
	}
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return dist, nil
}

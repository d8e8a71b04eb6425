package distribution

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RecordStatus tracks the lifecycle of a single inventory item. Transitions
// are forward-only except for the cancellation path, which reopens a record
// so a fresh offer can be primed.
type RecordStatus string

const (
	RecordPending       RecordStatus = "pending"
	RecordPurchased     RecordStatus = "purchased"
	RecordOfferSent     RecordStatus = "offer-sent"
	RecordOfferCreated  RecordStatus = "offer-created"
	RecordOfferAccepted RecordStatus = "offer-accepted"
	RecordFailed        RecordStatus = "failed"
)

// Terminal reports whether the status ends the record's lifecycle.
func (s RecordStatus) Terminal() bool {
	return s == RecordOfferAccepted || s == RecordFailed
}

// Status tracks the campaign lifecycle.
type Status string

const (
	StatusCreated             Status = "created"
	StatusPending             Status = "pending"
	StatusActive              Status = "active"
	StatusPendingVerification Status = "pendingVerification"
	StatusCompleted           Status = "completed"
)

// Strategy selects how inventory is primed and which ledger events matter.
type Strategy string

const (
	StrategySimple    Strategy = "simple"
	StrategyOnDemand  Strategy = "on-demand"
	StrategyTrustline Strategy = "trustline"
)

// ParseStrategy validates a strategy label from configuration or manifests.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case StrategySimple:
		return StrategySimple, nil
	case StrategyOnDemand:
		return StrategyOnDemand, nil
	case StrategyTrustline:
		return StrategyTrustline, nil
	}
	return "", fmt.Errorf("distribution: unknown strategy %q", raw)
}

// CurrencyType distinguishes the native unit from issued currencies.
type CurrencyType string

const (
	CurrencyXRP    CurrencyType = "XRP"
	CurrencyIssued CurrencyType = "issued"
)

// Currency is the fixed unit price for every item in the campaign. Amount is
// kept as a decimal string; for the native unit it is denominated in drops.
type Currency struct {
	Type   CurrencyType `json:"type"`
	Code   string       `json:"code,omitempty"`
	Issuer string       `json:"issuer,omitempty"`
	Amount string       `json:"amount"`
}

// Offer captures the sell offer primed for a record.
type Offer struct {
	OfferID           string `json:"offerId,omitempty"`
	Destination       string `json:"destination,omitempty"`
	TxHash            string `json:"txHash"`
	PreliminaryResult string `json:"preliminaryResult,omitempty"`
	FinalResult       string `json:"finalResult,omitempty"`
	LedgerIndex       uint64 `json:"ledgerIndex,omitempty"`
}

// AcceptOffer captures the buyer-side acceptance of a sell offer.
type AcceptOffer struct {
	Address     string `json:"address"`
	TxHash      string `json:"txHash"`
	FinalResult string `json:"finalResult,omitempty"`
	LedgerIndex uint64 `json:"ledgerIndex,omitempty"`
}

// Purchase captures the qualifying payment attached to a record under the
// on-demand strategy.
type Purchase struct {
	Address     string `json:"address"`
	TxHash      string `json:"txHash"`
	FinalResult string `json:"finalResult,omitempty"`
	LedgerIndex uint64 `json:"ledgerIndex,omitempty"`
}

// Record is one uniquely identified inventory item.
type Record struct {
	TokenID string       `json:"tokenId"`
	Source  string       `json:"source,omitempty"`
	Status  RecordStatus `json:"status"`

	Offer       *Offer       `json:"offer,omitempty"`
	AcceptOffer *AcceptOffer `json:"acceptOffer,omitempty"`
	Purchase    *Purchase    `json:"purchase,omitempty"`
}

// HasTxHash reports whether the supplied transaction hash is already attached
// to this record in any of its three slots.
func (r *Record) HasTxHash(hash string) bool {
	if r == nil || hash == "" {
		return false
	}
	if r.Offer != nil && r.Offer.TxHash == hash {
		return true
	}
	if r.AcceptOffer != nil && r.AcceptOffer.TxHash == hash {
		return true
	}
	if r.Purchase != nil && r.Purchase.TxHash == hash {
		return true
	}
	return false
}

// Distribution is the campaign aggregate. The record order is significant: it
// defines FIFO payment assignment under the on-demand strategy.
type Distribution struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Project string    `json:"project"`
	Status  Status    `json:"status"`

	Strategy Strategy `json:"strategy"`
	Currency Currency `json:"currency"`

	TreasuryAccount string `json:"treasuryAccount"`
	// PaymentAccount, when set, receives buyer payments instead of the
	// treasury account. On-demand only.
	PaymentAccount string `json:"paymentAccount,omitempty"`

	LedgerIndexStart       uint64  `json:"ledgerIndexStart"`
	LedgerIndexEnd         *uint64 `json:"ledgerIndexEnd,omitempty"`
	LastHandledLedgerIndex uint64  `json:"lastHandledLedgerIndex"`

	Records []*Record `json:"records"`
}

// PaymentDestination returns the account buyer payments must target.
func (d *Distribution) PaymentDestination() string {
	if d.PaymentAccount != "" {
		return d.PaymentAccount
	}
	return d.TreasuryAccount
}

// HasTxHash reports whether the hash is attached to any record. This is the
// replay-safety check every event handler performs before mutating.
func (d *Distribution) HasTxHash(hash string) bool {
	for _, rec := range d.Records {
		if rec.HasTxHash(hash) {
			return true
		}
	}
	return false
}

// FirstEligiblePending returns the first record, in list order, that can
// absorb an incoming payment. Nil when the campaign has no open slot.
func (d *Distribution) FirstEligiblePending() *Record {
	for _, rec := range d.Records {
		if rec.Status == RecordPending && rec.Purchase == nil {
			return rec
		}
	}
	return nil
}

// RecordByOfferTxHash finds the record whose primed offer was submitted with
// the supplied transaction hash.
func (d *Distribution) RecordByOfferTxHash(hash string) *Record {
	for _, rec := range d.Records {
		if rec.Offer != nil && rec.Offer.TxHash == hash {
			return rec
		}
	}
	return nil
}

// RecordByOfferID finds the record whose sell offer carries the supplied
// ledger object index.
func (d *Distribution) RecordByOfferID(offerID string) *Record {
	if offerID == "" {
		return nil
	}
	for _, rec := range d.Records {
		if rec.Offer != nil && rec.Offer.OfferID == offerID {
			return rec
		}
	}
	return nil
}

// AdvanceWatermark raises the last handled ledger index. The watermark never
// moves backwards.
func (d *Distribution) AdvanceWatermark(index uint64) {
	if index > d.LastHandledLedgerIndex {
		d.LastHandledLedgerIndex = index
	}
}

// Complete finalises the campaign, freezing the ledger window at the current
// watermark.
func (d *Distribution) Complete() {
	end := d.LastHandledLedgerIndex
	d.LedgerIndexEnd = &end
	d.Status = StatusCompleted
}

// Validate checks the aggregate is internally coherent before a loop starts.
func (d *Distribution) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("distribution: name required")
	}
	if strings.TrimSpace(d.TreasuryAccount) == "" {
		return fmt.Errorf("distribution: treasury account required")
	}
	switch d.Strategy {
	case StrategySimple, StrategyOnDemand, StrategyTrustline:
	default:
		return fmt.Errorf("distribution: unknown strategy %q", d.Strategy)
	}
	if d.PaymentAccount != "" && d.Strategy != StrategyOnDemand {
		return fmt.Errorf("distribution: payment account only valid for on-demand campaigns")
	}
	switch d.Currency.Type {
	case CurrencyXRP:
		if d.Currency.Code != "" || d.Currency.Issuer != "" {
			return fmt.Errorf("distribution: native currency must not carry code or issuer")
		}
	case CurrencyIssued:
		if d.Currency.Code == "" || d.Currency.Issuer == "" {
			return fmt.Errorf("distribution: issued currency requires code and issuer")
		}
	default:
		return fmt.Errorf("distribution: unknown currency type %q", d.Currency.Type)
	}
	if strings.TrimSpace(d.Currency.Amount) == "" {
		return fmt.Errorf("distribution: currency amount required")
	}
	if len(d.Records) == 0 {
		return fmt.Errorf("distribution: at least one inventory record required")
	}
	seen := make(map[string]struct{}, len(d.Records))
	for _, rec := range d.Records {
		if strings.TrimSpace(rec.TokenID) == "" {
			return fmt.Errorf("distribution: record token id required")
		}
		if _, dup := seen[rec.TokenID]; dup {
			return fmt.Errorf("distribution: duplicate token id %s", rec.TokenID)
		}
		seen[rec.TokenID] = struct{}{}
	}
	return nil
}

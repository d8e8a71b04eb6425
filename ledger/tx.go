package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EngineResultSuccess is the result code the ledger assigns to a transaction
// that applied cleanly.
const EngineResultSuccess = "tesSUCCESS"

// Kind is the closed set of transaction kinds the reconciler understands.
// Anything else maps to KindUnhandled and is skipped with an explicit log
// line rather than silently dropped.
type Kind string

const (
	KindPayment     Kind = "Payment"
	KindCreateOffer Kind = "NFTokenCreateOffer"
	KindCancelOffer Kind = "NFTokenCancelOffer"
	KindAcceptOffer Kind = "NFTokenAcceptOffer"
	KindUnhandled   Kind = "unhandled"
)

// ParseKind maps a raw transaction type label onto the closed kind set.
func ParseKind(raw string) Kind {
	switch Kind(strings.TrimSpace(raw)) {
	case KindPayment:
		return KindPayment
	case KindCreateOffer:
		return KindCreateOffer
	case KindCancelOffer:
		return KindCancelOffer
	case KindAcceptOffer:
		return KindAcceptOffer
	}
	return KindUnhandled
}

// Amount is either a native amount (a scalar string denominated in drops) or
// an issued-currency object. The wire format switches shape, so decoding is
// done by hand.
type Amount struct {
	Native bool   `json:"native"`
	Drops  string `json:"drops,omitempty"`

	Currency string `json:"currency,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value,omitempty"`
}

type issuedAmount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer"`
	Value    string `json:"value"`
}

// UnmarshalJSON accepts both wire shapes: a bare string for the native unit
// and an object for issued currencies.
func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*a = Amount{}
		return nil
	}
	if trimmed[0] == '"' {
		var drops string
		if err := json.Unmarshal(data, &drops); err != nil {
			return fmt.Errorf("ledger: decode native amount: %w", err)
		}
		*a = Amount{Native: true, Drops: drops}
		return nil
	}
	var issued issuedAmount
	if err := json.Unmarshal(data, &issued); err != nil {
		return fmt.Errorf("ledger: decode issued amount: %w", err)
	}
	*a = Amount{Currency: issued.Currency, Issuer: issued.Issuer, Value: issued.Value}
	return nil
}

// MarshalJSON renders the amount back in its wire shape so persisted events
// round-trip.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Native {
		return json.Marshal(a.Drops)
	}
	if a.Currency == "" && a.Value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(issuedAmount{Currency: a.Currency, Issuer: a.Issuer, Value: a.Value})
}

// IsZero reports whether the amount carries no value at all.
func (a Amount) IsZero() bool {
	return !a.Native && a.Currency == "" && a.Value == "" && a.Drops == ""
}

// CreatedNode is a ledger entry created by a transaction, lifted from the
// transaction metadata. The handler for offer creation scans these for the
// new sell-offer object.
type CreatedNode struct {
	LedgerEntryType string         `json:"ledgerEntryType"`
	LedgerIndex     string         `json:"ledgerIndex"`
	NewFields       map[string]any `json:"newFields,omitempty"`
}

// EntryTypeNFTokenOffer is the ledger entry type of a standing sell offer.
const EntryTypeNFTokenOffer = "NFTokenOffer"

// Tx is one validated ledger transaction, reduced to the fields the
// reconciler consumes.
type Tx struct {
	Kind        Kind   `json:"kind"`
	Account     string `json:"account"`
	Destination string `json:"destination,omitempty"`
	Hash        string `json:"hash"`
	LedgerIndex uint64 `json:"ledgerIndex"`

	EngineResult    string        `json:"engineResult"`
	DeliveredAmount Amount        `json:"deliveredAmount,omitempty"`
	OfferIndex      string        `json:"offerIndex,omitempty"`
	CreatedNodes    []CreatedNode `json:"createdNodes,omitempty"`
}

// Succeeded reports whether the ledger applied the transaction cleanly.
func (t Tx) Succeeded() bool {
	return t.EngineResult == EngineResultSuccess
}

// CreatedOfferID returns the ledger object index of the sell offer this
// transaction created, or the empty string when no such node exists.
func (t Tx) CreatedOfferID() string {
	for _, node := range t.CreatedNodes {
		if node.LedgerEntryType == EntryTypeNFTokenOffer {
			return node.LedgerIndex
		}
	}
	return ""
}

package ledger

import (
	"encoding/json"
	"testing"
)

func TestAmountDecodeNative(t *testing.T) {
	var amount Amount
	if err := json.Unmarshal([]byte(`"1000000"`), &amount); err != nil {
		t.Fatalf("decode native: %v", err)
	}
	if !amount.Native || amount.Drops != "1000000" {
		t.Fatalf("unexpected native amount: %+v", amount)
	}
}

func TestAmountDecodeIssued(t *testing.T) {
	var amount Amount
	raw := `{"currency":"USD","issuer":"rIssuer","value":"25.5"}`
	if err := json.Unmarshal([]byte(raw), &amount); err != nil {
		t.Fatalf("decode issued: %v", err)
	}
	if amount.Native {
		t.Fatalf("issued amount flagged native: %+v", amount)
	}
	if amount.Currency != "USD" || amount.Issuer != "rIssuer" || amount.Value != "25.5" {
		t.Fatalf("unexpected issued amount: %+v", amount)
	}
}

func TestAmountDecodeNull(t *testing.T) {
	amount := Amount{Native: true, Drops: "1"}
	if err := json.Unmarshal([]byte(`null`), &amount); err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if !amount.IsZero() {
		t.Fatalf("null should reset the amount: %+v", amount)
	}
}

func TestAmountRoundTrip(t *testing.T) {
	for _, amount := range []Amount{
		{Native: true, Drops: "42"},
		{Currency: "EUR", Issuer: "rIssuer", Value: "9.99"},
	} {
		data, err := json.Marshal(amount)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		var back Amount
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if back != amount {
			t.Fatalf("round trip mismatch: %+v != %+v", back, amount)
		}
	}
}

func TestParseKind(t *testing.T) {
	if ParseKind("NFTokenAcceptOffer") != KindAcceptOffer {
		t.Fatalf("accept offer not recognised")
	}
	if ParseKind(" Payment ") != KindPayment {
		t.Fatalf("padded payment not recognised")
	}
	if ParseKind("TrustSet") != KindUnhandled {
		t.Fatalf("unknown type should map to unhandled")
	}
}

func TestCreatedOfferID(t *testing.T) {
	tx := Tx{CreatedNodes: []CreatedNode{
		{LedgerEntryType: "DirectoryNode", LedgerIndex: "DIR"},
		{LedgerEntryType: EntryTypeNFTokenOffer, LedgerIndex: "OFFER123"},
	}}
	if got := tx.CreatedOfferID(); got != "OFFER123" {
		t.Fatalf("unexpected offer id: %s", got)
	}
	if got := (Tx{}).CreatedOfferID(); got != "" {
		t.Fatalf("expected empty id without created nodes, got %s", got)
	}
}

func TestSucceeded(t *testing.T) {
	if !(Tx{EngineResult: EngineResultSuccess}).Succeeded() {
		t.Fatalf("tesSUCCESS must count as success")
	}
	if (Tx{EngineResult: "tecUNFUNDED_PAYMENT"}).Succeeded() {
		t.Fatalf("tec code must not count as success")
	}
}

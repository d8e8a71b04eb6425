package distribution

import (
	"strings"
	"testing"
)

func campaign(statuses ...RecordStatus) *Distribution {
	d := &Distribution{
		Name:            "launch",
		Strategy:        StrategyOnDemand,
		Currency:        Currency{Type: CurrencyXRP, Amount: "1000000"},
		TreasuryAccount: "rTreasury",
	}
	for i, status := range statuses {
		rec := &Record{TokenID: "token-" + string(rune('a'+i)), Status: status}
		if status == RecordOfferAccepted {
			rec.AcceptOffer = &AcceptOffer{Address: "rBuyer" + string(rune('a'+i)), TxHash: "ACCEPT" + string(rune('a'+i))}
		}
		d.Records = append(d.Records, rec)
	}
	return d
}

func TestSummarizeAllAccepted(t *testing.T) {
	sum := Summarize(campaign(RecordOfferAccepted, RecordOfferAccepted, RecordOfferAccepted))
	if !sum.AskToMarkAsComplete {
		t.Fatalf("fully sold campaign must be completable")
	}
	if !strings.Contains(sum.Message, "all 3 items sold") {
		t.Fatalf("expected full-completion message, got %q", sum.Message)
	}
	if sum.Accepted != 3 || sum.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.TotalValue != "3000000" {
		t.Fatalf("unexpected total value: %s", sum.TotalValue)
	}
	if sum.UniqueBuyers != 3 {
		t.Fatalf("unexpected buyer count: %d", sum.UniqueBuyers)
	}
}

func TestSummarizePartialCompletion(t *testing.T) {
	sum := Summarize(campaign(RecordOfferAccepted, RecordOfferAccepted, RecordFailed))
	if !sum.AskToMarkAsComplete {
		t.Fatalf("drained campaign must be completable")
	}
	if !strings.Contains(sum.Message, "manual handling") {
		t.Fatalf("expected partial-completion message, got %q", sum.Message)
	}
	if sum.Accepted != 2 || sum.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
}

func TestSummarizeNotComplete(t *testing.T) {
	cases := [][]RecordStatus{
		{RecordPending, RecordPending, RecordPending},
		{RecordOfferAccepted, RecordPending, RecordFailed},
		{RecordOfferAccepted, RecordOfferCreated, RecordOfferAccepted},
		{RecordPurchased, RecordFailed, RecordFailed},
	}
	for _, statuses := range cases {
		if sum := Summarize(campaign(statuses...)); sum.AskToMarkAsComplete {
			t.Fatalf("campaign %v should not be completable: %+v", statuses, sum)
		}
	}
}

func TestSummarizeCounts(t *testing.T) {
	sum := Summarize(campaign(RecordPending, RecordPurchased, RecordOfferSent, RecordOfferCreated, RecordOfferAccepted, RecordFailed))
	for _, status := range []RecordStatus{RecordPending, RecordPurchased, RecordOfferSent, RecordOfferCreated, RecordOfferAccepted, RecordFailed} {
		if sum.Counts[status] != 1 {
			t.Fatalf("expected one %s record, got %d", status, sum.Counts[status])
		}
	}
	if sum.Total != 6 {
		t.Fatalf("unexpected total: %d", sum.Total)
	}
}

func TestSummarizeDistinctBuyers(t *testing.T) {
	d := campaign(RecordOfferAccepted, RecordOfferAccepted)
	d.Records[1].AcceptOffer.Address = d.Records[0].AcceptOffer.Address
	if sum := Summarize(d); sum.UniqueBuyers != 1 {
		t.Fatalf("repeat buyer counted twice: %d", sum.UniqueBuyers)
	}
}

func TestSummarizeIssuedDecimalValue(t *testing.T) {
	d := campaign(RecordOfferAccepted, RecordOfferAccepted)
	d.Currency = Currency{Type: CurrencyIssued, Code: "USD", Issuer: "rIssuer", Amount: "12.5"}
	if sum := Summarize(d); sum.TotalValue != "25" {
		t.Fatalf("unexpected issued total: %s", sum.TotalValue)
	}
}

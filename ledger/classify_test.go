package ledger

import "testing"

func tx(kind Kind, hash string, index uint64, result string) Tx {
	return Tx{Kind: kind, Hash: hash, LedgerIndex: index, EngineResult: result}
}

func TestRelevantFiltersFailuresAndStrangers(t *testing.T) {
	payment := tx(KindPayment, "PAY", 10, EngineResultSuccess)
	payment.Destination = "rTreasury"
	strayPayment := tx(KindPayment, "STRAY", 11, EngineResultSuccess)
	strayPayment.Destination = "rSomeoneElse"
	failed := tx(KindAcceptOffer, "FAILED", 12, "tecEXPIRED")
	unknown := tx(KindUnhandled, "ODD", 13, EngineResultSuccess)
	accept := tx(KindAcceptOffer, "ACCEPT", 14, EngineResultSuccess)

	out := Relevant("rTreasury", []Tx{payment, strayPayment, failed, unknown, accept})
	if len(out) != 2 {
		t.Fatalf("expected 2 relevant transactions, got %d", len(out))
	}
	if out[0].Hash != "PAY" || out[1].Hash != "ACCEPT" {
		t.Fatalf("unexpected selection: %+v", out)
	}
}

func TestMergeOrdersByLedgerIndexThenHash(t *testing.T) {
	a := []Tx{
		tx(KindPayment, "BBB", 20, EngineResultSuccess),
		tx(KindAcceptOffer, "ZZZ", 30, EngineResultSuccess),
	}
	b := []Tx{
		tx(KindCreateOffer, "AAA", 20, EngineResultSuccess),
		tx(KindPayment, "CCC", 10, EngineResultSuccess),
	}
	merged := Merge(a, b)
	want := []string{"CCC", "AAA", "BBB", "ZZZ"}
	if len(merged) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(merged))
	}
	for i, hash := range want {
		if merged[i].Hash != hash {
			t.Fatalf("position %d: got %s, want %s", i, merged[i].Hash, hash)
		}
	}
}

func TestMergeIsDeterministicAcrossInputOrder(t *testing.T) {
	a := []Tx{tx(KindPayment, "AAA", 20, EngineResultSuccess)}
	b := []Tx{tx(KindPayment, "BBB", 20, EngineResultSuccess)}
	forward := Merge(a, b)
	reversed := Merge(b, a)
	for i := range forward {
		if forward[i].Hash != reversed[i].Hash {
			t.Fatalf("merge order depends on input order at %d", i)
		}
	}
}

func TestMergeEmptyStreams(t *testing.T) {
	if out := Merge(nil, nil); len(out) != 0 {
		t.Fatalf("expected empty merge, got %d", len(out))
	}
	only := []Tx{tx(KindPayment, "AAA", 5, EngineResultSuccess)}
	if out := Merge(only, nil); len(out) != 1 || out[0].Hash != "AAA" {
		t.Fatalf("single-stream merge broken: %+v", out)
	}
}

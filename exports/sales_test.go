package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"nftdrop/distribution"
)

func sampleRecords() []distribution.Record {
	return []distribution.Record{
		{
			TokenID: "token-a",
			Status:  distribution.RecordOfferAccepted,
			Offer:   &distribution.Offer{OfferID: "OBJ1", TxHash: "OFFERTX1"},
			AcceptOffer: &distribution.AcceptOffer{
				Address: "rBuyer", TxHash: "ACCEPT1", LedgerIndex: 130,
			},
			Purchase: &distribution.Purchase{Address: "rBuyer", TxHash: "PAY1"},
		},
		{TokenID: "token-b", Status: distribution.RecordPending},
	}
}

func TestSalesCSV(t *testing.T) {
	data, checksum, err := SalesCSV("drop", sampleRecords())
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "campaign,token_id,status,buyer,offer_id,offer_tx,accept_tx,purchase_tx,accept_ledger_index" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if lines[1] != "drop,token-a,offer-accepted,rBuyer,OBJ1,OFFERTX1,ACCEPT1,PAY1,130" {
		t.Fatalf("unexpected sold row: %s", lines[1])
	}
	if lines[2] != "drop,token-b,pending,,,,,,0" {
		t.Fatalf("unexpected pending row: %s", lines[2])
	}

	want := sha256.Sum256(data)
	if checksum != hex.EncodeToString(want[:]) {
		t.Fatalf("checksum does not match payload")
	}
}

func TestSalesCSVBuyerFallsBackToPurchase(t *testing.T) {
	records := []distribution.Record{{
		TokenID:  "token-a",
		Status:   distribution.RecordPurchased,
		Purchase: &distribution.Purchase{Address: "rPayer", TxHash: "PAY1"},
	}}
	data, _, err := SalesCSV("drop", records)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(data), "rPayer") {
		t.Fatalf("purchase address should back-fill the buyer column: %s", data)
	}
}

func TestSalesParquetMagic(t *testing.T) {
	var out bytes.Buffer
	if err := SalesParquet(&out, sampleRecords()); err != nil {
		t.Fatalf("export: %v", err)
	}
	data := out.Bytes()
	if len(data) < 8 {
		t.Fatalf("parquet output too short: %d bytes", len(data))
	}
	if string(data[:4]) != "PAR1" || string(data[len(data)-4:]) != "PAR1" {
		t.Fatalf("missing parquet magic bytes")
	}
}

package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"nftdrop/distribution"
)

// SalesCSV builds a CSV sales report for the supplied inventory records and
// returns the serialised data alongside a SHA-256 checksum of the payload.
// Every record appears, terminal or not, so the report doubles as a campaign
// ledger.
func SalesCSV(campaign string, records []distribution.Record) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	w := csv.NewWriter(buffer)
	header := []string{
		"campaign", "token_id", "status", "buyer", "offer_id",
		"offer_tx", "accept_tx", "purchase_tx", "accept_ledger_index",
	}
	if err := w.Write(header); err != nil {
		return nil, "", err
	}
	for _, rec := range records {
		row := salesRow(campaign, rec)
		record := []string{
			row.Campaign, row.TokenID, row.Status, row.Buyer, row.OfferID,
			row.OfferTx, row.AcceptTx, row.PurchaseTx,
			strconv.FormatUint(uint64(row.AcceptLedgerIndex), 10),
		}
		if err := w.Write(record); err != nil {
			return nil, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

type parquetSale struct {
	Campaign          string `parquet:"name=campaign, type=BYTE_ARRAY, convertedtype=UTF8"`
	TokenID           string `parquet:"name=token_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status            string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Buyer             string `parquet:"name=buyer, type=BYTE_ARRAY, convertedtype=UTF8"`
	OfferID           string `parquet:"name=offer_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OfferTx           string `parquet:"name=offer_tx, type=BYTE_ARRAY, convertedtype=UTF8"`
	AcceptTx          string `parquet:"name=accept_tx, type=BYTE_ARRAY, convertedtype=UTF8"`
	PurchaseTx        string `parquet:"name=purchase_tx, type=BYTE_ARRAY, convertedtype=UTF8"`
	AcceptLedgerIndex int64  `parquet:"name=accept_ledger_index, type=INT64"`
}

// SalesParquet streams the same report in Parquet form.
func SalesParquet(out io.Writer, records []distribution.Record) error {
	fw := writerfile.NewWriterFile(out)
	pw, err := writer.NewParquetWriter(fw, new(parquetSale), 1)
	if err != nil {
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		row := salesRow("", rec)
		if err := pw.Write(&row); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("exports: parquet flush: %w", err)
	}
	return nil
}

func salesRow(campaign string, rec distribution.Record) parquetSale {
	row := parquetSale{
		Campaign: campaign,
		TokenID:  rec.TokenID,
		Status:   string(rec.Status),
	}
	if rec.Offer != nil {
		row.OfferID = rec.Offer.OfferID
		row.OfferTx = rec.Offer.TxHash
	}
	if rec.AcceptOffer != nil {
		row.Buyer = rec.AcceptOffer.Address
		row.AcceptTx = rec.AcceptOffer.TxHash
		row.AcceptLedgerIndex = int64(rec.AcceptOffer.LedgerIndex)
	}
	if rec.Purchase != nil {
		row.PurchaseTx = rec.Purchase.TxHash
		if row.Buyer == "" {
			row.Buyer = rec.Purchase.Address
		}
	}
	return row
}

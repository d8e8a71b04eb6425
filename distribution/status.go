package distribution

import (
	"fmt"
	"math/big"
)

// Summary aggregates per-record state into the operator-facing snapshot. It
// is computed from scratch on every evaluation; nothing here is cached or
// mutated.
type Summary struct {
	Total  int                  `json:"total"`
	Counts map[RecordStatus]int `json:"counts"`

	Accepted     int    `json:"accepted"`
	Failed       int    `json:"failed"`
	UniqueBuyers int    `json:"uniqueBuyers"`
	TotalValue   string `json:"totalValue"`

	// AskToMarkAsComplete is true once every record is terminal, i.e. the
	// campaign has nothing left to reconcile.
	AskToMarkAsComplete bool   `json:"askToMarkAsComplete"`
	Message             string `json:"message"`
}

// Summarize computes the campaign summary. Pure: callers own persistence and
// any operator prompting.
func Summarize(d *Distribution) Summary {
	sum := Summary{
		Total:  len(d.Records),
		Counts: make(map[RecordStatus]int, 6),
	}
	buyers := make(map[string]struct{})
	for _, rec := range d.Records {
		sum.Counts[rec.Status]++
		switch rec.Status {
		case RecordOfferAccepted:
			sum.Accepted++
		case RecordFailed:
			sum.Failed++
		}
		if rec.AcceptOffer != nil && rec.AcceptOffer.Address != "" {
			buyers[rec.AcceptOffer.Address] = struct{}{}
		} else if rec.Purchase != nil && rec.Purchase.Address != "" {
			buyers[rec.Purchase.Address] = struct{}{}
		}
	}
	sum.UniqueBuyers = len(buyers)
	sum.TotalValue = totalValue(d.Currency, sum.Accepted)

	switch {
	case sum.Total > 0 && sum.Accepted == sum.Total:
		sum.AskToMarkAsComplete = true
		sum.Message = fmt.Sprintf("all %d items sold and accepted", sum.Total)
	case sum.Total > 0 && sum.Accepted+sum.Failed == sum.Total:
		sum.AskToMarkAsComplete = true
		sum.Message = fmt.Sprintf("%d items accepted, %d failed; failed items require manual handling", sum.Accepted, sum.Failed)
	default:
		sum.Message = fmt.Sprintf("%d of %d items in a terminal state", sum.Accepted+sum.Failed, sum.Total)
	}
	return sum
}

// totalValue multiplies the unit price by the accepted count. The amount is a
// decimal string, so the arithmetic stays in big.Rat and the result is
// rendered without a trailing fraction when it is integral.
func totalValue(c Currency, accepted int) string {
	unit, ok := new(big.Rat).SetString(c.Amount)
	if !ok {
		return "0"
	}
	total := new(big.Rat).Mul(unit, new(big.Rat).SetInt64(int64(accepted)))
	if total.IsInt() {
		return total.Num().String()
	}
	return total.FloatString(6)
}

package ledger

import "sort"

// Relevant filters a transaction stream down to the events the reconciler
// dispatches: successful payments addressed to the campaign's payment
// destination and successful NFT offer activity. Everything else, including
// unhandled kinds, is dropped here.
func Relevant(paymentDestination string, txs []Tx) []Tx {
	out := make([]Tx, 0, len(txs))
	for _, tx := range txs {
		if !tx.Succeeded() {
			continue
		}
		switch tx.Kind {
		case KindPayment:
			if tx.Destination == paymentDestination {
				out = append(out, tx)
			}
		case KindCreateOffer, KindCancelOffer, KindAcceptOffer:
			out = append(out, tx)
		case KindUnhandled:
		}
	}
	return out
}

// Merge combines two already-filtered streams into one ascending sequence.
// The primary key is the ledger index; ties are broken by transaction hash,
// which is unique, so the resulting order is total and reproducible.
func Merge(a, b []Tx) []Tx {
	merged := make([]Tx, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].LedgerIndex != merged[j].LedgerIndex {
			return merged[i].LedgerIndex < merged[j].LedgerIndex
		}
		return merged[i].Hash < merged[j].Hash
	})
	return merged
}

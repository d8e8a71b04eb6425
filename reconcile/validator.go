package reconcile

import (
	"math/big"

	"nftdrop/distribution"
	"nftdrop/ledger"
)

// PaymentValid judges whether a delivered amount satisfies the campaign's
// fixed unit price. The function is total over all four combinations of
// currency type and delivered shape:
//
//	native price  + native delivery  -> drops >= price
//	native price  + issued delivery  -> never valid
//	issued price  + native delivery  -> never valid
//	issued price  + issued delivery  -> code and issuer match, value >= price
//
// No tolerance is applied for issuer transfer fees that shave the delivered
// amount below the nominal sent amount; underpaid deliveries are rejected.
func PaymentValid(currency distribution.Currency, delivered ledger.Amount) bool {
	switch currency.Type {
	case distribution.CurrencyXRP:
		if !delivered.Native {
			return false
		}
		return atLeast(delivered.Drops, currency.Amount)
	case distribution.CurrencyIssued:
		if delivered.Native {
			return false
		}
		if delivered.Currency != currency.Code || delivered.Issuer != currency.Issuer {
			return false
		}
		return atLeast(delivered.Value, currency.Amount)
	}
	return false
}

// atLeast compares two decimal strings. Malformed input is never valid.
func atLeast(got, want string) bool {
	gotRat, ok := new(big.Rat).SetString(got)
	if !ok {
		return false
	}
	wantRat, ok := new(big.Rat).SetString(want)
	if !ok {
		return false
	}
	return gotRat.Cmp(wantRat) >= 0
}

package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"nftdrop/distribution"
	"nftdrop/ledger"
	"nftdrop/observability"
)

// Outcome tags a handler result. Warn and success never halt the loop; fatal
// aborts it immediately.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeWarn    Outcome = "warn"
	OutcomeFatal   Outcome = "fatal"
)

// Result is the per-event handler verdict. Reason is a stable label for
// metrics; Message is operator-facing.
type Result struct {
	Outcome Outcome
	Reason  string
	Message string
}

func applied(format string, args ...any) Result {
	return Result{Outcome: OutcomeSuccess, Reason: "applied", Message: fmt.Sprintf(format, args...)}
}

func note(reason, format string, args ...any) Result {
	return Result{Outcome: OutcomeSuccess, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func warn(reason, format string, args ...any) Result {
	return Result{Outcome: OutcomeWarn, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Stable warning reasons.
const (
	ReasonDuplicateHash    = "duplicate_hash"
	ReasonInvalidPayment   = "invalid_payment"
	ReasonNoEligibleRecord = "no_eligible_record"
	ReasonUnknownOffer     = "unknown_offer"
	ReasonWrongState       = "wrong_state"
	ReasonMissingOfferNode = "missing_offer_node"
	ReasonSubmissionFailed = "submission_failed"
	ReasonUnhandledKind    = "unhandled_kind"
)

// OfferRequest describes the sell offer to sign for one record.
type OfferRequest struct {
	TokenID     string
	Destination string
	Currency    distribution.Currency
	// Free marks a zero-price offer; used when the buyer already paid
	// under the on-demand strategy.
	Free bool
}

// OfferSigner produces a signed offer-create blob. Key custody lives outside
// this process.
type OfferSigner interface {
	SignCreateOffer(ctx context.Context, req OfferRequest) (string, error)
}

// Submitter forwards signed transaction blobs to the ledger.
type Submitter interface {
	Submit(ctx context.Context, txBlob string) (ledger.SubmitResult, error)
}

// Correlator routes classified ledger events onto the aggregate. Every
// handler mutates at most one record per call and is idempotent: an event
// whose hash is already attached is reported as a warn without mutation.
type Correlator struct {
	signer    OfferSigner
	submitter Submitter
	log       *slog.Logger
	metrics   *observability.ReconcilerMetrics
}

// NewCorrelator wires the event correlator with its collaborators.
func NewCorrelator(signer OfferSigner, submitter Submitter, log *slog.Logger, metrics *observability.ReconcilerMetrics) *Correlator {
	if log == nil {
		log = slog.Default()
	}
	return &Correlator{signer: signer, submitter: submitter, log: log, metrics: metrics}
}

// Apply dispatches one merged event to its handler. The kind set is closed;
// an unhandled kind is logged explicitly and skipped, never silently dropped.
func (c *Correlator) Apply(d *distribution.Distribution, tx ledger.Tx) Result {
	switch tx.Kind {
	case ledger.KindPayment:
		return c.handleIncomingPayment(d, tx)
	case ledger.KindCreateOffer:
		return c.handleCreatedOffer(d, tx)
	case ledger.KindAcceptOffer:
		return c.handleAcceptedOffer(d, tx)
	case ledger.KindCancelOffer:
		return c.handleCancelledOffer(d, tx)
	case ledger.KindUnhandled:
	}
	c.log.Warn("skipping unhandled transaction kind", "hash", tx.Hash, "ledger_index", tx.LedgerIndex)
	return note(ReasonUnhandledKind, "unhandled transaction kind for %s", tx.Hash)
}

// handleIncomingPayment attaches a qualifying payment to the first eligible
// pending record, in list order. Only the on-demand strategy sells against
// incoming payments; other strategies ignore them.
func (c *Correlator) handleIncomingPayment(d *distribution.Distribution, tx ledger.Tx) Result {
	if d.Strategy != distribution.StrategyOnDemand {
		return note("ignored_payment", "payment %s ignored for %s campaign", tx.Hash, d.Strategy)
	}
	if d.HasTxHash(tx.Hash) {
		return warn(ReasonDuplicateHash, "payment %s already attached", tx.Hash)
	}
	if !PaymentValid(d.Currency, tx.DeliveredAmount) {
		return warn(ReasonInvalidPayment, "payment %s from %s does not meet the unit price", tx.Hash, tx.Account)
	}
	rec := d.FirstEligiblePending()
	if rec == nil {
		// The money stays where it landed; no automatic refund is
		// attempted. The operator reconciles unattached payments by hand.
		return note(ReasonNoEligibleRecord, "valid payment %s from %s has no open slot", tx.Hash, tx.Account)
	}
	rec.Purchase = &distribution.Purchase{
		Address:     tx.Account,
		TxHash:      tx.Hash,
		FinalResult: tx.EngineResult,
		LedgerIndex: tx.LedgerIndex,
	}
	rec.Status = distribution.RecordPurchased
	return applied("payment %s assigned to token %s", tx.Hash, rec.TokenID)
}

// handleCreatedOffer resolves the submission we primed earlier against its
// on-ledger confirmation, lifting the new sell-offer object index out of the
// created-node metadata.
func (c *Correlator) handleCreatedOffer(d *distribution.Distribution, tx ledger.Tx) Result {
	rec := d.RecordByOfferTxHash(tx.Hash)
	if rec == nil {
		return warn(ReasonUnknownOffer, "offer-create %s does not match a primed record", tx.Hash)
	}
	if rec.Status != distribution.RecordOfferSent {
		return warn(ReasonDuplicateHash, "offer-create %s already applied to token %s", tx.Hash, rec.TokenID)
	}
	offerID := tx.CreatedOfferID()
	if offerID == "" {
		return warn(ReasonMissingOfferNode, "offer-create %s carries no sell-offer object", tx.Hash)
	}
	rec.Offer.OfferID = offerID
	rec.Offer.FinalResult = tx.EngineResult
	rec.Offer.LedgerIndex = tx.LedgerIndex
	rec.Status = distribution.RecordOfferCreated
	return applied("offer %s created for token %s", offerID, rec.TokenID)
}

// handleAcceptedOffer closes out a record whose standing offer the buyer
// accepted. Terminal success.
func (c *Correlator) handleAcceptedOffer(d *distribution.Distribution, tx ledger.Tx) Result {
	if d.HasTxHash(tx.Hash) {
		return warn(ReasonDuplicateHash, "offer-accept %s already attached", tx.Hash)
	}
	rec := d.RecordByOfferID(tx.OfferIndex)
	if rec == nil {
		return warn(ReasonUnknownOffer, "offer-accept %s references unknown offer %s", tx.Hash, tx.OfferIndex)
	}
	if rec.Status != distribution.RecordOfferCreated {
		return warn(ReasonWrongState, "offer-accept %s hit token %s in state %s", tx.Hash, rec.TokenID, rec.Status)
	}
	rec.AcceptOffer = &distribution.AcceptOffer{
		Address:     tx.Account,
		TxHash:      tx.Hash,
		FinalResult: tx.EngineResult,
		LedgerIndex: tx.LedgerIndex,
	}
	rec.Status = distribution.RecordOfferAccepted
	return applied("token %s accepted by %s", rec.TokenID, tx.Account)
}

// handleCancelledOffer reopens a record whose standing offer was cancelled.
// The ledger metadata does not distinguish an operator cancellation from an
// anyone-can-cancel expiry sweep, so both reopen the record: back to
// purchased when a payment is already attached, otherwise back to pending. A
// fresh offer is primed on a later pass.
func (c *Correlator) handleCancelledOffer(d *distribution.Distribution, tx ledger.Tx) Result {
	if d.HasTxHash(tx.Hash) {
		return warn(ReasonDuplicateHash, "offer-cancel %s already attached", tx.Hash)
	}
	rec := d.RecordByOfferID(tx.OfferIndex)
	if rec == nil {
		return warn(ReasonUnknownOffer, "offer-cancel %s references unknown offer %s", tx.Hash, tx.OfferIndex)
	}
	if rec.Status != distribution.RecordOfferCreated {
		return warn(ReasonWrongState, "offer-cancel %s hit token %s in state %s", tx.Hash, rec.TokenID, rec.Status)
	}
	c.log.Info("sell offer cancelled, reopening record",
		"token", rec.TokenID, "offer", tx.OfferIndex, "cancelled_by", tx.Account)
	rec.Offer = nil
	if rec.Purchase != nil {
		rec.Status = distribution.RecordPurchased
	} else {
		rec.Status = distribution.RecordPending
	}
	return applied("offer %s cancelled, token %s reopened", tx.OfferIndex, rec.TokenID)
}

// PrimeOffer signs and submits the sell offer for a record that is ready for
// one: purchased under on-demand, pending otherwise. Submission success moves
// the record to offer-sent; any signing or submission failure moves it to
// failed, a terminal state the engine never retries on its own.
func (c *Correlator) PrimeOffer(ctx context.Context, d *distribution.Distribution, rec *distribution.Record) Result {
	req := OfferRequest{TokenID: rec.TokenID, Currency: d.Currency}
	switch d.Strategy {
	case distribution.StrategyOnDemand:
		if rec.Status != distribution.RecordPurchased || rec.Purchase == nil {
			return warn(ReasonWrongState, "token %s not purchased, cannot prime offer", rec.TokenID)
		}
		req.Destination = rec.Purchase.Address
		req.Free = true
	case distribution.StrategySimple, distribution.StrategyTrustline:
		if rec.Status != distribution.RecordPending {
			return warn(ReasonWrongState, "token %s not pending, cannot prime offer", rec.TokenID)
		}
	default:
		return warn(ReasonWrongState, "unknown strategy %s", d.Strategy)
	}

	blob, err := c.signer.SignCreateOffer(ctx, req)
	if err != nil {
		rec.Status = distribution.RecordFailed
		c.metrics.RecordSubmission("error")
		return warn(ReasonSubmissionFailed, "sign offer for token %s: %v", rec.TokenID, err)
	}
	result, err := c.submitter.Submit(ctx, blob)
	if err != nil {
		rec.Status = distribution.RecordFailed
		c.metrics.RecordSubmission("error")
		return warn(ReasonSubmissionFailed, "submit offer for token %s: %v", rec.TokenID, err)
	}
	if !result.Accepted() {
		rec.Status = distribution.RecordFailed
		c.metrics.RecordSubmission("rejected")
		return warn(ReasonSubmissionFailed, "offer for token %s rejected: %s %s", rec.TokenID, result.EngineResult, result.Message)
	}
	rec.Offer = &distribution.Offer{
		TxHash:            result.Hash,
		Destination:       req.Destination,
		PreliminaryResult: result.EngineResult,
	}
	rec.Status = distribution.RecordOfferSent
	c.metrics.RecordSubmission("accepted")
	return applied("offer submitted for token %s as %s", rec.TokenID, result.Hash)
}

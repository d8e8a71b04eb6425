package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nftdrop/distribution"
	"nftdrop/ledger"
	"nftdrop/observability"
)

// LedgerQuerier replays an account's validated transaction history forward
// from the supplied ledger index.
type LedgerQuerier interface {
	AccountTx(ctx context.Context, account string, minLedger int64) ([]ledger.Tx, error)
}

// Store persists the campaign aggregate. It is flushed after every mutation,
// before the next event is dispatched. RecordEvent feeds the append-only
// audit trail and must absorb replays of an already-recorded hash.
type Store interface {
	SaveDistribution(ctx context.Context, d *distribution.Distribution) error
	RecordEvent(ctx context.Context, campaign, txHash, kind string, ledgerIndex uint64) error
}

// Snapshot is the operator-facing view of one engine.
type Snapshot struct {
	Name        string                `json:"name"`
	Project     string                `json:"project"`
	Status      distribution.Status   `json:"status"`
	Strategy    distribution.Strategy `json:"strategy"`
	Paused      bool                  `json:"paused"`
	Watermark   uint64                `json:"lastHandledLedgerIndex"`
	LedgerStart uint64                `json:"ledgerIndexStart"`
	LedgerEnd   *uint64               `json:"ledgerIndexEnd,omitempty"`
	Summary     distribution.Summary  `json:"summary"`
	Records     []distribution.Record `json:"-"`
}

// Engine owns one campaign's reconciliation loop. The aggregate has exactly
// one writer: the loop goroutine. Admin reads go through Snapshot under the
// same lock.
type Engine struct {
	store   Store
	querier LedgerQuerier
	corr    *Correlator
	log     *slog.Logger
	metrics *observability.ReconcilerMetrics

	busyDelay    time.Duration
	idleDelay    time.Duration
	autoComplete bool
	now          func() time.Time

	mu        sync.Mutex
	dist      *distribution.Distribution
	paused    bool
	confirmed bool
}

// EngineOption customises the engine instance.
type EngineOption func(*Engine)

// WithDelays overrides the busy and idle poll delays.
func WithDelays(busy, idle time.Duration) EngineOption {
	return func(e *Engine) {
		e.busyDelay = busy
		e.idleDelay = idle
	}
}

// WithAutoComplete lets an on-demand campaign finish without an operator
// confirmation. Ignored for other strategies.
func WithAutoComplete(auto bool) EngineOption {
	return func(e *Engine) { e.autoComplete = auto }
}

// WithClock sets the function used to derive timestamps.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) { e.now = clock }
}

// WithLogger supplies the engine logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithMetrics overrides the default metrics registry.
func WithMetrics(m *observability.ReconcilerMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs the reconciliation engine for one campaign.
func NewEngine(d *distribution.Distribution, store Store, querier LedgerQuerier, corr *Correlator, opts ...EngineOption) (*Engine, error) {
	if d == nil {
		return nil, fmt.Errorf("reconcile: distribution required")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if store == nil || querier == nil || corr == nil {
		return nil, fmt.Errorf("reconcile: store, querier, and correlator required")
	}
	engine := &Engine{
		dist:      d,
		store:     store,
		querier:   querier,
		corr:      corr,
		log:       slog.Default(),
		metrics:   observability.Reconciler(),
		busyDelay: 2 * time.Second,
		idleDelay: 10 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Run drives the fetch, dispatch, persist, evaluate cycle until the campaign
// completes, a handler reports a fatal result, or the context is cancelled.
// Cancellation is cooperative: it is honoured between passes, never in the
// middle of applying an event.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("reconciliation loop starting",
		"campaign", e.dist.Name, "strategy", string(e.dist.Strategy),
		"records", len(e.dist.Records), "watermark", e.dist.LastHandledLedgerIndex)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.isPaused() {
			if err := e.sleep(ctx, e.idleDelay); err != nil {
				return err
			}
			continue
		}

		start := e.now()
		events, err := e.fetch(ctx)
		if err != nil {
			// A fetch failure aborts only this pass; the next poll retries.
			e.metrics.RecordFetchFailure()
			e.metrics.RecordPass("fetch_error", e.now().Sub(start))
			e.log.Warn("fetch failed, will retry", "error", err)
			if err := e.sleep(ctx, e.idleDelay); err != nil {
				return err
			}
			continue
		}

		if len(events) > 0 {
			if err := e.dispatch(ctx, events); err != nil {
				return err
			}
			e.metrics.RecordPass("events", e.now().Sub(start))
			if err := e.sleep(ctx, e.busyDelay); err != nil {
				return err
			}
			continue
		}

		done, err := e.evaluate(ctx)
		if err != nil {
			return err
		}
		e.metrics.RecordPass("idle", e.now().Sub(start))
		if done {
			return nil
		}
		if err := e.sleep(ctx, e.idleDelay); err != nil {
			return err
		}
	}
}

// fetch pulls both account histories past the watermark and reduces them to
// the ordered, relevant event sequence.
func (e *Engine) fetch(ctx context.Context) ([]ledger.Tx, error) {
	e.mu.Lock()
	treasury := e.dist.TreasuryAccount
	payment := e.dist.PaymentAccount
	destination := e.dist.PaymentDestination()
	min := int64(e.dist.LastHandledLedgerIndex) + 1
	e.mu.Unlock()

	treasuryTxs, err := e.querier.AccountTx(ctx, treasury, min)
	if err != nil {
		return nil, fmt.Errorf("fetch treasury history: %w", err)
	}
	var paymentTxs []ledger.Tx
	if payment != "" && payment != treasury {
		paymentTxs, err = e.querier.AccountTx(ctx, payment, min)
		if err != nil {
			return nil, fmt.Errorf("fetch payment history: %w", err)
		}
	}
	return ledger.Merge(
		ledger.Relevant(destination, treasuryTxs),
		ledger.Relevant(destination, paymentTxs),
	), nil
}

// dispatch applies every event strictly in order, persisting the aggregate
// after each one so a crash mid-batch loses nothing; re-dispatch of an
// already-applied event is absorbed by handler idempotency.
func (e *Engine) dispatch(ctx context.Context, events []ledger.Tx) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var maxIndex uint64
	for _, tx := range events {
		result := e.corr.Apply(e.dist, tx)
		e.metrics.RecordEvent(string(tx.Kind), string(result.Outcome))
		switch result.Outcome {
		case OutcomeFatal:
			return fmt.Errorf("reconcile: fatal handler result for %s: %s", tx.Hash, result.Message)
		case OutcomeWarn:
			e.metrics.RecordWarning(result.Reason)
			e.log.Warn(result.Message, "hash", tx.Hash, "kind", string(tx.Kind), "reason", result.Reason)
		case OutcomeSuccess:
			e.log.Info(result.Message, "hash", tx.Hash, "kind", string(tx.Kind), "ledger_index", tx.LedgerIndex)
		}
		if err := e.store.SaveDistribution(ctx, e.dist); err != nil {
			return fmt.Errorf("reconcile: persist aggregate: %w", err)
		}
		if result.Outcome == OutcomeSuccess && result.Reason == "applied" {
			if err := e.store.RecordEvent(ctx, e.dist.Name, tx.Hash, string(tx.Kind), tx.LedgerIndex); err != nil {
				return fmt.Errorf("reconcile: record event: %w", err)
			}
		}
		if tx.LedgerIndex > maxIndex {
			maxIndex = tx.LedgerIndex
		}
	}
	e.dist.AdvanceWatermark(maxIndex)
	if err := e.store.SaveDistribution(ctx, e.dist); err != nil {
		return fmt.Errorf("reconcile: persist watermark: %w", err)
	}
	e.metrics.SetWatermark(e.dist.LastHandledLedgerIndex)
	e.publishGauges()
	return nil
}

// evaluate primes any records that are ready for an offer, then checks the
// completion predicate. Returns true once the campaign is finished.
func (e *Engine) evaluate(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range e.dist.Records {
		ready := (e.dist.Strategy == distribution.StrategyOnDemand && rec.Status == distribution.RecordPurchased) ||
			(e.dist.Strategy != distribution.StrategyOnDemand && rec.Status == distribution.RecordPending)
		if !ready {
			continue
		}
		result := e.corr.PrimeOffer(ctx, e.dist, rec)
		switch result.Outcome {
		case OutcomeFatal:
			return false, fmt.Errorf("reconcile: fatal priming token %s: %s", rec.TokenID, result.Message)
		case OutcomeWarn:
			e.metrics.RecordWarning(result.Reason)
			e.log.Warn(result.Message, "token", rec.TokenID)
		case OutcomeSuccess:
			e.log.Info(result.Message, "token", rec.TokenID)
		}
		if err := e.store.SaveDistribution(ctx, e.dist); err != nil {
			return false, fmt.Errorf("reconcile: persist aggregate: %w", err)
		}
	}

	sum := distribution.Summarize(e.dist)
	e.publishGauges()
	if !sum.AskToMarkAsComplete {
		return false, nil
	}
	if !e.completionApproved() {
		e.log.Info("campaign drained, awaiting operator confirmation", "summary", sum.Message)
		return false, nil
	}
	e.dist.Complete()
	if err := e.store.SaveDistribution(ctx, e.dist); err != nil {
		return false, fmt.Errorf("reconcile: persist completion: %w", err)
	}
	e.log.Info("campaign completed",
		"summary", sum.Message, "ledger_index_end", e.dist.LastHandledLedgerIndex)
	return true, nil
}

// completionApproved is called with the engine lock held.
func (e *Engine) completionApproved() bool {
	if e.confirmed {
		return true
	}
	return e.autoComplete && e.dist.Strategy == distribution.StrategyOnDemand
}

func (e *Engine) publishGauges() {
	counts := make(map[distribution.RecordStatus]int)
	for _, rec := range e.dist.Records {
		counts[rec.Status]++
	}
	for _, status := range []distribution.RecordStatus{
		distribution.RecordPending,
		distribution.RecordPurchased,
		distribution.RecordOfferSent,
		distribution.RecordOfferCreated,
		distribution.RecordOfferAccepted,
		distribution.RecordFailed,
	} {
		e.metrics.SetRecordCount(string(status), counts[status])
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Pause halts reconciliation passes until Resume is called.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume re-enables reconciliation passes.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// ConfirmComplete records the operator's completion confirmation. The loop
// finalises the campaign on its next idle evaluation if the completion
// predicate holds.
func (e *Engine) ConfirmComplete() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmed = true
}

// Snapshot returns the operator-facing status view, including copies of the
// inventory records for export rendering.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Name:        e.dist.Name,
		Project:     e.dist.Project,
		Status:      e.dist.Status,
		Strategy:    e.dist.Strategy,
		Paused:      e.paused,
		Watermark:   e.dist.LastHandledLedgerIndex,
		LedgerStart: e.dist.LedgerIndexStart,
		LedgerEnd:   e.dist.LedgerIndexEnd,
		Summary:     distribution.Summarize(e.dist),
	}
	snap.Records = make([]distribution.Record, 0, len(e.dist.Records))
	for _, rec := range e.dist.Records {
		snap.Records = append(snap.Records, *rec)
	}
	return snap
}

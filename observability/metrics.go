package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcilerMetrics exposes the Prometheus collectors for the reconciliation
// engine. The registry is process-global and lazily initialised so every
// component observes the same collectors.
type ReconcilerMetrics struct {
	passes        *prometheus.CounterVec
	events        *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	passDuration  prometheus.Histogram
	recordsGauge  *prometheus.GaugeVec
	watermark     prometheus.Gauge
	fetchFailures prometheus.Counter
	submissions   *prometheus.CounterVec
}

var (
	reconcilerOnce sync.Once
	reconcilerReg  *ReconcilerMetrics
)

// Reconciler returns the lazily-initialised reconciliation metrics registry.
func Reconciler() *ReconcilerMetrics {
	reconcilerOnce.Do(func() {
		reconcilerReg = &ReconcilerMetrics{
			passes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftdrop",
				Subsystem: "reconciler",
				Name:      "passes_total",
				Help:      "Reconciliation passes segmented by outcome (events, idle, fetch_error).",
			}, []string{"outcome"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftdrop",
				Subsystem: "reconciler",
				Name:      "events_total",
				Help:      "Ledger events dispatched to handlers segmented by kind and result.",
			}, []string{"kind", "result"}),
			warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftdrop",
				Subsystem: "reconciler",
				Name:      "handler_warnings_total",
				Help:      "Non-fatal handler outcomes segmented by reason.",
			}, []string{"reason"}),
			passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "nftdrop",
				Subsystem: "reconciler",
				Name:      "pass_duration_seconds",
				Help:      "Wall-clock duration of one fetch-dispatch-persist pass.",
				Buckets:   prometheus.DefBuckets,
			}),
			recordsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "nftdrop",
				Subsystem: "inventory",
				Name:      "records",
				Help:      "Inventory records segmented by lifecycle status.",
			}, []string{"status"}),
			watermark: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nftdrop",
				Subsystem: "reconciler",
				Name:      "last_handled_ledger_index",
				Help:      "Highest ledger index fully applied to the aggregate.",
			}),
			fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftdrop",
				Subsystem: "reconciler",
				Name:      "fetch_failures_total",
				Help:      "Passes aborted because the ledger query collaborator failed.",
			}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftdrop",
				Subsystem: "reconciler",
				Name:      "offer_submissions_total",
				Help:      "Offer submissions segmented by outcome (accepted, rejected, error).",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			reconcilerReg.passes,
			reconcilerReg.events,
			reconcilerReg.warnings,
			reconcilerReg.passDuration,
			reconcilerReg.recordsGauge,
			reconcilerReg.watermark,
			reconcilerReg.fetchFailures,
			reconcilerReg.submissions,
		)
	})
	return reconcilerReg
}

// RecordPass counts one completed pass and its duration.
func (m *ReconcilerMetrics) RecordPass(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.passes.WithLabelValues(outcome).Inc()
	m.passDuration.Observe(duration.Seconds())
}

// RecordEvent counts one dispatched ledger event.
func (m *ReconcilerMetrics) RecordEvent(kind, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, result).Inc()
}

// RecordWarning counts a non-fatal handler outcome by reason. Reasons should
// be stable strings such as "duplicate_hash" or "no_eligible_record" so
// dashboards stay consistent.
func (m *ReconcilerMetrics) RecordWarning(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.warnings.WithLabelValues(reason).Inc()
}

// RecordFetchFailure counts a pass aborted at the fetch step.
func (m *ReconcilerMetrics) RecordFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

// RecordSubmission counts one offer submission outcome.
func (m *ReconcilerMetrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// SetRecordCount publishes the current count for one inventory status.
func (m *ReconcilerMetrics) SetRecordCount(status string, count int) {
	if m == nil {
		return
	}
	m.recordsGauge.WithLabelValues(status).Set(float64(count))
}

// SetWatermark publishes the last handled ledger index.
func (m *ReconcilerMetrics) SetWatermark(index uint64) {
	if m == nil {
		return
	}
	m.watermark.Set(float64(index))
}

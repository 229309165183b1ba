// Package metrics exposes the Prometheus counters of the stock-count service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reconciliations   *prometheus.CounterVec
	reconcileRetries  prometheus.Counter
	discrepancies     prometheus.Counter
	policyDenied      *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	jobsProcessed     *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	queueFallbacks    prometheus.Counter
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcount_reconciliations_total",
				Help: "Comparisons produced by the reconciliation algorithm",
			},
			[]string{"outcome"}, // outcome: MATCHED, DISCREPANCY, skipped, failed
		),
		reconcileRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockcount_reconcile_retries_total",
			Help: "Reconciliation attempts retried after a concurrent area write",
		}),
		discrepancies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockcount_discrepancies_created_total",
			Help: "Discrepancy records created",
		}),
		policyDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcount_policy_denied_total",
				Help: "Authorization decisions that denied the request",
			},
			[]string{"resource", "action"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcount_transitions_total",
				Help: "Applied status transitions",
			},
			[]string{"entity", "to"},
		),
		jobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcount_jobs_processed_total",
				Help: "Background jobs processed by the worker pool",
			},
			[]string{"type", "result"},
		),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockcount_reconcile_duration_seconds",
			Help:    "Time spent reconciling one area",
			Buckets: prometheus.DefBuckets,
		}),
		queueFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockcount_queue_fallbacks_total",
			Help: "Reconciliations run inline because the job queue was unavailable",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.reconciliations, m.reconcileRetries, m.discrepancies, m.policyDenied,
		m.transitions, m.jobsProcessed, m.reconcileDuration, m.queueFallbacks,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Reconciled(outcome string, discrepancies int, seconds float64) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(outcome).Inc()
	m.discrepancies.Add(float64(discrepancies))
	m.reconcileDuration.Observe(seconds)
}

func (m *Metrics) ReconcileFailed() {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues("failed").Inc()
}

func (m *Metrics) ReconcileRetried() {
	if m == nil {
		return
	}
	m.reconcileRetries.Inc()
}

func (m *Metrics) Denied(resource, action string) {
	if m == nil {
		return
	}
	m.policyDenied.WithLabelValues(resource, action).Inc()
}

func (m *Metrics) Transitioned(entity, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, to).Inc()
}

func (m *Metrics) JobProcessed(jobType, result string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(jobType, result).Inc()
}

func (m *Metrics) QueueFallback() {
	if m == nil {
		return
	}
	m.queueFallbacks.Inc()
}

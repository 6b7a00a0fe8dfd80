// Package metrics holds the settlement service's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives settlement events worth counting.
type Recorder interface {
	OrderTransition(status string)
	Verification(result string)
	PayoutSubmission(outcome string)
	ReconcileBatch(size int)
}

// Payout submission outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeAmbiguous = "ambiguous"
)

// Registry owns collectors registered on a private prometheus registry.
type Registry struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	verifications *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	batchSize     prometheus.Histogram
}

// New builds registry with process and go runtime collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offramp_order_transitions_total",
			Help: "Order status transitions applied by the settlement engine.",
		}, []string{"status"}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offramp_verifications_total",
			Help: "On-chain proof verifications by result.",
		}, []string{"result"}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offramp_payout_submissions_total",
			Help: "Payout submissions by outcome.",
		}, []string{"outcome"}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "offramp_reconcile_batch_size",
			Help:    "Orders picked up per reconciliation tick.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (r *Registry) OrderTransition(status string) { r.transitions.WithLabelValues(status).Inc() }

func (r *Registry) Verification(result string) { r.verifications.WithLabelValues(result).Inc() }

func (r *Registry) PayoutSubmission(outcome string) { r.submissions.WithLabelValues(outcome).Inc() }

func (r *Registry) ReconcileBatch(size int) { r.batchSize.Observe(float64(size)) }

// Handler serves the registry in the prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

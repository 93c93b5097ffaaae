package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// Metrics counts domain events. It is attached to the event bus as a notifier.
type Metrics struct {
	registry           *prometheus.Registry
	lotsRegistered     prometheus.Counter
	audits             *prometheus.CounterVec
	thresholdUpdates   prometheus.Counter
	transfers          prometheus.Counter
	inspections        prometheus.Counter
	unrecognizedStatus prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lotsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lottrace_lots_registered_total",
			Help: "Lots registered.",
		}),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lottrace_audits_total",
			Help: "Audit evaluations by verdict kind.",
		}, []string{"kind"}),
		thresholdUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lottrace_threshold_updates_total",
			Help: "Accepted threshold updates.",
		}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lottrace_transfers_total",
			Help: "Ownership transfers recorded.",
		}),
		inspections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lottrace_inspections_total",
			Help: "Inspection batches classified.",
		}),
		unrecognizedStatus: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lottrace_unrecognized_status_total",
			Help: "Unit statuses counted as conformant because they were not recognized.",
		}),
	}

	m.registry.MustRegister(
		m.lotsRegistered,
		m.audits,
		m.thresholdUpdates,
		m.transfers,
		m.inspections,
		m.unrecognizedStatus,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Notify implements events.Notifier.
func (m *Metrics) Notify(_ context.Context, event models.Event) error {
	switch event.Type {
	case models.EventLotRegistered:
		m.lotsRegistered.Inc()
	case models.EventAuditEvaluated:
		kind, _ := event.Payload["kind"].(string)
		if kind == "" {
			kind = "unknown"
		}
		m.audits.WithLabelValues(kind).Inc()
	case models.EventThresholdsUpdated:
		m.thresholdUpdates.Inc()
	case models.EventOwnershipTransferred:
		m.transfers.Inc()
	case models.EventInspectionIngested:
		m.inspections.Inc()
	}
	return nil
}

// ObserveUnrecognizedStatus implements classifier.UnrecognizedObserver. The raw
// status is free text and only the classifier log carries it.
func (m *Metrics) ObserveUnrecognizedStatus(string) {
	m.unrecognizedStatus.Inc()
}

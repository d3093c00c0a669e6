package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the HTTP and procurement collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ReqTotal              *prometheus.CounterVec
	ReqDur                *prometheus.HistogramVec
	Recalculations        *prometheus.CounterVec
	RFPTransitions        *prometheus.CounterVec
	PurchaseOrdersCreated prometheus.Counter
}

// New registers every collector under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
		Recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotation_recalculations_total",
			Help:      "Quotation total recalculations by whether the total moved beyond epsilon.",
		}, []string{"result"}),
		RFPTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rfp_transitions_total",
			Help:      "RFP status transitions by target status.",
		}, []string{"to"}),
		PurchaseOrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_orders_created_total",
			Help:      "Purchase orders issued from awarded quotations.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ReqTotal,
		m.ReqDur,
		m.Recalculations,
		m.RFPTransitions,
		m.PurchaseOrdersCreated,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Recalculated(changed bool) {
	if m == nil {
		return
	}
	result := "unchanged"
	if changed {
		result = "changed"
	}
	m.Recalculations.WithLabelValues(result).Inc()
}

func (m *Metrics) Transitioned(to string) {
	if m == nil {
		return
	}
	m.RFPTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) PurchaseOrderCreated() {
	if m == nil {
		return
	}
	m.PurchaseOrdersCreated.Inc()
}

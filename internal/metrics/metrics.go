package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lotting"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	buyersCreated  prometheus.Counter
	reconciled     *prometheus.CounterVec
	progressDrops  prometheus.Counter
	importDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		buyersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buyers_created_total",
			Help:      "Buyers registered with a generated schedule.",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_records_total",
			Help:      "Deposit records processed by reconciliation, by outcome.",
		}, []string{"outcome"}),
		progressDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_dropped_total",
			Help:      "Progress events that could not be delivered.",
		}),
		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of file imports.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"type", "result"}),
	}
	reg.MustRegister(
		m.buyersCreated, m.reconciled, m.progressDrops, m.importDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) BuyerCreated() {
	if m == nil {
		return
	}
	m.buyersCreated.Inc()
}

// Reconciled counts one record outcome: "applied", "skipped" or "warning".
func (m *Metrics) Reconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProgressDropped() {
	if m == nil {
		return
	}
	m.progressDrops.Inc()
}

func (m *Metrics) ObserveImport(typ string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.importDuration.WithLabelValues(typ, result).Observe(d.Seconds())
}

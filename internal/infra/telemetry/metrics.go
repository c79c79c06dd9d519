package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imagekv"

// Metrics collects command level observations. A nil *Metrics is valid and records nothing.
type Metrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	blobSize *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Executed commands by name and reply outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Wall time from command entry to reply.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"command"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "commands_inflight",
			Help:      "Commands currently holding a transform slot.",
		}),
		blobSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blob_bytes",
			Help:      "Size of blobs read from and written to the store.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"direction"}),
	}

	reg.MustRegister(m.commands, m.duration, m.inflight, m.blobSize)

	return m
}

// ObserveCommand records one finished command.
func (m *Metrics) ObserveCommand(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.commands.WithLabelValues(command, outcome).Inc()
	m.duration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObserveBlob records the size of a blob read ("in") or written ("out").
func (m *Metrics) ObserveBlob(direction string, size int) {
	if m == nil {
		return
	}

	m.blobSize.WithLabelValues(direction).Observe(float64(size))
}

// TrackInflight increments the inflight gauge and returns the matching decrement.
func (m *Metrics) TrackInflight() func() {
	if m == nil {
		return func() {}
	}

	m.inflight.Inc()

	return m.inflight.Dec
}

// Handler exposes the collectors gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	//nolint:exhaustruct
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

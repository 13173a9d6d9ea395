package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	commands *prometheus.CounterVec
	depth    prometheus.Gauge
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer, name string) *metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"queue": name}

	return &metrics{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "acoustic_queue_commands_total",
			Help:        "Commands executed by the context queue, by kind and result",
			ConstLabels: labels,
		}, []string{"kind", "result"}),
		depth: f.NewGauge(prometheus.GaugeOpts{
			Name:        "acoustic_queue_depth",
			Help:        "Commands waiting in the context queue",
			ConstLabels: labels,
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "acoustic_queue_command_duration_seconds",
			Help:        "Execution time of queued commands",
			ConstLabels: labels,
			Buckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),
	}
}

func (m *metrics) observe(kind Kind, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(kind.String(), result).Inc()
	m.duration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

package acoustic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	sources   prometheus.Gauge
	meshes    prometheus.Gauge
	triangles prometheus.Gauge
	traces    *prometheus.CounterVec
	published prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		sources: f.NewGauge(prometheus.GaugeOpts{
			Name: "acoustic_sources",
			Help: "Live sources of the context",
		}),
		meshes: f.NewGauge(prometheus.GaugeOpts{
			Name: "acoustic_meshes",
			Help: "Live meshes of the context",
		}),
		triangles: f.NewGauge(prometheus.GaugeOpts{
			Name: "acoustic_scene_triangles",
			Help: "Triangles in the last committed snapshot",
		}),
		traces: f.NewCounterVec(prometheus.CounterOpts{
			Name: "acoustic_traces_total",
			Help: "Finished traces by outcome",
		}, []string{"result"}),
		published: f.NewCounter(prometheus.CounterOpts{
			Name: "acoustic_filter_sets_published_total",
			Help: "Filter sets published to sources",
		}),
	}
}

package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of a simulator.
type Metrics struct {
	// StepsTotal counts applied steps by kind.
	StepsTotal *prometheus.CounterVec
	// StepDurationSeconds measures tree update time by kind.
	StepDurationSeconds *prometheus.HistogramVec
	// CollisionsTotal counts rapid moves that touched the stock.
	CollisionsTotal prometheus.Counter
	// RemeshedLeavesTotal counts leaves rebuilt by incremental remeshing.
	RemeshedLeavesTotal prometheus.Counter
	// Nodes is the live node count of the tree.
	Nodes prometheus.Gauge
	// Triangles is the size of the current surface mesh.
	Triangles prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// gets a private registry, so several simulators can coexist.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		StepsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cutsim",
				Subsystem: "sim",
				Name:      "steps_total",
				Help:      "Program steps applied, by kind",
			},
			[]string{"kind"},
		),
		StepDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cutsim",
				Subsystem: "sim",
				Name:      "step_duration_seconds",
				Help:      "Time spent updating the tree per step, by kind",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"kind"},
		),
		CollisionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cutsim",
			Subsystem: "sim",
			Name:      "rapid_collisions_total",
			Help:      "Rapid moves that touched the stock",
		}),
		RemeshedLeavesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cutsim",
			Subsystem: "mesh",
			Name:      "rebuilt_leaves_total",
			Help:      "Leaves rebuilt by incremental remeshing",
		}),
		Nodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "cutsim",
			Subsystem: "tree",
			Name:      "nodes",
			Help:      "Live nodes in the stock tree",
		}),
		Triangles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "cutsim",
			Subsystem: "mesh",
			Name:      "triangles",
			Help:      "Triangles in the current surface mesh",
		}),
	}
}

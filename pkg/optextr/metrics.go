package optextr

import(
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts fitted vectors per stage. A nil *Metrics is a no-op.
type Metrics struct {
	vectors    *prometheus.CounterVec
	degraded   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	iterations *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		vectors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optextr",
			Name:      "vectors_total",
			Help:      "Vectors fitted, by stage.",
		}, []string{"stage"}),
		degraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optextr",
			Name:      "vectors_degraded_total",
			Help:      "Vectors whose fit was abandoned, by stage.",
		}, []string{"stage"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optextr",
			Name:      "pixels_rejected_total",
			Help:      "Pixels rejected as outliers, by stage.",
		}, []string{"stage"}),
		iterations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "optextr",
			Name:      "fit_iterations",
			Help:      "Reject loop iterations per vector, by stage.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}, []string{"stage"}),
	}
}

func (m *Metrics)ObserveStage(s StageStats) {
	if m == nil {
		return
	}
	m.vectors.WithLabelValues(s.Stage).Add(float64(s.Vectors))
	m.degraded.WithLabelValues(s.Stage).Add(float64(s.Degraded))
	m.rejected.WithLabelValues(s.Stage).Add(float64(s.Rejected))
	for _, n := range s.ItersPerVector {
		m.iterations.WithLabelValues(s.Stage).Observe(float64(n))
	}
}

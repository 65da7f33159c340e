package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//Turn outcomes
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeCanceled  = "canceled"
	outcomeRejected  = "rejected"
)

type metrics struct {
	turns         *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	deltas        *prometheus.CounterVec
	activeStreams prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamchat",
			Name:      "chat_turns_total",
			Help:      "Chat turns by upstream provider and outcome.",
		}, []string{"provider", "outcome"}),
		turnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "streamchat",
			Name:      "chat_turn_duration_seconds",
			Help:      "Time from request to terminal frame for streamed chat turns.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"provider", "outcome"}),
		deltas: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamchat",
			Name:      "chat_deltas_total",
			Help:      "Text delta frames written to clients.",
		}, []string{"provider"}),
		activeStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamchat",
			Name:      "chat_active_streams",
			Help:      "Chat streams currently open.",
		}),
	}
}

func (m *metrics) rejected(provider string) {
	m.turns.WithLabelValues(provider, outcomeRejected).Inc()
}

func (m *metrics) finished(provider, outcome string, start time.Time) {
	m.turns.WithLabelValues(provider, outcome).Inc()
	m.turnDuration.WithLabelValues(provider, outcome).Observe(time.Since(start).Seconds())
}

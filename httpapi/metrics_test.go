package httpapi

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.rejected("gemini")
	m.rejected("gemini")
	m.finished("gemini", outcomeCompleted, time.Now().Add(-time.Second))
	m.finished("anthropic", outcomeCanceled, time.Now())

	assert.Equal(t, float64(2), testutil.ToFloat64(m.turns.WithLabelValues("gemini", outcomeRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.turns.WithLabelValues("gemini", outcomeCompleted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.turns.WithLabelValues("anthropic", outcomeCanceled)))

	//rejected turns are never timed
	assert.Equal(t, 2, testutil.CollectAndCount(m.turnDuration))
}

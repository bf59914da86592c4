package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/omochice/dock-chat/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.Received("dm_new")
	m.Received("dm_new")
	m.Dropped("malformed")
	m.Sent("dm_send")
	m.Transition("open")
	m.Surfaces(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("dm_new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("dm_send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connections.WithLabelValues("open")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OpenSurfaces))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Received("dm_new")
		m.Dropped("malformed")
		m.Sent("dm_send")
		m.Transition("open")
		m.Surfaces(1)
	})
}

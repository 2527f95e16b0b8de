package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestProcessMetrics(t *testing.T) {
	Register(prometheus.NewRegistry())

	ProcessStarted("Valkey")
	ProcessStarted("Valkey")
	ProcessStopped("Valkey")
	ProcessStartFailed("Valkey", "not_ready")
	ReadyTime("Valkey", 0.2)
	ClusterLinkTime("sharded", 3)

	assert.Equal(t, float64(2), testutil.ToFloat64(starts.WithLabelValues("Valkey")))
	assert.Equal(t, float64(1), testutil.ToFloat64(active.WithLabelValues("Valkey")))
	assert.Equal(t, float64(1), testutil.ToFloat64(stops.WithLabelValues("Valkey")))
	assert.Equal(t, float64(1), testutil.ToFloat64(startErrs.WithLabelValues("Valkey", "not_ready")))
}

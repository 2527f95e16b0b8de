package prom

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statStarts       = "embedvalkey_process_starts"
	statStartErrs    = "embedvalkey_process_start_errors"
	statStops        = "embedvalkey_process_stops"
	statActive       = "embedvalkey_process_active"
	statReadyTimer   = "embedvalkey_process_ready_seconds"
	statClusterTimer = "embedvalkey_cluster_link_seconds"
)

var (
	starts       *prometheus.CounterVec
	startErrs    *prometheus.CounterVec
	stops        *prometheus.CounterVec
	active       *prometheus.GaugeVec
	readyTimer   *prometheus.HistogramVec
	clusterTimer *prometheus.HistogramVec

	distLabels    = []string{"distribution"}
	distErrLabels = []string{"distribution", "reason"}
	clusterLabels = []string{"topology"}

	once sync.Once
	// On Prom switch
	On = true
)

// Init registers the collectors and the /metrics handler on
// http.DefaultServeMux. It is a no-op when On is false or on repeated calls.
func Init() {
	if !On {
		return
	}
	once.Do(func() {
		Register(prometheus.DefaultRegisterer)
		metrics()
	})
}

// Register creates the collectors and registers them with r.
func Register(r prometheus.Registerer) {
	starts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: statStarts,
			Help: "server processes started",
		}, distLabels)
	startErrs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: statStartErrs,
			Help: "server processes that failed to start",
		}, distErrLabels)
	stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: statStops,
			Help: "server processes stopped",
		}, distLabels)
	active = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: statActive,
			Help: "server processes currently running",
		}, distLabels)
	readyTimer = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    statReadyTimer,
			Help:    "time from launch until ready to accept connections",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, distLabels)
	clusterTimer = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    statClusterTimer,
			Help:    "time spent linking a cluster after its nodes started",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		}, clusterLabels)
	r.MustRegister(starts, startErrs, stops, active, readyTimer, clusterTimer)
}

func metrics() {
	http.Handle("/metrics", promhttp.Handler())
}

// ProcessStarted counts one started process.
func ProcessStarted(dist string) {
	if starts == nil {
		return
	}
	starts.WithLabelValues(dist).Inc()
	active.WithLabelValues(dist).Inc()
}

// ProcessStartFailed counts one failed start.
func ProcessStartFailed(dist, reason string) {
	if startErrs == nil {
		return
	}
	startErrs.WithLabelValues(dist, reason).Inc()
}

// ProcessStopped counts one stopped process.
func ProcessStopped(dist string) {
	if stops == nil {
		return
	}
	stops.WithLabelValues(dist).Inc()
	active.WithLabelValues(dist).Dec()
}

// ReadyTime observes readiness latency in seconds.
func ReadyTime(dist string, seconds float64) {
	if readyTimer == nil {
		return
	}
	readyTimer.WithLabelValues(dist).Observe(seconds)
}

// ClusterLinkTime observes cluster linking duration in seconds.
func ClusterLinkTime(topology string, seconds float64) {
	if clusterTimer == nil {
		return
	}
	clusterTimer.WithLabelValues(topology).Observe(seconds)
}

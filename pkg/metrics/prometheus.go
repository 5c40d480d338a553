package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5,
}

type timer struct {
	h     prometheus.Observer
	start time.Time
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

type promMetrics struct {
	routed     *prometheus.CounterVec
	failed     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	servers    prometheus.Gauge
	ringPoints prometheus.Gauge
}

// NewPrometheus registers router metrics on reg.
func NewPrometheus(reg prometheus.Registerer) RouterMetrics {
	m := &promMetrics{
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvring_commands_routed_total",
			Help: "Total number of commands dispatched by the router",
		}, []string{"route", "command"}),

		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvring_commands_failed_total",
			Help: "Total number of commands that returned an error",
		}, []string{"route"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kvring_command_duration_seconds",
			Help:    "Command latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"route"}),

		servers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvring_routable_servers",
			Help: "Number of servers on the hash ring",
		}),

		ringPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvring_ring_points",
			Help: "Number of positions on the hash ring",
		}),
	}

	reg.MustRegister(m.routed, m.failed, m.duration, m.servers, m.ringPoints)
	return m
}

func (m *promMetrics) CommandRouted(route, command string) {
	m.routed.WithLabelValues(route, strings.ToUpper(command)).Inc()
}

func (m *promMetrics) CommandFailed(route string) {
	m.failed.WithLabelValues(route).Inc()
}

func (m *promMetrics) CommandDuration(route string) Timer {
	return &timer{h: m.duration.WithLabelValues(route), start: time.Now()}
}

func (m *promMetrics) Topology(servers, ringPoints int) {
	m.servers.Set(float64(servers))
	m.ringPoints.Set(float64(ringPoints))
}

package dsu

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a Server reports through:
// plain exported collector fields built with prometheus.New* and
// registered in the constructor.
type Metrics struct {
	datagramsReceived prometheus.Counter
	datagramsDropped  prometheus.Counter
	framesSent        prometheus.Counter
	sendErrors        prometheus.Counter
	activeDevices     prometheus.Gauge
	activeClients     prometheus.Gauge
	packetCounters    prometheus.Gauge
	sweepDuration     prometheus.Histogram
	sweepExpired      prometheus.Counter
}

// NewMetrics builds and registers a Metrics against reg. Passing a
// dedicated *prometheus.Registry (rather than
// prometheus.DefaultRegisterer) keeps tests free of global registration
// conflicts.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		datagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsu_datagrams_received_total",
			Help: "Inbound datagrams that passed header validation.",
		}),
		datagramsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsu_datagrams_dropped_total",
			Help: "Inbound datagrams dropped for failing header validation.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsu_frames_sent_total",
			Help: "DATA frames successfully sent to a subscribed client.",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsu_send_errors_total",
			Help: "Outbound datagram send failures.",
		}),
		activeDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dsu_active_devices",
			Help: "Devices currently registered with the server.",
		}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dsu_active_clients",
			Help: "Distinct (client, device) subscriptions currently live.",
		}),
		packetCounters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dsu_packet_counters",
			Help: "Client ids with a live per-client packet counter.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsu_sweep_duration_seconds",
			Help:    "Wall-clock time spent in one subscription sweep pass.",
			Buckets: prometheus.DefBuckets,
		}),
		sweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dsu_sweep_expired_clients_total",
			Help: "Subscriptions removed for exceeding the request timeout.",
		}),
	}
	reg.MustRegister(
		m.datagramsReceived,
		m.datagramsDropped,
		m.framesSent,
		m.sendErrors,
		m.activeDevices,
		m.activeClients,
		m.packetCounters,
		m.sweepDuration,
		m.sweepExpired,
	)
	return m
}

// observeSweep records the outcome of one Sweep pass.
func (m *Metrics) observeSweep(d time.Duration, result sweepResult) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
	if result.ExpiredClients > 0 {
		m.sweepExpired.Add(float64(result.ExpiredClients))
	}
}

// Package metrics exposes Prometheus collectors for the download service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seriesgrab"

// Poll tick outcomes.
const (
	PollIdle    = "idle"
	PollApplied = "applied"
	PollSkipped = "skipped" // previous tick still in flight
	PollFailed  = "failed"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	pollTicks       *prometheus.CounterVec
	registryJobs    prometheus.Gauge
	notifications   *prometheus.CounterVec
	rpcCalls        *prometheus.CounterVec
	daemonAvailable prometheus.Gauge
	enqueued        prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Poll ticks by outcome.",
		}, []string{"outcome"}),
		registryJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_jobs",
			Help:      "Downloads currently tracked in the registry.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications emitted by kind.",
		}, []string{"kind"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Daemon RPC calls by method and outcome.",
		}, []string{"method", "outcome"}),
		daemonAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_available",
			Help:      "1 while the download daemon is running.",
		}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_enqueued_total",
			Help:      "Downloads accepted by the daemon.",
		}),
	}

	reg.MustRegister(
		m.pollTicks,
		m.registryJobs,
		m.notifications,
		m.rpcCalls,
		m.daemonAvailable,
		m.enqueued,
	)
	return m
}

// PollTick counts a poll tick.
func (m *Metrics) PollTick(outcome string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(outcome).Inc()
}

// RegistrySize records the registry size.
func (m *Metrics) RegistrySize(n int) {
	if m == nil {
		return
	}
	m.registryJobs.Set(float64(n))
}

// Notification counts an emitted notification.
func (m *Metrics) Notification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// RPCCall counts a daemon call.
func (m *Metrics) RPCCall(method string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.rpcCalls.WithLabelValues(method, outcome).Inc()
}

// DaemonAvailable records daemon availability.
func (m *Metrics) DaemonAvailable(up bool) {
	if m == nil {
		return
	}
	if up {
		m.daemonAvailable.Set(1)
	} else {
		m.daemonAvailable.Set(0)
	}
}

// Enqueued counts a download accepted by the daemon.
func (m *Metrics) Enqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

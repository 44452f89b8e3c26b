package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PollTick(PollApplied)
	m.PollTick(PollApplied)
	m.PollTick(PollSkipped)
	m.Notification("failed")
	m.RPCCall("aria2.addUri", nil)
	m.RPCCall("aria2.addUri", errors.New("boom"))
	m.Enqueued()

	if got := testutil.ToFloat64(m.pollTicks.WithLabelValues(PollApplied)); got != 2 {
		t.Errorf("applied ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.pollTicks.WithLabelValues(PollSkipped)); got != 1 {
		t.Errorf("skipped ticks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed notifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rpcCalls.WithLabelValues("aria2.addUri", "error")); got != 1 {
		t.Errorf("rpc errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.enqueued); got != 1 {
		t.Errorf("enqueued = %v, want 1", got)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RegistrySize(4)
	m.DaemonAvailable(true)
	if got := testutil.ToFloat64(m.registryJobs); got != 4 {
		t.Errorf("registry jobs = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.daemonAvailable); got != 1 {
		t.Errorf("daemon available = %v, want 1", got)
	}

	m.DaemonAvailable(false)
	if got := testutil.ToFloat64(m.daemonAvailable); got != 0 {
		t.Errorf("daemon available = %v, want 0", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.PollTick(PollFailed)
	m.RegistrySize(1)
	m.Notification("queued")
	m.RPCCall("aria2.pause", nil)
	m.DaemonAvailable(true)
	m.Enqueued()
}

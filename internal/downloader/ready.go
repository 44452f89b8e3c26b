package downloader

import (
	"context"
	"time"

	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

// readinessBackoff spaces the probes sent to a freshly spawned daemon.
type readinessBackoff struct {
	initial time.Duration
	max     time.Duration
}

var defaultReadiness = readinessBackoff{
	initial: 100 * time.Millisecond,
	max:     2 * time.Second,
}

// waitReady probes the daemon until it answers. Only transport errors mean
// "not listening yet"; a daemon-reported error such as a rejected secret
// is returned at once. ctx bounds the total wait.
func waitReady(ctx context.Context, b readinessBackoff, probe func(ctx context.Context) error) error {
	delay := b.initial
	for {
		err := probe(ctx)
		if err == nil || !aria2.IsTransport(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay = min(delay*2, b.max)
	}
}

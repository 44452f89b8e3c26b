package downloader

import (
	"context"
	"errors"
)

// ErrStopped is returned when work is submitted after the downloader stopped.
var ErrStopped = errors.New("downloader stopped")

// lane runs registry mutations one at a time on a single goroutine.
// Operations must not submit to the lane themselves.
type lane struct {
	ops  chan func()
	done <-chan struct{}
}

func newLane(done <-chan struct{}) *lane {
	return &lane{
		ops:  make(chan func()),
		done: done,
	}
}

func (l *lane) run() {
	for {
		select {
		case op := <-l.ops:
			op()
		case <-l.done:
			return
		}
	}
}

// do runs op on the lane and waits for it to finish.
func (l *lane) do(ctx context.Context, op func()) error {
	finished := make(chan struct{})
	select {
	case l.ops <- func() { op(); close(finished) }:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

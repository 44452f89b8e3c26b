// Package downloader drives the aria2 daemon: it turns download requests
// into daemon jobs, reconciles daemon state into the registry and reports
// outcomes as notifications.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/internal/metrics"
	"github.com/iconidentify/seriesgrab/internal/repository"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

// ErrShutdownTimeout is returned when background work doesn't stop within timeout.
var ErrShutdownTimeout = errors.New("downloader shutdown timed out")

// Config holds orchestrator configuration.
type Config struct {
	DownloadsDir   string
	AppFolder      string
	MinFreeBytes   int64
	PollInterval   time.Duration
	StartupTimeout time.Duration
	PurchaseURL    string
}

// Root returns <downloads>/<app folder>.
func (c Config) Root() string {
	if c.DownloadsDir == "" {
		return ""
	}
	return filepath.Join(c.DownloadsDir, c.AppFolder)
}

// Dependencies are the collaborators of a Downloader. Supervisor is nil when
// the daemon is managed elsewhere; Account and Positions are optional.
type Dependencies struct {
	RPC        RPC
	Supervisor Supervisor
	Registry   repository.DownloadRegistry
	Resolver   MediaResolver
	Account    AccountSync
	Positions  repository.PositionStore
	Notifier   domain.Notifier
	Metrics    *metrics.Metrics
}

// Downloader orchestrates downloads through the daemon.
type Downloader struct {
	cfg        Config
	rpc        RPC
	supervisor Supervisor
	registry   repository.DownloadRegistry
	resolver   MediaResolver
	account    AccountSync
	positions  repository.PositionStore
	notifier   domain.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger

	lane *lane

	polling   atomic.Bool
	available atomic.Bool

	watchMu  sync.Mutex
	watchers []chan bool

	startOnce sync.Once
	started   atomic.Bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a Downloader. Nothing runs until Start.
func New(cfg Config, deps Dependencies, logger *slog.Logger) *Downloader {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Downloader{
		cfg:        cfg,
		rpc:        deps.RPC,
		supervisor: deps.Supervisor,
		registry:   deps.Registry,
		resolver:   deps.Resolver,
		account:    deps.Account,
		positions:  deps.Positions,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     logger.With("component", "downloader"),
		lane:       newLane(ctx.Done()),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns the daemon when supervised, waits until it answers RPC calls,
// then starts the mutation lane and the poller.
func (d *Downloader) Start(ctx context.Context) error {
	var err error
	d.startOnce.Do(func() { err = d.start(ctx) })
	return err
}

func (d *Downloader) start(ctx context.Context) error {
	if d.supervisor != nil {
		states := d.supervisor.Watch()
		if err := d.supervisor.Start(); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}
		d.wg.Add(1)
		go d.watchSupervisor(states)
	}

	readyCtx, cancel := context.WithTimeout(ctx, d.cfg.StartupTimeout)
	defer cancel()
	err := waitReady(readyCtx, defaultReadiness, func(ctx context.Context) error {
		_, err := d.rpc.GetGlobalStat(ctx)
		return err
	})
	if err != nil {
		if d.supervisor != nil {
			_ = d.supervisor.Terminate(5 * time.Second)
		}
		return fmt.Errorf("%w: %v", domain.ErrDaemonUnavailable, err)
	}

	d.setAvailable(true)
	d.started.Store(true)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.lane.run()
	}()
	go d.pollLoop()

	d.logger.Info("downloader started", "root", d.cfg.Root(), "poll_interval", d.cfg.PollInterval)
	return nil
}

func (d *Downloader) watchSupervisor(states <-chan bool) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case running := <-states:
			if !running {
				d.logger.Warn("download daemon exited")
			}
			d.setAvailable(running && d.started.Load())
		}
	}
}

// Available reports whether the daemon is up and accepting work.
func (d *Downloader) Available() bool {
	return d.available.Load()
}

func (d *Downloader) setAvailable(up bool) {
	if d.available.Swap(up) == up {
		return
	}
	d.metrics.DaemonAvailable(up)

	d.watchMu.Lock()
	defer d.watchMu.Unlock()
	for _, ch := range d.watchers {
		select {
		case ch <- up:
		default:
		}
	}
}

// Watch returns a channel that receives availability changes.
func (d *Downloader) Watch() <-chan bool {
	d.watchMu.Lock()
	defer d.watchMu.Unlock()

	ch := make(chan bool, 4)
	d.watchers = append(d.watchers, ch)
	return ch
}

// Stop halts the poller, the lane and any background work.
func (d *Downloader) Stop(timeout time.Duration) error {
	d.logger.Info("stopping downloader")
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// Terminate stops the downloader and then the supervised daemon.
func (d *Downloader) Terminate(timeout time.Duration) error {
	stopErr := d.Stop(timeout)
	d.setAvailable(false)
	if d.supervisor != nil {
		if err := d.supervisor.Terminate(timeout); err != nil {
			return fmt.Errorf("terminate daemon: %w", err)
		}
	}
	return stopErr
}

// Jobs returns a snapshot of the registry.
func (d *Downloader) Jobs(ctx context.Context) ([]*domain.DownloadJob, error) {
	return d.registry.List(ctx)
}

// Job returns a snapshot of one registry entry.
func (d *Downloader) Job(ctx context.Context, gid string) (*domain.DownloadJob, error) {
	return d.registry.Get(ctx, gid)
}

// spawn runs fn in a tracked goroutine bound to the downloader's lifetime.
func (d *Downloader) spawn(fn func(ctx context.Context)) {
	if d.ctx.Err() != nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(d.ctx)
	}()
}

// mutate runs op on the lane and refreshes the registry gauge.
func (d *Downloader) mutate(ctx context.Context, op func()) error {
	if err := d.lane.do(ctx, op); err != nil {
		return err
	}
	if stats, err := d.registry.Stats(ctx); err == nil {
		d.metrics.RegistrySize(stats.Total)
	}
	return nil
}

// clearResult forgets a stopped download on the daemon side.
func (d *Downloader) clearResult(gid string) {
	d.spawn(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		err := d.rpc.RemoveDownloadResult(ctx, gid)
		d.metrics.RPCCall(aria2.MethodRemoveDownloadResult, err)
		if err != nil {
			d.logger.Debug("remove download result failed", "gid", gid, "error", err)
		}
	})
}

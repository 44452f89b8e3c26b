package aria2

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ErrDaemonRunning is returned when Start is called twice.
var ErrDaemonRunning = errors.New("aria2 daemon already running")

// DaemonConfig describes how the daemon process is launched.
type DaemonConfig struct {
	Binary        string
	Port          int
	Secret        string
	MaxConcurrent int
	UserAgent     string
	HostPID       int // daemon exits when this process dies
}

// Endpoint returns the local JSON-RPC URL for the configured port.
func (c DaemonConfig) Endpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d/jsonrpc", c.Port)
}

// Args returns the daemon command line, without the binary.
func (c DaemonConfig) Args() []string {
	args := []string{
		"--enable-rpc=true",
		"--rpc-listen-all=false",
		"--rpc-listen-port=" + strconv.Itoa(c.Port),
		"--rpc-secret=" + c.Secret,
		"--max-concurrent-downloads=" + strconv.Itoa(c.MaxConcurrent),
		"--allow-overwrite=true",
	}
	if c.HostPID > 0 {
		args = append(args, "--stop-with-process="+strconv.Itoa(c.HostPID))
	}
	if c.UserAgent != "" {
		args = append(args, "--user-agent="+c.UserAgent)
	}
	return args
}

// Daemon supervises a single aria2c process.
type Daemon struct {
	cfg    DaemonConfig
	logger *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	running  bool
	done     chan struct{}
	watchers []chan bool
}

// NewDaemon creates a supervisor; the process is not started yet.
func NewDaemon(cfg DaemonConfig, logger *slog.Logger) *Daemon {
	if cfg.Binary == "" {
		cfg.Binary = "aria2c"
	}
	return &Daemon{
		cfg:    cfg,
		logger: logger.With("component", "aria2_daemon"),
	}
}

// Config returns the launch configuration.
func (d *Daemon) Config() DaemonConfig {
	return d.cfg
}

// Start spawns the daemon. Its exit is observed in the background and
// reported through Watch instead of being treated as fatal.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrDaemonRunning
	}

	path, err := exec.LookPath(d.cfg.Binary)
	if err != nil {
		return fmt.Errorf("aria2c not found: %w", err)
	}

	cmd := exec.Command(path, d.cfg.Args()...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start aria2c: %w", err)
	}

	d.cmd = cmd
	d.done = make(chan struct{})
	d.setRunningLocked(true)
	d.logger.Info("aria2 daemon started", "pid", cmd.Process.Pid, "port", d.cfg.Port)

	go d.wait(cmd, d.done)
	return nil
}

func (d *Daemon) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	d.mu.Lock()
	d.setRunningLocked(false)
	d.mu.Unlock()
	close(done)

	if err != nil {
		d.logger.Warn("aria2 daemon exited", "error", err)
	} else {
		d.logger.Info("aria2 daemon exited")
	}
}

func (d *Daemon) setRunningLocked(running bool) {
	d.running = running
	for _, ch := range d.watchers {
		select {
		case ch <- running:
		default:
			// Watcher is behind; it will read Running() on its next receive.
		}
	}
}

// Running reports whether the daemon process is alive.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Watch returns a channel that receives the running state on every change.
func (d *Daemon) Watch() <-chan bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan bool, 4)
	d.watchers = append(d.watchers, ch)
	return ch
}

// Terminate asks the daemon to exit and kills it if it has not stopped
// within the timeout.
func (d *Daemon) Terminate(timeout time.Duration) error {
	d.mu.Lock()
	cmd, done, running := d.cmd, d.done, d.running
	d.mu.Unlock()

	if !running || cmd == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		// Interrupt is not supported everywhere (windows).
		return cmd.Process.Kill()
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		d.logger.Warn("aria2 daemon did not exit in time, killing")
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill aria2c: %w", err)
		}
		<-done
		return nil
	}
}

package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/seriesgrab/internal/repository"
)

var startTime = time.Now()

// Availability reports whether the download daemon accepts work.
type Availability interface {
	Available() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	daemon       Availability
	registry     repository.DownloadRegistry
	downloadsDir string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(daemon Availability, registry repository.DownloadRegistry, downloadsDir string) *HealthHandler {
	return &HealthHandler{
		daemon:       daemon,
		registry:     registry,
		downloadsDir: downloadsDir,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Daemon    string         `json:"daemon,omitempty"`
	Downloads *DownloadStats `json:"downloads,omitempty"`
}

// DownloadStats counts registry entries by status.
type DownloadStats struct {
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
	Paused  int `json:"paused"`
	Total   int `json:"total"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. It fails while the download daemon is down.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)
	if !h.daemon.Available() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: now,
			Daemon:    "unavailable",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.registry.Stats(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "error", Timestamp: now})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now,
		Daemon:    "available",
		Downloads: &DownloadStats{
			Active:  stats.Active,
			Waiting: stats.Waiting,
			Paused:  stats.Paused,
			Total:   stats.Total,
		},
	})
}

// SystemStats contains process and disk statistics.
type SystemStats struct {
	Uptime         int64   `json:"uptime_seconds"`
	UptimeHuman    string  `json:"uptime_human"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	MemSysMB       int64   `json:"mem_sys_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	NumCPU         int     `json:"num_cpu"`
	CPUPercent     float64 `json:"cpu_percent"`
	DiskFreeBytes  int64   `json:"disk_free_bytes"`
	DiskTotalBytes int64   `json:"disk_total_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
	DiskFreeHuman  string  `json:"disk_free_human"`
	DownloadsPath  string  `json:"downloads_path"`
}

// Stats handles GET /api/v1/stats
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		CPUPercent:    getCPUUsage(),
		DownloadsPath: h.downloadsDir,
	}
	if h.downloadsDir != "" {
		total, free, _, usedPct := getDiskStats(h.downloadsDir)
		stats.DiskTotalBytes = total
		stats.DiskFreeBytes = free
		stats.DiskUsedPct = usedPct
		stats.DiskFreeHuman = humanize.IBytes(uint64(free))
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

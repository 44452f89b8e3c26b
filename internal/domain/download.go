package domain

import (
	"path/filepath"
	"time"
)

// DownloadStatus mirrors the lifecycle states the download daemon reports.
type DownloadStatus string

const (
	DownloadStatusActive   DownloadStatus = "active"
	DownloadStatusWaiting  DownloadStatus = "waiting"
	DownloadStatusPaused   DownloadStatus = "paused"
	DownloadStatusError    DownloadStatus = "error"
	DownloadStatusComplete DownloadStatus = "complete"
	DownloadStatusRemoved  DownloadStatus = "removed"
)

// Terminal returns true for statuses after which a job leaves the registry.
func (s DownloadStatus) Terminal() bool {
	switch s {
	case DownloadStatusComplete, DownloadStatusError, DownloadStatusRemoved:
		return true
	}
	return false
}

// Valid returns true if s is a known status.
func (s DownloadStatus) Valid() bool {
	switch s {
	case DownloadStatusActive, DownloadStatusWaiting, DownloadStatusPaused,
		DownloadStatusError, DownloadStatusComplete, DownloadStatusRemoved:
		return true
	}
	return false
}

// JobRequest is a download intent after naming and URL resolution.
type JobRequest struct {
	Intent      DownloadRequest `json:"intent"`
	Quality     string          `json:"quality"`
	URL         string          `json:"url"`
	Destination string          `json:"destination"`
	DisplayName string          `json:"display_name"`
	Subtitle    *SubtitleTrack  `json:"subtitle,omitempty"`
	Retry       RetryableIntent `json:"retry"`
}

// Dir returns the directory the file is written to.
func (r JobRequest) Dir() string {
	dir, _ := splitPath(r.Destination)
	return dir
}

// Filename returns the base name of the destination file.
func (r JobRequest) Filename() string {
	_, file := splitPath(r.Destination)
	return file
}

func splitPath(p string) (string, string) {
	return filepath.Dir(p), filepath.Base(p)
}

// DownloadJob is one daemon download known to the registry.
type DownloadJob struct {
	ID               string         `json:"gid"`
	Request          JobRequest     `json:"request"`
	Status           DownloadStatus `json:"status"`
	TotalBytes       int64          `json:"total_bytes"`
	CompletedBytes   int64          `json:"completed_bytes"`
	SpeedBytesPerSec int64          `json:"speed_bytes_per_sec"`
	LastErrorCode    *int           `json:"last_error_code,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewDownloadJob creates a job for a gid the daemon has just confirmed.
// The daemon queues new downloads, so the job starts out waiting.
func NewDownloadJob(gid string, req JobRequest) *DownloadJob {
	now := time.Now()
	return &DownloadJob{
		ID:        gid,
		Request:   req,
		Status:    DownloadStatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Progress is a daemon status sample for a single job.
type Progress struct {
	GID              string
	Status           DownloadStatus
	TotalBytes       int64
	CompletedBytes   int64
	SpeedBytesPerSec int64
	ErrorCode        *int
}

// ApplyProgress copies daemon counters into the job.
func (j *DownloadJob) ApplyProgress(p Progress) {
	j.Status = p.Status
	j.TotalBytes = p.TotalBytes
	j.CompletedBytes = p.CompletedBytes
	j.SpeedBytesPerSec = p.SpeedBytesPerSec
	if p.Status == DownloadStatusError {
		j.LastErrorCode = p.ErrorCode
	} else {
		j.LastErrorCode = nil
	}
	j.UpdatedAt = time.Now()
}

// MarkPaused moves an active or waiting job to paused.
// It returns false and leaves the job untouched for any other status.
func (j *DownloadJob) MarkPaused() bool {
	if j.Status != DownloadStatusActive && j.Status != DownloadStatusWaiting {
		return false
	}
	j.Status = DownloadStatusPaused
	j.UpdatedAt = time.Now()
	return true
}

// MarkUnpaused moves a paused job back to waiting. Other statuses are left alone.
func (j *DownloadJob) MarkUnpaused() bool {
	if j.Status != DownloadStatusPaused {
		return false
	}
	j.Status = DownloadStatusWaiting
	j.UpdatedAt = time.Now()
	return true
}

// Percent returns completion in the range [0, 100].
func (j *DownloadJob) Percent() float64 {
	if j.TotalBytes <= 0 {
		return 0
	}
	pct := float64(j.CompletedBytes) / float64(j.TotalBytes) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

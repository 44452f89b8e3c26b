package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

// DownloadService is the part of the downloader the API drives.
type DownloadService interface {
	Submit(req domain.DownloadRequest)
	Jobs(ctx context.Context) ([]*domain.DownloadJob, error)
	Job(ctx context.Context, gid string) (*domain.DownloadJob, error)
	Pause(ctx context.Context, gid string) (*domain.DownloadJob, error)
	Unpause(ctx context.Context, gid string) (*domain.DownloadJob, error)
	Remove(ctx context.Context, gid string) error
	ChangeMaxConcurrency(ctx context.Context, n int) error
}

// DownloadHandler handles download HTTP requests.
type DownloadHandler struct {
	downloads DownloadService
	logger    *slog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(downloads DownloadService, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloads: downloads,
		logger:    logger,
	}
}

// JobResponse represents a download in API responses.
type JobResponse struct {
	GID              string    `json:"gid"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	Quality          string    `json:"quality"`
	Destination      string    `json:"destination"`
	TotalBytes       int64     `json:"total_bytes"`
	CompletedBytes   int64     `json:"completed_bytes"`
	SpeedBytesPerSec int64     `json:"speed_bytes_per_sec"`
	Percent          float64   `json:"percent"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toJobResponse(job *domain.DownloadJob) JobResponse {
	resp := JobResponse{
		GID:              job.ID,
		Name:             job.Request.DisplayName,
		Status:           string(job.Status),
		Quality:          job.Request.Quality,
		Destination:      job.Request.Destination,
		TotalBytes:       job.TotalBytes,
		CompletedBytes:   job.CompletedBytes,
		SpeedBytesPerSec: job.SpeedBytesPerSec,
		Percent:          job.Percent(),
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
	if job.LastErrorCode != nil {
		code := aria2.ErrorCode(*job.LastErrorCode)
		resp.Error = aria2.DescribeErrorCode(&code)
	}
	return resp
}

// JobListResponse contains the registry snapshot.
type JobListResponse struct {
	Downloads []JobResponse `json:"downloads"`
	Total     int           `json:"total"`
}

// Submit handles POST /api/v1/downloads. The request is processed in the
// background; its outcome arrives as notifications.
func (h *DownloadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.downloads.Submit(req)
	h.logger.Info("download submitted", "media_id", req.Media.ID, "all", req.All)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "download submitted",
	})
}

// List handles GET /api/v1/downloads
func (h *DownloadHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.downloads.Jobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list downloads", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list downloads")
		return
	}

	resp := JobListResponse{
		Downloads: make([]JobResponse, 0, len(jobs)),
		Total:     len(jobs),
	}
	for _, job := range jobs {
		resp.Downloads = append(resp.Downloads, toJobResponse(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/downloads/{gid}
func (h *DownloadHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.downloads.Job(r.Context(), chi.URLParam(r, "gid"))
	if err != nil {
		h.writeDownloadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// Pause handles POST /api/v1/downloads/{gid}/pause
func (h *DownloadHandler) Pause(w http.ResponseWriter, r *http.Request) {
	job, err := h.downloads.Pause(r.Context(), chi.URLParam(r, "gid"))
	if err != nil {
		h.writeDownloadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// Unpause handles POST /api/v1/downloads/{gid}/unpause
func (h *DownloadHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	job, err := h.downloads.Unpause(r.Context(), chi.URLParam(r, "gid"))
	if err != nil {
		h.writeDownloadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// Remove handles DELETE /api/v1/downloads/{gid}
func (h *DownloadHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.downloads.Remove(r.Context(), chi.URLParam(r, "gid")); err != nil {
		h.writeDownloadError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConcurrencyRequest is the body of PUT /api/v1/concurrency.
type ConcurrencyRequest struct {
	MaxConcurrent int `json:"max_concurrent"`
}

// SetConcurrency handles PUT /api/v1/concurrency
func (h *DownloadHandler) SetConcurrency(w http.ResponseWriter, r *http.Request) {
	var req ConcurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaxConcurrent < 1 {
		writeError(w, http.StatusBadRequest, "max_concurrent must be at least 1")
		return
	}
	if err := h.downloads.ChangeMaxConcurrency(r.Context(), req.MaxConcurrent); err != nil {
		h.writeDownloadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *DownloadHandler) writeDownloadError(w http.ResponseWriter, err error) {
	var rpcErr *aria2.RPCError
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "download not found")
	case errors.Is(err, domain.ErrNotConfirmed):
		writeError(w, http.StatusConflict, "daemon did not confirm the operation")
	case errors.As(err, &rpcErr):
		writeError(w, http.StatusBadGateway, rpcErr.Message)
	case aria2.IsTransport(err):
		writeError(w, http.StatusServiceUnavailable, "download daemon unavailable")
	default:
		h.logger.Error("download operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "download operation failed")
	}
}

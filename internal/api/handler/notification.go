package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/internal/downloader"
	"github.com/iconidentify/seriesgrab/internal/service"
)

// NotificationStore is the notification service as seen by the API.
type NotificationStore interface {
	Get(ctx context.Context, id domain.NotificationID) (*domain.Notification, error)
	Query(ctx context.Context, query domain.NotificationQuery) (*domain.NotificationQueryResult, error)
	QueryHistory(ctx context.Context, query domain.NotificationQuery) (*domain.NotificationQueryResult, error)
	Subscribe() (uint64, <-chan domain.Notification)
	Unsubscribe(id uint64)
	Stats() service.NotificationStats
}

// ActionRunner performs notification actions.
type ActionRunner interface {
	Act(ctx context.Context, n domain.Notification) (*downloader.ActionResult, error)
}

// NotificationHandler handles notification HTTP requests.
type NotificationHandler struct {
	store     NotificationStore
	actions   ActionRunner
	logger    *slog.Logger
	keepalive time.Duration
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(store NotificationStore, actions ActionRunner, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		store:     store,
		actions:   actions,
		logger:    logger,
		keepalive: 30 * time.Second,
	}
}

// NotificationListResponse contains a page of notifications.
type NotificationListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int                   `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
	HasMore       bool                  `json:"has_more"`
}

// List handles GET /api/v1/notifications
// Query parameters:
//   - kind: queued, succeeded, failed, canceled, premium
//   - action: open_file, cancel, retry, purchase
//   - start_time, end_time: RFC3339 bounds
//   - limit (default 50, max 200), offset
//   - historical: "true" reads the sqlite history instead of the ring buffer
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.NotificationQuery{Limit: 50}

	if parsed, err := strconv.Atoi(q.Get("limit")); err == nil && parsed > 0 {
		query.Limit = min(parsed, 200)
	}
	if parsed, err := strconv.Atoi(q.Get("offset")); err == nil && parsed >= 0 {
		query.Offset = parsed
	}
	if k := q.Get("kind"); k != "" {
		kind := domain.NotificationKind(k)
		query.Filter.Kind = &kind
	}
	if a := q.Get("action"); a != "" {
		action := domain.ActionCategory(a)
		query.Filter.Action = &action
	}
	if t, err := time.Parse(time.RFC3339, q.Get("start_time")); err == nil {
		query.Filter.StartTime = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("end_time")); err == nil {
		query.Filter.EndTime = &t
	}

	var (
		result *domain.NotificationQueryResult
		err    error
	)
	if q.Get("historical") == "true" {
		result, err = h.store.QueryHistory(r.Context(), query)
	} else {
		result, err = h.store.Query(r.Context(), query)
	}
	if err != nil {
		h.logger.Error("failed to query notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query notifications")
		return
	}

	writeJSON(w, http.StatusOK, NotificationListResponse{
		Notifications: result.Notifications,
		Total:         result.Total,
		Limit:         query.Limit,
		Offset:        query.Offset,
		HasMore:       result.HasMore,
	})
}

// Stats handles GET /api/v1/notifications/stats
func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats())
}

// Stream handles GET /api/v1/notifications/stream with server-sent events.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := h.store.Subscribe()
	defer h.store.Unsubscribe(subID)
	h.logger.Debug("notification stream opened", "subscriber_id", subID)

	fmt.Fprintf(w, "event: connected\ndata: {\"subscriber_id\": %d}\n\n", subID)
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("notification stream closed", "subscriber_id", subID)
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.logger.Warn("failed to serialize notification", "notification_id", n.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// Action handles POST /api/v1/notifications/{id}/action
func (h *NotificationHandler) Action(w http.ResponseWriter, r *http.Request) {
	id := domain.NotificationID(chi.URLParam(r, "id"))

	n, err := h.store.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotificationNotFound) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load notification", "notification_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load notification")
		return
	}

	result, err := h.actions.Act(r.Context(), *n)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoAction):
		writeError(w, http.StatusConflict, "notification has no action")
		return
	case errors.Is(err, domain.ErrInvalidPayload):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "download not found")
		return
	default:
		h.logger.Warn("notification action failed", "notification_id", id, "action", n.Action, "error", err)
		writeError(w, http.StatusBadGateway, "action failed")
		return
	}

	status := http.StatusOK
	if result.Action == domain.ActionRetry {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

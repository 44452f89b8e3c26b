package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/internal/metrics"
	"github.com/iconidentify/seriesgrab/internal/repository"
)

const notificationsTable = "notifications"

const notificationsSchema = `
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		action TEXT,
		payload TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_timestamp ON notifications(timestamp);
	CREATE INDEX IF NOT EXISTS idx_notifications_kind ON notifications(kind);
`

// NotificationServiceConfig configures the notification service.
type NotificationServiceConfig struct {
	// RingBufferSize is the number of notifications kept in memory.
	// Default: 500
	RingBufferSize int

	// PersistToSQLite enables SQLite history.
	PersistToSQLite bool

	// SQLitePath is the path to the SQLite database file.
	SQLitePath string

	// RetentionDays is how long history is kept (0 = forever).
	RetentionDays int
}

// NotificationService records notifications in a ring buffer, optionally in
// SQLite, and fans them out to live subscribers.
type NotificationService struct {
	cfg     NotificationServiceConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	buffer []domain.Notification
	head   int
	count  int

	db *sql.DB

	subMu       sync.RWMutex
	subscribers map[uint64]chan domain.Notification
	subSeq      uint64
}

// NewNotificationService creates a new notification service.
func NewNotificationService(cfg NotificationServiceConfig, m *metrics.Metrics, logger *slog.Logger) (*NotificationService, error) {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 500
	}

	svc := &NotificationService{
		cfg:         cfg,
		logger:      logger.With("component", "notifications"),
		metrics:     m,
		buffer:      make([]domain.Notification, cfg.RingBufferSize),
		subscribers: make(map[uint64]chan domain.Notification),
	}

	if cfg.PersistToSQLite && cfg.SQLitePath != "" {
		db, err := repository.OpenSQLite(cfg.SQLitePath, notificationsSchema)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		svc.db = db
		svc.logger.Info("notification history enabled", "path", cfg.SQLitePath)
	}

	return svc, nil
}

// Close closes the history database and all subscriber channels.
func (s *NotificationService) Close() error {
	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Notify records a notification and delivers it to subscribers.
func (s *NotificationService) Notify(n domain.Notification) {
	if n.ID == "" {
		n.ID = domain.NotificationID(uuid.NewString())
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.buffer[s.head] = n
	s.head = (s.head + 1) % s.cfg.RingBufferSize
	if s.count < s.cfg.RingBufferSize {
		s.count++
	}
	s.mu.Unlock()

	if s.db != nil {
		s.persist(n)
	}

	s.notifySubscribers(n)
	s.metrics.Notification(string(n.Kind))

	level := slog.LevelInfo
	if n.Kind == domain.NotificationFailed {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "notification",
		"notification_id", n.ID,
		"kind", n.Kind,
		"title", n.Title,
		"action", n.Action,
	)
}

func (s *NotificationService) persist(n domain.Notification) {
	query := sq.Insert(notificationsTable).
		Columns("id", "timestamp", "kind", "title", "body", "action", "payload").
		Values(string(n.ID), n.Timestamp.UTC(), string(n.Kind), n.Title, n.Body, string(n.Action), string(n.Payload)).
		RunWith(s.db)

	if _, err := query.Exec(); err != nil {
		s.logger.Warn("failed to persist notification", "notification_id", n.ID, "error", err)
	}
}

// Get returns a notification by id, looking in memory before history.
func (s *NotificationService) Get(ctx context.Context, id domain.NotificationID) (*domain.Notification, error) {
	s.mu.RLock()
	for i := 0; i < s.count; i++ {
		n := s.buffer[s.index(i)]
		if n.ID == id {
			s.mu.RUnlock()
			return &n, nil
		}
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, domain.ErrNotificationNotFound
	}

	rows, err := s.selectHistory(ctx, sq.Select(historyColumns...).
		From(notificationsTable).
		Where(sq.Eq{"id": string(id)}))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotificationNotFound
	}
	return &rows[0], nil
}

// index maps the i-th most recent notification to its buffer slot.
func (s *NotificationService) index(i int) int {
	return (s.head - 1 - i + s.cfg.RingBufferSize) % s.cfg.RingBufferSize
}

// Query returns recent notifications matching the filter, newest first.
func (s *NotificationService) Query(ctx context.Context, query domain.NotificationQuery) (*domain.NotificationQueryResult, error) {
	normalizePage(&query)

	s.mu.RLock()
	matched := make([]domain.Notification, 0, s.count)
	for i := 0; i < s.count; i++ {
		n := s.buffer[s.index(i)]
		if n.ID == "" {
			continue
		}
		if matchesFilter(n, query.Filter) {
			matched = append(matched, n)
		}
	}
	s.mu.RUnlock()

	total := len(matched)
	start := query.Offset
	if start >= total {
		return &domain.NotificationQueryResult{
			Notifications: []domain.Notification{},
			Total:         total,
		}, nil
	}
	end := start + query.Limit
	if end > total {
		end = total
	}

	return &domain.NotificationQueryResult{
		Notifications: matched[start:end],
		Total:         total,
		HasMore:       end < total,
	}, nil
}

var historyColumns = []string{"id", "timestamp", "kind", "title", "body", "action", "payload"}

// QueryHistory queries notifications from SQLite.
func (s *NotificationService) QueryHistory(ctx context.Context, query domain.NotificationQuery) (*domain.NotificationQueryResult, error) {
	if s.db == nil {
		return &domain.NotificationQueryResult{Notifications: []domain.Notification{}}, nil
	}
	normalizePage(&query)

	where := sq.And{}
	if query.Filter.Kind != nil {
		where = append(where, sq.Eq{"kind": string(*query.Filter.Kind)})
	}
	if query.Filter.Action != nil {
		where = append(where, sq.Eq{"action": string(*query.Filter.Action)})
	}
	if query.Filter.StartTime != nil {
		where = append(where, sq.GtOrEq{"timestamp": query.Filter.StartTime.UTC()})
	}
	if query.Filter.EndTime != nil {
		where = append(where, sq.LtOrEq{"timestamp": query.Filter.EndTime.UTC()})
	}

	var total int
	if err := sq.Select("COUNT(*)").
		From(notificationsTable).
		Where(where).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&total); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	notifications, err := s.selectHistory(ctx, sq.Select(historyColumns...).
		From(notificationsTable).
		Where(where).
		OrderBy("timestamp DESC").
		Limit(uint64(query.Limit)).
		Offset(uint64(query.Offset)))
	if err != nil {
		return nil, err
	}

	return &domain.NotificationQueryResult{
		Notifications: notifications,
		Total:         total,
		HasMore:       query.Offset+len(notifications) < total,
	}, nil
}

func (s *NotificationService) selectHistory(ctx context.Context, query sq.SelectBuilder) ([]domain.Notification, error) {
	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	result := []domain.Notification{}
	for rows.Next() {
		var (
			n                     domain.Notification
			body, action, payload sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Timestamp, &n.Kind, &n.Title, &body, &action, &payload); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Body = body.String
		n.Action = domain.ActionCategory(action.String)
		if payload.String != "" {
			n.Payload = json.RawMessage(payload.String)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// Recent returns up to n most recent notifications.
func (s *NotificationService) Recent(n int) []domain.Notification {
	if n <= 0 {
		n = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > s.count {
		n = s.count
	}
	result := make([]domain.Notification, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, s.buffer[s.index(i)])
	}
	return result
}

func normalizePage(q *domain.NotificationQuery) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

func matchesFilter(n domain.Notification, filter domain.NotificationFilter) bool {
	if filter.Kind != nil && n.Kind != *filter.Kind {
		return false
	}
	if filter.Action != nil && n.Action != *filter.Action {
		return false
	}
	if filter.StartTime != nil && n.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && n.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}

// Subscribe registers a live subscriber. The caller must call Unsubscribe.
func (s *NotificationService) Subscribe() (uint64, <-chan domain.Notification) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subSeq++
	id := s.subSeq
	ch := make(chan domain.Notification, 100)
	s.subscribers[id] = ch

	s.logger.Debug("subscriber added", "subscriber_id", id, "total_subscribers", len(s.subscribers))
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *NotificationService) Unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
		s.logger.Debug("subscriber removed", "subscriber_id", id, "total_subscribers", len(s.subscribers))
	}
}

func (s *NotificationService) notifySubscribers(n domain.Notification) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			s.logger.Warn("subscriber buffer full, dropping notification", "subscriber_id", id, "notification_id", n.ID)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (s *NotificationService) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers)
}

// NotificationStats describes the service state.
type NotificationStats struct {
	BufferSize    int  `json:"buffer_size"`
	BufferUsed    int  `json:"buffer_used"`
	Subscribers   int  `json:"subscribers"`
	SQLiteEnabled bool `json:"sqlite_enabled"`
}

// Stats returns statistics about the notification service.
func (s *NotificationService) Stats() NotificationStats {
	s.mu.RLock()
	used := s.count
	s.mu.RUnlock()

	return NotificationStats{
		BufferSize:    s.cfg.RingBufferSize,
		BufferUsed:    used,
		Subscribers:   s.SubscriberCount(),
		SQLiteEnabled: s.db != nil,
	}
}

// CleanupOld removes history older than the retention period.
func (s *NotificationService) CleanupOld(ctx context.Context) error {
	if s.db == nil || s.cfg.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays).UTC()
	result, err := sq.Delete(notificationsTable).
		Where(sq.Lt{"timestamp": cutoff}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete old notifications: %w", err)
	}

	if deleted, _ := result.RowsAffected(); deleted > 0 {
		s.logger.Info("cleaned up old notifications", "deleted", deleted, "cutoff", cutoff)
	}
	return nil
}

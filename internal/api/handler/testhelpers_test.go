package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/internal/downloader"
	"github.com/iconidentify/seriesgrab/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withURLParams attaches chi route parameters to a request.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testJob(gid string, status domain.DownloadStatus) *domain.DownloadJob {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.DownloadJob{
		ID: gid,
		Request: domain.JobRequest{
			DisplayName: "Show, Season 1, Episode 2",
			Quality:     "720p",
			Destination: "/d/Show 720p/Season 1/Episode 2.mp4",
		},
		Status:         status,
		TotalBytes:     200,
		CompletedBytes: 50,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// mockDownloadService is a test implementation of DownloadService.
type mockDownloadService struct {
	mu          sync.Mutex
	jobs        map[string]*domain.DownloadJob
	submitted   []domain.DownloadRequest
	controlErr  error
	concurrency int
}

func newMockDownloadService() *mockDownloadService {
	return &mockDownloadService{jobs: make(map[string]*domain.DownloadJob)}
}

func (m *mockDownloadService) Submit(req domain.DownloadRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, req)
}

func (m *mockDownloadService) Jobs(ctx context.Context) ([]*domain.DownloadJob, error) {
	result := make([]*domain.DownloadJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		result = append(result, j)
	}
	return result, nil
}

func (m *mockDownloadService) Job(ctx context.Context, gid string) (*domain.DownloadJob, error) {
	if j, ok := m.jobs[gid]; ok {
		return j, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockDownloadService) transition(gid string, fn func(*domain.DownloadJob) bool) (*domain.DownloadJob, error) {
	if m.controlErr != nil {
		return nil, m.controlErr
	}
	j, ok := m.jobs[gid]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	fn(j)
	return j, nil
}

func (m *mockDownloadService) Pause(ctx context.Context, gid string) (*domain.DownloadJob, error) {
	return m.transition(gid, (*domain.DownloadJob).MarkPaused)
}

func (m *mockDownloadService) Unpause(ctx context.Context, gid string) (*domain.DownloadJob, error) {
	return m.transition(gid, (*domain.DownloadJob).MarkUnpaused)
}

func (m *mockDownloadService) Remove(ctx context.Context, gid string) error {
	if m.controlErr != nil {
		return m.controlErr
	}
	if _, ok := m.jobs[gid]; !ok {
		return domain.ErrJobNotFound
	}
	delete(m.jobs, gid)
	return nil
}

func (m *mockDownloadService) ChangeMaxConcurrency(ctx context.Context, n int) error {
	if m.controlErr != nil {
		return m.controlErr
	}
	m.concurrency = n
	return nil
}

// mockNotificationStore is a test implementation of NotificationStore.
type mockNotificationStore struct {
	notifications []domain.Notification
	historyCalls  int
	lastQuery     domain.NotificationQuery
	ch            chan domain.Notification
	unsubscribed  chan uint64
}

func newMockNotificationStore(ns ...domain.Notification) *mockNotificationStore {
	return &mockNotificationStore{
		notifications: ns,
		ch:            make(chan domain.Notification, 4),
		unsubscribed:  make(chan uint64, 1),
	}
}

func (m *mockNotificationStore) Get(ctx context.Context, id domain.NotificationID) (*domain.Notification, error) {
	for _, n := range m.notifications {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

func (m *mockNotificationStore) Query(ctx context.Context, q domain.NotificationQuery) (*domain.NotificationQueryResult, error) {
	m.lastQuery = q
	return &domain.NotificationQueryResult{Notifications: m.notifications, Total: len(m.notifications)}, nil
}

func (m *mockNotificationStore) QueryHistory(ctx context.Context, q domain.NotificationQuery) (*domain.NotificationQueryResult, error) {
	m.historyCalls++
	return m.Query(ctx, q)
}

func (m *mockNotificationStore) Subscribe() (uint64, <-chan domain.Notification) {
	return 7, m.ch
}

func (m *mockNotificationStore) Unsubscribe(id uint64) {
	m.unsubscribed <- id
}

func (m *mockNotificationStore) Stats() service.NotificationStats {
	return service.NotificationStats{BufferSize: 500, BufferUsed: len(m.notifications)}
}

// mockActionRunner records performed actions.
type mockActionRunner struct {
	acted  []domain.Notification
	result *downloader.ActionResult
	err    error
}

func (m *mockActionRunner) Act(ctx context.Context, n domain.Notification) (*downloader.ActionResult, error) {
	m.acted = append(m.acted, n)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &downloader.ActionResult{Action: n.Action}, nil
}

// mockAvailability is a fixed daemon availability.
type mockAvailability bool

func (m mockAvailability) Available() bool { return bool(m) }

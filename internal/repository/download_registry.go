package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

// InMemoryDownloadRegistry implements DownloadRegistry using in-memory storage.
type InMemoryDownloadRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.DownloadJob
}

// NewInMemoryDownloadRegistry creates an empty registry.
func NewInMemoryDownloadRegistry() *InMemoryDownloadRegistry {
	return &InMemoryDownloadRegistry{
		jobs: make(map[string]*domain.DownloadJob),
	}
}

// Upsert inserts the job or updates the existing entry in place.
func (r *InMemoryDownloadRegistry) Upsert(ctx context.Context, job *domain.DownloadJob) error {
	if job == nil || job.ID == "" {
		return domain.ErrNotConfirmed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.jobs[job.ID]; ok {
		created := existing.CreatedAt
		*existing = *job
		existing.CreatedAt = created
		existing.UpdatedAt = time.Now()
		return nil
	}

	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

// Get returns a snapshot of a job.
func (r *InMemoryDownloadRegistry) Get(ctx context.Context, gid string) (*domain.DownloadJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[gid]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// List returns snapshots of all jobs ordered by creation time.
func (r *InMemoryDownloadRegistry) List(ctx context.Context) ([]*domain.DownloadJob, error) {
	r.mu.RLock()
	result := make([]*domain.DownloadJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		snapshot := *job
		result = append(result, &snapshot)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Update applies fn to the stored job under the write lock.
func (r *InMemoryDownloadRegistry) Update(ctx context.Context, gid string, fn func(job *domain.DownloadJob) bool) (*domain.DownloadJob, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[gid]
	if !ok {
		return nil, false, domain.ErrJobNotFound
	}
	changed := fn(job)
	snapshot := *job
	return &snapshot, changed, nil
}

// ApplyBatch applies a poll's samples under a single lock. Terminal samples
// remove their entry; samples for unknown gids are ignored.
func (r *InMemoryDownloadRegistry) ApplyBatch(ctx context.Context, samples []domain.Progress) (*BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &BatchResult{}
	for _, p := range samples {
		job, ok := r.jobs[p.GID]
		if !ok {
			result.Ignored++
			continue
		}
		job.ApplyProgress(p)
		if p.Status.Terminal() {
			delete(r.jobs, p.GID)
			result.Terminal = append(result.Terminal, job)
			continue
		}
		result.Updated++
	}
	return result, nil
}

// Delete removes a job.
func (r *InMemoryDownloadRegistry) Delete(ctx context.Context, gid string) (*domain.DownloadJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[gid]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	delete(r.jobs, gid)
	return job, nil
}

// Stats returns registry statistics.
func (r *InMemoryDownloadRegistry) Stats(ctx context.Context) (*RegistryStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &RegistryStats{Total: len(r.jobs)}
	for _, job := range r.jobs {
		switch job.Status {
		case domain.DownloadStatusActive:
			stats.Active++
		case domain.DownloadStatusWaiting:
			stats.Waiting++
		case domain.DownloadStatusPaused:
			stats.Paused++
		}
	}
	return stats, nil
}

// Len returns the number of tracked jobs.
func (r *InMemoryDownloadRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

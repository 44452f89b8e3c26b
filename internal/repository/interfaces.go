package repository

import (
	"context"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

// DownloadRegistry tracks the downloads the daemon has confirmed.
// Readers get copies; the stored jobs are only touched through the
// mutating methods.
type DownloadRegistry interface {
	// Upsert inserts the job or updates the existing entry for its gid in place.
	Upsert(ctx context.Context, job *domain.DownloadJob) error

	// Get returns a snapshot of the job with the given gid.
	Get(ctx context.Context, gid string) (*domain.DownloadJob, error)

	// List returns snapshots of all jobs, oldest first.
	List(ctx context.Context) ([]*domain.DownloadJob, error)

	// Update applies fn to the stored job. fn reports whether it changed anything.
	Update(ctx context.Context, gid string, fn func(job *domain.DownloadJob) bool) (*domain.DownloadJob, bool, error)

	// ApplyBatch applies one poll's worth of daemon samples atomically.
	ApplyBatch(ctx context.Context, samples []domain.Progress) (*BatchResult, error)

	// Delete removes the job and returns its last state.
	Delete(ctx context.Context, gid string) (*domain.DownloadJob, error)

	// Stats returns counts per status.
	Stats(ctx context.Context) (*RegistryStats, error)
}

// BatchResult reports what ApplyBatch did.
type BatchResult struct {
	Updated  int
	Ignored  int                   // samples for gids not in the registry
	Terminal []*domain.DownloadJob // removed entries, in sample order
}

// RegistryStats contains download registry statistics.
type RegistryStats struct {
	Active  int `json:"active"`
	Waiting int `json:"waiting"`
	Paused  int `json:"paused"`
	Total   int `json:"total"`
}

// PositionStore remembers the last selection made for each title.
type PositionStore interface {
	// SavePosition inserts or replaces the selection for pos.MediaID.
	SavePosition(ctx context.Context, pos domain.Position) error

	// GetPosition returns the stored selection for a title.
	GetPosition(ctx context.Context, mediaID string) (*domain.Position, error)
}

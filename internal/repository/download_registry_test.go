package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

func newJob(gid string) *domain.DownloadJob {
	return domain.NewDownloadJob(gid, domain.JobRequest{
		DisplayName: "Show " + gid,
		Destination: "/downloads/Show/" + gid + ".mp4",
	})
}

func TestInMemoryDownloadRegistry_UpsertAndGet(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()

	if err := reg.Upsert(ctx, newJob("gid-1")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	job, err := reg.Get(ctx, "gid-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Status != domain.DownloadStatusWaiting {
		t.Errorf("Status = %q, want waiting", job.Status)
	}

	_, err = reg.Get(ctx, "missing")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestInMemoryDownloadRegistry_UpsertIsIdempotent(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()

	first := newJob("gid-1")
	first.CreatedAt = time.Now().Add(-time.Hour)
	if err := reg.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	second := newJob("gid-1")
	second.Request.DisplayName = "renamed"
	if err := reg.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	job, _ := reg.Get(ctx, "gid-1")
	if job.Request.DisplayName != "renamed" {
		t.Errorf("DisplayName = %q, want updated value", job.Request.DisplayName)
	}
	if !job.CreatedAt.Equal(first.CreatedAt) {
		t.Error("CreatedAt should survive an update in place")
	}
}

func TestInMemoryDownloadRegistry_UpsertRejectsEmptyGID(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	if err := reg.Upsert(context.Background(), newJob("")); err == nil {
		t.Error("Upsert should reject a job without a gid")
	}
	if reg.Len() != 0 {
		t.Error("registry should stay empty")
	}
}

func TestInMemoryDownloadRegistry_SnapshotsAreCopies(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()
	_ = reg.Upsert(ctx, newJob("gid-1"))

	job, _ := reg.Get(ctx, "gid-1")
	job.Status = domain.DownloadStatusComplete

	stored, _ := reg.Get(ctx, "gid-1")
	if stored.Status != domain.DownloadStatusWaiting {
		t.Error("mutating a snapshot should not change the registry")
	}
}

func TestInMemoryDownloadRegistry_ListOrdered(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()

	base := time.Now()
	for i, gid := range []string{"c", "a", "b"} {
		job := newJob(gid)
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		_ = reg.Upsert(ctx, job)
	}

	jobs, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"c", "a", "b"}
	for i, job := range jobs {
		if job.ID != want[i] {
			t.Errorf("jobs[%d] = %q, want %q", i, job.ID, want[i])
		}
	}
}

func TestInMemoryDownloadRegistry_ApplyBatch(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()
	_ = reg.Upsert(ctx, newJob("active"))
	_ = reg.Upsert(ctx, newJob("done"))
	_ = reg.Upsert(ctx, newJob("broken"))

	code := 3
	result, err := reg.ApplyBatch(ctx, []domain.Progress{
		{GID: "active", Status: domain.DownloadStatusActive, TotalBytes: 100, CompletedBytes: 40, SpeedBytesPerSec: 10},
		{GID: "done", Status: domain.DownloadStatusComplete, TotalBytes: 50, CompletedBytes: 50},
		{GID: "broken", Status: domain.DownloadStatusError, ErrorCode: &code},
		{GID: "stranger", Status: domain.DownloadStatusActive},
	})
	if err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1", result.Updated)
	}
	if result.Ignored != 1 {
		t.Errorf("Ignored = %d, want 1", result.Ignored)
	}
	if len(result.Terminal) != 2 {
		t.Fatalf("Terminal = %d entries, want 2", len(result.Terminal))
	}
	if result.Terminal[0].ID != "done" || result.Terminal[1].ID != "broken" {
		t.Errorf("Terminal order = %q, %q", result.Terminal[0].ID, result.Terminal[1].ID)
	}
	if result.Terminal[1].LastErrorCode == nil || *result.Terminal[1].LastErrorCode != 3 {
		t.Error("error code should be recorded on the terminal job")
	}

	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
	job, _ := reg.Get(ctx, "active")
	if job.Status != domain.DownloadStatusActive || job.CompletedBytes != 40 || job.SpeedBytesPerSec != 10 {
		t.Errorf("unexpected job state: %+v", job)
	}
}

func TestInMemoryDownloadRegistry_Update(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()
	_ = reg.Upsert(ctx, newJob("gid-1"))

	job, changed, err := reg.Update(ctx, "gid-1", (*domain.DownloadJob).MarkPaused)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !changed || job.Status != domain.DownloadStatusPaused {
		t.Errorf("expected paused, got %q (changed=%v)", job.Status, changed)
	}

	_, changed, _ = reg.Update(ctx, "gid-1", (*domain.DownloadJob).MarkPaused)
	if changed {
		t.Error("pausing a paused job should be a no-op")
	}

	_, _, err = reg.Update(ctx, "missing", (*domain.DownloadJob).MarkPaused)
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestInMemoryDownloadRegistry_Delete(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()
	_ = reg.Upsert(ctx, newJob("gid-1"))

	job, err := reg.Delete(ctx, "gid-1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if job.ID != "gid-1" {
		t.Errorf("ID = %q", job.ID)
	}
	if _, err := reg.Delete(ctx, "gid-1"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("second Delete should return ErrJobNotFound, got %v", err)
	}
}

func TestInMemoryDownloadRegistry_Stats(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()
	_ = reg.Upsert(ctx, newJob("a"))
	_ = reg.Upsert(ctx, newJob("b"))
	_ = reg.Upsert(ctx, newJob("c"))
	_, _ = reg.ApplyBatch(ctx, []domain.Progress{{GID: "a", Status: domain.DownloadStatusActive}})
	_, _, _ = reg.Update(ctx, "b", (*domain.DownloadJob).MarkPaused)

	stats, err := reg.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Active != 1 || stats.Paused != 1 || stats.Waiting != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestInMemoryDownloadRegistry_ConcurrentReaders(t *testing.T) {
	reg := NewInMemoryDownloadRegistry()
	ctx := context.Background()
	_ = reg.Upsert(ctx, newJob("gid-1"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = reg.List(ctx)
				_, _ = reg.Get(ctx, "gid-1")
			}
		}()
	}
	for j := 0; j < 100; j++ {
		_, _ = reg.ApplyBatch(ctx, []domain.Progress{{GID: "gid-1", Status: domain.DownloadStatusActive, CompletedBytes: int64(j)}})
	}
	wg.Wait()
}

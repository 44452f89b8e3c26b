package downloader

import (
	"context"
	"fmt"
	"time"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/internal/metrics"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

func (d *Downloader) pollLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if !d.polling.CompareAndSwap(false, true) {
				d.metrics.PollTick(metrics.PollSkipped)
				continue
			}
			d.spawn(func(ctx context.Context) {
				defer d.polling.Store(false)
				d.tick(ctx)
			})
		}
	}
}

// pollCalls builds the detail multicall for a global stat; empty lists are
// not queried.
func pollCalls(stat aria2.GlobalStat) []aria2.MethodCall {
	var calls []aria2.MethodCall
	if stat.NumActive > 0 {
		calls = append(calls, aria2.TellActiveCall(aria2.StatusKeys...))
	}
	if stat.NumWaiting > 0 {
		calls = append(calls, aria2.TellWaitingCall(0, int(stat.NumWaiting), aria2.StatusKeys...))
	}
	if stat.NumStopped > 0 {
		calls = append(calls, aria2.TellStoppedCall(0, int(stat.NumStopped), aria2.StatusKeys...))
	}
	return calls
}

// tickOutcome is what applying one tick's samples produced.
type tickOutcome struct {
	terminal []*domain.DownloadJob
	// untracked holds terminal gids with no registry entry: side
	// downloads, canceled jobs and results left over from earlier runs.
	untracked []string
}

// tick runs one reconciliation round. Failures are logged at debug level
// and never notified.
func (d *Downloader) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stat, err := d.rpc.GetGlobalStat(ctx)
	d.metrics.RPCCall(aria2.MethodGetGlobalStat, err)
	if err != nil {
		d.logger.Debug("poll: global stat failed", "error", err)
		d.metrics.PollTick(metrics.PollFailed)
		return
	}
	if stat.Idle() {
		d.metrics.PollTick(metrics.PollIdle)
		return
	}

	results, err := d.rpc.Multicall(ctx, pollCalls(*stat))
	if err != nil {
		d.logger.Debug("poll: multicall failed", "error", err)
		d.metrics.PollTick(metrics.PollFailed)
		return
	}

	samples, err := collectSamples(results)
	if err != nil {
		d.logger.Debug("poll: bad status batch", "error", err)
		d.metrics.PollTick(metrics.PollFailed)
		return
	}

	var outcome tickOutcome
	if err := d.mutate(ctx, func() { outcome = d.applySamples(ctx, samples) }); err != nil {
		return
	}
	d.metrics.PollTick(metrics.PollApplied)
	d.finish(outcome)
}

// collectSamples decodes the multicall results. Any failed or malformed
// entry fails the whole batch.
func collectSamples(results []aria2.Result) ([]domain.Progress, error) {
	var samples []domain.Progress
	for _, r := range results {
		var infos []aria2.StatusInfo
		if err := r.Decode(&infos); err != nil {
			return nil, fmt.Errorf("%s: %w", r.Method, err)
		}
		for _, info := range infos {
			samples = append(samples, toProgress(info))
		}
	}
	return samples, nil
}

func toProgress(info aria2.StatusInfo) domain.Progress {
	p := domain.Progress{
		GID:              info.GID,
		Status:           domain.DownloadStatus(info.Status),
		TotalBytes:       int64(info.TotalLength),
		CompletedBytes:   int64(info.CompletedLength),
		SpeedBytesPerSec: int64(info.DownloadSpeed),
	}
	if info.ErrorCode != nil {
		code := int(*info.ErrorCode)
		p.ErrorCode = &code
	}
	return p
}

// applySamples runs on the lane.
func (d *Downloader) applySamples(ctx context.Context, samples []domain.Progress) tickOutcome {
	var outcome tickOutcome

	result, err := d.registry.ApplyBatch(ctx, samples)
	if err != nil {
		d.logger.Error("apply status batch", "error", err)
		return outcome
	}
	outcome.terminal = result.Terminal

	tracked := make(map[string]bool, len(result.Terminal))
	for _, job := range result.Terminal {
		tracked[job.ID] = true
	}
	for _, p := range samples {
		if p.Status.Terminal() && !tracked[p.GID] {
			outcome.untracked = append(outcome.untracked, p.GID)
		}
	}
	return outcome
}

// finish reports terminal jobs, clears every terminal daemon result and
// continues entire-series requests.
func (d *Downloader) finish(outcome tickOutcome) {
	for _, job := range outcome.terminal {
		d.logger.Info("download finished", "gid", job.ID, "status", job.Status)
		d.notifyTerminal(job)
		d.clearResult(job.ID)

		if job.Status == domain.DownloadStatusComplete && job.Request.Intent.All {
			intent := job.Request.Intent
			d.spawn(func(ctx context.Context) { d.continueSeries(ctx, intent) })
		}
	}
	for _, gid := range outcome.untracked {
		d.clearResult(gid)
	}
}

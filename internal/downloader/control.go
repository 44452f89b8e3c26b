package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

// Pause pauses a download. The registry moves to paused only when the
// daemon echoes the gid and the job was active or waiting.
func (d *Downloader) Pause(ctx context.Context, gid string) (*domain.DownloadJob, error) {
	return d.toggle(ctx, gid, aria2.MethodPause, d.rpc.Pause, (*domain.DownloadJob).MarkPaused)
}

// Unpause resumes a paused download. Only paused jobs move (to waiting);
// unpausing anything else leaves the registry untouched.
func (d *Downloader) Unpause(ctx context.Context, gid string) (*domain.DownloadJob, error) {
	return d.toggle(ctx, gid, aria2.MethodUnpause, d.rpc.Unpause, (*domain.DownloadJob).MarkUnpaused)
}

func (d *Downloader) toggle(
	ctx context.Context,
	gid, method string,
	call func(context.Context, string) (string, error),
	transition func(*domain.DownloadJob) bool,
) (*domain.DownloadJob, error) {
	current, err := d.registry.Get(ctx, gid)
	if err != nil {
		return nil, err
	}

	echoed, err := call(ctx, gid)
	d.metrics.RPCCall(method, err)
	if err != nil {
		d.notifyFailure(current.Request.DisplayName, err, domain.RetryableIntent{})
		return nil, domain.NewDownloadError(gid, method, err)
	}
	if echoed != gid {
		return nil, domain.NewDownloadError(gid, method, domain.ErrNotConfirmed)
	}

	var (
		job       *domain.DownloadJob
		updateErr error
	)
	if err := d.mutate(ctx, func() {
		job, _, updateErr = d.registry.Update(ctx, gid, transition)
	}); err != nil {
		return nil, err
	}
	if updateErr != nil {
		return nil, updateErr
	}
	return job, nil
}

// Remove cancels a download. On success the job leaves the registry, a
// canceled notification offers a retry and the daemon result is cleared.
func (d *Downloader) Remove(ctx context.Context, gid string) error {
	current, err := d.registry.Get(ctx, gid)
	if err != nil {
		return err
	}

	echoed, err := d.rpc.Remove(ctx, gid)
	d.metrics.RPCCall(aria2.MethodRemove, err)
	if err != nil {
		d.notifyFailure(current.Request.DisplayName, err, domain.RetryableIntent{})
		return domain.NewDownloadError(gid, "remove", err)
	}
	if echoed != gid {
		return domain.NewDownloadError(gid, "remove", domain.ErrNotConfirmed)
	}

	var (
		job       *domain.DownloadJob
		deleteErr error
	)
	if err := d.mutate(ctx, func() {
		job, deleteErr = d.registry.Delete(ctx, gid)
	}); err != nil {
		return err
	}
	if deleteErr != nil {
		// A poll tick observed the terminal state first and already reported it.
		return nil
	}

	d.logger.Info("download canceled", "gid", gid)
	d.notifyCanceled(job)
	d.clearResult(gid)
	return nil
}

// ChangeMaxConcurrency changes how many downloads the daemon runs at once.
func (d *Downloader) ChangeMaxConcurrency(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", n)
	}
	err := d.rpc.ChangeGlobalOption(ctx, aria2.Options{
		"max-concurrent-downloads": strconv.Itoa(n),
	})
	d.metrics.RPCCall(aria2.MethodChangeGlobalOption, err)
	if err != nil {
		return fmt.Errorf("change max concurrency: %w", err)
	}
	d.logger.Info("max concurrency changed", "max_concurrent", n)
	return nil
}

// ActionResult is what performing a notification action produced.
type ActionResult struct {
	Action domain.ActionCategory `json:"action"`
	GID    string                `json:"gid,omitempty"`
	Path   string                `json:"path,omitempty"`
	URL    string                `json:"url,omitempty"`
}

// Act performs the action a notification offers. Retry resubmits the
// decoded intent in the background; cancel removes the bound job; open-file
// and purchase return their target for the caller to open.
func (d *Downloader) Act(ctx context.Context, n domain.Notification) (*ActionResult, error) {
	result := &ActionResult{Action: n.Action}

	switch n.Action {
	case domain.ActionRetry:
		ri, err := domain.DecodeRetryableIntent(n.Payload)
		if err != nil {
			return nil, err
		}
		d.Submit(ri.Request)
	case domain.ActionCancel:
		var p domain.CancelPayload
		if err := decodePayload(n.Payload, &p); err != nil || p.GID == "" {
			return nil, fmt.Errorf("%w: cancel payload", domain.ErrInvalidPayload)
		}
		if err := d.Remove(ctx, p.GID); err != nil {
			return nil, err
		}
		result.GID = p.GID
	case domain.ActionOpenFile:
		var p domain.OpenFilePayload
		if err := decodePayload(n.Payload, &p); err != nil || p.Path == "" {
			return nil, fmt.Errorf("%w: open-file payload", domain.ErrInvalidPayload)
		}
		result.Path = p.Path
	case domain.ActionPurchase:
		var p domain.PurchasePayload
		if err := decodePayload(n.Payload, &p); err != nil || p.URL == "" {
			return nil, fmt.Errorf("%w: purchase payload", domain.ErrInvalidPayload)
		}
		result.URL = p.URL
	default:
		return nil, domain.ErrNoAction
	}
	return result, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return domain.ErrInvalidPayload
	}
	return json.Unmarshal(raw, v)
}

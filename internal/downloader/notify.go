package downloader

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

func (d *Downloader) emit(kind domain.NotificationKind, title, body string, action domain.ActionCategory, payload any) {
	n := domain.Notification{
		Kind:   kind,
		Title:  title,
		Body:   body,
		Action: action,
	}
	if action != domain.ActionNone && payload != nil {
		var (
			raw []byte
			err error
		)
		if ri, ok := payload.(domain.RetryableIntent); ok {
			raw, err = ri.Encode()
		} else {
			raw, err = json.Marshal(payload)
		}
		if err != nil {
			d.logger.Error("encode notification payload", "error", err)
			n.Action = domain.ActionNone
		} else {
			n.Payload = raw
		}
	}
	d.notifier.Notify(n)
}

// notifyFailure reports a failed request, offering a retry when the intent
// is retryable.
func (d *Downloader) notifyFailure(name string, err error, retry domain.RetryableIntent) {
	body := failureReason(err)
	if name != "" {
		body = name + ": " + body
	}
	if retry.IsZero() {
		d.emit(domain.NotificationFailed, "Download failed", body, domain.ActionNone, nil)
		return
	}
	d.emit(domain.NotificationFailed, "Download failed", body, domain.ActionRetry, retry)
}

func (d *Downloader) notifyQueued(job *domain.DownloadJob) {
	d.emit(domain.NotificationQueued, "Downloading", job.Request.DisplayName,
		domain.ActionCancel, domain.CancelPayload{GID: job.ID})
}

func (d *Downloader) notifyPremium(req domain.DownloadRequest) {
	d.emit(domain.NotificationPremium, "Premium required",
		fmt.Sprintf("%s is only available with a premium account", req.Media.Title),
		domain.ActionPurchase, domain.PurchasePayload{URL: d.cfg.PurchaseURL})
}

func (d *Downloader) notifyCanceled(job *domain.DownloadJob) {
	d.emit(domain.NotificationCanceled, "Download canceled", job.Request.DisplayName,
		domain.ActionRetry, job.Request.Retry)
}

// notifyTerminal reports a job the daemon finished with.
func (d *Downloader) notifyTerminal(job *domain.DownloadJob) {
	switch job.Status {
	case domain.DownloadStatusComplete:
		body := job.Request.DisplayName
		if job.TotalBytes > 0 {
			body += " (" + humanize.Bytes(uint64(job.TotalBytes)) + ")"
		}
		d.emit(domain.NotificationSucceeded, "Download complete", body,
			domain.ActionOpenFile, domain.OpenFilePayload{Path: job.Request.Destination})
	case domain.DownloadStatusError:
		var code *aria2.ErrorCode
		if job.LastErrorCode != nil {
			c := aria2.ErrorCode(*job.LastErrorCode)
			code = &c
		}
		d.emit(domain.NotificationFailed, "Download failed",
			job.Request.DisplayName+": "+aria2.DescribeErrorCode(code),
			domain.ActionRetry, job.Request.Retry)
	case domain.DownloadStatusRemoved:
		d.notifyCanceled(job)
	}
}

// failureReason turns an error into a sentence for the user.
func failureReason(err error) string {
	var rpcErr *aria2.RPCError
	switch {
	case errors.Is(err, domain.ErrDaemonUnavailable), aria2.IsTransport(err):
		return "The download service is not responding."
	case errors.As(err, &rpcErr):
		return rpcErr.Message
	case errors.Is(err, domain.ErrNoDestination):
		return "The downloads folder is not available."
	case errors.Is(err, domain.ErrStorageFull):
		return "There is not enough free disk space."
	case errors.Is(err, domain.ErrNoCandidates):
		return "No playable stream was found."
	case errors.Is(err, domain.ErrNoEpisodes):
		return "The season has no episodes."
	case errors.Is(err, domain.ErrInvalidIntent):
		return "The download request is incomplete."
	default:
		return "Something went wrong."
	}
}

package downloader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
)

// Submit starts Download in the background. The outcome is reported
// through notifications.
func (d *Downloader) Submit(req domain.DownloadRequest) {
	d.spawn(func(ctx context.Context) {
		if _, err := d.Download(ctx, req); err != nil {
			d.logger.Debug("download request ended", "media_id", req.Media.ID, "error", err)
		}
	})
}

// Download resolves req, enqueues it on the daemon and records the job.
// Every failure is also reported as a notification; failures of a valid
// request carry its retry payload.
func (d *Downloader) Download(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadJob, error) {
	logger := d.logger.With("media_id", req.Media.ID)

	retry, err := domain.NewRetryableIntent(req)
	if err != nil {
		logger.Warn("rejecting download request", "error", err)
		d.notifyFailure(req.Media.Title, err, domain.RetryableIntent{})
		return nil, err
	}

	root := d.cfg.Root()
	if err := checkDestination(root, d.cfg.MinFreeBytes); err != nil {
		logger.Warn("downloads directory unavailable", "root", root, "error", err)
		d.notifyFailure(displayName(req), err, retry)
		return nil, err
	}

	if !req.IsMovie() && req.Episode == nil {
		season, first, err := d.firstEpisode(ctx, req)
		if err != nil {
			logger.Warn("season lookup failed", "season_id", req.Season.ID, "error", err)
			d.notifyFailure(displayName(req), err, retry)
			return nil, err
		}
		return d.Download(ctx, req.WithEpisode(season, first))
	}

	if !d.Available() {
		d.notifyFailure(displayName(req), domain.ErrDaemonUnavailable, retry)
		return nil, domain.ErrDaemonUnavailable
	}

	streams, err := d.resolver.Resolve(ctx, req)
	if err == nil && streams.NeedsPremium {
		err = domain.ErrPremiumRequired
	}
	if errors.Is(err, domain.ErrPremiumRequired) {
		logger.Info("premium account required")
		d.notifyPremium(req)
		return nil, err
	}
	if err != nil {
		logger.Warn("resolve streams failed", "error", err)
		d.notifyFailure(displayName(req), err, retry)
		return nil, fmt.Errorf("resolve streams: %w", err)
	}

	d.rememberSelection(ctx, req)

	candidate, ok := selectQuality(streams.Candidates, req.Quality)
	if !ok {
		d.notifyFailure(displayName(req), domain.ErrNoCandidates, retry)
		return nil, domain.ErrNoCandidates
	}

	jobReq := domain.JobRequest{
		Intent:      req,
		Quality:     candidate.Quality,
		URL:         candidate.URL,
		Destination: destinationPath(root, req),
		DisplayName: displayName(req),
		Retry:       retry,
	}
	if sub, ok := streams.Subtitle(req.Subtitle); ok && req.Subtitle != "" {
		jobReq.Subtitle = &sub
	}

	gid, err := d.rpc.AddURI(ctx, []string{candidate.URL}, aria2.Options{
		"dir": jobReq.Dir(),
		"out": jobReq.Filename(),
	})
	d.metrics.RPCCall(aria2.MethodAddURI, err)
	if err != nil {
		logger.Warn("enqueue failed", "error", err)
		d.notifyFailure(jobReq.DisplayName, err, retry)
		return nil, domain.NewDownloadError("", "add uri", err)
	}

	job := domain.NewDownloadJob(gid, jobReq)
	if err := d.mutate(ctx, func() {
		if err := d.registry.Upsert(ctx, job); err != nil {
			logger.Error("record job", "gid", gid, "error", err)
		}
	}); err != nil {
		return nil, domain.NewDownloadError(gid, "record job", err)
	}
	d.metrics.Enqueued()
	logger.Info("download queued", "gid", gid, "quality", candidate.Quality, "path", jobReq.Destination)
	d.notifyQueued(job)

	if jobReq.Subtitle != nil {
		d.enqueueSubtitle(ctx, jobReq)
	}

	return job, nil
}

// firstEpisode picks the first episode of the requested season, listing
// the season through the resolver when the request does not carry episodes.
func (d *Downloader) firstEpisode(ctx context.Context, req domain.DownloadRequest) (domain.Season, domain.Episode, error) {
	season := *req.Season
	if len(season.Episodes) == 0 {
		seasons, err := d.resolver.Seasons(ctx, req.Media, req.VoiceTrack)
		if err != nil {
			return season, domain.Episode{}, fmt.Errorf("list seasons: %w", err)
		}
		for _, s := range seasons {
			if s.ID == season.ID {
				season.Episodes = s.Episodes
				if season.Name == "" {
					season.Name = s.Name
				}
				break
			}
		}
	}
	if len(season.Episodes) == 0 {
		return season, domain.Episode{}, domain.ErrNoEpisodes
	}
	first := season.Episodes[0]
	season.Episodes = nil
	return season, first, nil
}

// rememberSelection stores the last selection and, for logged-in users,
// syncs a zero watch position. Neither outcome affects the download.
func (d *Downloader) rememberSelection(ctx context.Context, req domain.DownloadRequest) {
	if d.positions != nil {
		pos := domain.Position{
			MediaID:      req.Media.ID,
			VoiceTrackID: req.VoiceTrack.ID,
			SubtitleLang: req.Subtitle,
		}
		if req.Season != nil {
			pos.SeasonID = req.Season.ID
		}
		if req.Episode != nil {
			pos.EpisodeID = req.Episode.ID
		}
		if err := d.positions.SavePosition(ctx, pos); err != nil {
			d.logger.Warn("save position failed", "media_id", req.Media.ID, "error", err)
		}
	}

	if d.account != nil && d.account.Authenticated() {
		d.spawn(func(ctx context.Context) {
			if err := d.account.SaveWatchProgress(ctx, req.Media, req.VoiceTrack, req.Season, req.Episode, 0, 0); err != nil {
				d.logger.Debug("sync watch progress failed", "media_id", req.Media.ID, "error", err)
			}
		})
	}
}

// enqueueSubtitle downloads the subtitle next to the video. Its outcome is
// only logged.
func (d *Downloader) enqueueSubtitle(ctx context.Context, jobReq domain.JobRequest) {
	path := subtitlePath(jobReq.Destination, *jobReq.Subtitle)
	gid, err := d.rpc.AddURI(ctx, []string{jobReq.Subtitle.URL}, aria2.Options{
		"dir": filepath.Dir(path),
		"out": filepath.Base(path),
	})
	d.metrics.RPCCall(aria2.MethodAddURI, err)
	if err != nil {
		d.logger.Debug("subtitle enqueue failed", "lang", jobReq.Subtitle.Lang, "error", err)
		return
	}
	d.logger.Debug("subtitle enqueued", "gid", gid, "lang", jobReq.Subtitle.Lang)
}

// continueSeries enqueues the episode after the one intent targeted,
// moving on to the next season after a season's last episode.
func (d *Downloader) continueSeries(ctx context.Context, intent domain.DownloadRequest) {
	if intent.Season == nil || intent.Episode == nil {
		return
	}
	logger := d.logger.With("media_id", intent.Media.ID)

	seasons, err := d.resolver.Seasons(ctx, intent.Media, intent.VoiceTrack)
	if err != nil {
		logger.Warn("list seasons for next episode failed", "error", err)
		return
	}

	season, episode, ok := nextEpisode(seasons, intent.Season.ID, intent.Episode.ID)
	if !ok {
		logger.Info("series finished", "season_id", intent.Season.ID, "episode_id", intent.Episode.ID)
		return
	}
	if _, err := d.Download(ctx, intent.WithEpisode(season, episode)); err != nil {
		logger.Debug("next episode not queued", "error", err)
	}
}

// nextEpisode finds the episode following (seasonID, episodeID).
func nextEpisode(seasons []domain.Season, seasonID, episodeID string) (domain.Season, domain.Episode, bool) {
	for si, s := range seasons {
		if s.ID != seasonID {
			continue
		}
		for ei, e := range s.Episodes {
			if e.ID != episodeID {
				continue
			}
			if ei+1 < len(s.Episodes) {
				return domain.Season{ID: s.ID, Name: s.Name}, s.Episodes[ei+1], true
			}
			for _, next := range seasons[si+1:] {
				if len(next.Episodes) > 0 {
					return domain.Season{ID: next.ID, Name: next.Name}, next.Episodes[0], true
				}
			}
			return domain.Season{}, domain.Episode{}, false
		}
	}
	return domain.Season{}, domain.Episode{}, false
}

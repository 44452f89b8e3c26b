package downloader

import (
	"context"
	"errors"
	"time"

	"github.com/iconidentify/seriesgrab/internal/domain"
	"github.com/iconidentify/seriesgrab/pkg/site"
)

// SiteResolver adapts the site client to MediaResolver and AccountSync.
type SiteResolver struct {
	client *site.Client
}

// NewSiteResolver creates a resolver backed by the site client.
func NewSiteResolver(client *site.Client) *SiteResolver {
	return &SiteResolver{client: client}
}

// Resolve fetches stream candidates for a request.
func (r *SiteResolver) Resolve(ctx context.Context, req domain.DownloadRequest) (*domain.Streams, error) {
	sreq := site.StreamRequest{
		MediaID:        req.Media.ID,
		VoiceTrackID:   req.VoiceTrack.ID,
		FavsToken:      req.Media.FavsToken,
		IsCamrip:       req.VoiceTrack.IsCamrip,
		IsAds:          req.VoiceTrack.IsAds,
		IsDirectorsCut: req.VoiceTrack.IsDirectorsCut,
	}
	if req.Season != nil {
		sreq.SeasonID = req.Season.ID
	}
	if req.Episode != nil {
		sreq.EpisodeID = req.Episode.ID
	}

	result, err := r.client.GetStreams(ctx, sreq)
	if errors.Is(err, site.ErrPremium) {
		return &domain.Streams{NeedsPremium: true}, nil
	}
	if err != nil {
		return nil, err
	}

	streams := &domain.Streams{}
	for _, s := range result.Streams {
		streams.Candidates = append(streams.Candidates, domain.StreamCandidate{Quality: s.Quality, URL: s.URL})
	}
	for _, s := range result.Subtitles {
		streams.Subtitles = append(streams.Subtitles, domain.SubtitleTrack{Lang: s.Lang, Name: s.Name, URL: s.URL})
	}
	return streams, nil
}

// Seasons lists seasons and episodes for a voice track.
func (r *SiteResolver) Seasons(ctx context.Context, media domain.Media, voice domain.VoiceTrack) ([]domain.Season, error) {
	listed, err := r.client.GetEpisodes(ctx, media.ID, voice.ID, media.FavsToken)
	if err != nil {
		return nil, err
	}

	seasons := make([]domain.Season, 0, len(listed))
	for _, s := range listed {
		season := domain.Season{ID: s.ID, Name: s.Name}
		for _, e := range s.Episodes {
			season.Episodes = append(season.Episodes, domain.Episode{ID: e.ID, Name: e.Name})
		}
		seasons = append(seasons, season)
	}
	return seasons, nil
}

// Authenticated reports whether the site session is logged in.
func (r *SiteResolver) Authenticated() bool {
	return r.client.Authenticated()
}

// SaveWatchProgress syncs a playback position to the user's account.
func (r *SiteResolver) SaveWatchProgress(ctx context.Context, media domain.Media, voice domain.VoiceTrack, season *domain.Season, episode *domain.Episode, position, duration time.Duration) error {
	p := site.WatchProgress{
		MediaID:      media.ID,
		VoiceTrackID: voice.ID,
		Position:     position,
		Duration:     duration,
	}
	if season != nil {
		p.SeasonID = season.ID
	}
	if episode != nil {
		p.EpisodeID = episode.ID
	}
	return r.client.SaveWatchProgress(ctx, p)
}

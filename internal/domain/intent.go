package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Media identifies a title on the streaming site.
type Media struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	FavsToken string `json:"favs,omitempty"`
}

// VoiceTrack is a dubbing/translation of a title.
type VoiceTrack struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	IsCamrip       bool   `json:"is_camrip,omitempty"`
	IsAds          bool   `json:"is_ads,omitempty"`
	IsDirectorsCut bool   `json:"is_directors_cut,omitempty"`
	IsPremium      bool   `json:"is_premium,omitempty"`
}

// Episode of a season.
type Episode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Season of a series, optionally with its episode list.
type Season struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Episodes []Episode `json:"episodes,omitempty"`
}

// DownloadRequest is what the user asked to download.
type DownloadRequest struct {
	Media      Media      `json:"media"`
	VoiceTrack VoiceTrack `json:"voice_track"`
	Season     *Season    `json:"season,omitempty"`
	Episode    *Episode   `json:"episode,omitempty"`
	Quality    string     `json:"quality"`
	Subtitle   string     `json:"subtitle,omitempty"` // language code
	All        bool       `json:"all,omitempty"`      // continue with following episodes
}

// Validate checks the request is complete enough to be retried later.
func (r DownloadRequest) Validate() error {
	if r.Media.ID == "" {
		return fmt.Errorf("%w: media id is required", ErrInvalidIntent)
	}
	if r.Media.Title == "" {
		return fmt.Errorf("%w: media title is required", ErrInvalidIntent)
	}
	if r.VoiceTrack.ID == "" {
		return fmt.Errorf("%w: voice track id is required", ErrInvalidIntent)
	}
	if r.Quality == "" {
		return fmt.Errorf("%w: quality is required", ErrInvalidIntent)
	}
	if r.Episode != nil && r.Season == nil {
		return fmt.Errorf("%w: episode given without season", ErrInvalidIntent)
	}
	if r.Season != nil && r.Season.ID == "" {
		return fmt.Errorf("%w: season id is required", ErrInvalidIntent)
	}
	if r.Episode != nil && r.Episode.ID == "" {
		return fmt.Errorf("%w: episode id is required", ErrInvalidIntent)
	}
	return nil
}

// IsMovie reports whether the request targets a title without seasons.
func (r DownloadRequest) IsMovie() bool {
	return r.Season == nil
}

// WithEpisode returns a copy of r targeting the given season and episode.
func (r DownloadRequest) WithEpisode(season Season, episode Episode) DownloadRequest {
	r.Season = &season
	r.Episode = &episode
	return r
}

// RetryableIntent kinds and schema version.
const (
	RetryKindDownload  = "download"
	RetryIntentVersion = 1
)

// RetryableIntent is the payload attached to failure notifications so the
// exact request can be submitted again.
type RetryableIntent struct {
	Kind    string          `json:"kind"`
	Version int             `json:"version"`
	Request DownloadRequest `json:"request"`
}

// NewRetryableIntent wraps a valid request.
func NewRetryableIntent(req DownloadRequest) (RetryableIntent, error) {
	if err := req.Validate(); err != nil {
		return RetryableIntent{}, err
	}
	return RetryableIntent{
		Kind:    RetryKindDownload,
		Version: RetryIntentVersion,
		Request: req,
	}, nil
}

// IsZero reports whether the intent carries no request.
func (ri RetryableIntent) IsZero() bool {
	return ri.Kind == ""
}

// Encode serializes the intent for a notification payload.
func (ri RetryableIntent) Encode() (json.RawMessage, error) {
	data, err := json.Marshal(ri)
	if err != nil {
		return nil, fmt.Errorf("encode retry intent: %w", err)
	}
	return data, nil
}

// DecodeRetryableIntent parses and validates a notification payload.
func DecodeRetryableIntent(data []byte) (RetryableIntent, error) {
	var ri RetryableIntent
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ri); err != nil {
		return RetryableIntent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ri.Kind != RetryKindDownload {
		return RetryableIntent{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, ri.Kind)
	}
	if ri.Version != RetryIntentVersion {
		return RetryableIntent{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, ri.Version)
	}
	if err := ri.Request.Validate(); err != nil {
		return RetryableIntent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return ri, nil
}

// StreamCandidate is one playable URL at a given quality.
type StreamCandidate struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// SubtitleTrack is a subtitle file offered for a stream.
type SubtitleTrack struct {
	Lang string `json:"lang"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Streams is the media resolver's answer for a selection.
type Streams struct {
	NeedsPremium bool              `json:"needs_premium"`
	Candidates   []StreamCandidate `json:"candidates"`
	Subtitles    []SubtitleTrack   `json:"subtitles,omitempty"`
}

// Subtitle returns the track for lang, if offered.
func (s Streams) Subtitle(lang string) (SubtitleTrack, bool) {
	for _, sub := range s.Subtitles {
		if sub.Lang == lang {
			return sub, true
		}
	}
	return SubtitleTrack{}, false
}

// Position is the last selection a user made for a title.
type Position struct {
	MediaID      string
	VoiceTrackID string
	SeasonID     string
	EpisodeID    string
	SubtitleLang string
}

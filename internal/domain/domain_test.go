package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

// =============================================================================
// Download Job Tests
// =============================================================================

func TestDownloadStatus_Terminal(t *testing.T) {
	tests := []struct {
		status DownloadStatus
		want   bool
	}{
		{DownloadStatusActive, false},
		{DownloadStatusWaiting, false},
		{DownloadStatusPaused, false},
		{DownloadStatusError, true},
		{DownloadStatusComplete, true},
		{DownloadStatusRemoved, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewDownloadJob(t *testing.T) {
	job := NewDownloadJob("gid-1", JobRequest{Destination: "/downloads/App/Show/S1/E1.mp4"})

	if job.ID != "gid-1" {
		t.Errorf("ID = %q, want %q", job.ID, "gid-1")
	}
	if job.Status != DownloadStatusWaiting {
		t.Errorf("Status = %q, want waiting", job.Status)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
	if job.Request.Dir() != "/downloads/App/Show/S1" {
		t.Errorf("Dir() = %q", job.Request.Dir())
	}
	if job.Request.Filename() != "E1.mp4" {
		t.Errorf("Filename() = %q", job.Request.Filename())
	}
}

func TestDownloadJob_MarkPaused(t *testing.T) {
	tests := []struct {
		from    DownloadStatus
		changed bool
		want    DownloadStatus
	}{
		{DownloadStatusActive, true, DownloadStatusPaused},
		{DownloadStatusWaiting, true, DownloadStatusPaused},
		{DownloadStatusPaused, false, DownloadStatusPaused},
		{DownloadStatusError, false, DownloadStatusError},
		{DownloadStatusComplete, false, DownloadStatusComplete},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			job := &DownloadJob{ID: "g", Status: tt.from}
			if got := job.MarkPaused(); got != tt.changed {
				t.Errorf("MarkPaused() = %v, want %v", got, tt.changed)
			}
			if job.Status != tt.want {
				t.Errorf("Status = %q, want %q", job.Status, tt.want)
			}
		})
	}
}

func TestDownloadJob_MarkUnpaused(t *testing.T) {
	tests := []struct {
		from    DownloadStatus
		changed bool
		want    DownloadStatus
	}{
		{DownloadStatusPaused, true, DownloadStatusWaiting},
		{DownloadStatusActive, false, DownloadStatusActive},
		{DownloadStatusWaiting, false, DownloadStatusWaiting},
		{DownloadStatusError, false, DownloadStatusError},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			job := &DownloadJob{ID: "g", Status: tt.from}
			if got := job.MarkUnpaused(); got != tt.changed {
				t.Errorf("MarkUnpaused() = %v, want %v", got, tt.changed)
			}
			if job.Status != tt.want {
				t.Errorf("Status = %q, want %q", job.Status, tt.want)
			}
		})
	}
}

func TestDownloadJob_ApplyProgress(t *testing.T) {
	job := NewDownloadJob("g", JobRequest{})
	code := 6

	job.ApplyProgress(Progress{Status: DownloadStatusActive, TotalBytes: 200, CompletedBytes: 50, SpeedBytesPerSec: 10, ErrorCode: &code})
	if job.LastErrorCode != nil {
		t.Error("error code should only be kept for error status")
	}
	if job.Percent() != 25 {
		t.Errorf("Percent() = %v, want 25", job.Percent())
	}

	job.ApplyProgress(Progress{Status: DownloadStatusError, TotalBytes: 200, CompletedBytes: 50, ErrorCode: &code})
	if job.LastErrorCode == nil || *job.LastErrorCode != 6 {
		t.Errorf("LastErrorCode = %v, want 6", job.LastErrorCode)
	}
}

func TestDownloadJob_Percent(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		completed int64
		want      float64
	}{
		{"unknown size", 0, 100, 0},
		{"half", 100, 50, 50},
		{"overshoot", 100, 150, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &DownloadJob{TotalBytes: tt.total, CompletedBytes: tt.completed}
			if got := job.Percent(); got != tt.want {
				t.Errorf("Percent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Intent Tests
// =============================================================================

func validRequest() DownloadRequest {
	return DownloadRequest{
		Media:      Media{ID: "646", Title: "Breaking Bad"},
		VoiceTrack: VoiceTrack{ID: "56", Name: "Original"},
		Season:     &Season{ID: "1", Name: "Season 1"},
		Episode:    &Episode{ID: "1", Name: "Episode 1"},
		Quality:    "1080p",
	}
}

func TestDownloadRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *DownloadRequest)
		wantErr bool
	}{
		{"valid episode", func(r *DownloadRequest) {}, false},
		{"valid movie", func(r *DownloadRequest) { r.Season, r.Episode = nil, nil }, false},
		{"valid season", func(r *DownloadRequest) { r.Episode = nil }, false},
		{"missing media id", func(r *DownloadRequest) { r.Media.ID = "" }, true},
		{"missing title", func(r *DownloadRequest) { r.Media.Title = "" }, true},
		{"missing voice track", func(r *DownloadRequest) { r.VoiceTrack.ID = "" }, true},
		{"missing quality", func(r *DownloadRequest) { r.Quality = "" }, true},
		{"episode without season", func(r *DownloadRequest) { r.Season = nil }, true},
		{"empty season id", func(r *DownloadRequest) { r.Season.ID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIntent) {
				t.Errorf("error should wrap ErrInvalidIntent: %v", err)
			}
		})
	}
}

func TestDownloadRequest_WithEpisode(t *testing.T) {
	req := validRequest()
	next := req.WithEpisode(Season{ID: "2"}, Episode{ID: "1"})

	if next.Season.ID != "2" {
		t.Errorf("Season.ID = %q, want 2", next.Season.ID)
	}
	if req.Season.ID != "1" {
		t.Error("original request should not change")
	}
}

func TestRetryableIntent_EncodeDecode(t *testing.T) {
	req := validRequest()
	req.All = true
	req.Subtitle = "en"

	ri, err := NewRetryableIntent(req)
	if err != nil {
		t.Fatalf("NewRetryableIntent failed: %v", err)
	}

	data, err := ri.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeRetryableIntent(data)
	if err != nil {
		t.Fatalf("DecodeRetryableIntent failed: %v", err)
	}
	if decoded.Request.Media.ID != "646" || !decoded.Request.All || decoded.Request.Subtitle != "en" {
		t.Errorf("decoded request = %+v", decoded.Request)
	}
	if decoded.Request.Episode == nil || decoded.Request.Episode.ID != "1" {
		t.Errorf("episode lost: %+v", decoded.Request.Episode)
	}
}

func TestNewRetryableIntent_Invalid(t *testing.T) {
	_, err := NewRetryableIntent(DownloadRequest{})
	if !errors.Is(err, ErrInvalidIntent) {
		t.Errorf("expected ErrInvalidIntent, got %v", err)
	}
}

func TestDecodeRetryableIntent_Rejects(t *testing.T) {
	valid, _ := json.Marshal(validRequest())

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"wrong kind", `{"kind":"upload","version":1,"request":` + string(valid) + `}`},
		{"wrong version", `{"kind":"download","version":2,"request":` + string(valid) + `}`},
		{"unknown field", `{"kind":"download","version":1,"extra":true,"request":` + string(valid) + `}`},
		{"invalid request", `{"kind":"download","version":1,"request":{"media":{"id":"1"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRetryableIntent([]byte(tt.data))
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestStreams_Subtitle(t *testing.T) {
	s := Streams{Subtitles: []SubtitleTrack{{Lang: "en", URL: "https://s/en.vtt"}, {Lang: "ru", URL: "https://s/ru.vtt"}}}

	if sub, ok := s.Subtitle("ru"); !ok || sub.URL != "https://s/ru.vtt" {
		t.Errorf("Subtitle(ru) = %+v, %v", sub, ok)
	}
	if _, ok := s.Subtitle("de"); ok {
		t.Error("Subtitle(de) should be missing")
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestDownloadError(t *testing.T) {
	base := errors.New("boom")

	withGID := NewDownloadError("gid-1", "pause", base)
	if withGID.Error() != "pause [gid-1]: boom" {
		t.Errorf("Error() = %q", withGID.Error())
	}
	if !errors.Is(withGID, base) {
		t.Error("should unwrap to base error")
	}

	noGID := NewDownloadError("", "enqueue", base)
	if noGID.Error() != "enqueue: boom" {
		t.Errorf("Error() = %q", noGID.Error())
	}
}

package downloader

import (
	"testing"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

func TestResolution(t *testing.T) {
	tests := map[string]int{
		"360p":        360,
		"1080p Ultra": 1080,
		"4K":          2160,
		"2k":          1440,
		"HD":          0,
	}
	for label, want := range tests {
		if got := resolution(label); got != want {
			t.Errorf("resolution(%q) = %d, want %d", label, got, want)
		}
	}
}

func candidates(labels ...string) []domain.StreamCandidate {
	out := make([]domain.StreamCandidate, len(labels))
	for i, l := range labels {
		out[i] = domain.StreamCandidate{Quality: l, URL: "u" + l}
	}
	return out
}

func TestSelectQuality(t *testing.T) {
	tests := []struct {
		name      string
		available []domain.StreamCandidate
		requested string
		want      string
	}{
		{"exact", candidates("360p", "720p", "1080p"), "720p", "720p"},
		{"exact ignores case", candidates("360p", "1080p Ultra"), "1080P ULTRA", "1080p Ultra"},
		{"nearest", candidates("360p", "1080p"), "900p", "1080p"},
		{"tie goes lower", candidates("480p", "1080p"), "780p", "480p"},
		{"unparseable request takes highest", candidates("360p", "4K", "720p"), "best", "4K"},
		{"unparseable labels skipped", candidates("HD", "480p"), "720p", "480p"},
		{"nothing parses takes last", candidates("HD", "SD"), "720p", "SD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := selectQuality(tt.available, tt.requested)
			if !ok {
				t.Fatal("expected a candidate")
			}
			if got.Quality != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Quality)
			}
		})
	}
}

func TestSelectQuality_Empty(t *testing.T) {
	if _, ok := selectQuality(nil, "720p"); ok {
		t.Error("expected no candidate")
	}
}

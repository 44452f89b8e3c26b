package downloader

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

// maxSegmentRunes is the budget for a single path component.
const maxSegmentRunes = 255

const (
	videoExt    = ".mp4"
	subtitleExt = ".vtt"
	ellipsis    = "…"
)

// sanitizeSegment makes s usable as one path component. Colons become dots
// first, then slashes become colons, which Finder shows as slashes.
func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, ":", ".")
	return strings.ReplaceAll(s, "/", ":")
}

// fitSegment sanitizes base and suffix and truncates base with an ellipsis
// so that the joined component stays within maxSegmentRunes.
func fitSegment(base, suffix string) string {
	seg := truncateSegment(sanitizeSegment(base), sanitizeSegment(suffix))
	if isDotSegment(seg) {
		// "." and ".." would collapse into the parent directory.
		return strings.Repeat("_", len(seg))
	}
	return seg
}

func isDotSegment(s string) bool {
	return s == "." || s == ".."
}

// truncateSegment joins already sanitized parts within the budget.
func truncateSegment(base, suffix string) string {
	if utf8.RuneCountInString(base)+utf8.RuneCountInString(suffix) <= maxSegmentRunes {
		return base + suffix
	}

	room := maxSegmentRunes - utf8.RuneCountInString(suffix) - 1
	if room < 1 {
		// The suffix alone blows the budget: keep its tail.
		whole := []rune(base + suffix)
		return ellipsis + string(whole[len(whole)-maxSegmentRunes+1:])
	}
	return string([]rune(base)[:room]) + ellipsis + suffix
}

// titleLabel is "<title>[ <quality>][ <voice track>]" split into the part
// that may be truncated and the part that must survive.
func titleLabel(req domain.DownloadRequest) (string, string) {
	var suffix strings.Builder
	if req.Quality != "" {
		suffix.WriteString(" " + req.Quality)
	}
	if req.VoiceTrack.Name != "" {
		suffix.WriteString(" " + req.VoiceTrack.Name)
	}
	return displayOr(req.Media.Title, req.Media.ID), suffix.String()
}

// displayOr returns name unless it is blank or a bare dot segment.
func displayOr(name, id string) string {
	if n := strings.TrimSpace(name); n != "" && !isDotSegment(n) {
		return name
	}
	return id
}

// destinationPath returns the file a request is downloaded to:
// <root>/<title>[ q][ v]/<season>/<episode>.mp4 for episodes and
// <root>/<title>[ q][ v].mp4 for movies.
func destinationPath(root string, req domain.DownloadRequest) string {
	title, suffix := titleLabel(req)
	if req.IsMovie() {
		return filepath.Join(root, fitSegment(title, suffix+videoExt))
	}

	season := displayOr(req.Season.Name, req.Season.ID)
	episode := ""
	if req.Episode != nil {
		episode = displayOr(req.Episode.Name, req.Episode.ID)
	}
	return filepath.Join(root,
		fitSegment(title, suffix),
		fitSegment(season, ""),
		fitSegment(episode, videoExt),
	)
}

// subtitlePath puts a subtitle next to its video, with the language tag
// before the extension taken from the subtitle URL.
func subtitlePath(videoPath string, sub domain.SubtitleTrack) string {
	ext := subtitleExt
	if u := sub.URL; u != "" {
		if i := strings.IndexAny(u, "?#"); i >= 0 {
			u = u[:i]
		}
		if e := strings.ToLower(filepath.Ext(u)); e != "" && len(e) <= 5 {
			ext = e
		}
	}

	dir, file := filepath.Split(videoPath)
	base := strings.TrimSuffix(file, videoExt)
	return filepath.Join(dir, truncateSegment(strings.TrimSuffix(base, ellipsis), "."+sanitizeSegment(sub.Lang)+ext))
}

// displayName is the human label used in notifications.
func displayName(req domain.DownloadRequest) string {
	if req.IsMovie() {
		return req.Media.Title
	}
	name := req.Media.Title + ", " + displayOr(req.Season.Name, "Season "+req.Season.ID)
	if req.Episode != nil {
		name += ", " + displayOr(req.Episode.Name, "Episode "+req.Episode.ID)
	}
	return name
}

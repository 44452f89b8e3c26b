package downloader

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

var resolutionPattern = regexp.MustCompile(`(\d{3,4})p`)

// resolution extracts the vertical resolution from a quality label such as
// "720p", "1080p Ultra", "2K" or "4K". It returns 0 when none is found.
func resolution(label string) int {
	l := strings.ToLower(label)
	if m := resolutionPattern.FindStringSubmatch(l); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	switch {
	case strings.Contains(l, "4k"):
		return 2160
	case strings.Contains(l, "2k"):
		return 1440
	}
	return 0
}

// selectQuality picks the candidate for the requested quality:
//   - an exact, case-insensitive label match wins;
//   - otherwise the candidate with the nearest resolution, ties going to the
//     lower resolution and then to the earlier candidate;
//   - an unparseable request gets the highest resolution available.
//
// Candidates with unparseable labels are only chosen by exact match, or as
// the last listed candidate when no label parses at all.
func selectQuality(candidates []domain.StreamCandidate, requested string) (domain.StreamCandidate, bool) {
	if len(candidates) == 0 {
		return domain.StreamCandidate{}, false
	}

	for _, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(c.Quality), strings.TrimSpace(requested)) {
			return c, true
		}
	}

	want := resolution(requested)
	best := -1
	bestRes := 0
	for i, c := range candidates {
		res := resolution(c.Quality)
		if res == 0 {
			continue
		}
		if best < 0 {
			best, bestRes = i, res
			continue
		}
		if want == 0 {
			if res > bestRes {
				best, bestRes = i, res
			}
			continue
		}
		d, bestD := abs(res-want), abs(bestRes-want)
		if d < bestD || (d == bestD && res < bestRes) {
			best, bestRes = i, res
		}
	}

	if best < 0 {
		return candidates[len(candidates)-1], true
	}
	return candidates[best], true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

package site

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// Stream is one playable URL at a quality label such as "720p".
type Stream struct {
	Quality string
	URL     string
}

// Subtitle is a subtitle file offered for a stream.
type Subtitle struct {
	Lang string
	Name string
	URL  string
}

var bracketEntry = regexp.MustCompile(`\[([^\]]*)\]([^\[]*)`)

// ParseStreams parses "[quality]url or url,[quality]url" into streams,
// preferring the direct mp4 alternative of each entry. Obfuscated strings
// starting with "#h" are decoded first.
func ParseStreams(raw string) ([]Stream, error) {
	if strings.HasPrefix(raw, "#h") {
		decoded, err := decodeObfuscated(raw)
		if err != nil {
			return nil, err
		}
		raw = decoded
	}

	var streams []Stream
	for _, m := range bracketEntry.FindAllStringSubmatch(raw, -1) {
		quality := strings.TrimSpace(stripTags(m[1]))
		link := pickAlternative(strings.TrimRight(strings.TrimSpace(m[2]), ","))
		if quality == "" || link == "" || link == "null" {
			continue
		}
		streams = append(streams, Stream{Quality: quality, URL: link})
	}
	return streams, nil
}

func pickAlternative(entry string) string {
	alternatives := strings.Split(entry, " or ")
	for _, alt := range alternatives {
		alt = strings.TrimSpace(alt)
		if strings.HasSuffix(alt, ".mp4") {
			return alt
		}
	}
	return strings.TrimSpace(alternatives[0])
}

var tag = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tag.ReplaceAllString(s, "")
}

// ParseSubtitles parses "[Name]url,[Name]url". langs maps display names to
// language codes; names missing from it are lowercased.
func ParseSubtitles(raw string, langs map[string]string) []Subtitle {
	var subs []Subtitle
	for _, m := range bracketEntry.FindAllStringSubmatch(raw, -1) {
		name := strings.TrimSpace(m[1])
		link := strings.TrimRight(strings.TrimSpace(m[2]), ",")
		if name == "" || link == "" {
			continue
		}
		lang, ok := langs[name]
		if !ok {
			lang = strings.ToLower(name)
		}
		subs = append(subs, Subtitle{Lang: lang, Name: name, URL: link})
	}
	return subs
}

// trashBlocks are the base64 fragments injected into obfuscated stream strings.
var trashBlocks = func() []string {
	symbols := []string{"@", "#", "!", "^", "$"}
	var blocks []string
	for _, a := range symbols {
		for _, b := range symbols {
			blocks = append(blocks, base64.StdEncoding.EncodeToString([]byte(a+b)))
			for _, c := range symbols {
				blocks = append(blocks, base64.StdEncoding.EncodeToString([]byte(a+b+c)))
			}
		}
	}
	return blocks
}()

func decodeObfuscated(raw string) (string, error) {
	s := strings.TrimPrefix(raw, "#h")
	s = strings.ReplaceAll(s, "//_//", "")
	for _, block := range trashBlocks {
		s = strings.ReplaceAll(s, block, "")
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode stream string: %w", err)
	}
	return string(decoded), nil
}

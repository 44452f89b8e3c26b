// Package site is a client for the streaming site's AJAX endpoints.
package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// ErrPremium is returned when the selection is only playable with a premium account.
var ErrPremium = errors.New("premium content")

// ErrUnsuccessful is returned when the site answers with success=false.
var ErrUnsuccessful = errors.New("site request failed")

const userCookie = "dle_user_id"

// Config for creating a new site client.
type Config struct {
	BaseURL       string
	SessionCookie string // raw "name=value; name2=value2" cookie header
	UserAgent     string
	Timeout       time.Duration // Optional, defaults to 30 seconds
}

// Client talks to the site's AJAX endpoints.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a site client with a cookie jar seeded from the
// configured session cookie.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if cookies := parseCookieHeader(cfg.SessionCookie); len(cookies) > 0 {
		jar.SetCookies(base, cookies)
	}

	return &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		now: time.Now,
	}, nil
}

func parseCookieHeader(raw string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	return cookies
}

// Authenticated reports whether the jar holds a logged-in session.
func (c *Client) Authenticated() bool {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == userCookie && cookie.Value != "" && cookie.Value != "0" {
			return true
		}
	}
	return false
}

// StreamRequest selects what to resolve. Season and Episode are empty for movies.
type StreamRequest struct {
	MediaID        string
	VoiceTrackID   string
	SeasonID       string
	EpisodeID      string
	FavsToken      string
	IsCamrip       bool
	IsAds          bool
	IsDirectorsCut bool
}

// Movie reports whether the request targets a movie.
func (r StreamRequest) Movie() bool {
	return r.SeasonID == ""
}

// StreamResult is the site's answer for a selection.
type StreamResult struct {
	Streams   []Stream
	Subtitles []Subtitle
}

// GetStreams resolves a selection into stream URLs. Premium-only content
// returns ErrPremium.
func (c *Client) GetStreams(ctx context.Context, req StreamRequest) (*StreamResult, error) {
	form := url.Values{}
	form.Set("id", req.MediaID)
	form.Set("translator_id", req.VoiceTrackID)
	form.Set("favs", req.FavsToken)
	if req.Movie() {
		form.Set("action", "get_movie")
		form.Set("is_camrip", boolFlag(req.IsCamrip))
		form.Set("is_ads", boolFlag(req.IsAds))
		form.Set("is_director", boolFlag(req.IsDirectorsCut))
	} else {
		form.Set("action", "get_stream")
		form.Set("season", req.SeasonID)
		form.Set("episode", req.EpisodeID)
	}

	var resp streamResponse
	if err := c.post(ctx, "/ajax/get_cdn_series/", form, &resp); err != nil {
		return nil, err
	}
	if resp.Premium {
		return nil, ErrPremium
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, resp.Message)
	}

	streams, err := ParseStreams(string(resp.URL))
	if err != nil {
		return nil, err
	}
	result := &StreamResult{Streams: streams}
	if resp.Subtitle != "" {
		result.Subtitles = ParseSubtitles(string(resp.Subtitle), resp.SubtitleLangs.Map)
	}
	return result, nil
}

type streamResponse struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	Premium       flexBool    `json:"premium_content"`
	URL           flexString  `json:"url"`
	Subtitle      flexString  `json:"subtitle"`
	SubtitleLangs subtitleMap `json:"subtitle_lns"`
}

// Episode as listed by the site.
type Episode struct {
	ID   string
	Name string
}

// Season as listed by the site, with its episodes.
type Season struct {
	ID       string
	Name     string
	Episodes []Episode
}

var (
	seasonTab   = regexp.MustCompile(`data-tab_id="(\d+)"[^>]*>([^<]*)<`)
	episodeItem = regexp.MustCompile(`data-season_id="(\d+)"\s+data-episode_id="(\d+)"[^>]*>([^<]*)<`)
)

// GetEpisodes lists the seasons and episodes available for a voice track.
func (c *Client) GetEpisodes(ctx context.Context, mediaID, voiceTrackID, favs string) ([]Season, error) {
	form := url.Values{}
	form.Set("id", mediaID)
	form.Set("translator_id", voiceTrackID)
	form.Set("favs", favs)
	form.Set("action", "get_episodes")

	var resp struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Seasons  string `json:"seasons"`
		Episodes string `json:"episodes"`
	}
	if err := c.post(ctx, "/ajax/get_cdn_series/", form, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, resp.Message)
	}

	var seasons []Season
	index := map[string]int{}
	for _, m := range seasonTab.FindAllStringSubmatch(resp.Seasons, -1) {
		index[m[1]] = len(seasons)
		seasons = append(seasons, Season{ID: m[1], Name: strings.TrimSpace(m[2])})
	}
	for _, m := range episodeItem.FindAllStringSubmatch(resp.Episodes, -1) {
		i, ok := index[m[1]]
		if !ok {
			index[m[1]] = len(seasons)
			i = len(seasons)
			seasons = append(seasons, Season{ID: m[1], Name: m[1]})
		}
		seasons[i].Episodes = append(seasons[i].Episodes, Episode{ID: m[2], Name: strings.TrimSpace(m[3])})
	}
	return seasons, nil
}

// WatchProgress is a playback position to sync to the user's account.
type WatchProgress struct {
	MediaID      string
	VoiceTrackID string
	SeasonID     string
	EpisodeID    string
	Position     time.Duration
	Duration     time.Duration
}

// SaveWatchProgress records a playback position for the logged-in user.
func (c *Client) SaveWatchProgress(ctx context.Context, p WatchProgress) error {
	form := url.Values{}
	form.Set("post_id", p.MediaID)
	form.Set("translator_id", p.VoiceTrackID)
	form.Set("season", p.SeasonID)
	form.Set("episode", p.EpisodeID)
	form.Set("current_time", strconv.FormatInt(int64(p.Position/time.Second), 10))
	form.Set("duration", strconv.FormatInt(int64(p.Duration/time.Second), 10))

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/ajax/send_save/", form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrUnsuccessful, resp.Message)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	q := endpoint.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("site error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// flexString accepts a JSON string or false/null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = ""
	return nil
}

// flexBool accepts true/false or 0/1.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// subtitleMap accepts an object of display name to language code, or false.
type subtitleMap struct {
	Map map[string]string
}

func (m *subtitleMap) UnmarshalJSON(data []byte) error {
	var langs map[string]string
	if err := json.Unmarshal(data, &langs); err == nil {
		m.Map = langs
	}
	return nil
}

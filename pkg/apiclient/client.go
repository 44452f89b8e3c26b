// Package apiclient talks to a running seriesgrab control API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

// Client communicates with the control API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Job is a download as reported by the API.
type Job struct {
	GID              string    `json:"gid"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	Quality          string    `json:"quality"`
	Destination      string    `json:"destination"`
	TotalBytes       int64     `json:"total_bytes"`
	CompletedBytes   int64     `json:"completed_bytes"`
	SpeedBytesPerSec int64     `json:"speed_bytes_per_sec"`
	Percent          float64   `json:"percent"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// JobList is the response from the list endpoint.
type JobList struct {
	Downloads []Job `json:"downloads"`
	Total     int   `json:"total"`
}

// NotificationList is the response from the notifications endpoint.
type NotificationList struct {
	Notifications []domain.Notification `json:"notifications"`
	Total         int                   `json:"total"`
	HasMore       bool                  `json:"has_more"`
}

// NotificationQuery selects notifications. Zero values are omitted.
type NotificationQuery struct {
	Kind       string
	Action     string
	Limit      int
	Historical bool
}

// ActionResult is the outcome of a notification action.
type ActionResult struct {
	Action string `json:"action"`
	GID    string `json:"gid,omitempty"`
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// NewClient creates a new control API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit queues a download request.
func (c *Client) Submit(ctx context.Context, req domain.DownloadRequest) error {
	return c.doRequest(ctx, http.MethodPost, "/api/v1/downloads", req, nil)
}

// List returns the current downloads.
func (c *Client) List(ctx context.Context) ([]Job, error) {
	var resp JobList
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/downloads", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Downloads, nil
}

// Get returns one download.
func (c *Client) Get(ctx context.Context, gid string) (*Job, error) {
	var job Job
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/downloads/"+url.PathEscape(gid), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Pause pauses a download.
func (c *Client) Pause(ctx context.Context, gid string) (*Job, error) {
	var job Job
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/downloads/"+url.PathEscape(gid)+"/pause", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Resume unpauses a download.
func (c *Client) Resume(ctx context.Context, gid string) (*Job, error) {
	var job Job
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/downloads/"+url.PathEscape(gid)+"/unpause", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Cancel removes a download.
func (c *Client) Cancel(ctx context.Context, gid string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/v1/downloads/"+url.PathEscape(gid), nil, nil)
}

// SetConcurrency changes how many downloads the daemon runs at once.
func (c *Client) SetConcurrency(ctx context.Context, n int) error {
	body := map[string]int{"max_concurrent": n}
	return c.doRequest(ctx, http.MethodPut, "/api/v1/concurrency", body, nil)
}

// Notifications lists notifications matching q.
func (c *Client) Notifications(ctx context.Context, q NotificationQuery) (*NotificationList, error) {
	params := url.Values{}
	if q.Kind != "" {
		params.Set("kind", q.Kind)
	}
	if q.Action != "" {
		params.Set("action", q.Action)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Historical {
		params.Set("historical", "true")
	}

	path := "/api/v1/notifications"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp NotificationList
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Act performs the action a notification offers.
func (c *Client) Act(ctx context.Context, id string) (*ActionResult, error) {
	var result ActionResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/notifications/"+url.PathEscape(id)+"/action", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

package aria2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Config for creating a new RPC client.
type Config struct {
	Endpoint string        // e.g. http://127.0.0.1:6800/jsonrpc
	Secret   string        // shared secret the daemon was started with
	Timeout  time.Duration // Optional, defaults to 10 seconds
}

// Client issues JSON-RPC calls to a running aria2 daemon.
// It never retries; callers decide what a failure means.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	newID      func() string
}

// NewClient creates a new aria2 RPC client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		endpoint: cfg.Endpoint,
		token:    "token:" + cfg.Secret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		newID: uuid.NewString,
	}
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) request(method string, args []any) Request {
	params := make([]any, 0, len(args)+1)
	params = append(params, c.token)
	params = append(params, args...)

	return Request{
		ID:      c.newID(),
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	}
}

// Call performs a single JSON-RPC call and decodes its result into result,
// which may be nil when the caller does not care about the value.
func (c *Client) Call(ctx context.Context, method string, result any, args ...any) error {
	req := c.request(method, args)

	body, err := c.post(ctx, method, req)
	if err != nil {
		return err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return &TransportError{Method: method, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Error != nil {
		return resp.Error
	}
	if len(resp.Result) == 0 {
		return &DecodeError{Method: method, Err: errors.New("response has neither result nor error")}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return &DecodeError{Method: method, Err: err}
	}
	return nil
}

// Multicall sends all calls in one batched POST. The returned slice has one
// Result per call, in order. Only a transport failure returns a non-nil error.
func (c *Client) Multicall(ctx context.Context, calls []MethodCall) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	reqs := make([]Request, len(calls))
	index := make(map[string]int, len(calls))
	for i, call := range calls {
		reqs[i] = c.request(call.Method, call.Args)
		index[reqs[i].ID] = i
	}

	body, err := c.post(ctx, "multicall", reqs)
	if err != nil {
		return nil, err
	}

	var resps []Response
	if err := json.Unmarshal(body, &resps); err != nil {
		return nil, &TransportError{Method: "multicall", Err: fmt.Errorf("decode batch response: %w", err)}
	}

	results := make([]Result, len(calls))
	seen := make([]bool, len(calls))
	for _, resp := range resps {
		i, ok := index[resp.ID]
		if !ok {
			continue
		}
		seen[i] = true
		results[i] = Result{Method: calls[i].Method, Raw: resp.Result}
		if resp.Error != nil {
			results[i].Err = resp.Error
		} else if len(resp.Result) == 0 {
			results[i].Err = &DecodeError{Method: calls[i].Method, Err: errors.New("response has neither result nor error")}
		}
	}
	for i := range results {
		if !seen[i] {
			results[i] = Result{
				Method: calls[i].Method,
				Err:    &DecodeError{Method: calls[i].Method, Err: errors.New("missing from batch response")},
			}
		}
	}

	return results, nil
}

func (c *Client) post(ctx context.Context, method string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, &TransportError{Method: method, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Err: fmt.Errorf("read response: %w", err)}
	}

	// The daemon answers failed calls with a 4xx/5xx status and a JSON-RPC
	// error body, so only an undecodable non-2xx reply is a transport error.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if !json.Valid(body) {
			return nil, &TransportError{Method: method, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
		}
	}

	return body, nil
}

// IsTransport reports whether err came from reaching the daemon rather than
// from the daemon itself.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

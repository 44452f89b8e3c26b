package aria2

import (
	"context"
	"fmt"
)

// AddURI enqueues a download and returns the daemon-assigned gid.
func (c *Client) AddURI(ctx context.Context, uris []string, opts Options) (string, error) {
	var gid string
	if err := c.Call(ctx, MethodAddURI, &gid, uris, opts); err != nil {
		return "", err
	}
	if gid == "" {
		return "", &DecodeError{Method: MethodAddURI, Err: fmt.Errorf("empty gid")}
	}
	return gid, nil
}

// Remove stops a download. The daemon echoes the gid on success.
func (c *Client) Remove(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, MethodRemove, gid)
}

// Pause pauses a download. The daemon echoes the gid on success.
func (c *Client) Pause(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, MethodPause, gid)
}

// Unpause moves a paused download back to waiting.
func (c *Client) Unpause(ctx context.Context, gid string) (string, error) {
	return c.gidCall(ctx, MethodUnpause, gid)
}

func (c *Client) gidCall(ctx context.Context, method, gid string) (string, error) {
	var echoed string
	if err := c.Call(ctx, method, &echoed, gid); err != nil {
		return "", err
	}
	return echoed, nil
}

// RemoveDownloadResult clears a stopped download from the daemon's memory.
func (c *Client) RemoveDownloadResult(ctx context.Context, gid string) error {
	return c.Call(ctx, MethodRemoveDownloadResult, nil, gid)
}

// ChangeGlobalOption updates daemon-wide options such as max-concurrent-downloads.
func (c *Client) ChangeGlobalOption(ctx context.Context, opts Options) error {
	return c.Call(ctx, MethodChangeGlobalOption, nil, opts)
}

// GetGlobalStat returns aggregate counters for the daemon.
func (c *Client) GetGlobalStat(ctx context.Context) (*GlobalStat, error) {
	var stat GlobalStat
	if err := c.Call(ctx, MethodGetGlobalStat, &stat); err != nil {
		return nil, err
	}
	return &stat, nil
}

// TellActive lists active downloads.
func (c *Client) TellActive(ctx context.Context, keys ...string) ([]StatusInfo, error) {
	var out []StatusInfo
	call := TellActiveCall(keys...)
	if err := c.Call(ctx, call.Method, &out, call.Args...); err != nil {
		return nil, err
	}
	return out, nil
}

// TellWaiting lists waiting and paused downloads.
func (c *Client) TellWaiting(ctx context.Context, offset, num int, keys ...string) ([]StatusInfo, error) {
	var out []StatusInfo
	call := TellWaitingCall(offset, num, keys...)
	if err := c.Call(ctx, call.Method, &out, call.Args...); err != nil {
		return nil, err
	}
	return out, nil
}

// TellStopped lists stopped downloads.
func (c *Client) TellStopped(ctx context.Context, offset, num int, keys ...string) ([]StatusInfo, error) {
	var out []StatusInfo
	call := TellStoppedCall(offset, num, keys...)
	if err := c.Call(ctx, call.Method, &out, call.Args...); err != nil {
		return nil, err
	}
	return out, nil
}

// TellActiveCall builds a tellActive entry for Multicall.
func TellActiveCall(keys ...string) MethodCall {
	return MethodCall{Method: MethodTellActive, Args: keyArgs(nil, keys)}
}

// TellWaitingCall builds a tellWaiting entry for Multicall.
func TellWaitingCall(offset, num int, keys ...string) MethodCall {
	return MethodCall{Method: MethodTellWaiting, Args: keyArgs([]any{offset, num}, keys)}
}

// TellStoppedCall builds a tellStopped entry for Multicall.
func TellStoppedCall(offset, num int, keys ...string) MethodCall {
	return MethodCall{Method: MethodTellStopped, Args: keyArgs([]any{offset, num}, keys)}
}

func keyArgs(args []any, keys []string) []any {
	if len(keys) > 0 {
		args = append(args, keys)
	}
	return args
}

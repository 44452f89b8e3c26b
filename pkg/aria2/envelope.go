package aria2

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol tag sent with every request.
const Version = "2.0"

// ContentType is the media type the daemon expects for request bodies.
const ContentType = "application/json-rpc"

// Method names used by this package.
const (
	MethodAddURI               = "aria2.addUri"
	MethodRemove               = "aria2.remove"
	MethodPause                = "aria2.pause"
	MethodUnpause              = "aria2.unpause"
	MethodTellActive           = "aria2.tellActive"
	MethodTellWaiting          = "aria2.tellWaiting"
	MethodTellStopped          = "aria2.tellStopped"
	MethodChangeGlobalOption   = "aria2.changeGlobalOption"
	MethodRemoveDownloadResult = "aria2.removeDownloadResult"
	MethodGetGlobalStat        = "aria2.getGlobalStat"
)

// Request is the outbound envelope. Fields are declared in wire order.
type Request struct {
	ID      string `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// Response is the inbound envelope. Exactly one of Result and Error is set.
type Response struct {
	ID      string          `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error reported by the daemon itself.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("aria2 rpc error %d: %s", e.Code, e.Message)
}

// TransportError means the daemon could not be reached or its reply was not
// a JSON-RPC document.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return "aria2 transport [" + e.Method + "]: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError means a well-formed reply carried a result of the wrong shape.
type DecodeError struct {
	Method string
	Err    error
}

func (e *DecodeError) Error() string {
	return "aria2 decode [" + e.Method + "]: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MethodCall is one entry of a batched multicall.
type MethodCall struct {
	Method string
	Args   []any
}

// Result is the outcome of one MethodCall inside a multicall.
type Result struct {
	Method string
	Raw    json.RawMessage
	Err    error
}

// Decode unmarshals the call's result into v.
func (r Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return &DecodeError{Method: r.Method, Err: err}
	}
	return nil
}

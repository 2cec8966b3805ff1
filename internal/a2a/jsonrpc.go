package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JSONRPCVersion is the only protocol version model agents speak.
const JSONRPCVersion = "2.0"

// Methods a model agent answers. Streaming and task listing are not served:
// a consortium round waits for whole answers.
const (
	MethodSendMessage = "message/send"
	MethodGetTask     = "tasks/get"
	MethodCancelTask  = "tasks/cancel"
)

// Error codes. The first block is JSON-RPC 2.0; the rest are agent codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	ErrCodeTaskNotFound = -32001

	// ErrCodeRateLimited is returned by model agents whose upstream provider
	// refused the request for rate-limit reasons.
	ErrCodeRateLimited = -32029
)

// JSONRPCRequest is the envelope of one call.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse carries either Result or Error.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is the error object of a failed call.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RPCError is a JSON-RPC error returned by a remote agent.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("a2a: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("a2a: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// RateLimitError is returned when an agent answers HTTP 429 or the
// rate-limit code. Callers may retry after a delay.
type RateLimitError struct {
	Method     string
	RetryAfter string
	Message    string
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("a2a: %s: RateLimitError", e.Method)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter != "" {
		msg += " (retry after " + e.RetryAfter + ")"
	}
	return msg
}

// asCallError turns an error object received for method into a Go error.
func asCallError(method string, e *JSONRPCError) error {
	if e.Code == ErrCodeRateLimited {
		return &RateLimitError{Method: method, Message: e.Message}
	}
	return &RPCError{Method: method, Code: e.Code, Message: e.Message, Data: e.Data}
}

// errorCode picks the code a server reports for a handler error.
func errorCode(err error) int {
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		return ErrCodeRateLimited
	case errors.Is(err, ErrTaskNotFound):
		return ErrCodeTaskNotFound
	default:
		return ErrCodeInternal
	}
}

package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Client reaches model agents. The consortium only ever sends one prompt and
// reads one answer per call, so the surface stays small.
type Client interface {
	// SendMessage blocks until the agent has answered the prompt in req.
	SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error)
	GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error)
	// DiscoverAgent reads the agent card published under baseURL.
	DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error)
}

var _ Client = (*HTTPClient)(nil)

// DefaultTimeout bounds a single model call. Model agents may take minutes
// to answer a long prompt.
const DefaultTimeout = 5 * time.Minute

// cardPath is where agents publish their card.
const cardPath = "/.well-known/agent-card.json"

// HTTPClient speaks JSON-RPC over HTTP POST.
type HTTPClient struct {
	http *http.Client
	ids  atomic.Int64
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = hc }
}

func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{http: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error) {
	return c.task(ctx, endpoint, MethodSendMessage, req)
}

func (c *HTTPClient) GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error) {
	return c.task(ctx, endpoint, MethodGetTask, req)
}

func (c *HTTPClient) DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error) {
	resp, err := c.do(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+cardPath, nil)
	if err != nil {
		return nil, fmt.Errorf("a2a: discover agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("a2a: discover agent: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("a2a: decode agent card: %w", err)
	}
	return &card, nil
}

func (c *HTTPClient) task(ctx context.Context, endpoint, method string, params any) (*Task, error) {
	var t Task
	if err := c.call(ctx, endpoint, method, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) do(ctx context.Context, verb, url string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, verb, url, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// call performs one JSON-RPC round trip. HTTP 429 and the rate-limit code
// both surface as *RateLimitError.
func (c *HTTPClient) call(ctx context.Context, endpoint, method string, params, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("a2a: marshal params: %w", err)
	}
	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      c.ids.Add(1),
		Method:  method,
		Params:  raw,
	})
	if err != nil {
		return fmt.Errorf("a2a: marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("a2a: %s: %w", method, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("a2a: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Method:     method,
			RetryAfter: resp.Header.Get("Retry-After"),
			Message:    strings.TrimSpace(string(payload)),
		}
	default:
		return fmt.Errorf("a2a: %s: HTTP %d: %s", method, resp.StatusCode, string(payload))
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(payload, &rpcResp); err != nil {
		return fmt.Errorf("a2a: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return asCallError(method, rpcResp.Error)
	}
	if result == nil || rpcResp.Result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("a2a: decode result: %w", err)
	}
	return nil
}

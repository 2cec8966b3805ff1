package model

import (
	"context"
	"log"
	"time"

	"github.com/dusk-indust/consortium/internal/parse"
	"github.com/dusk-indust/consortium/internal/store"
)

// MaxAttempts bounds how many rate-limited calls one invocation makes.
const MaxAttempts = 3

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Invoker calls a Client for one model instance and never fails: every
// outcome, including errors, is folded into a Response.
type Invoker struct {
	client Client
	sink   store.LogSink
	logger *log.Logger
	sleep  SleepFunc
	now    func() time.Time
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithLogSink appends every completion to sink.
func WithLogSink(sink store.LogSink) InvokerOption {
	return func(i *Invoker) { i.sink = sink }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) InvokerOption {
	return func(i *Invoker) { i.logger = l }
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn SleepFunc) InvokerOption {
	return func(i *Invoker) { i.sleep = fn }
}

// WithClock replaces time.Now for log entry timestamps.
func WithClock(now func() time.Time) InvokerOption {
	return func(i *Invoker) { i.now = now }
}

// NewInvoker returns an Invoker that calls client.
func NewInvoker(client Client, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		client: client,
		logger: log.Default(),
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke sends prompt to instance of model. When conv holds a handle for the
// pair the conversation is continued; otherwise the handle returned by the
// model is recorded for subsequent rounds. A nil conv disables continuity.
//
// Rate-limited calls are retried up to MaxAttempts times, waiting 2^k seconds
// before retry k. Any other error returns immediately.
func (i *Invoker) Invoke(ctx context.Context, model string, instance int, prompt string, conv *Conversations) Response {
	resp := Response{Model: model, Instance: instance}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		req := Request{
			Model:          model,
			Prompt:         prompt,
			ConversationID: conv.Get(model, instance),
		}

		c, err := i.client.Prompt(ctx, req)
		if err == nil {
			return i.complete(ctx, resp, req, c, conv)
		}
		if !IsRateLimit(err) {
			i.logger.Printf("WARNING: %s instance %d: %v", model, instance, err)
			resp.Error = err.Error()
			return resp
		}
		if attempt == MaxAttempts {
			break
		}

		wait := time.Duration(1<<attempt) * time.Second
		i.logger.Printf("WARNING: rate limit for %s, retrying in %s (attempt %d)", model, wait, attempt)
		if err := i.sleep(ctx, wait); err != nil {
			resp.Error = err.Error()
			return resp
		}
	}

	resp.Error = ErrRateLimited
	return resp
}

func (i *Invoker) complete(ctx context.Context, resp Response, req Request, c *Completion, conv *Conversations) Response {
	if c == nil {
		c = &Completion{}
	}
	if req.ConversationID == "" {
		conv.Record(req.Model, resp.Instance, c.ConversationID)
	}

	if reason := FinishReason(c.Metadata); Truncated(reason) {
		i.logger.Printf("WARNING: %s instance %d response truncated (finish reason %q)", req.Model, resp.Instance, reason)
	}

	resp.Text = c.Text
	resp.Confidence = parse.Confidence(c.Text, 0)
	resp.ConversationID = c.ConversationID
	if resp.ConversationID == "" {
		resp.ConversationID = req.ConversationID
	}

	i.record(ctx, resp, req, c, conv.RunID())
	return resp
}

// record appends the exchange to the log sink. Failures are logged only.
func (i *Invoker) record(ctx context.Context, resp Response, req Request, c *Completion, runID string) {
	if i.sink == nil {
		return
	}
	entry := store.LogEntry{
		RunID:          runID,
		Model:          req.Model,
		Instance:       resp.Instance,
		Prompt:         req.Prompt,
		Response:       c.Text,
		ConversationID: resp.ConversationID,
		Metadata:       c.Metadata,
		CreatedAt:      i.now(),
	}
	if err := i.sink.LogResponse(ctx, entry); err != nil {
		i.logger.Printf("WARNING: model: log response from %s: %v", req.Model, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

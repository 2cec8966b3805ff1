// Package model is the invocation boundary between the consortium and the
// language models it consults. A Client performs one prompt; an Invoker adds
// conversation continuity, rate-limit retries, truncation warnings and
// response logging on top of it.
package model

import "context"

// Client sends a single prompt to a named model.
type Client interface {
	Prompt(ctx context.Context, req Request) (*Completion, error)
}

// Request is one prompt addressed to a model. An empty ConversationID starts
// a new conversation. System is sent alongside the prompt for backends that
// take a separate system prompt; the consortium itself folds its system
// prompt into Prompt and leaves System empty.
type Request struct {
	Model          string
	Prompt         string
	System         string
	ConversationID string
}

// Completion is the model's answer. ConversationID is the handle that
// continues this conversation on the next call, if the backend supports it.
type Completion struct {
	Text           string
	ConversationID string
	Metadata       map[string]any
}

// Response is the outcome of one model instance for one round. Exactly one
// of Text and Error is meaningful.
type Response struct {
	Model          string  `json:"model"`
	Instance       int     `json:"instance"`
	Text           string  `json:"response,omitempty"`
	Confidence     float64 `json:"confidence"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// Failed reports whether the instance produced an error instead of text.
func (r Response) Failed() bool {
	return r.Error != ""
}

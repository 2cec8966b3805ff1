package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/consortium/internal/a2a"
	"github.com/google/uuid"
)

// Compile-time interface check.
var _ Client = (*A2AClient)(nil)

// A2AClient reaches models that are exposed as A2A agents. Each model id is
// routed to an endpoint; the id itself travels in the message metadata so
// one endpoint can front several models.
type A2AClient struct {
	client    a2a.Client
	endpoints map[string]string
	fallback  string
}

// NewA2AClient routes models through endpoints, falling back to
// defaultEndpoint for models without an entry.
func NewA2AClient(client a2a.Client, endpoints map[string]string, defaultEndpoint string) *A2AClient {
	eps := make(map[string]string, len(endpoints))
	for k, v := range endpoints {
		eps[k] = v
	}
	return &A2AClient{client: client, endpoints: eps, fallback: defaultEndpoint}
}

// Endpoint returns the URL serving model, or "" if none is configured.
func (c *A2AClient) Endpoint(model string) string {
	if ep, ok := c.endpoints[model]; ok {
		return ep
	}
	return c.fallback
}

// Prompt sends req as a blocking message/send call.
func (c *A2AClient) Prompt(ctx context.Context, req Request) (*Completion, error) {
	ep := c.Endpoint(req.Model)
	if ep == "" {
		return nil, fmt.Errorf("model: no endpoint configured for %q", req.Model)
	}

	md, err := json.Marshal(a2a.PromptMetadata{Model: req.Model, System: req.System})
	if err != nil {
		return nil, fmt.Errorf("model: encode metadata: %w", err)
	}

	task, err := c.client.SendMessage(ctx, ep, a2a.SendMessageRequest{
		Message: a2a.Message{
			MessageID: uuid.NewString(),
			ContextID: req.ConversationID,
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{a2a.TextPart(req.Prompt)},
			Metadata:  md,
		},
		Configuration: &a2a.SendMessageConfig{
			AcceptedOutputModes: []string{"text/plain"},
			Blocking:            true,
		},
	})
	if err != nil {
		return nil, err
	}

	switch task.Status.State {
	case a2a.TaskStateCompleted:
	case a2a.TaskStateFailed, a2a.TaskStateRejected, a2a.TaskStateCanceled:
		msg := task.StatusText()
		if msg == "" {
			msg = "no detail"
		}
		return nil, fmt.Errorf("model: %s task %s %s: %s", req.Model, task.ID, task.Status.State, msg)
	default:
		return nil, fmt.Errorf("model: %s task %s not finished (state %q)", req.Model, task.ID, task.Status.State)
	}

	return &Completion{
		Text:           task.Text(),
		ConversationID: task.ContextID,
		Metadata:       task.MetadataMap(),
	}, nil
}

package model

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dusk-indust/consortium/internal/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements a2a.Client. Only SendMessage is wired to a
// configurable function; other methods are stubs.
type mockClient struct {
	sendMessage func(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error)
}

func (m *mockClient) SendMessage(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error) {
	return m.sendMessage(ctx, endpoint, req)
}

func (m *mockClient) GetTask(context.Context, string, a2a.GetTaskRequest) (*a2a.Task, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) DiscoverAgent(context.Context, string) (*a2a.AgentCard, error) {
	return nil, errors.New("not implemented")
}

func completedTask(contextID, text string, metadata string) *a2a.Task {
	t := &a2a.Task{
		ID:        "task-1",
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted, Timestamp: time.Now()},
		Artifacts: []a2a.Artifact{{ArtifactID: "a", Name: "response", Parts: []a2a.Part{a2a.TextPart(text)}}},
	}
	if metadata != "" {
		t.Metadata = json.RawMessage(metadata)
	}
	return t
}

func TestA2AClient_Prompt(t *testing.T) {
	var gotEndpoint string
	var gotReq a2a.SendMessageRequest
	mc := &mockClient{sendMessage: func(_ context.Context, ep string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		gotEndpoint = ep
		gotReq = req
		return completedTask("ctx-9", "the answer", `{"finish_reason":"stop"}`), nil
	}}
	c := NewA2AClient(mc, map[string]string{"claude": "http://claude:9000"}, "http://default:9000")

	comp, err := c.Prompt(context.Background(), Request{Model: "claude", Prompt: "why?", ConversationID: "ctx-1"})
	require.NoError(t, err)

	assert.Equal(t, "http://claude:9000", gotEndpoint)
	assert.Equal(t, "claude", gotReq.Message.Model())
	assert.Empty(t, gotReq.Message.PromptMetadata().System)
	assert.Equal(t, "ctx-1", gotReq.Message.ContextID)
	assert.Equal(t, "why?", gotReq.Message.Text())
	assert.NotEmpty(t, gotReq.Message.MessageID)
	require.NotNil(t, gotReq.Configuration)
	assert.True(t, gotReq.Configuration.Blocking)

	assert.Equal(t, "the answer", comp.Text)
	assert.Equal(t, "ctx-9", comp.ConversationID)
	assert.Equal(t, "stop", comp.Metadata["finish_reason"])
}

func TestA2AClient_ForwardsSystemPrompt(t *testing.T) {
	var gotReq a2a.SendMessageRequest
	mc := &mockClient{sendMessage: func(_ context.Context, _ string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		gotReq = req
		return completedTask("", "ok", ""), nil
	}}
	c := NewA2AClient(mc, nil, "http://default:9000")

	_, err := c.Prompt(context.Background(), Request{Model: "panel", Prompt: "q", System: "Answer in French."})
	require.NoError(t, err)

	md := gotReq.Message.PromptMetadata()
	assert.Equal(t, "panel", md.Model)
	assert.Equal(t, "Answer in French.", md.System)
}

func TestA2AClient_DefaultEndpoint(t *testing.T) {
	var gotEndpoint string
	mc := &mockClient{sendMessage: func(_ context.Context, ep string, _ a2a.SendMessageRequest) (*a2a.Task, error) {
		gotEndpoint = ep
		return completedTask("", "x", ""), nil
	}}
	c := NewA2AClient(mc, nil, "http://default:9000")

	_, err := c.Prompt(context.Background(), Request{Model: "gpt-4", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "http://default:9000", gotEndpoint)
}

func TestA2AClient_NoEndpoint(t *testing.T) {
	c := NewA2AClient(&mockClient{}, nil, "")
	_, err := c.Prompt(context.Background(), Request{Model: "gpt-4", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint")
}

func TestA2AClient_FailedTask(t *testing.T) {
	mc := &mockClient{sendMessage: func(context.Context, string, a2a.SendMessageRequest) (*a2a.Task, error) {
		return &a2a.Task{
			ID: "t-2",
			Status: a2a.TaskStatus{
				State:   a2a.TaskStateFailed,
				Message: &a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart("RateLimitError: quota")}},
			},
		}, nil
	}}
	c := NewA2AClient(mc, nil, "http://x")

	_, err := c.Prompt(context.Background(), Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.True(t, IsRateLimit(err), "failure text carrying a rate limit marker is retryable")
}

func TestA2AClient_TransportError(t *testing.T) {
	mc := &mockClient{sendMessage: func(context.Context, string, a2a.SendMessageRequest) (*a2a.Task, error) {
		return nil, &a2a.RateLimitError{Method: "message/send"}
	}}
	c := NewA2AClient(mc, nil, "http://x")

	_, err := c.Prompt(context.Background(), Request{Model: "m", Prompt: "p"})
	var rle *a2a.RateLimitError
	assert.True(t, errors.As(err, &rle))
}

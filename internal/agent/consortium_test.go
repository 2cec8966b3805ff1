package agent

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dusk-indust/consortium/internal/a2a"
	"github.com/dusk-indust/consortium/internal/model"
	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panelClient answers voters with a fixed text and the arbiter with a
// confident synthesis.
type panelClient struct {
	calls atomic.Int32

	mu     sync.Mutex
	voters []string
}

func (p *panelClient) Prompt(_ context.Context, req model.Request) (*model.Completion, error) {
	p.calls.Add(1)
	if req.Model != "judge" {
		p.mu.Lock()
		p.voters = append(p.voters, req.Prompt)
		p.mu.Unlock()
	}
	if req.Model == "judge" {
		return &model.Completion{Text: "<synthesis>The <b>answer</b> is 4.</synthesis><confidence>0.92</confidence><analysis>all agree</analysis>"}, nil
	}
	return &model.Completion{Text: "4 <confidence>0.9</confidence>"}, nil
}

func panelConfig() orchestrator.Config {
	return orchestrator.Config{
		Models:              map[string]int{"gpt-4": 2, "claude": 1},
		ConfidenceThreshold: 0.8,
		MaxIterations:       2,
		MinimumIterations:   1,
		Arbiter:             "judge",
	}
}

func newPanelAgent(t *testing.T, c model.Client) *ConsortiumAgent {
	t.Helper()
	return newPanelAgentWith(t, c, panelConfig())
}

func newPanelAgentWith(t *testing.T, c model.Client, cfg orchestrator.Config) *ConsortiumAgent {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	inv := model.NewInvoker(c, model.WithLogger(quiet))
	a, err := NewConsortiumAgent("math-panel", cfg, inv, nil, orchestrator.WithLogger(quiet))
	require.NoError(t, err)
	return a
}

func TestNewConsortiumAgent_Card(t *testing.T) {
	a := newPanelAgent(t, &panelClient{})

	card := a.Card()
	assert.Equal(t, "math-panel", card.Name)
	assert.Contains(t, card.Description, "claude×1, gpt-4×2")
	assert.Contains(t, card.Description, "judge")
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "consortium", card.Skills[0].ID)
}

func TestNewConsortiumAgent_InvalidConfig(t *testing.T) {
	inv := model.NewInvoker(&panelClient{})
	_, err := NewConsortiumAgent("bad", orchestrator.Config{}, inv, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestConsortiumAgent_HandleSendMessage(t *testing.T) {
	c := &panelClient{}
	a := newPanelAgent(t, c)

	task, err := a.HandleSendMessage(context.Background(), a2a.SendMessageRequest{
		Message: a2a.Message{MessageID: "m1", Role: a2a.RoleUser, Parts: []a2a.Part{a2a.TextPart("What is 2+2?")}},
	})
	require.NoError(t, err)

	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	assert.Equal(t, int32(4), c.calls.Load(), "three voters and one arbiter call")
	require.Len(t, task.Artifacts, 2)
	assert.Equal(t, ArtifactSynthesis, task.Artifacts[0].Name)
	assert.Equal(t, "The answer is 4.", task.Text())

	var res orchestrator.Result
	require.NoError(t, json.Unmarshal(task.Artifacts[1].Parts[0].Data, &res))
	assert.Equal(t, "What is 2+2?", res.OriginalPrompt)
	assert.Equal(t, 1, res.Metadata.IterationCount)
	assert.Len(t, res.ModelResponses, 3)

	md := task.MetadataMap()
	assert.Equal(t, "math-panel", md["consortium"])
	assert.InDelta(t, 0.92, md["confidence"], 1e-9)
	assert.Equal(t, "stop", md["finish_reason"])
}

func TestConsortiumAgent_EmptyMessageFails(t *testing.T) {
	a := newPanelAgent(t, &panelClient{})

	task, err := a.HandleSendMessage(context.Background(), a2a.SendMessageRequest{
		Message: a2a.Message{MessageID: "m1", Role: a2a.RoleUser, Parts: []a2a.Part{a2a.TextPart("   ")}},
	})
	require.Error(t, err)
	require.NotNil(t, task)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
}

func TestConsortiumAgent_ServedAsModel(t *testing.T) {
	a := newPanelAgent(t, &panelClient{})
	srv := httptest.NewServer(a.Routes())
	defer srv.Close()

	client := model.NewA2AClient(a2a.NewHTTPClient(), nil, srv.URL)
	comp, err := client.Prompt(context.Background(), model.Request{Model: "math-panel", Prompt: "What is 2+2?"})
	require.NoError(t, err)

	assert.Equal(t, "The answer is 4.", comp.Text)
	assert.NotEmpty(t, comp.ConversationID)
	assert.Equal(t, "stop", model.FinishReason(comp.Metadata))

	card, err := a2a.NewHTTPClient().DiscoverAgent(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(card.Description, "Consortium of"))
}

func TestConsortiumAgent_SystemPromptOverride(t *testing.T) {
	cfg := panelConfig()
	cfg.SystemPrompt = "Be terse."
	c := &panelClient{}
	a := newPanelAgentWith(t, c, cfg)
	srv := httptest.NewServer(a.Routes())
	defer srv.Close()

	client := model.NewA2AClient(a2a.NewHTTPClient(), nil, srv.URL)
	_, err := client.Prompt(context.Background(), model.Request{Model: "math-panel", Prompt: "What is 2+2?", System: "Show your work."})
	require.NoError(t, err)

	require.Len(t, c.voters, 3)
	for _, p := range c.voters {
		assert.Contains(t, p, "Show your work.")
		assert.NotContains(t, p, "Be terse.")
	}

	c.voters = nil
	_, err = client.Prompt(context.Background(), model.Request{Model: "math-panel", Prompt: "What is 3+3?"})
	require.NoError(t, err)
	require.Len(t, c.voters, 3)
	assert.Contains(t, c.voters[0], "Be terse.", "the saved prompt applies again without an override")
}

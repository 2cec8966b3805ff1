package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dusk-indust/consortium/internal/model"
	"github.com/dusk-indust/consortium/internal/parse"
	"github.com/dusk-indust/consortium/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, cfg Config, c model.Client, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{
		WithLogger(discardLogger()),
		WithRunID(func() string { return "run-1" }),
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }),
	}, opts...)
	o, err := New(cfg, newTestInvoker(c), nil, opts...)
	require.NoError(t, err)
	return o
}

func TestRun_StopsWhenConfidentAfterMinimum(t *testing.T) {
	c := &fakeClient{arbiterReplies: []string{arbiterReply(0.9, "final answer")}}
	o := newTestOrchestrator(t, testConfig(1, 3, 0.8), c)

	res, err := o.Run(context.Background(), "What is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Metadata.IterationCount)
	assert.Equal(t, "final answer", res.Synthesis.Synthesis)
	assert.InDelta(t, 0.9, res.Synthesis.Confidence, 1e-9)
	assert.Equal(t, "What is 2+2?", res.OriginalPrompt)
	assert.Equal(t, testArbiter, res.Metadata.Arbiter)
	assert.Equal(t, map[string]int{"alpha": 1, "beta": 1}, res.Metadata.ModelsUsed)
	assert.Equal(t, "2025-06-01T12:00:00Z", res.Metadata.Timestamp)
	assert.Equal(t, "run-1", res.Metadata.RunID)
	assert.Len(t, res.ModelResponses, 2)
	assert.Len(t, o.History(), 1)
}

func TestRun_MinimumIterationsOverridesConfidence(t *testing.T) {
	c := &fakeClient{arbiterReplies: []string{
		arbiterReply(0.95, "round one"),
		arbiterReply(0.95, "round two"),
	}}
	o := newTestOrchestrator(t, testConfig(2, 3, 0.5), c)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Metadata.IterationCount)
	assert.Equal(t, "round two", res.Synthesis.Synthesis)
	assert.Len(t, c.arbiterRequests(), 2)
}

func TestRun_StopsAtMaxIterations(t *testing.T) {
	c := &fakeClient{arbiterReplies: []string{
		arbiterReply(0.2, "a", "x"),
		arbiterReply(0.3, "b", "y"),
		arbiterReply(0.4, "c", "z"),
		arbiterReply(0.99, "never reached"),
	}}
	o := newTestOrchestrator(t, testConfig(1, 3, 0.8), c)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Metadata.IterationCount)
	assert.Equal(t, "c", res.Synthesis.Synthesis)
	hist := o.History()
	require.Len(t, hist, 3)
	for i, it := range hist {
		assert.Equal(t, i+1, it.Number)
	}
	assert.Equal(t, []string{"x"}, hist[0].Synthesis.RefinementAreas)
}

func TestRun_RefinementPromptAndConversationContinuity(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	c := &fakeClient{
		voter: func(req model.Request) (*model.Completion, error) {
			mu.Lock()
			calls[req.Model]++
			mu.Unlock()
			return &model.Completion{Text: "answer", ConversationID: "conv-" + req.Model}, nil
		},
		arbiterReplies: []string{
			arbiterReply(0.3, "draft", "cite sources"),
			arbiterReply(0.9, "done"),
		},
	}
	o := newTestOrchestrator(t, testConfig(1, 3, 0.8), c)

	_, err := o.Run(context.Background(), "Explain tides")
	require.NoError(t, err)

	reqs := c.voterRequests()
	require.Len(t, reqs, 4)
	// Round one: initial prompt, fresh conversations.
	for _, r := range reqs[:2] {
		assert.True(t, strings.HasPrefix(r.Prompt, "<prompt>"))
		assert.Empty(t, r.ConversationID)
	}
	// Round two: refinement prompt, continued conversations.
	for _, r := range reqs[2:] {
		assert.Contains(t, r.Prompt, "Explain tides")
		assert.Contains(t, r.Prompt, "cite sources")
		assert.Equal(t, "conv-"+r.Model, r.ConversationID)
	}

	arb := c.arbiterRequests()
	require.Len(t, arb, 2)
	assert.Contains(t, arb[0].Prompt, "<no_previous_iterations>")
	assert.Contains(t, arb[1].Prompt, "<iteration_number>1</iteration_number>")
	assert.Empty(t, arb[1].ConversationID, "arbiter never continues a conversation")
}

func TestRun_DegradedArbiterReply(t *testing.T) {
	c := &fakeClient{arbiterReplies: []string{"I refuse to use tags.", "still no tags"}}
	o := newTestOrchestrator(t, testConfig(1, 2, 0.8), c)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Metadata.IterationCount, "confidence 0 never meets the threshold")
	first := o.History()[0].Synthesis
	assert.Equal(t, "I refuse to use tags.", first.Synthesis)
	assert.Equal(t, parse.DegradedAnalysis, first.Analysis)
	assert.Zero(t, first.Confidence)
	assert.False(t, first.NeedsIteration)
}

func TestRun_ArbiterErrorIsNotFatal(t *testing.T) {
	c := &fakeClient{arbiterErr: errors.New("arbiter offline")}
	o := newTestOrchestrator(t, testConfig(1, 2, 0.8), c)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Metadata.IterationCount)
	assert.Contains(t, res.Synthesis.Analysis, "arbiter offline")
	assert.Zero(t, res.Synthesis.Confidence)
}

func TestRun_VoterErrorsCaptured(t *testing.T) {
	c := &fakeClient{
		voter: func(req model.Request) (*model.Completion, error) {
			if req.Model == "beta" {
				return nil, errors.New("beta exploded")
			}
			return &model.Completion{Text: "fine"}, nil
		},
		arbiterReplies: []string{arbiterReply(0.9, "ok")},
	}
	o := newTestOrchestrator(t, testConfig(1, 1, 0.8), c)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, res.ModelResponses, 2)
	assert.Equal(t, "alpha", res.ModelResponses[0].Model)
	assert.Equal(t, "beta exploded", res.ModelResponses[1].Error)
	assert.Contains(t, c.arbiterRequests()[0].Prompt, "Error: beta exploded")
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newTestOrchestrator(t, testConfig(1, 3, 0.8), &fakeClient{})

	_, err := o.Run(ctx, "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_CancelDuringRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &fakeClient{voter: func(model.Request) (*model.Completion, error) {
		cancel()
		return nil, context.Canceled
	}}
	o := newTestOrchestrator(t, testConfig(1, 3, 0.8), c)

	_, err := o.Run(ctx, "q")
	require.Error(t, err)
	assert.Empty(t, c.arbiterRequests())
}

func TestRun_SystemPromptPropagates(t *testing.T) {
	c := &fakeClient{arbiterReplies: []string{arbiterReply(0.9, "ok")}}
	cfg := testConfig(1, 1, 0.8)
	cfg.SystemPrompt = "answer in French"
	o := newTestOrchestrator(t, cfg, c)

	_, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Contains(t, c.voterRequests()[0].Prompt, "[SYSTEM INSTRUCTIONS]\nanswer in French\n[/SYSTEM INSTRUCTIONS]")
	assert.Contains(t, c.arbiterRequests()[0].Prompt, "answer in French")
}

func TestRun_LogsEveryCallWithRunID(t *testing.T) {
	c := &fakeClient{arbiterReplies: []string{arbiterReply(0.9, "ok")}}
	sink := store.NewMemStore()
	inv := model.NewInvoker(c, model.WithLogger(discardLogger()), model.WithLogSink(sink))
	o, err := New(testConfig(1, 1, 0.8), inv, nil, WithLogger(discardLogger()), WithRunID(func() string { return "abc" }))
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "q")
	require.NoError(t, err)

	entries, err := sink.Responses(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "abc", e.RunID)
	}
}

func TestRun_ProgressEvents(t *testing.T) {
	pr := NewProgressReporter()
	c := &fakeClient{arbiterReplies: []string{arbiterReply(0.9, "ok")}}
	o := newTestOrchestrator(t, testConfig(1, 1, 0.8), c, WithReporter(pr))

	_, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	pr.Close()

	kinds := map[string]int{}
	for ev := range pr.Subscribe() {
		kinds[ev.Kind]++
	}
	assert.Equal(t, 1, kinds[KindRound])
	assert.Equal(t, 6, kinds[KindInstance], "pending, working, complete for two instances")
	assert.Equal(t, 2, kinds[KindArbiter])
	assert.Equal(t, 1, kinds[KindDecision])
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{}, newTestInvoker(&fakeClient{}), nil)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "models", ce.Field)

	_, err = New(testConfig(1, 1, 0.8), nil, nil)
	require.Error(t, err)
}

func TestNew_CopiesConfig(t *testing.T) {
	cfg := testConfig(1, 1, 0.8)
	o, err := New(cfg, newTestInvoker(&fakeClient{}), nil)
	require.NoError(t, err)

	cfg.Models["gamma"] = 4
	assert.NotContains(t, o.Config().Models, "gamma")
}

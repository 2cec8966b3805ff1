//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dusk-indust/consortium/internal/a2a"
	"github.com/dusk-indust/consortium/internal/agent"
	"github.com/dusk-indust/consortium/internal/model"
	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/dusk-indust/consortium/internal/prompt"
	"github.com/dusk-indust/consortium/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arbiterModel = "judge"

// modelFarm is an A2A agent that impersonates every model. The arbiter is
// unsure in round one and confident from round two on.
type modelFarm struct {
	mu            sync.Mutex
	arbiterCalls  int
	voterMessages []a2a.Message
}

func (f *modelFarm) process(_ context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var text string
	if msg.Model() == arbiterModel {
		f.arbiterCalls++
		conf, more := 0.4, "true"
		if f.arbiterCalls > 1 {
			conf, more = 0.9, "false"
		}
		text = fmt.Sprintf("<synthesis>round %d answer</synthesis><confidence>%v</confidence>"+
			"<analysis>compared</analysis><dissent>one outlier</dissent>"+
			"<needs_iteration>%s</needs_iteration>"+
			"<refinement_areas><area>cite sources</area></refinement_areas>",
			f.arbiterCalls, conf, more)
	} else {
		f.voterMessages = append(f.voterMessages, msg)
		text = fmt.Sprintf("%s answer <confidence>0.6</confidence>", msg.Model())
	}

	task.Metadata = []byte(`{"finish_reason":"stop"}`)
	return []a2a.Artifact{{
		ArtifactID: task.ID + "-out",
		Parts:      []a2a.Part{a2a.TextPart(text)},
	}}, nil
}

func (f *modelFarm) voters() []a2a.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]a2a.Message(nil), f.voterMessages...)
}

func startFarm(t *testing.T) (*modelFarm, string) {
	t.Helper()
	farm := &modelFarm{}
	ag := agent.NewBaseAgent(a2a.AgentCard{Name: "farm"}, farm.process)
	srv := httptest.NewServer(ag.Routes())
	t.Cleanup(srv.Close)
	return farm, srv.URL
}

func newInvoker(endpoint string, sink store.LogSink) *model.Invoker {
	client := model.NewA2AClient(a2a.NewHTTPClient(a2a.WithTimeout(10*time.Second)), nil, endpoint)
	return model.NewInvoker(client,
		model.WithLogSink(sink),
		model.WithLogger(log.New(io.Discard, "", 0)),
	)
}

// TestConsortium_E2E_IteratesOverHTTP runs two rounds against real A2A
// servers and checks refinement prompts, conversation reuse and logging.
func TestConsortium_E2E_IteratesOverHTTP(t *testing.T) {
	farm, endpoint := startFarm(t)
	logs := store.NewMemStore()

	cfg := orchestrator.Config{
		Models:              map[string]int{"alpha": 1, "beta": 1},
		Arbiter:             arbiterModel,
		ConfidenceThreshold: 0.8,
		MaxIterations:       3,
		MinimumIterations:   1,
	}
	o, err := orchestrator.New(cfg, newInvoker(endpoint, logs), prompt.New(),
		orchestrator.WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := o.Run(ctx, "Why is the sky blue?")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Metadata.IterationCount)
	assert.Equal(t, "round 2 answer", res.Synthesis.Synthesis)
	assert.InDelta(t, 0.9, res.Synthesis.Confidence, 1e-9)
	require.Len(t, res.ModelResponses, 2)
	for _, r := range res.ModelResponses {
		assert.False(t, r.Failed(), r.Error)
		assert.InDelta(t, 0.6, r.Confidence, 1e-9)
	}

	msgs := farm.voters()
	require.Len(t, msgs, 4)
	contexts := map[string][]string{}
	for _, m := range msgs {
		contexts[m.Model()] = append(contexts[m.Model()], m.ContextID)
		if strings.Contains(m.Text(), "Areas to refine") {
			assert.Contains(t, m.Text(), "cite sources")
		}
	}
	for name, ids := range contexts {
		require.Len(t, ids, 2, name)
		assert.NotEmpty(t, ids[0], name)
		assert.Equal(t, ids[0], ids[1], "%s continues its round-one conversation", name)
	}
	assert.NotEqual(t, contexts["alpha"][0], contexts["beta"][0])

	entries, err := logs.Responses(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 6, "4 voter calls and 2 arbiter calls are logged")
	for _, e := range entries {
		assert.Equal(t, res.Metadata.RunID, e.RunID)
	}
}

// TestConsortium_E2E_Nested serves a consortium as a model and uses it as a
// voter in a second consortium.
func TestConsortium_E2E_Nested(t *testing.T) {
	_, endpoint := startFarm(t)
	logs := store.NewMemStore()

	inner, err := agent.NewConsortiumAgent("panel", orchestrator.Config{
		Models:        map[string]int{"alpha": 2},
		Arbiter:       arbiterModel,
		MaxIterations: 1,
	}, newInvoker(endpoint, logs), prompt.New(), orchestrator.WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	innerSrv := httptest.NewServer(inner.Routes())
	defer innerSrv.Close()

	client := model.NewA2AClient(a2a.NewHTTPClient(), map[string]string{"panel": innerSrv.URL}, endpoint)
	inv := model.NewInvoker(client, model.WithLogSink(logs), model.WithLogger(log.New(io.Discard, "", 0)))

	outer, err := orchestrator.New(orchestrator.Config{
		Models:        map[string]int{"panel": 1, "beta": 1},
		Arbiter:       arbiterModel,
		MaxIterations: 1,
	}, inv, prompt.New(), orchestrator.WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)

	res, err := outer.Run(context.Background(), "Name a prime number.")
	require.NoError(t, err)

	require.Len(t, res.ModelResponses, 2)
	assert.Equal(t, "beta", res.ModelResponses[0].Model)
	panel := res.ModelResponses[1]
	assert.Equal(t, "panel", panel.Model)
	require.False(t, panel.Failed(), panel.Error)
	assert.Contains(t, panel.Text, "answer")
	assert.NotContains(t, panel.Text, "<synthesis>", "served consortiums return clean text")
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dusk-indust/consortium/internal/a2a"
	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/dusk-indust/consortium/internal/prompt"
)

// Artifact names produced by ConsortiumAgent.
const (
	ArtifactSynthesis = "synthesis"
	ArtifactResult    = "result"
)

// ConsortiumAgent answers every message by running a full consortium: all
// rounds, arbitration included. The synthesis is returned as a text
// artifact and the complete result as a JSON data artifact.
type ConsortiumAgent struct {
	*BaseAgent

	name    string
	cfg     orchestrator.Config
	inv     orchestrator.Invoker
	prompts *prompt.Builder
	opts    []orchestrator.Option
}

// NewConsortiumAgent validates cfg and returns an agent named name. opts are
// passed to every orchestrator the agent creates.
func NewConsortiumAgent(name string, cfg orchestrator.Config, inv orchestrator.Invoker, prompts *prompt.Builder, opts ...orchestrator.Option) (*ConsortiumAgent, error) {
	o, err := orchestrator.New(cfg, inv, prompts, opts...)
	if err != nil {
		return nil, fmt.Errorf("agent: consortium %q: %w", name, err)
	}
	a := &ConsortiumAgent{
		name:    name,
		cfg:     o.Config(),
		inv:     inv,
		prompts: prompts,
		opts:    opts,
	}
	a.BaseAgent = NewBaseAgent(consortiumCard(name, a.cfg), a.process)
	return a, nil
}

func consortiumCard(name string, cfg orchestrator.Config) a2a.AgentCard {
	var members []string
	for _, m := range cfg.ModelNames() {
		members = append(members, fmt.Sprintf("%s×%d", m, cfg.Models[m]))
	}
	return a2a.AgentCard{
		Name: name,
		Description: fmt.Sprintf("Consortium of %s arbitrated by %s",
			strings.Join(members, ", "), cfg.Arbiter),
		Version:            "1.0.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain", "application/json"},
		Skills: []a2a.AgentSkill{{
			ID:          "consortium",
			Name:        "Consortium answer",
			Description: "Answers a prompt by iterating several models to a synthesized consensus",
			Tags:        []string{"consortium", "llm"},
		}},
	}
}

// process runs one consortium for the message text. A system prompt in the
// message metadata overrides the saved one for this run only.
func (a *ConsortiumAgent) process(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
	text := strings.TrimSpace(msg.Text())
	if text == "" {
		return nil, errors.New("agent: message has no text")
	}

	cfg := a.cfg
	if sys := strings.TrimSpace(msg.PromptMetadata().System); sys != "" {
		cfg.SystemPrompt = sys
	}
	o, err := orchestrator.New(cfg, a.inv, a.prompts, a.opts...)
	if err != nil {
		return nil, err
	}
	res, err := o.Run(ctx, text)
	if err != nil {
		return nil, err
	}

	data, err := a2a.DataPart(res)
	if err != nil {
		log.Printf("WARNING: agent: encode result for %s: %v", a.name, err)
	}

	task.Metadata = marshalMetadata(map[string]any{
		"consortium":      a.name,
		"confidence":      res.Synthesis.Confidence,
		"iteration_count": res.Metadata.IterationCount,
		"run_id":          res.Metadata.RunID,
		"finish_reason":   "stop",
	})

	artifacts := []a2a.Artifact{{
		ArtifactID: task.ID + "-" + ArtifactSynthesis,
		Name:       ArtifactSynthesis,
		Parts:      []a2a.Part{a2a.TextPart(res.CleanText())},
	}}
	if err == nil {
		artifacts = append(artifacts, a2a.Artifact{
			ArtifactID:  task.ID + "-" + ArtifactResult,
			Name:        ArtifactResult,
			Description: "Full consortium result",
			Parts:       []a2a.Part{data},
		})
	}
	return artifacts, nil
}

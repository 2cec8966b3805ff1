package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/consortium/internal/config"
	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/dusk-indust/consortium/internal/prompt"
	"github.com/dusk-indust/consortium/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ConsortiumService handles MCP tool calls. It runs consortiums through inv
// and keeps saved configurations in configs.
type ConsortiumService struct {
	configs  store.ConfigStore
	inv      orchestrator.Invoker
	prompts  *prompt.Builder
	defaults config.Defaults
	opts     []orchestrator.Option
}

// NewConsortiumService creates a ConsortiumService. defaults fill fields a
// run request leaves empty; opts are passed to every orchestrator.
func NewConsortiumService(configs store.ConfigStore, inv orchestrator.Invoker, prompts *prompt.Builder, defaults config.Defaults, opts ...orchestrator.Option) *ConsortiumService {
	if prompts == nil {
		prompts = prompt.New()
	}
	return &ConsortiumService{
		configs:  configs,
		inv:      inv,
		prompts:  prompts,
		defaults: defaults,
		opts:     opts,
	}
}

// RunConsortium executes one consortium run and returns its synthesis.
func (s *ConsortiumService) RunConsortium(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunConsortiumInput,
) (*mcp.CallToolResult, RunConsortiumOutput, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, RunConsortiumOutput{}, fmt.Errorf("prompt is required")
	}

	var cfg orchestrator.Config
	if input.Consortium != "" {
		saved, err := orchestrator.LoadConfig(ctx, s.configs, input.Consortium)
		if err != nil {
			return nil, RunConsortiumOutput{}, err
		}
		cfg = saved
	}
	if len(input.Models) > 0 {
		cfg.Models = input.Models
	}
	overrideString(&cfg.Arbiter, input.Arbiter)
	overrideString(&cfg.SystemPrompt, input.SystemPrompt)
	if input.ConfidenceThreshold != 0 {
		cfg.ConfidenceThreshold = input.ConfidenceThreshold
	}
	if input.MaxIterations != 0 {
		cfg.MaxIterations = input.MaxIterations
	}
	if input.MinIterations != 0 {
		cfg.MinimumIterations = input.MinIterations
	}
	s.defaults.Apply(&cfg)

	o, err := orchestrator.New(cfg, s.inv, s.prompts, s.opts...)
	if err != nil {
		return nil, RunConsortiumOutput{}, err
	}
	res, err := o.Run(ctx, input.Prompt)
	if err != nil {
		return nil, RunConsortiumOutput{}, err
	}

	out := RunConsortiumOutput{
		Synthesis:       res.CleanText(),
		Confidence:      res.Synthesis.Confidence,
		Analysis:        res.Synthesis.Analysis,
		Dissent:         res.Synthesis.Dissent,
		RefinementAreas: res.Synthesis.RefinementAreas,
		IterationCount:  res.Metadata.IterationCount,
		RunID:           res.Metadata.RunID,
		Responses:       make([]ResponseSummary, 0, len(res.ModelResponses)),
	}
	for _, r := range res.ModelResponses {
		out.Responses = append(out.Responses, ResponseSummary{
			Model:      r.Model,
			Instance:   r.Instance,
			Confidence: r.Confidence,
			Response:   r.Text,
			Error:      r.Error,
		})
	}
	return nil, out, nil
}

// ListConsortiums returns every saved consortium. Entries that fail to
// decode are reported with an error instead of aborting the listing.
func (s *ConsortiumService) ListConsortiums(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListConsortiumsInput,
) (*mcp.CallToolResult, ListConsortiumsOutput, error) {
	named, err := s.configs.ListConfigs(ctx)
	if err != nil {
		return nil, ListConsortiumsOutput{}, fmt.Errorf("list consortiums: %w", err)
	}

	out := ListConsortiumsOutput{Consortiums: make([]ConsortiumSummary, 0, len(named))}
	for _, nc := range named {
		cfg, err := orchestrator.DecodeConfig(nc.Config)
		if err != nil {
			out.Consortiums = append(out.Consortiums, ConsortiumSummary{Name: nc.Name, Error: err.Error()})
			continue
		}
		out.Consortiums = append(out.Consortiums, summarize(nc.Name, cfg))
	}
	return nil, out, nil
}

// SaveConsortium validates and stores a consortium configuration. A missing
// system prompt is filled with the default one.
func (s *ConsortiumService) SaveConsortium(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SaveConsortiumInput,
) (*mcp.CallToolResult, SaveConsortiumOutput, error) {
	cfg := orchestrator.Config{
		Models:              input.Models,
		SystemPrompt:        input.SystemPrompt,
		ConfidenceThreshold: input.ConfidenceThreshold,
		MaxIterations:       input.MaxIterations,
		MinimumIterations:   input.MinIterations,
		Arbiter:             input.Arbiter,
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = s.prompts.System()
	}
	if err := orchestrator.SaveConfig(ctx, s.configs, input.Name, cfg); err != nil {
		return nil, SaveConsortiumOutput{}, err
	}
	cfg.Normalize()
	return nil, SaveConsortiumOutput{Name: input.Name, Config: summarize(input.Name, cfg)}, nil
}

// RemoveConsortium deletes a saved consortium.
func (s *ConsortiumService) RemoveConsortium(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RemoveConsortiumInput,
) (*mcp.CallToolResult, RemoveConsortiumOutput, error) {
	if input.Name == "" {
		return nil, RemoveConsortiumOutput{}, fmt.Errorf("name is required")
	}
	if err := s.configs.DeleteConfig(ctx, input.Name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, RemoveConsortiumOutput{Name: input.Name}, fmt.Errorf("consortium %q not found", input.Name)
		}
		return nil, RemoveConsortiumOutput{Name: input.Name}, fmt.Errorf("remove consortium %q: %w", input.Name, err)
	}
	return nil, RemoveConsortiumOutput{Name: input.Name, Removed: true}, nil
}

func summarize(name string, cfg orchestrator.Config) ConsortiumSummary {
	return ConsortiumSummary{
		Name:                name,
		Models:              cfg.Models,
		Arbiter:             cfg.Arbiter,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MaxIterations:       cfg.MaxIterations,
		MinIterations:       cfg.MinimumIterations,
		SystemPrompt:        cfg.SystemPrompt,
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

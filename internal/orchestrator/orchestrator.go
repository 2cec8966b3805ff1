// Package orchestrator runs a consortium: it fans a prompt out to every
// voter instance, asks the arbiter to synthesize the answers, and repeats
// with a refinement prompt until the arbiter is confident enough or the
// iteration budget is spent.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dusk-indust/consortium/internal/model"
	"github.com/dusk-indust/consortium/internal/parse"
	"github.com/dusk-indust/consortium/internal/prompt"
	"github.com/google/uuid"
)

// Orchestrator drives the round loop for one configuration. A single
// Orchestrator runs one prompt at a time; History reflects the latest run.
type Orchestrator struct {
	cfg        Config
	inv        Invoker
	prompts    *prompt.Builder
	dispatcher *Dispatcher
	logger     *log.Logger
	progress   func(ProgressEvent)
	now        func() time.Time
	newRunID   func() string

	mu      sync.Mutex
	history []Iteration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithReporter sends progress events to pr. Several orchestrators may share
// one reporter.
func WithReporter(pr *ProgressReporter) Option {
	return func(o *Orchestrator) { o.progress = pr.Emit }
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunID replaces the run identifier generator.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// New validates cfg and returns an Orchestrator that calls models through
// inv. A nil prompts uses the embedded templates.
func New(cfg Config, inv Invoker, prompts *prompt.Builder, opts ...Option) (*Orchestrator, error) {
	if inv == nil {
		return nil, fmt.Errorf("orchestrator: invoker is required")
	}
	cfg = cfg.clone()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = prompt.New()
	}

	o := &Orchestrator{
		cfg:      cfg,
		inv:      inv,
		prompts:  prompts,
		logger:   log.Default(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.dispatcher = NewDispatcher(inv, o.progress)
	o.dispatcher.logger = o.logger
	return o, nil
}

// Config returns a copy of the configuration the Orchestrator runs with.
func (o *Orchestrator) Config() Config {
	return o.cfg.clone()
}

// Run executes the consortium for userPrompt. Model and arbiter failures are
// folded into the transcript; only cancellation of ctx returns an error.
func (o *Orchestrator) Run(ctx context.Context, userPrompt string) (*Result, error) {
	cfg := o.cfg
	runID := o.newRunID()
	conv := model.NewConversations(runID)

	o.mu.Lock()
	o.history = nil
	o.mu.Unlock()

	current := o.prompts.Initial(userPrompt, cfg.SystemPrompt)
	var (
		round     int
		responses []model.Response
		synthesis Synthesis
	)

	for round < cfg.MaxIterations || round < cfg.MinimumIterations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("orchestrator: run %s canceled after %d rounds: %w", runID, round, err)
		}
		round++
		o.emit(ProgressEvent{Kind: KindRound, Round: round, Status: ProgressWorking,
			Message: fmt.Sprintf("dispatching to %d instances", cfg.Instances())})

		responses = o.dispatcher.Round(ctx, round, current, cfg.Models, conv)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("orchestrator: run %s canceled in round %d: %w", runID, round, err)
		}

		synthesis = o.synthesize(ctx, round, runID, userPrompt, responses)

		o.mu.Lock()
		o.history = append(o.history, Iteration{Number: round, Responses: responses, Synthesis: synthesis})
		o.mu.Unlock()

		if synthesis.Confidence >= cfg.ConfidenceThreshold && round >= cfg.MinimumIterations {
			o.emit(ProgressEvent{Kind: KindDecision, Round: round, Status: ProgressComplete,
				Message: fmt.Sprintf("confidence %.2f meets threshold %.2f", synthesis.Confidence, cfg.ConfidenceThreshold)})
			break
		}
		o.emit(ProgressEvent{Kind: KindDecision, Round: round, Status: ProgressWorking,
			Message: fmt.Sprintf("confidence %.2f below threshold %.2f or minimum rounds not reached", synthesis.Confidence, cfg.ConfidenceThreshold)})

		current = o.prompts.NextRound(userPrompt, synthesis.view(), cfg.SystemPrompt)
	}

	return &Result{
		OriginalPrompt: userPrompt,
		ModelResponses: responses,
		Synthesis:      synthesis,
		Metadata: Metadata{
			ModelsUsed:     cfg.clone().Models,
			Arbiter:        cfg.Arbiter,
			Timestamp:      timestamp(o.now()),
			IterationCount: round,
			RunID:          runID,
		},
	}, nil
}

// synthesize asks the arbiter to judge one round. It never fails: an arbiter
// error or unparseable reply yields a degraded synthesis.
func (o *Orchestrator) synthesize(ctx context.Context, round int, runID, userPrompt string, responses []model.Response) Synthesis {
	o.emit(ProgressEvent{Kind: KindArbiter, Round: round, Model: o.cfg.Arbiter, Instance: 1, Status: ProgressWorking, Message: o.cfg.Arbiter})

	arbiterPrompt := o.prompts.Arbiter(prompt.ArbiterInput{
		OriginalPrompt: userPrompt,
		Responses:      responses,
		History:        o.rounds(),
		SystemPrompt:   o.cfg.SystemPrompt,
	})

	// The arbiter gets a fresh conversation every round.
	resp := o.inv.Invoke(ctx, o.cfg.Arbiter, 1, arbiterPrompt, model.NewConversations(runID))
	if resp.Failed() {
		o.logger.Printf("WARNING: arbiter %s failed in round %d: %s", o.cfg.Arbiter, round, resp.Error)
		o.emit(ProgressEvent{Kind: KindArbiter, Round: round, Model: o.cfg.Arbiter, Instance: 1, Status: ProgressFailed, Message: resp.Error})
		return Synthesis{
			Analysis:        "Arbiter error: " + resp.Error,
			NeedsIteration:  true,
			RefinementAreas: []string{},
		}
	}

	sections := parse.Arbiter(resp.Text)
	if sections.Empty() {
		o.logger.Printf("WARNING: arbiter %s reply in round %d has no recognizable sections", o.cfg.Arbiter, round)
		sections = parse.Degraded(resp.Text)
	}
	s := synthesisFrom(sections)
	o.emit(ProgressEvent{Kind: KindArbiter, Round: round, Model: o.cfg.Arbiter, Instance: 1, Status: ProgressComplete,
		Message: fmt.Sprintf("confidence %.2f", s.Confidence)})
	return s
}

// rounds converts the transcript so far into the prompt package's form.
func (o *Orchestrator) rounds() []prompt.Round {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]prompt.Round, 0, len(o.history))
	for _, it := range o.history {
		out = append(out, prompt.Round{Responses: it.Responses, Synthesis: it.Synthesis.view()})
	}
	return out
}

// History returns a copy of the transcript of the latest run.
func (o *Orchestrator) History() []Iteration {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Iteration, len(o.history))
	for i, it := range o.history {
		it.Responses = append([]model.Response(nil), it.Responses...)
		it.Synthesis.RefinementAreas = append([]string{}, it.Synthesis.RefinementAreas...)
		out[i] = it
	}
	return out
}

func (o *Orchestrator) emit(ev ProgressEvent) {
	if o.progress != nil {
		o.progress(ev)
	}
}

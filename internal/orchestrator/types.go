package orchestrator

import (
	"time"

	"github.com/dusk-indust/consortium/internal/model"
	"github.com/dusk-indust/consortium/internal/parse"
	"github.com/dusk-indust/consortium/internal/prompt"
)

// Synthesis is the arbiter's verdict on one round.
type Synthesis struct {
	Synthesis       string   `json:"synthesis"`
	Confidence      float64  `json:"confidence"`
	Analysis        string   `json:"analysis"`
	Dissent         string   `json:"dissent"`
	NeedsIteration  bool     `json:"needs_iteration"`
	RefinementAreas []string `json:"refinement_areas"`
}

// synthesisFrom applies defaults to the sections the arbiter left out:
// empty text, zero confidence, no further iteration.
func synthesisFrom(s parse.Sections) Synthesis {
	out := Synthesis{RefinementAreas: []string{}}
	if s.Synthesis != nil {
		out.Synthesis = *s.Synthesis
	}
	if s.Confidence != nil {
		out.Confidence = parse.Normalize(*s.Confidence)
	}
	if s.Analysis != nil {
		out.Analysis = *s.Analysis
	}
	if s.Dissent != nil {
		out.Dissent = *s.Dissent
	}
	if s.NeedsIteration != nil {
		out.NeedsIteration = *s.NeedsIteration
	}
	if s.HasRefinementAreas && s.RefinementAreas != nil {
		out.RefinementAreas = s.RefinementAreas
	}
	return out
}

// view converts to the prompt package's representation.
func (s Synthesis) view() prompt.SynthesisView {
	return prompt.SynthesisView(s)
}

// Iteration is one completed round: the responses collected and the
// arbiter's synthesis of them.
type Iteration struct {
	Number    int              `json:"iteration"`
	Responses []model.Response `json:"model_responses"`
	Synthesis Synthesis        `json:"synthesis"`
}

// Metadata describes how a Result was produced.
type Metadata struct {
	ModelsUsed     map[string]int `json:"models_used"`
	Arbiter        string         `json:"arbiter"`
	Timestamp      string         `json:"timestamp"`
	IterationCount int            `json:"iteration_count"`
	RunID          string         `json:"run_id,omitempty"`
}

// Result is the final outcome of a run.
type Result struct {
	OriginalPrompt string           `json:"original_prompt"`
	ModelResponses []model.Response `json:"model_responses"`
	Synthesis      Synthesis        `json:"synthesis"`
	Metadata       Metadata         `json:"metadata"`
}

// CleanText returns the final synthesis with markup removed.
func (r *Result) CleanText() string {
	return parse.StripTags(r.Synthesis.Synthesis)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

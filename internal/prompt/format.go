package prompt

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/consortium/internal/model"
)

// NoHistory is rendered in place of the history block before the first
// synthesis exists.
const NoHistory = "<no_previous_iterations>No previous iterations available.</no_previous_iterations>"

// SynthesisView is the arbiter verdict as shown to models in later rounds.
type SynthesisView struct {
	Synthesis       string   `json:"synthesis"`
	Confidence      float64  `json:"confidence"`
	Analysis        string   `json:"analysis"`
	Dissent         string   `json:"dissent"`
	NeedsIteration  bool     `json:"needs_iteration"`
	RefinementAreas []string `json:"refinement_areas"`
}

// Round is one completed round of the transcript.
type Round struct {
	Responses []model.Response
	Synthesis SynthesisView
}

// ArbiterInput collects everything the arbiter prompt needs.
type ArbiterInput struct {
	OriginalPrompt string
	Responses      []model.Response
	History        []Round
	SystemPrompt   string
}

// FormatResponses renders the current round's responses as
// <model_response> blocks.
func FormatResponses(responses []model.Response) string {
	blocks := make([]string, 0, len(responses))
	for _, r := range responses {
		body := r.Text
		if r.Failed() {
			body = "Error: " + r.Error
		}
		blocks = append(blocks, fmt.Sprintf(`<model_response>
            <model>%s</model>
            <instance>%d</instance>
            <confidence>%s</confidence>
            <response>%s</response>
        </model_response>`, r.Model, r.Instance, formatConfidence(r), body))
	}
	return strings.Join(blocks, "\n")
}

func formatConfidence(r model.Response) string {
	if r.Failed() {
		return "N/A"
	}
	return fmt.Sprint(r.Confidence)
}

// FormatHistory renders prior rounds as numbered <iteration> blocks, or the
// NoHistory placeholder when there are none.
func FormatHistory(history []Round) string {
	if len(history) == 0 {
		return NoHistory
	}
	blocks := make([]string, 0, len(history))
	for i, it := range history {
		lines := make([]string, 0, len(it.Responses))
		for _, r := range it.Responses {
			body := r.Text
			if r.Failed() {
				body = "Error"
			}
			lines = append(lines, fmt.Sprintf("<model_response>%s: %s</model_response>", r.Model, body))
		}
		areas := make([]string, 0, len(it.Synthesis.RefinementAreas))
		for _, a := range it.Synthesis.RefinementAreas {
			areas = append(areas, "<area>"+a+"</area>")
		}
		blocks = append(blocks, fmt.Sprintf(`<iteration>
            <iteration_number>%d</iteration_number>
            <model_responses>
                %s
            </model_responses>
            <synthesis>%s</synthesis>
            <confidence>%v</confidence>
            <refinement_areas>
                %s
            </refinement_areas>
        </iteration>`, i+1, strings.Join(lines, "\n"), it.Synthesis.Synthesis, it.Synthesis.Confidence,
			strings.Join(areas, "\n                ")))
	}
	return strings.Join(blocks, "\n")
}

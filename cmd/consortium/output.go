package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dusk-indust/consortium/internal/a2a"
	"github.com/dusk-indust/consortium/internal/orchestrator"
)

// styles renders headings for one writer. Colors are dropped when the
// writer is not a terminal.
type styles struct {
	heading lipgloss.Style
	label   lipgloss.Style
	subtle  lipgloss.Style
	bad     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:   r.NewStyle().Bold(true),
		subtle:  r.NewStyle().Foreground(lipgloss.Color("8")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func printResult(w io.Writer, res *orchestrator.Result, raw bool) {
	st := newStyles(w)

	fmt.Fprintln(w, st.heading.Render("Analysis"))
	fmt.Fprintln(w, res.Synthesis.Analysis)
	if d := strings.TrimSpace(res.Synthesis.Dissent); d != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.heading.Render("Dissent"))
		fmt.Fprintln(w, d)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.heading.Render("Synthesis"))
	fmt.Fprintln(w, res.Synthesis.Synthesis)
	fmt.Fprintln(w, st.subtle.Render(fmt.Sprintf("confidence %.2f after %d iteration(s), run %s",
		res.Synthesis.Confidence, res.Metadata.IterationCount, res.Metadata.RunID)))

	if !raw {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, st.heading.Render("Individual model responses"))
	for _, r := range res.ModelResponses {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.label.Render(fmt.Sprintf("Model: %s (Instance %d)", r.Model, r.Instance)))
		if r.Failed() {
			fmt.Fprintln(w, "Confidence: N/A")
			fmt.Fprintln(w, st.bad.Render("Error: "+r.Error))
			continue
		}
		fmt.Fprintf(w, "Confidence: %v\n", r.Confidence)
		fmt.Fprintln(w, r.Text)
	}
}

func printConsortium(w io.Writer, name string, cfg orchestrator.Config) {
	st := newStyles(w)

	fmt.Fprintln(w, st.heading.Render("Consortium: "+name))
	fmt.Fprintf(w, "  Models: %s\n", formatModels(cfg.Models))
	fmt.Fprintf(w, "  Arbiter: %s\n", cfg.Arbiter)
	fmt.Fprintf(w, "  Confidence Threshold: %v\n", cfg.ConfidenceThreshold)
	fmt.Fprintf(w, "  Max Iterations: %d\n", cfg.MaxIterations)
	fmt.Fprintf(w, "  Min Iterations: %d\n", cfg.MinimumIterations)
	if cfg.SystemPrompt != "" {
		fmt.Fprintf(w, "  System Prompt: %s\n", cfg.SystemPrompt)
	}
}

// formatModels renders counts as "a:1, b:2" in name order.
func formatModels(models map[string]int) string {
	names := make([]string, 0, len(models))
	for m := range models {
		names = append(names, m)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, m := range names {
		parts[i] = fmt.Sprintf("%s:%d", m, models[m])
	}
	return strings.Join(parts, ", ")
}

func printEndpoint(w io.Writer, s orchestrator.EndpointStatus) {
	st := newStyles(w)

	models := "(default)"
	if len(s.Models) > 0 {
		models = strings.Join(s.Models, ", ")
	}
	if !s.Reachable() {
		fmt.Fprintf(w, "%s %s  %s\n", st.bad.Render("✗"), s.Endpoint, models)
		if s.Err != nil {
			fmt.Fprintf(w, "    %s\n", st.subtle.Render(s.Err.Error()))
		}
		return
	}
	fmt.Fprintf(w, "✓ %s  %s\n", s.Endpoint, models)
	fmt.Fprintf(w, "    %s\n", describeCard(s.Card))
}

func describeCard(card *a2a.AgentCard) string {
	desc := card.Name
	if card.Version != "" {
		desc += " " + card.Version
	}
	if card.Description != "" {
		desc += ": " + card.Description
	}
	return desc
}

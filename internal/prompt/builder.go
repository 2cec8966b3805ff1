// Package prompt renders the three prompts of a consortium run: the initial
// voter prompt, the arbiter prompt and the refinement prompt for the next
// round. Templates come from an override directory, then the embedded
// defaults, then a minimal built-in text.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Template file names looked up in an override directory and in the
// embedded templates/ tree.
const (
	SystemFile    = "system_prompt.txt"
	ArbiterFile   = "arbiter_prompt.xml"
	IterationFile = "iteration_prompt.txt"
)

const fallbackArbiter = `Original prompt:
{{.OriginalPrompt}}

User instructions:
{{.UserInstructions}}

Model responses:
{{.FormattedResponses}}

Previous iterations:
{{.FormattedHistory}}

Synthesize the responses. Reply with <synthesis>, <confidence>, <analysis>,
<dissent>, <needs_iteration> and <refinement_areas> tags.`

// ArbiterData is the data available to the arbiter template.
type ArbiterData struct {
	OriginalPrompt     string
	FormattedResponses string
	FormattedHistory   string
	UserInstructions   string
}

// IterationData is the data available to the iteration template.
type IterationData struct {
	OriginalPrompt    string
	PreviousSynthesis string
	UserInstructions  string
	RefinementAreas   string
}

// Builder renders prompts from a fixed set of templates. It is immutable
// after Load and safe for concurrent use.
type Builder struct {
	system    string
	arbiter   *template.Template
	iteration *template.Template
	fallback  *template.Template
}

// Load builds a Builder whose templates come from dir when the file exists
// there and from the embedded defaults otherwise. An empty dir uses only the
// embedded defaults. A template in dir that does not parse is an error.
func Load(dir string) (*Builder, error) {
	system, err := readTemplate(dir, SystemFile)
	if err != nil {
		return nil, err
	}
	arbiterText, err := readTemplate(dir, ArbiterFile)
	if err != nil {
		return nil, err
	}
	iterationText, err := readTemplate(dir, IterationFile)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		system:   strings.TrimSpace(system),
		fallback: template.Must(template.New("fallback").Parse(fallbackArbiter)),
	}
	if arbiterText == "" {
		arbiterText = fallbackArbiter
	}
	if b.arbiter, err = parseTemplate(ArbiterFile, arbiterText); err != nil {
		return nil, err
	}
	if iterationText != "" {
		if b.iteration, err = parseTemplate(IterationFile, iterationText); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// New returns a Builder using only the embedded templates.
func New() *Builder {
	b, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded templates: %v", err))
	}
	return b
}

// Default returns the embedded default system prompt.
func Default() string {
	data, err := templateFS.ReadFile("templates/" + SystemFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// System returns the system prompt text loaded by this Builder.
func (b *Builder) System() string {
	return b.system
}

func readTemplate(dir, name string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("prompt: read %s: %w", name, err)
		}
	}
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(data)), nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("prompt: parse %s: %w", name, err)
	}
	return t, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Initial returns the first-round voter prompt. A non-empty systemPrompt is
// prepended inside [SYSTEM INSTRUCTIONS] markers.
func (b *Builder) Initial(userPrompt, systemPrompt string) string {
	body := userPrompt
	if systemPrompt != "" {
		body = fmt.Sprintf("[SYSTEM INSTRUCTIONS]\n%s\n[/SYSTEM INSTRUCTIONS]\n\n%s", systemPrompt, userPrompt)
	}
	return fmt.Sprintf("<prompt>\n    <instruction>%s</instruction>\n</prompt>", body)
}

// Arbiter renders the arbiter prompt for one round. If the loaded template
// fails to execute the built-in template is used instead.
func (b *Builder) Arbiter(in ArbiterInput) string {
	data := ArbiterData{
		OriginalPrompt:     in.OriginalPrompt,
		FormattedResponses: FormatResponses(in.Responses),
		FormattedHistory:   FormatHistory(in.History),
		UserInstructions:   in.SystemPrompt,
	}
	out, err := execute(b.arbiter, data)
	if err != nil {
		out, _ = execute(b.fallback, data)
	}
	return out
}

// NextRound renders the refinement prompt built from the previous synthesis.
func (b *Builder) NextRound(originalPrompt string, prev SynthesisView, systemPrompt string) string {
	if prev.RefinementAreas == nil {
		prev.RefinementAreas = []string{}
	}
	js, err := json.MarshalIndent(prev, "", "  ")
	if err != nil {
		js = []byte("{}")
	}
	if b.iteration == nil {
		return refinementFallback(originalPrompt, string(js))
	}
	out, err := execute(b.iteration, IterationData{
		OriginalPrompt:    originalPrompt,
		PreviousSynthesis: string(js),
		UserInstructions:  systemPrompt,
		RefinementAreas:   strings.Join(prev.RefinementAreas, "\n"),
	})
	if err != nil {
		return refinementFallback(originalPrompt, string(js))
	}
	return out
}

func refinementFallback(originalPrompt, synthesisJSON string) string {
	return fmt.Sprintf("Refining response for original prompt:\n%s\n\nArbiter feedback from previous attempt:\n%s\n\nPlease improve your response based on this feedback.",
		originalPrompt, synthesisJSON)
}

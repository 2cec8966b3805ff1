package orchestrator

import (
	"testing"

	"github.com/dusk-indust/consortium/internal/parse"
	"github.com/stretchr/testify/assert"
)

func TestSynthesisFrom_MissingSectionsDefault(t *testing.T) {
	got := synthesisFrom(parse.Arbiter("<synthesis>x</synthesis><confidence>0.4</confidence>"))

	assert.Equal(t, "x", got.Synthesis)
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)
	assert.Empty(t, got.Analysis)
	assert.Empty(t, got.Dissent)
	assert.False(t, got.NeedsIteration)
	assert.NotNil(t, got.RefinementAreas)
	assert.Empty(t, got.RefinementAreas)
}

func TestSynthesisFrom_ExplicitSections(t *testing.T) {
	got := synthesisFrom(parse.Arbiter("<synthesis>y</synthesis><confidence>85</confidence>" +
		"<needs_iteration>TRUE</needs_iteration><refinement_areas>\n units \n\n rounding\n</refinement_areas>"))

	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
	assert.True(t, got.NeedsIteration)
	assert.Equal(t, []string{"units", "rounding"}, got.RefinementAreas)
}

package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dusk-indust/consortium/internal/model"
	"github.com/dusk-indust/consortium/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *orchestrator.Result {
	return &orchestrator.Result{
		OriginalPrompt: "is 1 < 2?",
		ModelResponses: []model.Response{
			{Model: "alpha", Instance: 1, Text: "yes <confidence>0.9</confidence>", Confidence: 0.9},
			{Model: "beta", Instance: 1, Error: "boom"},
		},
		Synthesis: orchestrator.Synthesis{
			Synthesis:       "Yes, 1 < 2.",
			Confidence:      0.85,
			Analysis:        "agreement",
			Dissent:         "none",
			RefinementAreas: []string{},
		},
		Metadata: orchestrator.Metadata{
			ModelsUsed:     map[string]int{"alpha": 1, "beta": 1},
			Arbiter:        "judge",
			Timestamp:      "2026-01-02T03:04:05Z",
			IterationCount: 1,
			RunID:          "run-1",
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, "\n  \"original_prompt\": \"is 1 < 2?\"", "two-space indent, no HTML escaping")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "is 1 < 2?", decoded["original_prompt"])

	meta := decoded["metadata"].(map[string]any)
	assert.Equal(t, "judge", meta["arbiter"])
	assert.EqualValues(t, 1, meta["iteration_count"])

	responses := decoded["model_responses"].([]any)
	require.Len(t, responses, 2)
	second := responses[1].(map[string]any)
	assert.Equal(t, "boom", second["error"])
}

func TestWriteJSON_NilResult(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteJSON(&buf, nil))
	assert.Zero(t, buf.Len())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "result.json")
	require.NoError(t, WriteFile(path, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var res orchestrator.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "Yes, 1 < 2.", res.Synthesis.Synthesis)
	assert.Equal(t, map[string]int{"alpha": 1, "beta": 1}, res.Metadata.ModelsUsed)
}

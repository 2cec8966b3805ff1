package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dusk-indust/consortium/internal/a2a"
	"github.com/dusk-indust/consortium/internal/agent"
	"github.com/stretchr/testify/require"
)

const testArbiter = "judge"

// startModelServer serves every model from one A2A agent. Voters echo their
// model id; the arbiter answers with a confident synthesis.
func startModelServer(t *testing.T) *httptest.Server {
	t.Helper()

	card := a2a.AgentCard{Name: "fake-models", Version: "0.1.0", Description: "test models"}
	ag := agent.NewBaseAgent(card, func(_ context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
		text := fmt.Sprintf("%s thinks the answer is 4 <confidence>0.75</confidence>", msg.Model())
		if msg.Model() == testArbiter {
			text = "<synthesis>The answer is 4.</synthesis><confidence>0.95</confidence>" +
				"<analysis>All models agree.</analysis><dissent></dissent>" +
				"<needs_iteration>false</needs_iteration><refinement_areas></refinement_areas>"
		}
		return []a2a.Artifact{{
			ArtifactID: task.ID + "-answer",
			Parts:      []a2a.Part{a2a.TextPart(text)},
		}}, nil
	})
	srv := httptest.NewServer(ag.Routes())
	t.Cleanup(srv.Close)
	return srv
}

// writeConfigDir creates a config dir whose consortium.yml points every
// model at endpoint and defaults the arbiter to the fake judge.
func writeConfigDir(t *testing.T, endpoint string) string {
	t.Helper()

	dir := t.TempDir()
	yml := fmt.Sprintf("defaultEndpoint: %s\ntimeout: 10s\ndefaults:\n  arbiter: %s\n", endpoint, testArbiter)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "consortium.yml"), []byte(yml), 0o644))
	return dir
}

// execute runs the CLI with args the way main does and returns stdout and
// stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	c := &cli{
		in:       strings.NewReader(stdin),
		out:      &out,
		errOut:   &errOut,
		stdinTTY: func() bool { return stdin == "" },
	}
	root := c.rootCmd()
	root.SetArgs(defaultToRun(root, args))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sekkei/internal/graph"
	"github.com/ashita-ai/sekkei/internal/model"
	"github.com/ashita-ai/sekkei/internal/service/graphs"
)

const historyYAML = `
events:
  - kind: SituationAssessment
    system: car
    situation: obstacle
  - kind: ProblemIdentification
    system: car
    problem: collision_risk
  - kind: SolutionAssignment
    system: car
    solution: braking
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeHistory(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConvertCommand_File(t *testing.T) {
	path := writeHistory(t, "history.yaml", historyYAML)

	out, err := execute(t, "", "convert", "--file", path, "--graph", "de")
	require.NoError(t, err)

	var rec graph.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, model.GraphHistory, rec.Kind)
	require.Len(t, rec.Nodes, 3)
	assert.Equal(t, "SI_1", rec.Nodes[0]["id"])
	assert.Len(t, rec.Edges, 2)
}

func TestConvertCommand_StdinAll(t *testing.T) {
	out, err := execute(t, historyYAML, "convert", "-g", "all", "--keywords", "problem,solution")
	require.NoError(t, err)

	var recs graphs.Records
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs.History.Nodes, 3)
	assert.Equal(t, model.GraphDependency, recs.Dependency.Kind)
	assert.Equal(t, model.GraphIntegration, recs.Integration.Kind)
	assert.NotEmpty(t, recs.Integration.Nodes)
}

func TestConvertCommand_JSONDocument(t *testing.T) {
	doc := `{"events":[{"id":"a","kind":"SituationAssessment","system":"car","situation":"obstacle"}],"edges":[]}`
	out, err := execute(t, doc, "convert", "--graph", "de", "--id-strategy", "uuid")
	require.NoError(t, err)

	var rec graph.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.Len(t, rec.Nodes, 1)
	assert.Equal(t, "a", rec.Nodes[0]["id"], "explicit ids are kept")
	assert.Empty(t, rec.Edges)
}

func TestConvertCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		errText string
	}{
		{"unknown graph", historyYAML, []string{"convert", "--graph", "xx"}, "unknown graph"},
		{"unknown kind", "events:\n  - kind: Teleport\n", []string{"convert"}, "unknown event kind"},
		{"unknown field", "events:\n  - kind: SituationAssessment\n    mood: calm\n", []string{"convert"}, "parse yaml history"},
		{"missing file", "", []string{"convert", "--file", filepath.Join(t.TempDir(), "nope.yaml")}, "read history"},
		{"bad id strategy", historyYAML, []string{"convert", "--id-strategy", "sequence"}, "sequence"},
		{"stray argument", "", []string{"convert", "extra"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "sekkei dev\n", out)
}

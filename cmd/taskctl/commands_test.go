package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelflow/internal/fanout"
)

const surveyTemplate = `[{"type":"card","content":[
	{"type":"dynamicText","name":"Question","content":{}},
	{"type":"dynamicImage","name":"Photo","content":{}}
]}]`

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "survey.json")
	csvPath := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(tmplPath, []byte(surveyTemplate), 0o600))
	require.NoError(t, os.WriteFile(csvPath, []byte("question,photo\nWhat is this?,a.png\n,\nWhere?,\n"), 0o600))
	return tmplPath, csvPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlaceholdersCmd(t *testing.T) {
	tmplPath, _ := writeFixtures(t)

	out, err := execute(t, "placeholders", tmplPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Question")
	assert.Contains(t, out, "Photo")
	assert.Contains(t, out, "img")
}

func TestImportCmd(t *testing.T) {
	tmplPath, csvPath := writeFixtures(t)

	out, err := execute(t, "import", tmplPath, csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "What is this?")
	assert.Contains(t, out, "Where?")
}

func TestPlanCmd(t *testing.T) {
	tmplPath, csvPath := writeFixtures(t)

	t.Run("Repeat", func(t *testing.T) {
		out, err := execute(t, "plan", tmplPath, csvPath, "--repeat", "3", "--json")
		require.NoError(t, err)

		var plan fanout.Plan
		require.NoError(t, json.Unmarshal([]byte(out), &plan))
		require.Len(t, plan.Singles, 6)
		assert.Equal(t, "survey 1", plan.Singles[0].Name)
		assert.Equal(t, "survey 6", plan.Singles[5].Name)
	})

	t.Run("Broadcast", func(t *testing.T) {
		workers := filepath.Join(t.TempDir(), "workers.json")
		require.NoError(t, os.WriteFile(workers, []byte(`[
			{"id":"w1","domain":["finance"],"lang":["en"]},
			{"id":"w2","domain":["retail"],"lang":["en"]},
			{"id":"w3","domain":["finance"],"lang":["de"]}
		]`), 0o600))

		out, err := execute(t, "plan", tmplPath, csvPath, "--workers", workers, "--domain", "finance", "--name", "Batch", "--json")
		require.NoError(t, err)

		var plan fanout.Plan
		require.NoError(t, json.Unmarshal([]byte(out), &plan))
		require.Len(t, plan.Broadcasts, 2)
		assert.Len(t, plan.Broadcasts[0].Workers, 2)
		assert.Equal(t, "Batch 2", plan.Broadcasts[1].Template.Name)
	})

	t.Run("Column Mismatch", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.csv")
		require.NoError(t, os.WriteFile(bad, []byte("only\nx\n"), 0o600))
		_, err := execute(t, "plan", tmplPath, bad)
		assert.Error(t, err)
	})
}

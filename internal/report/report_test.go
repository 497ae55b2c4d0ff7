// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-skills/pkg/types"
)

func sampleResult() types.ResearchResult {
	at := time.Date(2026, 3, 1, 12, 0, 31, 0, time.UTC)
	return types.ResearchResult{
		Meta: types.Meta{
			RunID:          "0b5c3a52-8f7e-4e55-9d43-0b7c1f2e9a10",
			JobID:          "job-1",
			Topic:          "What is retrieval augmented generation?",
			Model:          types.ModelMini,
			CitationFormat: types.CitationNumbered,
			Mode:           types.ModePolling,
			Status:         types.StatusCompleted,
			CompletedAt:    &at,
			ElapsedSeconds: 31.5,
			Warnings:       []string{"SchemaMismatch: content is not valid JSON"},
		},
		Content: "RAG combines retrieval with generation [1].",
		Sources: []types.Source{
			{URL: "https://a.example", Title: "A", Citation: "[1]"},
			{URL: "https://b.example", Title: "B"},
		},
	}
}

func TestWriteRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		result func() types.ResearchResult
	}{
		{"string content", sampleResult},
		{
			name: "structured content",
			result: func() types.ResearchResult {
				r := sampleResult()
				r.Meta.Warnings = nil
				r.Content = map[string]any{"summary": "s", "key_points": []any{"a", "b"}}
				return r
			},
		},
		{
			name: "timed out with error",
			result: func() types.ResearchResult {
				r := sampleResult()
				r.Meta.Status = types.StatusTimedOut
				r.Meta.Error = &types.JobError{Kind: types.KindTimedOut, Message: "job did not finish"}
				r.Content = "X"
				return r
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.result()
			path := filepath.Join(t.TempDir(), "out", "nested", "report.json")

			got, err := Write(want, path, nil)
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(got))
			assert.Equal(t, path, got)

			back, err := Read(got)
			require.NoError(t, err)
			assert.Equal(t, want.Meta, back.Meta)
			assert.Equal(t, want.Content, back.Content)
			assert.Equal(t, want.Sources, back.Sources)
		})
	}
}

func TestWriteStdout(t *testing.T) {
	for _, path := range []string{"", Stdout} {
		var buf bytes.Buffer
		got, err := Write(sampleResult(), path, &buf)
		require.NoError(t, err)
		assert.Equal(t, Stdout, got)

		var doc map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
		assert.Len(t, doc, 3)
		assert.Contains(t, doc, "meta")
		assert.Contains(t, doc, "content")
		assert.Contains(t, doc, "sources")
	}
}

func TestWriteEmptySourcesAsList(t *testing.T) {
	r := sampleResult()
	r.Sources = nil

	var buf bytes.Buffer
	_, err := Write(r, "", &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"sources": []`)
}

func TestWriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(path, []byte("stale contents that are longer than nothing"), 0o644))

	r := sampleResult()
	r.Content = "fresh"
	_, err := Write(r, path, nil)
	require.NoError(t, err)

	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", back.Content)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should not remain")
}

func TestWriteRelativePath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	got, err := Write(sampleResult(), "reports/rag.json", nil)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.FileExists(t, got)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "reading report")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Read(bad)
	assert.ErrorContains(t, err, "parsing report")
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

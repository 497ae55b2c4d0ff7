// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-skills/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entryAt(runID string, at time.Time) Entry {
	return Entry{
		RunID:          runID,
		JobID:          "job-" + runID,
		Topic:          "topic " + runID,
		Model:          "mini",
		Mode:           "polling",
		Status:         "completed",
		Output:         "/tmp/" + runID + ".json",
		ElapsedSeconds: 12.5,
		CreatedAt:      at,
	}
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, entryAt("a", base)))
	require.NoError(t, s.Record(ctx, entryAt("b", base.Add(time.Minute))))
	require.NoError(t, s.Record(ctx, entryAt("c", base.Add(2*time.Minute))))

	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].RunID, got[1].RunID, got[2].RunID})
	assert.Equal(t, entryAt("a", base), got[2])

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordReplacesSameRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	e := entryAt("run", at)
	e.Status = "running"
	require.NoError(t, s.Record(ctx, e))
	e.Status = "timed_out"
	e.ErrorKind = "TimedOut"
	require.NoError(t, s.Record(ctx, e))

	got, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "timed_out", got[0].Status)
	assert.Equal(t, "TimedOut", got[0].ErrorKind)
}

func TestRecordRequiresRunID(t *testing.T) {
	s := openTestStore(t)
	err := s.Record(context.Background(), Entry{Topic: "t", Status: "completed"})
	assert.ErrorContains(t, err, "empty run id")
}

func TestListEmpty(t *testing.T) {
	got, err := openTestStore(t).List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, entryAt("kept", time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].RunID)
}

func TestFromResult(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := types.ResearchResult{Meta: types.Meta{
		RunID:          "run-1",
		JobID:          "job-1",
		Topic:          "What is RAG?",
		Model:          types.ModelPro,
		Mode:           types.ModeStreaming,
		Status:         types.StatusFailed,
		ElapsedSeconds: 3,
		Error:          &types.JobError{Kind: types.KindTransport, Message: "connection reset"},
	}}

	e := FromResult(res, "-", at)
	assert.Equal(t, Entry{
		RunID:          "run-1",
		JobID:          "job-1",
		Topic:          "What is RAG?",
		Model:          "pro",
		Mode:           "streaming",
		Status:         "failed",
		ErrorKind:      "TransportError",
		Output:         "-",
		ElapsedSeconds: 3,
		CreatedAt:      at,
	}, e)
}

func TestPrint(t *testing.T) {
	entries := []Entry{entryAt("a", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, entries, FormatTable))
		line := buf.String()
		assert.Contains(t, line, "completed")
		assert.Contains(t, line, "job-a")
		assert.Contains(t, line, "topic a")
		assert.Equal(t, 1, strings.Count(line, "\n"))
	})

	t.Run("table empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, nil, FormatTable))
		assert.Equal(t, "no jobs recorded\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, entries, FormatJSON))
		var back []Entry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
		assert.Equal(t, entries, back)
	})

	t.Run("json empty is a list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, nil, FormatJSON))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, entries, FormatYAML))
		var back []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
		require.Len(t, back, 1)
		assert.Equal(t, "a", back[0]["run_id"])
		assert.Equal(t, "job-a", back[0]["job_id"])
	})

	t.Run("unknown", func(t *testing.T) {
		assert.ErrorContains(t, Print(&bytes.Buffer{}, entries, "xml"), "unknown format")
	})
}

// mockStore returns a Store over sqlmock with the schema statements
// already expected.
func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_jobs_created_at").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_jobs_job_id").WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := New(db)
	require.NoError(t, err)
	return s, mock
}

func TestNewSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jobs").WillReturnError(errors.New("database is locked"))

	_, err = New(db)
	assert.ErrorContains(t, err, "creating history schema")
	assert.ErrorContains(t, err, "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailureIsWrapped(t *testing.T) {
	s, mock := mockStore(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := entryAt("run-x", at)

	mock.ExpectExec("INSERT OR REPLACE INTO jobs").
		WithArgs(e.RunID, e.JobID, e.Topic, e.Model, e.Mode, e.Status, e.ErrorKind, e.Output,
			e.ElapsedSeconds, "2026-03-01T12:00:00Z").
		WillReturnError(errors.New("disk I/O error"))

	err := s.Record(context.Background(), e)
	assert.ErrorContains(t, err, "recording job run-x")
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRejectsBadTimestamp(t *testing.T) {
	s, mock := mockStore(t)
	cols := []string{"run_id", "job_id", "topic", "model", "mode", "status", "error_kind", "output", "elapsed_seconds", "created_at"}
	mock.ExpectQuery("SELECT run_id").
		WithArgs(defaultLimit).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("run-1", nil, "topic", "mini", "polling", "completed", nil, "-", 1.5, "yesterday"))

	_, err := s.List(context.Background(), 0)
	assert.ErrorContains(t, err, "parsing created_at of run-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNullColumns(t *testing.T) {
	s, mock := mockStore(t)
	cols := []string{"run_id", "job_id", "topic", "model", "mode", "status", "error_kind", "output", "elapsed_seconds", "created_at"}
	mock.ExpectQuery("SELECT run_id").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("run-1", nil, "topic", nil, nil, "failed", nil, nil, nil, "2026-03-01T12:00:00Z"))

	got, err := s.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Entry{
		RunID:     "run-1",
		Topic:     "topic",
		Status:    "failed",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a local SQLite ledger of submitted research jobs so
// an operator can find a remote job id after the CLI has exited.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-skills/pkg/types"
)

// DefaultPath is the ledger location when none is configured.
const DefaultPath = ".research/history.db"

const defaultLimit = 20

// Entry is one recorded job.
type Entry struct {
	RunID          string    `json:"run_id" yaml:"run_id"`
	JobID          string    `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Topic          string    `json:"topic" yaml:"topic"`
	Model          string    `json:"model" yaml:"model"`
	Mode           string    `json:"mode" yaml:"mode"`
	Status         string    `json:"status" yaml:"status"`
	ErrorKind      string    `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Output         string    `json:"output" yaml:"output"`
	ElapsedSeconds float64   `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// FromResult builds the entry for a finished job written to output.
func FromResult(res types.ResearchResult, output string, createdAt time.Time) Entry {
	e := Entry{
		RunID:          res.Meta.RunID,
		JobID:          res.Meta.JobID,
		Topic:          res.Meta.Topic,
		Model:          string(res.Meta.Model),
		Mode:           string(res.Meta.Mode),
		Status:         string(res.Meta.Status),
		Output:         output,
		ElapsedSeconds: res.Meta.ElapsedSeconds,
		CreatedAt:      createdAt,
	}
	if res.Meta.Error != nil {
		e.ErrorKind = string(res.Meta.Error.Kind)
	}
	return e
}

// Store is the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the schema if needed. The Store
// takes ownership of db.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			run_id TEXT PRIMARY KEY,
			job_id TEXT,
			topic TEXT NOT NULL,
			model TEXT,
			mode TEXT,
			status TEXT NOT NULL,
			error_kind TEXT,
			output TEXT,
			elapsed_seconds REAL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_job_id ON jobs(job_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores e, replacing any entry with the same run id.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		return fmt.Errorf("recording job: empty run id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs
			(run_id, job_id, topic, model, mode, status, error_kind, output, elapsed_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.JobID, e.Topic, e.Model, e.Mode, e.Status, e.ErrorKind, e.Output,
		e.ElapsedSeconds, e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording job %s: %w", e.RunID, err)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// uses the default of 20.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, job_id, topic, model, mode, status, error_kind, output, elapsed_seconds, created_at
		FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                   Entry
			jobID, model, mode, errKind, output sql.NullString
			elapsed                             sql.NullFloat64
			created                             string
		)
		if err := rows.Scan(&e.RunID, &jobID, &e.Topic, &model, &mode, &e.Status,
			&errKind, &output, &elapsed, &created); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		e.JobID = jobID.String
		e.Model = model.String
		e.Mode = mode.String
		e.ErrorKind = errKind.String
		e.Output = output.String
		e.ElapsedSeconds = elapsed.Float64
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing created_at of %s: %w", e.RunID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job rows: %w", err)
	}
	return entries, nil
}

// Format selects how Print renders entries.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Print writes entries to w in the given format.
func Print(w io.Writer, entries []Entry, format Format) error {
	if entries == nil {
		entries = []Entry{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		if len(entries) == 0 {
			_, err := fmt.Fprintln(w, "no jobs recorded")
			return err
		}
		for _, e := range entries {
			job := e.JobID
			if job == "" {
				job = "-"
			}
			if _, err := fmt.Fprintf(w, "%s  %-10s %-9s %-24s %6.1fs  %s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Status, e.Mode, job,
				e.ElapsedSeconds, e.Topic); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research CLI: the
// outbound request, the progress events produced by a delivery mode, the
// canonical result written to disk, and the error taxonomy.
package types

import (
	"encoding/json"
	"time"
)

// Model selects the research model tier.
type Model string

const (
	ModelMini Model = "mini"
	ModelPro  Model = "pro"
	ModelAuto Model = "auto"
)

// Models lists the accepted model tiers in display order.
var Models = []Model{ModelMini, ModelPro, ModelAuto}

// CitationFormat selects how the service formats source references.
type CitationFormat string

const (
	CitationNumbered CitationFormat = "numbered"
	CitationMLA      CitationFormat = "mla"
	CitationAPA      CitationFormat = "apa"
	CitationChicago  CitationFormat = "chicago"
)

// CitationFormats lists the accepted citation formats in display order.
var CitationFormats = []CitationFormat{CitationNumbered, CitationMLA, CitationAPA, CitationChicago}

// Mode identifies how job progress is delivered.
type Mode string

const (
	ModeStreaming Mode = "streaming"
	ModePolling   Mode = "polling"
)

// Status is the terminal state of a job as recorded in the report.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether s ends the job.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// ResearchRequest is the validated job request assembled from CLI input.
type ResearchRequest struct {
	// Topic is the research question. Never empty.
	Topic string `json:"topic"`

	Model          Model          `json:"model"`
	CitationFormat CitationFormat `json:"citation_format"`

	// OutputSchema holds the caller's schema exactly as supplied, or nil.
	// It is forwarded to the service byte-for-byte.
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`

	// RequiredFields lists the root-level required properties of
	// OutputSchema, used to reconcile the response.
	RequiredFields []string `json:"-"`

	// Stream selects streaming delivery; polling is the default.
	Stream bool `json:"stream"`
}

// Mode returns the delivery mode selected by the request.
func (r ResearchRequest) Mode() Mode {
	if r.Stream {
		return ModeStreaming
	}
	return ModePolling
}

// HasSchema reports whether a structured output schema was supplied.
func (r ResearchRequest) HasSchema() bool {
	return len(r.OutputSchema) > 0
}

// Source is a cited web page. Sources are unique by URL.
type Source struct {
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title" yaml:"title"`

	// Citation is the formatted reference marker for the requested
	// citation format, when the service provides one.
	Citation string `json:"citation,omitempty" yaml:"citation,omitempty"`
}

// JobError records why a job did not complete.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Meta describes the job that produced a report.
type Meta struct {
	RunID          string         `json:"run_id"`
	JobID          string         `json:"job_id,omitempty"`
	Topic          string         `json:"topic"`
	Model          Model          `json:"model"`
	CitationFormat CitationFormat `json:"citation_format"`
	Mode           Mode           `json:"mode"`
	Status         Status         `json:"status"`

	// CompletedAt is set when the job reaches a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// Warnings collects non-fatal notes such as schema mismatches.
	Warnings []string `json:"warnings,omitempty"`

	Error *JobError `json:"error,omitempty"`
}

// ResearchResult is the canonical outcome of one job.
type ResearchResult struct {
	Meta Meta `json:"meta"`

	// Content is the synthesized report: a string, or the decoded JSON
	// value when an output schema was requested and the response conforms.
	Content any `json:"content"`

	// Sources are ordered by first appearance.
	Sources []Source `json:"sources"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate folds the events of one job into its canonical result.
// An Aggregator is owned by a single goroutine and is not safe for
// concurrent use.
package aggregate

import (
	"strings"
	"time"

	"github.com/pdiddy/research-skills/internal/schema"
	"github.com/pdiddy/research-skills/pkg/types"
)

// WarnSchemaMismatch prefixes the warning recorded when structured content
// could not be decoded against the requested schema.
const WarnSchemaMismatch = "SchemaMismatch"

// Aggregator owns the ResearchResult of one job. Events are applied in the
// order received; once the job is terminal the result is frozen and later
// events are ignored.
type Aggregator struct {
	schema *schema.Schema
	now    func() time.Time
	start  time.Time

	meta     types.Meta
	content  strings.Builder
	decoded  any
	sources  []types.Source
	byURL    map[string]int
	warnings []string
}

// New returns an Aggregator for req. The job clock starts at now(). A nil
// now uses time.Now.
func New(req types.ResearchRequest, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	a := &Aggregator{
		now:   now,
		start: now(),
		byURL: make(map[string]int),
		meta: types.Meta{
			Topic:          req.Topic,
			Model:          req.Model,
			CitationFormat: req.CitationFormat,
			Mode:           req.Mode(),
			Status:         types.StatusRunning,
		},
	}
	if req.HasSchema() {
		s, err := schema.Parse(req.OutputSchema)
		if err != nil {
			a.warn("output schema could not be reloaded: " + err.Error())
		} else {
			a.schema = s
		}
	}
	return a
}

// Status returns the current job status.
func (a *Aggregator) Status() types.Status { return a.meta.Status }

// Apply folds one event into the result.
func (a *Aggregator) Apply(ev types.Event) {
	if a.meta.Status.Terminal() {
		return
	}
	switch e := ev.(type) {
	case types.Submitted:
		a.meta.JobID = e.JobID
	case types.Planning, types.WebSearch:
		// Progress only.
	case types.ContentChunk:
		a.content.WriteString(e.Text)
	case types.SourcesBatch:
		a.upsert(e.Sources)
	case types.Snapshot:
		// A snapshot is the whole state so far. Empty content means the
		// service has nothing newer to report.
		if e.Content != "" {
			a.content.Reset()
			a.content.WriteString(e.Content)
		}
		a.upsert(e.Sources)
	case types.Done:
		a.finish(types.StatusCompleted, e.ElapsedSeconds)
		a.reconcile()
	case types.Error:
		msg := e.Message
		if msg == "" {
			msg = "remote job failed"
		}
		a.meta.Error = &types.JobError{Kind: types.KindRemoteJob, Message: msg}
		a.finish(types.StatusFailed, 0)
	}
}

// TimeOut marks the job TimedOut. Content received so far is kept.
func (a *Aggregator) TimeOut() {
	if a.meta.Status.Terminal() {
		return
	}
	a.meta.Error = &types.JobError{
		Kind:    types.KindTimedOut,
		Message: "job did not finish before the wall-clock timeout",
	}
	a.finish(types.StatusTimedOut, 0)
}

// Fail marks the job Failed for a local reason such as exhausted retries or
// an interrupt. Content received so far is kept.
func (a *Aggregator) Fail(kind types.ErrorKind, msg string) {
	if a.meta.Status.Terminal() {
		return
	}
	a.meta.Error = &types.JobError{Kind: kind, Message: msg}
	a.finish(types.StatusFailed, 0)
}

// Result returns a copy of the current result. Content is the decoded
// value when the job completed with conforming structured content and the
// raw text otherwise. Sources is never nil.
func (a *Aggregator) Result() types.ResearchResult {
	meta := a.meta
	if a.warnings != nil {
		meta.Warnings = append([]string(nil), a.warnings...)
	}
	if a.meta.Error != nil {
		e := *a.meta.Error
		meta.Error = &e
	}

	var content any = a.content.String()
	if a.decoded != nil {
		content = a.decoded
	}
	return types.ResearchResult{
		Meta:    meta,
		Content: content,
		Sources: append([]types.Source{}, a.sources...),
	}
}

// finish freezes the job in status. A non-positive elapsed is replaced by
// the locally measured duration.
func (a *Aggregator) finish(status types.Status, elapsed float64) {
	at := a.now()
	if elapsed <= 0 {
		elapsed = at.Sub(a.start).Seconds()
	}
	a.meta.Status = status
	a.meta.CompletedAt = &at
	a.meta.ElapsedSeconds = elapsed
}

// reconcile decodes completed content against the output schema. A failure
// leaves the raw text in place and records a warning.
func (a *Aggregator) reconcile() {
	if a.schema == nil {
		return
	}
	doc, notes, err := schema.Conform(a.schema, a.content.String())
	if err != nil {
		a.warn(WarnSchemaMismatch + ": " + err.Error())
		return
	}
	a.decoded = doc
	for _, n := range notes {
		a.warn("schema: " + n)
	}
}

// upsert merges sources by URL. The first sighting fixes the position and
// later sightings overwrite title and citation.
func (a *Aggregator) upsert(sources []types.Source) {
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		if i, ok := a.byURL[s.URL]; ok {
			a.sources[i] = s
			continue
		}
		a.byURL[s.URL] = len(a.sources)
		a.sources = append(a.sources, s)
	}
}

func (a *Aggregator) warn(msg string) {
	a.warnings = append(a.warnings, msg)
}

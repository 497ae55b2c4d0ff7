// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package job runs one research invocation end to end: validate the input,
// submit the job, follow it in the selected delivery mode, and write the
// report. Partial content is written even when the job does not complete.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-skills/internal/aggregate"
	"github.com/pdiddy/research-skills/internal/history"
	"github.com/pdiddy/research-skills/internal/report"
	"github.com/pdiddy/research-skills/internal/request"
	"github.com/pdiddy/research-skills/internal/schema"
	"github.com/pdiddy/research-skills/internal/transport"
	"github.com/pdiddy/research-skills/pkg/types"
)

// Options holds the per-invocation input.
type Options struct {
	Topic          string
	Model          string
	CitationFormat string

	// SchemaArg is a schema file path or inline JSON. Empty means no schema.
	SchemaArg string

	Stream bool

	// Output is the report path. Empty or "-" writes to stdout.
	Output string
}

// Outcome is what a run produced. Path is the report destination.
type Outcome struct {
	Result types.ResearchResult
	Path   string
}

// Runner executes research jobs. Only Config is required.
type Runner struct {
	Config types.ResearchConfig

	// HTTP is the client for all API calls (default: a new http.Client).
	HTTP *http.Client

	// Logger receives progress (default: no logging).
	Logger *zap.Logger

	// Stdout receives the report when no output path is given (default os.Stdout).
	Stdout io.Writer

	// History records every submitted job when set. Failures are logged.
	History *history.Store

	// Now and NewRunID are overridable for tests.
	Now      func() time.Time
	NewRunID func() string
}

// Run executes one job. Validation failures return an error before any
// network call and produce no report. Once the job is submitted a report
// is always written; the returned error is non-nil with the failure kind
// unless the job completed.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	r.setDefaults()
	cfg := r.Config.WithDefaults()
	cfg.APIKey = r.Config.APIKey

	if cfg.APIKey == "" {
		return nil, types.Errorf(types.KindInvalidArgument, "API key is not configured")
	}

	var sch *schema.Schema
	if opts.SchemaArg != "" {
		s, err := schema.Load(opts.SchemaArg)
		if err != nil {
			return nil, err
		}
		if err := schema.Validate(s); err != nil {
			return nil, err
		}
		sch = s
	}

	req, err := request.Build(request.Options{
		Topic:          opts.Topic,
		Model:          opts.Model,
		CitationFormat: opts.CitationFormat,
		Schema:         sch,
		Stream:         opts.Stream,
	})
	if err != nil {
		return nil, err
	}

	runID := r.NewRunID()
	log := r.Logger.With(zap.String("run_id", runID))
	client := transport.NewClient(cfg, r.HTTP, log)
	strategy := transport.New(client, req, cfg)
	agg := aggregate.New(req, r.Now)

	log.Info("submitting research job",
		zap.String("topic", req.Topic),
		zap.String("model", string(req.Model)),
		zap.String("mode", string(strategy.Mode())),
		zap.Bool("schema", req.HasSchema()),
		zap.Duration("timeout", cfg.Timeout),
	)

	jobCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	runErr := strategy.Run(jobCtx, req, func(ev types.Event) {
		logEvent(log, ev)
		agg.Apply(ev)
	})
	deadline := jobCtx.Err() == context.DeadlineExceeded
	cancel()
	settle(ctx, deadline, agg, runErr)

	res := agg.Result()
	res.Meta.RunID = runID
	if res.Meta.JobID != "" && res.Meta.Status != types.StatusCompleted {
		log.Warn("remote job may still be running",
			zap.String("job_id", res.Meta.JobID),
			zap.String("status", string(res.Meta.Status)),
		)
	}

	path, err := report.Write(res, opts.Output, r.Stdout)
	if err != nil {
		return &Outcome{Result: res}, err
	}
	log.Info("report written",
		zap.String("path", path),
		zap.String("status", string(res.Meta.Status)),
		zap.Float64("elapsed_seconds", res.Meta.ElapsedSeconds),
		zap.Int("sources", len(res.Sources)),
	)
	for _, w := range res.Meta.Warnings {
		log.Warn("report warning", zap.String("warning", w))
	}

	r.record(ctx, log, res, path)

	return &Outcome{Result: res, Path: path}, outcomeError(res)
}

func (r *Runner) setDefaults() {
	if r.HTTP == nil {
		r.HTTP = &http.Client{}
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.NewRunID == nil {
		r.NewRunID = uuid.NewString
	}
}

// settle maps how delivery ended onto the aggregator. A parent context
// cancellation is an interrupt. Only the job's own deadline is a timeout;
// a single request timing out is a transport failure.
func settle(parent context.Context, deadline bool, agg *aggregate.Aggregator, err error) {
	switch {
	case err == nil:
		if !agg.Status().Terminal() {
			agg.Fail(types.KindTransport, "delivery ended without a terminal event")
		}
	case errors.Is(err, context.Canceled) && parent.Err() != nil:
		agg.Fail(types.KindInterrupted, "interrupted before the job finished")
	case deadline && errors.Is(err, context.DeadlineExceeded):
		agg.TimeOut()
	default:
		kind := types.KindOf(err)
		if kind == "" {
			kind = types.KindTransport
		}
		agg.Fail(kind, err.Error())
	}
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, res types.ResearchResult, path string) {
	if r.History == nil {
		return
	}
	entry := history.FromResult(res, path, r.Now())
	if err := r.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn("could not record job history", zap.Error(err))
	}
}

// outcomeError returns nil for a completed job and an error carrying the
// failure kind otherwise.
func outcomeError(res types.ResearchResult) error {
	if res.Meta.Status == types.StatusCompleted {
		return nil
	}
	e := res.Meta.Error
	if e == nil {
		e = &types.JobError{Kind: types.KindTransport, Message: "job did not complete"}
	}
	msg := e.Message
	if res.Meta.JobID != "" {
		msg = fmt.Sprintf("%s (job %s)", msg, res.Meta.JobID)
	}
	return types.Errorf(e.Kind, "%s", msg)
}

func logEvent(log *zap.Logger, ev types.Event) {
	switch e := ev.(type) {
	case types.Submitted:
		log.Info("research job submitted", zap.String("job_id", e.JobID))
	case types.Planning:
		log.Info("planning", zap.String("note", e.Note))
	case types.WebSearch:
		log.Info("searching the web", zap.String("note", e.Note))
	case types.ContentChunk:
		log.Debug("content received", zap.Int("bytes", len(e.Text)))
	case types.SourcesBatch:
		log.Info("sources received", zap.Int("count", len(e.Sources)))
	case types.Snapshot:
		log.Debug("status snapshot", zap.Int("bytes", len(e.Content)), zap.Int("sources", len(e.Sources)))
	case types.Done:
		log.Info("research completed", zap.Float64("elapsed_seconds", e.ElapsedSeconds))
	case types.Error:
		log.Error("research job failed", zap.String("message", e.Message))
	}
}

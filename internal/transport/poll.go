// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-skills/internal/httputil"
	"github.com/pdiddy/research-skills/pkg/types"
)

// Remote job states reported by the status resource.
const (
	jobCompleted = "completed"
	jobFailed    = "failed"
)

// Poller submits a job and fetches its status until it is terminal or the
// context ends. Status fetches are the only retried calls.
type Poller struct {
	Client *Client

	// Interval is the delay between status fetches (default 5s).
	Interval time.Duration

	// MaxRetries bounds retries of one failed status fetch.
	MaxRetries int

	// RequestTimeout bounds a single status fetch. Zero means no limit.
	RequestTimeout time.Duration
}

// Mode returns types.ModePolling.
func (p *Poller) Mode() types.Mode { return types.ModePolling }

// jobStatus is the body of the job status resource.
type jobStatus struct {
	RequestID    string          `json:"request_id"`
	Status       string          `json:"status"`
	Content      json.RawMessage `json:"content"`
	Sources      []wireSource    `json:"sources"`
	ResponseTime float64         `json:"response_time"`
	Error        json.RawMessage `json:"error"`
}

// Run implements Strategy.
func (p *Poller) Run(ctx context.Context, req types.ResearchRequest, emit func(types.Event)) error {
	start := time.Now()
	log := p.Client.Logger

	jobID, err := p.Client.Submit(ctx, req)
	if err != nil {
		return err
	}
	emit(types.Submitted{JobID: jobID})

	interval := p.Interval
	if interval <= 0 {
		interval = types.DefaultPollInterval
	}
	client := *p.Client.HTTP
	if p.RequestTimeout > 0 {
		client.Timeout = p.RequestTimeout
	}

	// The first fetch happens immediately; later ones are spaced by interval.
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := waitPoll(ctx, limiter); err != nil {
			return err
		}
		st, err := p.fetch(ctx, &client, jobID)
		if err != nil {
			return err
		}

		switch st.Status {
		case jobCompleted:
			emit(types.Snapshot{Content: contentText(st.Content), Sources: toSources(st.Sources)})
			elapsed := st.ResponseTime
			if elapsed <= 0 {
				elapsed = time.Since(start).Seconds()
			}
			emit(types.Done{ElapsedSeconds: elapsed})
			return nil
		case jobFailed:
			msg := errorText(st.Error)
			if msg == "" {
				msg = "unknown error"
			}
			emit(types.Error{Message: msg})
			return nil
		}

		if content := contentText(st.Content); content != "" || len(st.Sources) > 0 {
			emit(types.Snapshot{Content: content, Sources: toSources(st.Sources)})
		}
		log.Info("research in progress",
			zap.String("job_id", jobID),
			zap.String("status", st.Status),
			zap.Duration("next_poll", interval),
		)
	}
}

// waitPoll blocks until the next poll is allowed. When the next poll would
// fall after the context deadline it waits for the deadline instead, so
// the caller always sees the context error.
func waitPoll(ctx context.Context, limiter *rate.Limiter) error {
	if err := limiter.Wait(ctx); err != nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *Poller) fetch(ctx context.Context, client *http.Client, jobID string) (*jobStatus, error) {
	req, err := p.Client.newRequest(ctx, http.MethodGet, researchPath+"/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, p.MaxRetries, p.Client.Logger)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, types.Errorf(types.KindTransport, "fetching job %s: %w", jobID, err)
	}

	var st jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.Errorf(types.KindTransport, "parsing status of job %s: %w", jobID, err)
	}
	return &st, nil
}

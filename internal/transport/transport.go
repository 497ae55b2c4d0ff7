// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transport submits research jobs and follows them to completion.
// Two delivery modes implement Strategy: Streamer reads a live event stream
// and Poller fetches the job status on an interval. Both report progress as
// types.Event values and share one exit contract.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-skills/internal/request"
	"github.com/pdiddy/research-skills/pkg/types"
)

// researchPath is the job endpoint relative to the API base URL.
const researchPath = "/research"

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 1024

// Strategy delivers the progress of one job. Run emits events in the order
// they are received and returns nil once a terminal Done or Error event has
// been emitted. Any other return is a transport failure or the context
// error; the remote job is never cancelled.
type Strategy interface {
	Mode() types.Mode
	Run(ctx context.Context, req types.ResearchRequest, emit func(types.Event)) error
}

// Client holds the connection settings shared by both strategies.
type Client struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	HTTP      *http.Client
	Logger    *zap.Logger
}

// NewClient returns a Client for cfg. The API key is taken from cfg and is
// never read from the environment here.
func NewClient(cfg types.ResearchConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:    cfg.APIKey,
		UserAgent: cfg.UserAgent,
		HTTP:      httpClient,
		Logger:    logger,
	}
}

// New returns the strategy selected by req.
func New(c *Client, req types.ResearchRequest, cfg types.ResearchConfig) Strategy {
	if req.Stream {
		return &Streamer{Client: c}
	}
	return &Poller{
		Client:         c,
		Interval:       cfg.PollInterval,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.HTTPConfig.Timeout,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// submitResponse is the body returned when a polling job is accepted.
type submitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// Submit creates a polling job and returns its identifier. A failed
// submission is not retried.
func (c *Client) Submit(ctx context.Context, req types.ResearchRequest) (string, error) {
	body, err := request.Body(req)
	if err != nil {
		return "", err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, researchPath, body)
	if err != nil {
		return "", err
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", types.Errorf(types.KindTransport, "submitting research job: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", types.Errorf(types.KindTransport, "submitting research job: %w", err)
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", types.Errorf(types.KindTransport, "parsing submission response: %w", err)
	}
	if sr.RequestID == "" {
		return "", types.Errorf(types.KindTransport, "submission response has no request_id")
	}
	return sr.RequestID, nil
}

// checkStatus returns an error quoting the body for non-2xx responses.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := strings.TrimSpace(string(snippet)); msg != "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("HTTP %d", resp.StatusCode)
}

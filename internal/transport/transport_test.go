// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-skills/internal/httputil"
	"github.com/pdiddy/research-skills/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

const testAPIKey = "tvly-test-key"

func testClient(ts *httptest.Server) *Client {
	return NewClient(types.ResearchConfig{
		HTTPConfig: types.HTTPConfig{BaseURL: ts.URL + "/", UserAgent: "research-test"},
		APIKey:     testAPIKey,
	}, ts.Client(), nil)
}

func testRequest() types.ResearchRequest {
	return types.ResearchRequest{
		Topic:          "What is retrieval augmented generation?",
		Model:          types.ModelMini,
		CitationFormat: types.CitationNumbered,
	}
}

// recorder collects emitted events in order.
type recorder struct {
	events []types.Event
}

func (r *recorder) emit(ev types.Event) { r.events = append(r.events, ev) }

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNewSelectsStrategy(t *testing.T) {
	c := &Client{}
	cfg := types.ResearchConfig{PollInterval: 2 * time.Second, MaxRetries: 4}

	s := New(c, types.ResearchRequest{Stream: true}, cfg)
	assert.Equal(t, types.ModeStreaming, s.Mode())
	assert.IsType(t, &Streamer{}, s)

	s = New(c, types.ResearchRequest{}, cfg)
	assert.Equal(t, types.ModePolling, s.Mode())
	p, ok := s.(*Poller)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, p.Interval)
	assert.Equal(t, 4, p.MaxRetries)
}

func TestNewClientTrimsBaseURL(t *testing.T) {
	c := NewClient(types.ResearchConfig{HTTPConfig: types.HTTPConfig{BaseURL: "https://api.example.com/"}}, nil, nil)
	assert.Equal(t, "https://api.example.com", c.BaseURL)
	assert.NotNil(t, c.HTTP)
	assert.NotNil(t, c.Logger)
}

func TestContentText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"plain text"`, "plain text"},
		{`{"summary": "s"}`, `{"summary": "s"}`},
		{`null`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contentText(json.RawMessage(tt.raw)), "raw %q", tt.raw)
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"quota exceeded"`, "quota exceeded"},
		{`{"message": "bad input"}`, "bad input"},
		{`{"detail": "invalid key"}`, "invalid key"},
		{`null`, ""},
		{`""`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorText(json.RawMessage(tt.raw)), "raw %q", tt.raw)
	}
}

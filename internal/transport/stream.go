// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-skills/internal/request"
	"github.com/pdiddy/research-skills/pkg/types"
)

// Scanner limits for stream lines. A single content frame can be large
// when structured output arrives in one piece.
const (
	streamBufBytes = 64 * 1024
	streamMaxBytes = 16 * 1024 * 1024
)

// Streamer submits a job with streaming enabled and converts the
// server-sent event stream into events.
type Streamer struct {
	Client *Client
}

// Mode returns types.ModeStreaming.
func (s *Streamer) Mode() types.Mode { return types.ModeStreaming }

// Run implements Strategy. The request context bounds the whole stream, so
// a stalled connection ends when the context does.
func (s *Streamer) Run(ctx context.Context, req types.ResearchRequest, emit func(types.Event)) error {
	start := time.Now()
	log := s.Client.Logger

	req.Stream = true
	body, err := request.Body(req)
	if err != nil {
		return err
	}
	httpReq, err := s.Client.newRequest(ctx, http.MethodPost, researchPath, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.Client.HTTP.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.Errorf(types.KindTransport, "opening research stream: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return types.Errorf(types.KindTransport, "opening research stream: %w", err)
	}

	d := &frameDecoder{start: start, log: log}
	frames := newFrameReader(resp.Body)
	for {
		f, err := frames.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return types.Errorf(types.KindTransport, "stream closed before the job finished")
			}
			return types.Errorf(types.KindTransport, "reading research stream: %w", err)
		}

		events, terminal, err := d.decode(f)
		if err != nil {
			return types.Errorf(types.KindTransport, "malformed terminal frame: %w", err)
		}
		for _, ev := range events {
			emit(ev)
		}
		if terminal {
			return nil
		}
	}
}

// frame is one server-sent event: an optional event name and its data lines.
type frame struct {
	event string
	data  []string
}

// frameReader splits a server-sent event stream into frames. Bare JSON
// lines without SSE framing are accepted as single-line frames.
type frameReader struct {
	sc *bufio.Scanner
}

func newFrameReader(r io.Reader) *frameReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, streamBufBytes), streamMaxBytes)
	return &frameReader{sc: sc}
}

// Next returns the next frame, or io.EOF once the stream is exhausted.
func (r *frameReader) Next() (frame, error) {
	var f frame
	seen := false
	for r.sc.Scan() {
		line := strings.TrimRight(r.sc.Text(), "\r")
		switch {
		case line == "":
			if seen {
				return f, nil
			}
			continue
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "{") && !seen:
			return frame{data: []string{line}}, nil
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			f.event = value
			seen = true
		case "data":
			f.data = append(f.data, value)
			seen = true
		}
	}
	if err := r.sc.Err(); err != nil {
		return frame{}, err
	}
	if seen {
		return f, nil
	}
	return frame{}, io.EOF
}

// streamChunk is one data payload of the research stream.
type streamChunk struct {
	ID           string          `json:"id"`
	Choices      []streamChoice  `json:"choices"`
	Sources      []wireSource    `json:"sources"`
	ResponseTime float64         `json:"response_time"`
	Error        json.RawMessage `json:"error"`
}

type streamChoice struct {
	Delta streamDelta `json:"delta"`
}

type streamDelta struct {
	Content   json.RawMessage `json:"content"`
	ToolCalls json.RawMessage `json:"tool_calls"`
	Sources   []wireSource    `json:"sources"`
}

// toolCall covers both the flat and the function-wrapped tool call shapes.
type toolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Function  struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

const doneMarker = "[DONE]"

// frameDecoder turns frames into events. It remembers whether the job id
// has been reported.
type frameDecoder struct {
	start     time.Time
	log       *zap.Logger
	announced bool
}

// decode returns the events carried by f and whether f ends the stream.
func (d *frameDecoder) decode(f frame) ([]types.Event, bool, error) {
	switch f.event {
	case "done":
		elapsed, err := d.doneElapsed(f.data)
		if err != nil {
			return nil, true, err
		}
		return []types.Event{types.Done{ElapsedSeconds: elapsed}}, true, nil
	case "error":
		msg := strings.TrimSpace(strings.Join(f.data, "\n"))
		var c streamChunk
		if err := json.Unmarshal([]byte(msg), &c); err == nil {
			if text := errorText(c.Error); text != "" {
				msg = text
			}
		}
		if msg == "" {
			msg = "stream reported an error"
		}
		return []types.Event{types.Error{Message: msg}}, true, nil
	}

	var events []types.Event
	for _, line := range f.data {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == doneMarker {
			events = append(events, types.Done{ElapsedSeconds: time.Since(d.start).Seconds()})
			return events, true, nil
		}

		var c streamChunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			d.log.Warn("skipping malformed stream data", zap.String("event", f.event), zap.Error(err))
			continue
		}
		if msg := errorText(c.Error); msg != "" {
			events = append(events, types.Error{Message: msg})
			return events, true, nil
		}
		if c.ID != "" && !d.announced {
			d.announced = true
			events = append(events, types.Submitted{JobID: c.ID})
		}
		for _, choice := range c.Choices {
			events = append(events, toolEvents(choice.Delta.ToolCalls)...)
			if text := contentText(choice.Delta.Content); text != "" {
				events = append(events, types.ContentChunk{Text: text})
			}
			if src := toSources(choice.Delta.Sources); len(src) > 0 {
				events = append(events, types.SourcesBatch{Sources: src})
			}
		}
		if src := toSources(c.Sources); len(src) > 0 {
			events = append(events, types.SourcesBatch{Sources: src})
		}
	}
	return events, false, nil
}

// doneElapsed reads the elapsed time from a done frame, falling back to the
// locally measured duration.
func (d *frameDecoder) doneElapsed(data []string) (float64, error) {
	payload := strings.TrimSpace(strings.Join(data, "\n"))
	if payload != "" && payload != doneMarker {
		var c streamChunk
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return 0, fmt.Errorf("decoding done frame: %w", err)
		}
		if c.ResponseTime > 0 {
			return c.ResponseTime, nil
		}
	}
	return time.Since(d.start).Seconds(), nil
}

// toolEvents maps tool calls to progress events. Planning steps become
// Planning; every other tool step is reported as WebSearch.
func toolEvents(raw json.RawMessage) []types.Event {
	calls := parseToolCalls(raw)
	events := make([]types.Event, 0, len(calls))
	for _, tc := range calls {
		name := tc.Function.Name
		if name == "" {
			name = tc.Name
		}
		if name == "" {
			continue
		}
		note := tc.Function.Arguments
		if note == "" {
			note = tc.Arguments
		}
		if note == "" {
			note = name
		}
		if strings.Contains(strings.ToLower(name), "plan") {
			events = append(events, types.Planning{Note: note})
		} else {
			events = append(events, types.WebSearch{Note: note})
		}
	}
	return events
}

// parseToolCalls accepts a list of tool calls or an object wrapping one
// under "tool_call".
func parseToolCalls(raw json.RawMessage) []toolCall {
	if len(raw) == 0 {
		return nil
	}
	var list []toolCall
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var wrapped struct {
		ToolCall []toolCall `json:"tool_call"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.ToolCall
	}
	return nil
}

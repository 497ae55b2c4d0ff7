// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transport

import (
	"encoding/json"
	"strings"

	"github.com/pdiddy/research-skills/pkg/types"
)

// wireSource is a source as reported by the service.
type wireSource struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Citation string `json:"citation"`
}

func toSources(ws []wireSource) []types.Source {
	if len(ws) == 0 {
		return nil
	}
	out := make([]types.Source, 0, len(ws))
	for _, s := range ws {
		if s.URL == "" {
			continue
		}
		out = append(out, types.Source{URL: s.URL, Title: s.Title, Citation: s.Citation})
	}
	return out
}

// contentText renders a content field that may be a JSON string or, for
// structured output, a JSON object. Objects are returned as JSON text so
// the aggregator can reconcile them against the schema.
func contentText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

// errorText extracts a message from an error field that may be a string
// or an object with a message/error/detail member.
func errorText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, k := range []string{"message", "error", "detail"} {
			if v, ok := obj[k].(string); ok && v != "" {
				return v
			}
		}
	}
	return trimmed
}

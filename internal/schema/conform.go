// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Conform decodes content as JSON and checks that it is an object carrying
// every root-level required field of s. On success it returns the decoded
// value and any further violations of the full schema as notes; those
// notes never reject the content. A decode or required-field failure is
// returned as an error and the caller keeps the raw text.
func Conform(s *Schema, content string) (any, []string, error) {
	var doc any
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &doc); err != nil {
		return nil, nil, fmt.Errorf("content is not valid JSON: %w", err)
	}

	required := map[string]any{"type": "object"}
	if req := s.Required(); len(req) > 0 {
		required["required"] = req
	}
	res, err := gojsonschema.Validate(gojsonschema.NewGoLoader(required), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, nil, fmt.Errorf("checking required fields: %w", err)
	}
	if !res.Valid() {
		return nil, nil, fmt.Errorf("content does not match schema: %s", joinErrors(res.Errors()))
	}

	var notes []string
	full, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(s.Raw), gojsonschema.NewGoLoader(doc))
	switch {
	case err != nil:
		notes = append(notes, fmt.Sprintf("full schema check skipped: %v", err))
	case !full.Valid():
		for _, e := range full.Errors() {
			notes = append(notes, e.String())
		}
	}
	return doc, notes, nil
}

func joinErrors(errs []gojsonschema.ResultError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.String()
	}
	return strings.Join(msgs, "; ")
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

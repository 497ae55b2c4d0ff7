// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package request assembles the outbound research job from CLI input.
package request

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/research-skills/internal/schema"
	"github.com/pdiddy/research-skills/pkg/types"
)

// Options holds the raw CLI fields. Zero values select defaults.
type Options struct {
	Topic          string
	Model          string
	CitationFormat string
	Schema         *schema.Schema
	Stream         bool
}

// Build validates opts and returns the job request. The schema, if any,
// must already have passed schema.Validate.
func Build(opts Options) (types.ResearchRequest, error) {
	topic := strings.TrimSpace(opts.Topic)
	if topic == "" {
		return types.ResearchRequest{}, types.Errorf(types.KindInvalidArgument, "research topic is empty")
	}

	model := types.ModelMini
	if opts.Model != "" {
		model = types.Model(strings.ToLower(opts.Model))
		if !contains(types.Models, model) {
			return types.ResearchRequest{}, types.Errorf(types.KindInvalidArgument,
				"invalid model %q: must be one of %v", opts.Model, types.Models)
		}
	}

	citation := types.CitationNumbered
	if opts.CitationFormat != "" {
		citation = types.CitationFormat(strings.ToLower(opts.CitationFormat))
		if !contains(types.CitationFormats, citation) {
			return types.ResearchRequest{}, types.Errorf(types.KindInvalidArgument,
				"invalid citation format %q: must be one of %v", opts.CitationFormat, types.CitationFormats)
		}
	}

	req := types.ResearchRequest{
		Topic:          topic,
		Model:          model,
		CitationFormat: citation,
		Stream:         opts.Stream,
	}
	if opts.Schema != nil {
		req.OutputSchema = opts.Schema.Raw
		req.RequiredFields = opts.Schema.Required()
	}
	return req, nil
}

// wireRequest is the JSON body accepted by the research endpoint.
type wireRequest struct {
	Input          string          `json:"input"`
	Model          string          `json:"model"`
	Stream         bool            `json:"stream"`
	CitationFormat string          `json:"citation_format"`
	OutputSchema   json.RawMessage `json:"output_schema,omitempty"`
}

// Body encodes req as the research endpoint's request body.
func Body(req types.ResearchRequest) ([]byte, error) {
	data, err := json.Marshal(wireRequest{
		Input:          req.Topic,
		Model:          string(req.Model),
		Stream:         req.Stream,
		CitationFormat: string(req.CitationFormat),
		OutputSchema:   req.OutputSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding research request: %w", err)
	}
	return data, nil
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

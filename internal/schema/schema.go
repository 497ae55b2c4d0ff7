// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema loads and validates the caller-supplied output schema that
// shapes structured research reports. Validation runs before any request is
// sent so a malformed schema never reaches the service.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-skills/pkg/types"
)

// Kind identifies the rule a schema violates.
type Kind string

const (
	MissingType          Kind = "MissingType"
	MissingDescription   Kind = "MissingDescription"
	UnknownRequiredField Kind = "UnknownRequiredField"
	MalformedJSON        Kind = "MalformedJSON"
)

// Error reports the first schema violation found. Path uses dot notation,
// with "[]" marking array items (e.g. "findings[].source").
type Error struct {
	Kind Kind
	Path string
	Msg  string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s at %q: %s", e.Kind, e.Path, e.Msg)
}

// ErrorKind classifies every schema error as a SchemaError.
func (e *Error) ErrorKind() types.ErrorKind { return types.KindSchemaError }

// validTypes are the node types the research API accepts.
var validTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

// Node is one level of the schema tree.
type Node struct {
	Type        string           `json:"type"`
	Description string           `json:"description"`
	Properties  map[string]*Node `json:"properties,omitempty"`
	Items       *Node            `json:"items,omitempty"`
	Required    []string         `json:"required,omitempty"`
}

// Schema is a parsed output schema together with the exact JSON it was
// parsed from. Raw is what gets sent to the service.
type Schema struct {
	Root *Node
	Raw  json.RawMessage
}

// Load reads a schema from arg. If arg names an existing file the file is
// read (YAML for .yaml/.yml, JSON otherwise); any other value is parsed as
// inline JSON.
func Load(arg string) (*Schema, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("reading schema file %s: %w", arg, err)
		}
		switch strings.ToLower(filepath.Ext(arg)) {
		case ".yaml", ".yml":
			return ParseYAML(data)
		}
		s, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("schema file %s: %w", arg, err)
		}
		return s, nil
	}

	s, err := Parse([]byte(arg))
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			se.Msg = "argument is neither an existing file nor valid JSON: " + se.Msg
		}
		return nil, err
	}
	return s, nil
}

// Parse decodes a JSON schema document.
func Parse(data []byte) (*Schema, error) {
	data = bytes.TrimSpace(data)
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &Error{Kind: MalformedJSON, Msg: err.Error()}
	}
	return &Schema{Root: &root, Raw: json.RawMessage(data)}, nil
}

// ParseYAML decodes a YAML schema document and re-encodes it as JSON.
func ParseYAML(data []byte) (*Schema, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Kind: MalformedJSON, Msg: "invalid YAML: " + err.Error()}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &Error{Kind: MalformedJSON, Msg: "YAML schema is not representable as JSON: " + err.Error()}
	}
	return Parse(raw)
}

// Required returns the root-level required property names.
func (s *Schema) Required() []string {
	if s == nil || s.Root == nil {
		return nil
	}
	return s.Root.Required
}

// Validate checks s against the rules of the research API and returns the
// first violation as an *Error.
func Validate(s *Schema) error {
	if s == nil || s.Root == nil {
		return &Error{Kind: MalformedJSON, Msg: "schema is empty"}
	}
	root := s.Root
	if root.Type != "" && root.Type != "object" {
		return &Error{Kind: MissingType, Msg: fmt.Sprintf("root type must be \"object\", got %q", root.Type)}
	}
	if len(root.Properties) == 0 {
		return &Error{Kind: MalformedJSON, Msg: "schema must declare properties at the root"}
	}
	if err := checkRequired(root, ""); err != nil {
		return err
	}
	return checkProperties(root.Properties, "")
}

func checkProperties(props map[string]*Node, parent string) error {
	for _, name := range sortedKeys(props) {
		if err := checkNode(props[name], join(parent, name)); err != nil {
			return err
		}
	}
	return nil
}

func checkNode(n *Node, path string) error {
	if n == nil || n.Type == "" {
		return &Error{Kind: MissingType, Path: path, Msg: "property has no type"}
	}
	if !validTypes[n.Type] {
		return &Error{Kind: MissingType, Path: path, Msg: fmt.Sprintf("unsupported type %q", n.Type)}
	}
	if strings.TrimSpace(n.Description) == "" {
		return &Error{Kind: MissingDescription, Path: path, Msg: "property has no description; descriptions guide content extraction"}
	}

	switch n.Type {
	case "object":
		if err := checkRequired(n, path); err != nil {
			return err
		}
		return checkProperties(n.Properties, path)
	case "array":
		if n.Items == nil {
			return &Error{Kind: MissingType, Path: path + "[]", Msg: "array has no items schema"}
		}
		return checkNode(n.Items, path+"[]")
	}
	return nil
}

func checkRequired(n *Node, path string) error {
	for _, name := range n.Required {
		if _, ok := n.Properties[name]; !ok {
			return &Error{Kind: UnknownRequiredField, Path: join(path, name), Msg: "required field is not declared in properties"}
		}
	}
	return nil
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

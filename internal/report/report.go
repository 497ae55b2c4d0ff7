// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes the result of a job as one JSON document.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/research-skills/pkg/types"
)

// Stdout is the destination returned when the report went to stdout.
const Stdout = "-"

// Write serializes result as indented JSON. An empty path (or "-") writes
// to stdout and returns Stdout. Otherwise parent directories are created,
// any existing file at path is replaced, and the absolute path is returned.
func Write(result types.ResearchResult, path string, stdout io.Writer) (string, error) {
	data, err := encode(result)
	if err != nil {
		return "", err
	}

	if path == "" || path == Stdout {
		if _, err := stdout.Write(data); err != nil {
			return "", fmt.Errorf("writing report to stdout: %w", err)
		}
		return Stdout, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	if err := writeFile(abs, data); err != nil {
		return "", err
	}
	return abs, nil
}

// Read decodes a report written by Write.
func Read(path string) (types.ResearchResult, error) {
	var result types.ResearchResult
	data, err := os.ReadFile(path)
	if err != nil {
		return result, fmt.Errorf("reading report: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return result, nil
}

func encode(result types.ResearchResult) ([]byte, error) {
	if result.Sources == nil {
		result.Sources = []types.Source{}
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return append(data, '\n'), nil
}

// writeFile replaces destPath through a temp file in the same directory so
// a reader never sees a partial report.
func writeFile(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing report: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting report permissions: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package credentials resolves the research API key. The key is read once
// at startup and passed explicitly to the transport.
//
// Lookup order: the TAVILY_API_KEY environment variable (after loading an
// optional .env file, which never overrides variables already set), then
// the file tavily-api-key in a secrets directory of plain-text files.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pdiddy/research-skills/pkg/types"
)

const (
	// EnvAPIKey is the environment variable holding the API key.
	EnvAPIKey = "TAVILY_API_KEY"

	// SecretFile is the file name of the API key in the secrets directory.
	SecretFile = "tavily-api-key"

	// DefaultSecretsDir is searched when no secrets directory is configured.
	DefaultSecretsDir = ".secrets"
)

// LoadEnv loads envFile into the process environment if it exists.
// Variables that are already set keep their values.
func LoadEnv(envFile string, logger *zap.Logger) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) && logger != nil {
		logger.Warn("could not load env file", zap.String("path", envFile), zap.Error(err))
	}
}

// APIKey returns the API key from the environment or secretsDir. It does
// not touch the network. A missing key is an InvalidArgument error.
func APIKey(secretsDir string, logger *zap.Logger) (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		return key, nil
	}
	if secretsDir == "" {
		secretsDir = DefaultSecretsDir
	}
	secrets, err := Load(secretsDir, logger)
	if err != nil {
		return "", types.Errorf(types.KindInvalidArgument, "loading credentials: %w", err)
	}
	if key := secrets[SecretFile]; key != "" {
		return key, nil
	}
	return "", types.Errorf(types.KindInvalidArgument,
		"%s is not set and %s has no %s file", EnvAPIKey, secretsDir, SecretFile)
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research CLI. It submits one
// research job, follows it by streaming or polling, and writes a JSON
// report with the content, its sources, and job metadata.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pdiddy/research-skills/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Process exit codes.
const (
	exitOK          = 0
	exitFailed      = 1
	exitTimedOut    = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI with args and returns the process exit code. The
// failure kind is printed on stderr.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	kind := types.KindOf(err)
	if kind == "" {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	fmt.Fprintf(stderr, "%s: %v\n", kind, err)
	return exitCode(kind)
}

func exitCode(kind types.ErrorKind) int {
	switch kind {
	case types.KindTimedOut:
		return exitTimedOut
	case types.KindInterrupted:
		return exitInterrupted
	default:
		return exitFailed
	}
}

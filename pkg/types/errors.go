// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for reporting and exit codes.
type ErrorKind string

const (
	KindInvalidArgument ErrorKind = "InvalidArgument"
	KindSchemaError     ErrorKind = "SchemaError"
	KindTransport       ErrorKind = "TransportError"
	KindRemoteJob       ErrorKind = "RemoteJobError"
	KindTimedOut        ErrorKind = "TimedOut"
	KindInterrupted     ErrorKind = "Interrupted"
)

// KindError attaches an ErrorKind to an underlying error.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string { return e.Err.Error() }

func (e *KindError) Unwrap() error { return e.Err }

// ErrorKind returns the classification of e.
func (e *KindError) ErrorKind() ErrorKind { return e.Kind }

// Errorf formats an error of the given kind. The %w verb is supported.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &KindError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first classified error in err's chain,
// or the empty kind if none is classified.
func KindOf(err error) ErrorKind {
	var k interface{ ErrorKind() ErrorKind }
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return ""
}

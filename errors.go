package mclens

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no symbol is found at a position.
	ErrNotFound = errors.New("mclens: no symbol found")
	// ErrNoAnalysis is returned when a query needs an analysis and none has
	// ever succeeded.
	ErrNoAnalysis = errors.New("mclens: no analysis available")
	// ErrStaleAnalysis is returned by operations that refuse to run on a
	// last-known-good analysis.
	ErrStaleAnalysis = errors.New("mclens: analysis is stale")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mclens: project closed")
)

// AnalysisInternalError reports an unexpected failure of the analyzer. The
// location is best effort; an empty File means it is unknown.
type AnalysisInternalError struct {
	File string
	Line int
	Col  int
	Err  error
}

func (e *AnalysisInternalError) Error() string {
	file := e.File
	if file == "" {
		file = unknownFile
	}
	return fmt.Sprintf("mclens: internal analysis error in %s: %v", file, e.Err)
}

func (e *AnalysisInternalError) Unwrap() error { return e.Err }

// RenameRejectedError explains why a rename was refused. It is returned
// before any edit is computed.
type RenameRejectedError struct {
	Reason string
}

func (e *RenameRejectedError) Error() string {
	return "mclens: rename rejected: " + e.Reason
}

func rejectRename(format string, args ...any) error {
	return &RenameRejectedError{Reason: fmt.Sprintf(format, args...)}
}

package analysis

import (
	"fmt"
	"strings"

	"github.com/jward/mclens/internal/ast"
)

// Severity mirrors LSP diagnostic severities.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
)

// ParseSeverity maps a configured level (ERROR, WARNING, INFO, OFF) to a
// severity. ok is false for OFF and unknown levels.
func ParseSeverity(level string) (s Severity, ok bool) {
	switch strings.ToUpper(level) {
	case "ERROR":
		return SeverityError, true
	case "WARNING":
		return SeverityWarning, true
	case "INFO", "INFORMATION":
		return SeverityInformation, true
	}
	return 0, false
}

// Diagnostic is a problem found while analyzing a file.
type Diagnostic struct {
	File     string
	Range    ast.Range
	Severity Severity
	Message  string
}

// InternalError reports an unexpected failure inside the analyzer, as
// opposed to a problem with the analyzed program.
type InternalError struct {
	File string
	Err  error
}

func (e *InternalError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("analysis: internal error: %v", e.Err)
	}
	return fmt.Sprintf("analysis: internal error in %s: %v", e.File, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

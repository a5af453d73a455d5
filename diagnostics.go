package mclens

import (
	"errors"
	"sort"

	"go.lsp.dev/protocol"

	"github.com/jward/mclens/internal/analysis"
	"github.com/jward/mclens/internal/ast"
	"github.com/jward/mclens/internal/jungle"
)

const (
	diagnosticSource = "mclens"
	unknownFile      = "<unknown>"
)

func newDiagnostic(r ast.Range, sev protocol.DiagnosticSeverity, msg string) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    toRange(r),
		Severity: sev,
		Source:   diagnosticSource,
		Message:  msg,
	}
}

func severityOf(s analysis.Severity) protocol.DiagnosticSeverity {
	switch s {
	case analysis.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case analysis.SeverityInformation:
		return protocol.DiagnosticSeverityInformation
	}
	return protocol.DiagnosticSeverityError
}

// pointRange is a one-rune range at a 1-based line and column. Unknown
// positions map to the start of the file.
func pointRange(line, col int) ast.Range {
	line, col = max(line, 1), max(col, 1)
	return ast.Range{Start: ast.Pos{Line: line, Col: col}, End: ast.Pos{Line: line, Col: col + 1}}
}

func errorDiagnostic(err error) protocol.Diagnostic {
	var pe *ast.ParseError
	if errors.As(err, &pe) {
		return newDiagnostic(pe.Range(), protocol.DiagnosticSeverityError, pe.Msg)
	}
	return newDiagnostic(pointRange(1, 1), protocol.DiagnosticSeverityError, err.Error())
}

func configDiagnostic(ce *jungle.ConfigError) protocol.Diagnostic {
	return newDiagnostic(pointRange(ce.Line, ce.Col), protocol.DiagnosticSeverityError, ce.Msg)
}

func internalDiagnostic(ie *AnalysisInternalError) protocol.Diagnostic {
	return newDiagnostic(pointRange(ie.Line, ie.Col), protocol.DiagnosticSeverityError, ie.Error())
}

type diagSet map[string][]protocol.Diagnostic

func (s diagSet) add(path string, d protocol.Diagnostic) {
	s[path] = append(s[path], d)
}

// sortDiagnostics orders each file's diagnostics by position.
func sortDiagnostics(s diagSet) {
	for _, ds := range s {
		sort.SliceStable(ds, func(i, j int) bool {
			return posLess(ds[i].Range.Start, ds[j].Range.Start)
		})
	}
}

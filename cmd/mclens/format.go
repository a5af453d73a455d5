package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// textStyles colors text output. Styles are plain unless stdout is a
// terminal.
type textStyles struct {
	header  lipgloss.Style
	path    lipgloss.Style
	error   lipgloss.Style
	warning lipgloss.Style
	info    lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	if f, ok := w.(*os.File); !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		plain := lipgloss.NewStyle()
		return textStyles{header: plain, path: plain, error: plain, warning: plain, info: plain}
	}
	return textStyles{
		header:  lipgloss.NewStyle().Bold(true),
		path:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		error:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		info:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	}
}

func (s textStyles) severity(sev string) string {
	switch sev {
	case "error":
		return s.error.Render(sev)
	case "warning":
		return s.warning.Render(sev)
	}
	return s.info.Render(sev)
}

// columns renders a tab-separated header row. Cells are styled one at a
// time since lipgloss expands tabs.
func (s textStyles) columns(names ...string) string {
	cells := make([]string, len(names))
	for i, n := range names {
		cells[i] = s.header.Render(n)
	}
	return strings.Join(cells, "\t")
}

// formatLocationsText formats locations as "file:line:col" lines.
func formatLocationsText(w io.Writer, st textStyles, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", st.path.Render(loc.File), loc.StartLine, loc.StartCol)
	}
}

// formatSymbolsText formats symbols as aligned columns, indenting
// children under their parent.
func formatSymbolsText(w io.Writer, st textStyles, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, st.columns("NAME", "KIND", "CONTAINER", "FILE", "LINE"))
	var walk func(syms []CLISymbol, depth int)
	walk = func(syms []CLISymbol, depth int) {
		for _, s := range syms {
			fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%d\n",
				strings.Repeat("  ", depth), s.Name, s.Kind, s.Container, s.File, s.StartLine)
			walk(s.Children, depth+1)
		}
	}
	walk(syms, 0)
	tw.Flush()
}

// formatDiagnosticsText formats diagnostics like compiler output.
func formatDiagnosticsText(w io.Writer, st textStyles, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", st.path.Render(d.File), d.Line, d.Col, st.severity(d.Severity), d.Message)
	}
}

// formatEditsText lists the files a rename touches.
func formatEditsText(w io.Writer, st textStyles, edits []CLIFileEdit) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, st.columns("FILE", "EDITS", "APPLIED"))
	for _, e := range edits {
		fmt.Fprintf(tw, "%s\t%d\t%t\n", e.File, len(e.Edits), e.Applied)
	}
	tw.Flush()
}

// formatHierarchyText prints supers above the class and subclasses below,
// indented by depth.
func formatHierarchyText(w io.Writer, st textStyles, h CLITypeHierarchy) {
	line := func(prefix string, r CLITypeRelation) {
		fmt.Fprintf(w, "%s%s", prefix, r.Name)
		if r.Location != nil {
			fmt.Fprintf(w, "  %s:%d:%d", st.path.Render(r.Location.File), r.Location.StartLine, r.Location.StartCol)
		}
		fmt.Fprintln(w)
	}
	for i := len(h.Supers) - 1; i >= 0; i-- {
		line(strings.Repeat("  ", len(h.Supers)-1-i)+"^ ", h.Supers[i])
	}
	line(st.header.Render("* "), h.Class)
	for _, r := range h.Subclasses {
		line(strings.Repeat("  ", r.Depth)+"v ", r)
	}
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	st := newTextStyles(w)
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, st, v)
	case []CLISymbol:
		formatSymbolsText(w, st, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, st, v)
	case []CLIFileEdit:
		formatEditsText(w, st, v)
	case CLITypeHierarchy:
		formatHierarchyText(w, st, v)
	case CLILocation:
		formatLocationsText(w, st, []CLILocation{v})
	case string:
		fmt.Fprintln(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	if result.Stale {
		fmt.Fprintln(w, st.warning.Render("(results from the last successful analysis)"))
	}
	return nil
}

// outputResult writes a CLIResult in the selected format.
func (a *app) outputResult(result CLIResult) error {
	if a.flagFormat == "text" {
		return outputResultText(a.stdout, result)
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func (a *app) outputError(command string, err error) error {
	a.errorHandled = true
	if a.flagFormat == "text" {
		fmt.Fprintf(a.stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

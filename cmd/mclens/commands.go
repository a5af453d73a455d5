package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/risor-io/risor/object"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/jward/mclens"
	"github.com/jward/mclens/internal/runtime"
)

// parsePosition parses 0-based line and column arguments.
func parsePosition(lineArg, colArg string) (protocol.Position, error) {
	line, err := strconv.Atoi(lineArg)
	if err != nil || line < 0 {
		return protocol.Position{}, fmt.Errorf("invalid line %q: must be a non-negative integer", lineArg)
	}
	col, err := strconv.Atoi(colArg)
	if err != nil || col < 0 {
		return protocol.Position{}, fmt.Errorf("invalid column %q: must be a non-negative integer", colArg)
	}
	return protocol.Position{Line: uint32(line), Character: uint32(col)}, nil
}

// positionCommand holds what every <file> <line> <col> command resolves
// before querying.
type positionCommand struct {
	project *mclens.Project
	path    string
	pos     protocol.Position
	close   func()
}

func (a *app) openAt(cmd *cobra.Command, args []string) (*positionCommand, error) {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return nil, err
	}
	pos, err := parsePosition(args[1], args[2])
	if err != nil {
		return nil, err
	}
	root, err := a.setup(cmd, path)
	if err != nil {
		return nil, err
	}
	p, _, closeFn, err := a.openProject(cmd.Context(), root)
	if err != nil {
		return nil, err
	}
	return &positionCommand{project: p, path: path, pos: pos, close: closeFn}, nil
}

// stale reports whether queries on p are answered from an older analysis.
func stale(cmd *cobra.Command, p *mclens.Project) bool {
	_, isStale, err := p.Analysis(cmd.Context(), true)
	return err == nil && isStale
}

func (a *app) definitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "definition <file> <line> <col>",
		Short: "Find the declarations of the name at a position",
		Long:  "Find the declarations of the name at a position, including every override a method call may dispatch to.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := a.openAt(cmd, args)
			if err != nil {
				return a.outputError("definition", err)
			}
			defer pc.close()

			locs, err := pc.project.Definition(cmd.Context(), pc.path, pc.pos)
			if err != nil {
				return a.outputError("definition", err)
			}
			return a.outputResult(CLIResult{
				Command: "definition",
				Results: locationsToCLI(pc.project.Root(), locs),
				Stale:   stale(cmd, pc.project),
			})
		},
	}
}

func (a *app) referencesCmd() *cobra.Command {
	var includeDecl bool
	cmd := &cobra.Command{
		Use:   "references <file> <line> <col>",
		Short: "Find all references to the symbol at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := a.openAt(cmd, args)
			if err != nil {
				return a.outputError("references", err)
			}
			defer pc.close()

			locs, err := pc.project.References(cmd.Context(), pc.path, pc.pos, includeDecl)
			if err != nil {
				return a.outputError("references", err)
			}
			return a.outputResult(CLIResult{
				Command: "references",
				Results: locationsToCLI(pc.project.Root(), locs),
				Stale:   stale(cmd, pc.project),
			})
		},
	}
	cmd.Flags().BoolVar(&includeDecl, "include-declaration", false, "include declaration sites")
	return cmd
}

func (a *app) renameCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "rename <file> <line> <col> <new-name>",
		Short: "Rename the symbol at a position across the project",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := a.openAt(cmd, args[:3])
			if err != nil {
				return a.outputError("rename", err)
			}
			defer pc.close()

			edit, err := pc.project.Rename(cmd.Context(), pc.path, pc.pos, args[3])
			if err != nil {
				return a.outputError("rename", err)
			}
			if !dryRun {
				if _, err := mclens.ApplyEdit(afero.NewOsFs(), edit); err != nil {
					return a.outputError("rename", err)
				}
			}
			return a.outputResult(CLIResult{
				Command: "rename",
				Results: editsToCLI(pc.project.Root(), edit, args[3], !dryRun),
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the edits without writing them")
	return cmd
}

func editsToCLI(root string, edit *protocol.WorkspaceEdit, newName string, applied bool) []CLIFileEdit {
	out := make([]CLIFileEdit, 0, len(edit.Changes))
	for u, edits := range edit.Changes {
		file := relPath(root, mclens.URIPath(u))
		fe := CLIFileEdit{File: file, NewText: newName, Applied: applied}
		for _, e := range edits {
			fe.Edits = append(fe.Edits, rangeToCLI(file, e.Range))
		}
		out = append(out, fe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

func (a *app) typeHierarchyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "type-hierarchy <file> <line> <col>",
		Short: "Show the superclasses and subclasses of the class at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := a.openAt(cmd, args)
			if err != nil {
				return a.outputError("type-hierarchy", err)
			}
			defer pc.close()

			h, err := pc.project.TypeHierarchy(cmd.Context(), pc.path, pc.pos)
			if err != nil {
				return a.outputError("type-hierarchy", err)
			}
			root := pc.project.Root()
			return a.outputResult(CLIResult{
				Command: "type-hierarchy",
				Results: CLITypeHierarchy{
					Class:      relationToCLI(root, h.Class),
					Supers:     relationsToCLI(root, h.Supers),
					Subclasses: relationsToCLI(root, h.Subclasses),
				},
			})
		},
	}
}

func (a *app) symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols <file>",
		Short: "List the declarations of a source or resource file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveFilePath(args[0])
			if err != nil {
				return a.outputError("symbols", err)
			}
			root, err := a.setup(cmd, path)
			if err != nil {
				return a.outputError("symbols", err)
			}
			p, _, closeFn, err := a.openProject(cmd.Context(), root)
			if err != nil {
				return a.outputError("symbols", err)
			}
			defer closeFn()

			syms, err := p.DocumentSymbols(cmd.Context(), path)
			if err != nil {
				return a.outputError("symbols", err)
			}
			return a.outputResult(CLIResult{Command: "symbols", Results: documentSymbolsToCLI(syms)})
		},
	}
}

func (a *app) workspaceSymbolsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "workspace-symbols <query>",
		Short: "Search declarations across the project by fuzzy name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return a.outputError("workspace-symbols", fmt.Errorf("invalid limit %d: must be non-negative", limit))
			}
			root, err := a.setup(cmd, "")
			if err != nil {
				return a.outputError("workspace-symbols", err)
			}
			p, _, closeFn, err := a.openProject(cmd.Context(), root)
			if err != nil {
				return a.outputError("workspace-symbols", err)
			}
			defer closeFn()

			syms, err := p.WorkspaceSymbols(cmd.Context(), args[0])
			if err != nil {
				return a.outputError("workspace-symbols", err)
			}
			if limit > 0 && len(syms) > limit {
				syms = syms[:limit]
			}
			return a.outputResult(CLIResult{Command: "workspace-symbols", Results: symbolInfosToCLI(root, syms)})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results (0 for all)")
	return cmd
}

func (a *app) diagnosticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics",
		Short: "Report the diagnostics of every file in the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.setup(cmd, "")
			if err != nil {
				return a.outputError("diagnostics", err)
			}
			p, _, closeFn, err := a.openProject(cmd.Context(), root)
			if err != nil {
				return a.outputError("diagnostics", err)
			}
			defer closeFn()

			diags, err := p.Diagnostics(cmd.Context())
			if err != nil {
				return a.outputError("diagnostics", err)
			}
			return a.outputResult(CLIResult{Command: "diagnostics", Results: diagnosticsToCLI(root, diags)})
		},
	}
}

func diagnosticsToCLI(root string, diags map[string][]protocol.Diagnostic) []CLIDiagnostic {
	paths := make([]string, 0, len(diags))
	for path := range diags {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	out := []CLIDiagnostic{}
	for _, path := range paths {
		out = append(out, fileDiagnosticsToCLI(root, path, diags[path])...)
	}
	return out
}

func fileDiagnosticsToCLI(root, path string, diags []protocol.Diagnostic) []CLIDiagnostic {
	out := make([]CLIDiagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, CLIDiagnostic{
			File:     relPath(root, path),
			Line:     int(d.Range.Start.Line),
			Col:      int(d.Range.Start.Character),
			Severity: strings.ToLower(d.Severity.String()),
			Message:  d.Message,
		})
	}
	return out
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the project and print diagnostics as files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.setup(cmd, "")
			if err != nil {
				return a.outputError("watch", err)
			}
			opts := append(a.cfg.projectOptions(),
				mclens.WithLogger(a.logger),
				mclens.WithDiagnosticsSink(func(path string, diags []protocol.Diagnostic) {
					_ = a.outputResult(CLIResult{Command: "watch", Results: fileDiagnosticsToCLI(root, path, diags)})
				}),
			)
			if db := a.cfg.dbPath(root); db != "" {
				s, err := mclens.NewStore(db)
				if err != nil {
					return a.outputError("watch", err)
				}
				defer s.Close()
				opts = append(opts, mclens.WithStore(s))
			}

			ws := mclens.NewWorkspace(opts...)
			defer ws.Close()
			if _, err := ws.Open(cmd.Context(), root); err != nil {
				return a.outputError("watch", err)
			}
			a.logger.Info("watching", "project", root)
			if err := ws.Watch(cmd.Context()); err != nil {
				return a.outputError("watch", err)
			}
			return nil
		},
	}
}

func (a *app) scriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script <file> [args...]",
		Short: "Run a Risor script against the project",
		Long:  "Run a Risor script with the project model, the symbol index and the parsers as globals. Positions in scripts are 1-based. Extra arguments are available as the args list.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := resolveFilePath(runtime.ScriptPath(args[0]))
			if err != nil {
				return a.outputError("script", err)
			}
			root, err := a.setup(cmd, "")
			if err != nil {
				return a.outputError("script", err)
			}
			p, s, closeFn, err := a.openProject(cmd.Context(), root)
			if err != nil {
				return a.outputError("script", err)
			}
			defer closeFn()

			opts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(a.logger)}
			if s != nil {
				opts = append(opts, runtime.WithRuntimeStore(s))
			}
			rt := runtime.NewRuntime(p, filepath.Dir(script), opts...)

			scriptArgs := make([]object.Object, 0, len(args)-1)
			for _, arg := range args[1:] {
				scriptArgs = append(scriptArgs, object.NewString(arg))
			}
			if err := rt.RunScript(cmd.Context(), script, map[string]any{"args": object.NewList(scriptArgs)}); err != nil {
				return a.outputError("script", err)
			}
			return nil
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default " + configName + " to a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.flagRoot
			if len(args) > 0 {
				dir = args[0]
			}
			if dir == "" {
				dir = "."
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return a.outputError("init", err)
			}
			path := filepath.Join(abs, configName)
			if err := writeConfig(path, DefaultConfig, force); err != nil {
				return a.outputError("init", err)
			}
			return a.outputResult(CLIResult{Command: "init", Results: path})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

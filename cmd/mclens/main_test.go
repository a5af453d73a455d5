package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyFixture copies a project from testdata/projects into a temp dir.
func copyFixture(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join("..", "..", "testdata", "projects", name)
	require.NoError(t, os.CopyFS(dir, os.DirFS(src)))
	return dir
}

// run executes the CLI in-process and returns stdout and the command error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	a.root.SetArgs(args)
	err := a.root.ExecuteContext(context.Background())
	return stdout.String(), err
}

// runJSON executes the CLI and decodes its JSON envelope.
func runJSON(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	out, err := run(t, args...)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result), "invalid JSON output: %s", out)
	return result, err
}

func resultList(t *testing.T, result map[string]any) []any {
	t.Helper()
	list, ok := result["results"].([]any)
	require.True(t, ok, "results is not a list: %v", result["results"])
	return list
}

func TestFindProjectRoot_JungleInRoot(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "monkey.jungle"), nil, 0o644))

	assert.Equal(t, root, findProjectRoot(root))
}

func TestFindProjectRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, configName), nil, 0o644))
	deep := filepath.Join(root, "source", "views")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findProjectRoot(deep))
}

func TestFindProjectRoot_NoMarker(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	assert.Equal(t, dir, findProjectRoot(dir))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("xml"), "invalid format")
}

func TestParsePosition(t *testing.T) {
	t.Parallel()
	pos, err := parsePosition("3", "7")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), pos.Line)
	assert.Equal(t, uint32(7), pos.Character)

	_, err = parsePosition("-1", "0")
	assert.ErrorContains(t, err, "invalid line")
	_, err = parsePosition("0", "x")
	assert.ErrorContains(t, err, "invalid column")
}

// newConfigCmd returns a command carrying the config flags, parsed from args.
func newConfigCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().StringSlice("jungle", nil, "")
	cmd.Flags().String("product", "", "")
	cmd.Flags().String("db", "", "")
	cmd.Flags().String("check-invalid-symbols", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newConfigCmd(t), t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig, *cfg)
}

func TestLoadConfig_Precedence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, configName), []byte("product: fenix6\ndebounce_ms: 50\nmax_delay_ms: 500\n"), 0o644))

	cfg, err := loadConfig(newConfigCmd(t), root, "")
	require.NoError(t, err)
	assert.Equal(t, "fenix6", cfg.Product)
	assert.Equal(t, 50, cfg.DebounceMillis)

	t.Setenv("MCLENS_PRODUCT", "venu2")
	cfg, err = loadConfig(newConfigCmd(t), root, "")
	require.NoError(t, err)
	assert.Equal(t, "venu2", cfg.Product)

	cfg, err = loadConfig(newConfigCmd(t, "--product", "epix2"), root, "")
	require.NoError(t, err)
	assert.Equal(t, "epix2", cfg.Product)
}

func TestLoadConfig_Invalid(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, configName), []byte("check_invalid_symbols: LOUD\n"), 0o644))

	_, err := loadConfig(newConfigCmd(t), root, "")
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := loadConfig(newConfigCmd(t), t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config")
}

func TestInit_WritesConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	result, err := runJSON(t, "init", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, configName), result["results"])

	_, err = loadConfig(newConfigCmd(t), dir, "")
	require.NoError(t, err)

	result, err = runJSON(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, result["error"], "already exists")

	_, err = runJSON(t, "init", dir, "--force")
	assert.NoError(t, err)
}

func TestCLI_Definition(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")

	result, err := runJSON(t, "definition", filepath.Join(dir, "source", "Report.mc"), "1", "21", "--root", dir)
	require.NoError(t, err)
	assert.Equal(t, "definition", result["command"])
	locs := resultList(t, result)
	require.Len(t, locs, 1)
	loc := locs[0].(map[string]any)
	assert.Equal(t, filepath.Join("source", "Util.mc"), loc["file"])
	assert.Equal(t, float64(1), loc["start_line"])
	assert.Equal(t, float64(8), loc["start_col"])
}

func TestCLI_References(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")
	file := filepath.Join(dir, "source", "Report.mc")

	result, err := runJSON(t, "references", file, "1", "21", "--root", dir, "--include-declaration")
	require.NoError(t, err)
	assert.Len(t, resultList(t, result), 4)

	result, err = runJSON(t, "references", file, "1", "21", "--root", dir)
	require.NoError(t, err)
	assert.Len(t, resultList(t, result), 3)
}

func TestCLI_ReferencesText(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")

	out, err := run(t, "references", filepath.Join(dir, "source", "Title.mc"), "1", "23", "--root", dir, "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("resources", "strings", "strings.xml")+":2:20")
	assert.Contains(t, out, filepath.Join("resources", "strings", "strings.xml")+":5:30")
}

func TestCLI_RenameDryRun(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")
	util := filepath.Join(dir, "source", "Util.mc")
	before, err := os.ReadFile(util)
	require.NoError(t, err)

	result, err := runJSON(t, "rename", util, "4", "12", "n", "--root", dir, "--dry-run")
	require.NoError(t, err)
	edits := resultList(t, result)
	require.Len(t, edits, 1)
	fe := edits[0].(map[string]any)
	assert.Equal(t, filepath.Join("source", "Util.mc"), fe["file"])
	assert.Len(t, fe["edits"], 4)
	assert.Equal(t, false, fe["applied"])

	after, err := os.ReadFile(util)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestCLI_RenameApplies(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")

	result, err := runJSON(t, "rename", filepath.Join(dir, "source", "Util.mc"), "3", "13", "increment", "--root", dir)
	require.NoError(t, err)
	assert.Len(t, resultList(t, result), 2)

	report, err := os.ReadFile(filepath.Join(dir, "source", "Report.mc"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Util.increment();")
	util, err := os.ReadFile(filepath.Join(dir, "source", "Util.mc"))
	require.NoError(t, err)
	assert.Contains(t, string(util), "function increment() {")
}

func TestCLI_RenameRejected(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")

	result, err := runJSON(t, "rename", filepath.Join(dir, "source", "Util.mc"), "4", "12", "class", "--root", dir)
	require.Error(t, err)
	assert.Equal(t, "rename", result["command"])
	assert.NotEmpty(t, result["error"])
}

func TestCLI_TypeHierarchy(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "inheritance")

	result, err := runJSON(t, "type-hierarchy", filepath.Join(dir, "source", "Derived.mc"), "2", "6", "--root", dir)
	require.NoError(t, err)
	h := result["results"].(map[string]any)
	assert.Equal(t, "Derived", h["class"].(map[string]any)["name"])
	supers := h["supers"].([]any)
	require.Len(t, supers, 2)
	assert.Equal(t, "MyModule.Base", supers[0].(map[string]any)["name"])
	assert.Equal(t, "Toybox.Lang.Object", supers[1].(map[string]any)["name"])
	assert.Empty(t, h["subclasses"])
}

func TestCLI_Symbols(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")

	result, err := runJSON(t, "symbols", filepath.Join(dir, "source", "Util.mc"), "--root", dir)
	require.NoError(t, err)
	syms := resultList(t, result)
	require.Len(t, syms, 1)
	util := syms[0].(map[string]any)
	assert.Equal(t, "Util", util["name"])
	assert.Equal(t, "module", util["kind"])

	var children []string
	for _, c := range util["children"].([]any) {
		children = append(children, c.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"total", "bump"}, children)
}

func TestCLI_WorkspaceSymbols(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")

	result, err := runJSON(t, "workspace-symbols", "bump", "--root", dir, "--db", filepath.Join(dir, ".mclens", "index.db"))
	require.NoError(t, err)
	syms := resultList(t, result)
	require.NotEmpty(t, syms)
	first := syms[0].(map[string]any)
	assert.Equal(t, "bump", first["name"])
	assert.Equal(t, "Util", first["container"])
	assert.FileExists(t, filepath.Join(dir, ".mclens", "index.db"))
}

func TestCLI_Diagnostics(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "inheritance")

	result, err := runJSON(t, "diagnostics", "--root", dir)
	require.NoError(t, err)
	assert.Equal(t, "diagnostics", result["command"])
	assert.NotNil(t, result["results"])
}

func TestCLI_Script(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t, "modules")
	script := filepath.Join(dir, "check.risor")
	// definition rejects 0-based positions, which fails the script.
	src := `syms := workspace_symbols("bump")
if len(syms) == 0 || args[0] != "ok" {
    definition("source/Report.mc", 0, 0)
}
`
	require.NoError(t, os.WriteFile(script, []byte(src), 0o644))

	_, err := run(t, "script", script, "ok", "--root", dir)
	require.NoError(t, err)

	_, err = run(t, "script", script, "bad", "--root", dir)
	assert.ErrorContains(t, err, "1-based")
}

func TestCLI_InvalidFormat(t *testing.T) {
	t.Parallel()
	_, err := run(t, "diagnostics", "--format", "xml", "--root", t.TempDir())
	assert.ErrorContains(t, err, "invalid format")
}

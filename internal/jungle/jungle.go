// Package jungle resolves the build configuration of a Monkey C project:
// its jungle files, manifest and the source and resource files they select
// for a product.
package jungle

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	DefaultJungle = "monkey.jungle"
	BarrelsJungle = "barrels.jungle"
	ManifestFile  = "manifest.xml"
)

// Options select the jungle files and product to resolve.
type Options struct {
	// JungleFiles are relative to the project root. Empty means
	// monkey.jungle.
	JungleFiles []string
	// Product overrides the first product listed in the manifest.
	Product string
}

// Config is a resolved build configuration. All paths are absolute.
type Config struct {
	Root          string
	Manifest      string
	AppID         string
	Entry         string
	Products      []string
	Product       string
	SourcePaths   []string
	ResourcePaths []string
	SourceFiles   []string
	ResourceFiles []string
	// Dependencies are the files whose change invalidates this
	// configuration.
	Dependencies []string
}

// ConfigError reports a configuration that could not be resolved. It
// still carries the dependency list so that a later fix can be noticed.
type ConfigError struct {
	Dependencies []string
	File         string
	Line         int
	Col          int
	Msg          string
	Err          error
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("jungle: %s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("jungle: %s: %s", e.File, e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DefaultDependencies is the dependency list used before a configuration
// has been resolved: the jungle files, barrels.jungle and manifest.xml.
func DefaultDependencies(root string, opts Options) []string {
	var deps []string
	for _, j := range jungleFiles(opts) {
		deps = append(deps, abs(root, j))
	}
	return append(deps, abs(root, BarrelsJungle), abs(root, ManifestFile))
}

func jungleFiles(opts Options) []string {
	if len(opts.JungleFiles) == 0 {
		return []string{DefaultJungle}
	}
	return opts.JungleFiles
}

func abs(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// Resolve reads the jungle files and manifest under root and collects the
// source and resource files selected for the product.
func Resolve(fsys afero.Fs, root string, opts Options) (*Config, error) {
	deps := DefaultDependencies(root, opts)
	vars := newVarTable()
	vars.set("project.manifest", ManifestFile, root)
	vars.set("base.sourcePath", "source", root)
	vars.set("base.resourcePath", "resources", root)

	for _, j := range jungleFiles(opts) {
		path := abs(root, j)
		if err := parseJungle(fsys, path, vars); err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) {
				ce.Dependencies = deps
				return nil, ce
			}
			return nil, &ConfigError{Dependencies: deps, File: path, Msg: err.Error(), Err: err}
		}
	}

	manifest := vars.paths("project.manifest")
	if len(manifest) == 0 {
		return nil, &ConfigError{Dependencies: deps, File: deps[0], Msg: "project.manifest is empty"}
	}
	cfg := &Config{Root: root, Manifest: manifest[0]}
	deps = append(deps[:len(deps)-1], cfg.Manifest)
	if err := readManifest(fsys, cfg); err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Dependencies = deps
		}
		return nil, err
	}

	cfg.Product = opts.Product
	if cfg.Product == "" && len(cfg.Products) > 0 {
		cfg.Product = cfg.Products[0]
	}
	cfg.SourcePaths = vars.productPaths(cfg.Product, "sourcePath")
	cfg.ResourcePaths = vars.productPaths(cfg.Product, "resourcePath")

	var err error
	if cfg.SourceFiles, err = collect(fsys, cfg.SourcePaths, isSource); err != nil {
		return nil, &ConfigError{Dependencies: deps, File: deps[0], Msg: err.Error(), Err: err}
	}
	if cfg.ResourceFiles, err = collect(fsys, cfg.ResourcePaths, isResource); err != nil {
		return nil, &ConfigError{Dependencies: deps, File: deps[0], Msg: err.Error(), Err: err}
	}
	cfg.Dependencies = deps
	return cfg, nil
}

func isSource(path string) bool { return strings.EqualFold(filepath.Ext(path), ".mc") }

func isResource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".mss":
		return true
	}
	return false
}

// collect walks each path. A path may be a file, a directory or a glob;
// missing paths are skipped as the compiler does.
func collect(fsys afero.Fs, paths []string, keep func(string) bool) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if keep(p) && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, root := range paths {
		roots := []string{root}
		if strings.ContainsAny(root, "*?[") {
			m, err := afero.Glob(fsys, root)
			if err != nil {
				return nil, err
			}
			roots = m
		}
		for _, r := range roots {
			err := afero.Walk(fsys, r, func(path string, info fs.FileInfo, err error) error {
				if err != nil {
					if os.IsNotExist(err) {
						return nil
					}
					return err
				}
				if info.IsDir() {
					if path != r && strings.HasPrefix(info.Name(), ".") {
						return filepath.SkipDir
					}
					return nil
				}
				add(path)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

var varRefRe = regexp.MustCompile(`\$\(([^)]+)\)`)

type varEntry struct {
	value string
	dir   string
}

// varTable holds jungle assignments. Later assignments win.
type varTable struct {
	vals map[string]varEntry
}

func newVarTable() *varTable {
	return &varTable{vals: make(map[string]varEntry)}
}

// set records an assignment. A reference to the key itself refers to its
// previous value, as in `base.sourcePath = $(base.sourcePath);extra`.
func (v *varTable) set(key, value, dir string) {
	if prev, ok := v.vals[key]; ok {
		value = strings.ReplaceAll(value, "$("+key+")", prev.value)
	}
	v.vals[key] = varEntry{value: value, dir: dir}
}

// expand substitutes $(name) references. Unknown names expand to nothing.
func (v *varTable) expand(value string, depth int) string {
	if depth > 16 {
		return value
	}
	return varRefRe.ReplaceAllStringFunc(value, func(m string) string {
		name := varRefRe.FindStringSubmatch(m)[1]
		e, ok := v.vals[name]
		if !ok {
			return ""
		}
		return v.expand(e.value, depth+1)
	})
}

// paths splits the expanded value of key on `;` and makes each element
// absolute relative to the defining jungle file.
func (v *varTable) paths(key string) []string {
	e, ok := v.vals[key]
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v.expand(e.value, 0), ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, abs(e.dir, p))
		}
	}
	return out
}

func (v *varTable) productPaths(product, key string) []string {
	if product != "" {
		if _, ok := v.vals[product+"."+key]; ok {
			return v.paths(product + "." + key)
		}
	}
	return v.paths("base." + key)
}

var keyRe = regexp.MustCompile(`^[A-Za-z_][\w.\-]*$`)

func parseJungle(fsys afero.Fs, path string, vars *varTable) error {
	f, err := fsys.Open(path)
	if err != nil {
		return &ConfigError{File: path, Msg: "cannot read jungle file", Err: err}
	}
	defer f.Close()

	dir := filepath.Dir(path)
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		eq := strings.IndexByte(text, '=')
		if eq < 0 {
			return &ConfigError{File: path, Line: line, Col: 1, Msg: "expected key = value"}
		}
		key := strings.TrimSpace(text[:eq])
		if !keyRe.MatchString(key) {
			return &ConfigError{File: path, Line: line, Col: 1, Msg: fmt.Sprintf("invalid key %q", key)}
		}
		vars.set(key, strings.TrimSpace(text[eq+1:]), dir)
	}
	return sc.Err()
}

package mclens

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/mclens/internal/rez"
	"github.com/jward/mclens/internal/store"
)

// Bucket is the kind of file a change applies to.
type Bucket int

const (
	BucketForeign Bucket = iota
	BucketSource
	BucketResource
	BucketBuildDependency
)

func (b Bucket) String() string {
	switch b {
	case BucketSource:
		return "source"
	case BucketResource:
		return "resource"
	case BucketBuildDependency:
		return "build_dependency"
	}
	return "foreign"
}

// Classification is the outcome of Classify.
type Classification struct {
	Bucket Bucket
	// NoOp is set when the change cannot alter the project.
	NoOp bool
}

// Classify sorts a change into a bucket and decides whether it is a no-op
// against snap, which may be nil before the first load.
func Classify(snap *Snapshot, root, path string, c Change) Classification {
	if !underRoot(root, path) {
		return Classification{Bucket: BucketForeign}
	}
	if snap != nil {
		if e, ok := snap.Files[path]; ok {
			return Classification{Bucket: BucketSource, NoOp: !c.Deleted && e.Text == c.Text}
		}
		if e, ok := snap.Resources[path]; ok {
			return Classification{Bucket: BucketResource, NoOp: !c.Deleted && e.Hash == store.ContentHash(c.Text)}
		}
		if h, ok := snap.BuildDeps[path]; ok {
			if c.Deleted {
				return Classification{Bucket: BucketBuildDependency, NoOp: h == ""}
			}
			return Classification{Bucket: BucketBuildDependency, NoOp: h == store.ContentHash(c.Text)}
		}
	}
	switch {
	case isSourcePath(path):
		// A new source file, or the deletion of one never seen.
		return Classification{Bucket: BucketSource, NoOp: c.Deleted}
	case snap != nil && rez.IsResourceFile(path) && underAny(snap.resourceRoots(), path):
		return Classification{Bucket: BucketResource, NoOp: c.Deleted}
	}
	return Classification{Bucket: BucketForeign}
}

// ExpandDirectoryDelete returns a deletion for every tracked path under
// dir, in sorted order.
func ExpandDirectoryDelete(snap *Snapshot, dir string) []string {
	if snap == nil {
		return nil
	}
	var out []string
	add := func(p string) {
		if p != dir && underRoot(dir, p) {
			out = append(out, p)
		}
	}
	for p := range snap.Files {
		add(p)
	}
	for p := range snap.Resources {
		add(p)
	}
	for p, h := range snap.BuildDeps {
		if h != "" {
			add(p)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Snapshot) resourceRoots() []string {
	if s.Config == nil {
		return nil
	}
	return s.Config.ResourcePaths
}

func isSourcePath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mc")
}

// underRoot reports whether path lies inside root.
func underRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func underAny(roots []string, path string) bool {
	for _, r := range roots {
		if underRoot(r, path) {
			return true
		}
	}
	return false
}

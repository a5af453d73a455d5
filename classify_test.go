package mclens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jward/mclens/internal/jungle"
	"github.com/jward/mclens/internal/store"
)

func newClassifySnapshot() *Snapshot {
	return &Snapshot{
		Root: testRoot,
		Files: map[string]*FileEntry{
			srcPath("source/App.mc"): {Text: "class App {}"},
		},
		Resources: map[string]*ResourceEntry{
			srcPath("resources/strings.xml"): {Hash: store.ContentHash("<strings/>")},
		},
		BuildDeps: map[string]string{
			srcPath("monkey.jungle"):  store.ContentHash("project.manifest = manifest.xml\n"),
			srcPath("barrels.jungle"): "",
		},
		Config: &jungle.Config{ResourcePaths: []string{srcPath("resources")}},
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	snap := newClassifySnapshot()

	tests := []struct {
		name   string
		path   string
		change Change
		want   Classification
	}{
		{"identical source", "source/App.mc", Change{Text: "class App {}"}, Classification{BucketSource, true}},
		{"edited source", "source/App.mc", Change{Text: "class App { }"}, Classification{BucketSource, false}},
		{"deleted source", "source/App.mc", Change{Deleted: true}, Classification{BucketSource, false}},
		{"new source", "source/New.mc", Change{Text: ""}, Classification{BucketSource, false}},
		{"deleted unknown source", "source/Gone.mc", Change{Deleted: true}, Classification{BucketSource, true}},
		{"identical resource", "resources/strings.xml", Change{Text: "<strings/>"}, Classification{BucketResource, true}},
		{"edited resource", "resources/strings.xml", Change{Text: "<strings></strings>"}, Classification{BucketResource, false}},
		{"new resource", "resources/drawables.xml", Change{Text: "<drawables/>"}, Classification{BucketResource, false}},
		{"xml outside resources", "docs/readme.xml", Change{Text: "<x/>"}, Classification{BucketForeign, false}},
		{"identical jungle", "monkey.jungle", Change{Text: "project.manifest = manifest.xml\n"}, Classification{BucketBuildDependency, true}},
		{"edited jungle", "monkey.jungle", Change{Text: "base.sourcePath = src\n"}, Classification{BucketBuildDependency, false}},
		{"missing dependency created", "barrels.jungle", Change{Text: ""}, Classification{BucketBuildDependency, false}},
		{"missing dependency deleted", "barrels.jungle", Change{Deleted: true}, Classification{BucketBuildDependency, true}},
		{"unrelated file", "notes.txt", Change{Text: "hi"}, Classification{BucketForeign, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(snap, testRoot, srcPath(tt.path), tt.change))
		})
	}
}

func TestClassify_OutsideRoot(t *testing.T) {
	t.Parallel()
	got := Classify(newClassifySnapshot(), testRoot, "/other/source/App.mc", Change{Text: "x"})
	assert.Equal(t, BucketForeign, got.Bucket)
	assert.Equal(t, "foreign", got.Bucket.String())
}

func TestClassify_BeforeFirstLoad(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Classification{BucketSource, false}, Classify(nil, testRoot, srcPath("source/A.mc"), Change{Text: "x"}))
	assert.Equal(t, BucketForeign, Classify(nil, testRoot, srcPath("resources/a.xml"), Change{Text: "x"}).Bucket)
}

func TestExpandDirectoryDelete(t *testing.T) {
	t.Parallel()
	snap := newClassifySnapshot()
	snap.Files[srcPath("source/views/View.mc")] = &FileEntry{}

	assert.Equal(t, []string{srcPath("source/App.mc"), srcPath("source/views/View.mc")}, ExpandDirectoryDelete(snap, srcPath("source")))
	assert.Equal(t, []string{srcPath("source/views/View.mc")}, ExpandDirectoryDelete(snap, srcPath("source/views")))
	assert.Empty(t, ExpandDirectoryDelete(snap, srcPath("nothing")))
	// The missing barrels.jungle is not reported.
	assert.Equal(t, []string{
		srcPath("monkey.jungle"),
		srcPath("resources/strings.xml"),
		srcPath("source/App.mc"),
		srcPath("source/views/View.mc"),
	}, ExpandDirectoryDelete(snap, testRoot))
	assert.Nil(t, ExpandDirectoryDelete(nil, testRoot))
}

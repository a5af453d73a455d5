package mclens

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseSrc = `using Toybox.System as Sys;

module MyModule {
    class Base {
        function initialize() {}
        function f1() {
            f2();
        }
        function f2() {}
    }
}
`

const derivedSrc = `import Toybox.Lang;

class Derived extends MyModule.Base {
    var helper as MyModule.Base;
    function initialize() {
        MyModule.Base.initialize();
        helper = new MyModule.Base();
    }
    function f2() {
        MyModule.Base.f2();
        var local = new Derived();
        local.f3();
    }
    function f3() {
        f2();
        Toybox.System.println(:f3);
    }
}
`

func newInheritanceProject(t *testing.T) *testProject {
	t.Helper()
	return newTestProject(t, map[string]string{
		"source/Base.mc":    baseSrc,
		"source/Derived.mc": derivedSrc,
	})
}

func TestReferences_FromBaseDefinition(t *testing.T) {
	t.Parallel()
	tp := newInheritanceProject(t)
	ctx := context.Background()

	refs, err := tp.References(ctx, srcPath("source/Base.mc"), posOf(t, baseSrc, "f2() {}", 0, 0), false)
	require.NoError(t, err)
	// Derived.f3 calls f2() on a Derived, which binds to Derived.f2.
	assert.Equal(t, []string{
		"source/Base.mc:7:13",
		"source/Derived.mc:10:23",
	}, locs(refs))
}

func TestReferences_FromPolymorphicCall(t *testing.T) {
	t.Parallel()
	tp := newInheritanceProject(t)
	ctx := context.Background()
	call := posOf(t, baseSrc, "f2();", 0, 0)

	refs, err := tp.References(ctx, srcPath("source/Base.mc"), call, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"source/Base.mc:7:13",
		"source/Derived.mc:10:23",
		"source/Derived.mc:15:9",
	}, locs(refs))

	defs, err := tp.Definition(ctx, srcPath("source/Base.mc"), call)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"source/Base.mc:9:18",
		"source/Derived.mc:9:14",
	}, locs(defs))
}

func TestReferences_IncludeDeclaration(t *testing.T) {
	t.Parallel()
	tp := newInheritanceProject(t)

	refs, err := tp.References(context.Background(), srcPath("source/Base.mc"), posOf(t, baseSrc, "f2() {}", 0, 0), true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"source/Base.mc:7:13",
		"source/Base.mc:9:18",
		"source/Derived.mc:10:23",
	}, locs(refs))
}

const utilSrc = `module Util {
    var total = 0;

    function bump() {
        var count = 1;
        count += 1;
        total = total + count;
        return count;
    }
}
`

const reportSrc = `function report() {
    var count = Util.total;
    Util.bump();
    return count;
}
`

func newUtilProject(t *testing.T) *testProject {
	t.Helper()
	return newTestProject(t, map[string]string{
		"source/Util.mc":   utilSrc,
		"source/Report.mc": reportSrc,
	})
}

func TestReferences_LocalStaysInFile(t *testing.T) {
	t.Parallel()
	tp := newUtilProject(t)
	snap := tp.snapshot(t)

	results, err := Resolve(snap, srcPath("source/Util.mc"), posOf(t, utilSrc, "count", 0, 0))
	require.NoError(t, err)
	targets := Expand(snap, results)
	assert.Equal(t, ScopeLocal, SearchScopeFor(targets))

	refs, err := FindReferences(snap, targets, ScopeLocal, ReferenceOptions{IncludeDeclaration: true})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"source/Util.mc:5:13",
		"source/Util.mc:6:9",
		"source/Util.mc:7:25",
		"source/Util.mc:8:16",
	}, locs(refs))

	// Searching the whole project finds nothing more: Report.mc's count is
	// a different variable.
	all, err := FindReferences(snap, targets, ScopeProject, ReferenceOptions{IncludeDeclaration: true})
	require.NoError(t, err)
	assert.Equal(t, refs, all)
}

func TestReferences_ModuleMemberAcrossFiles(t *testing.T) {
	t.Parallel()
	tp := newUtilProject(t)

	refs, err := tp.References(context.Background(), srcPath("source/Report.mc"), posOf(t, reportSrc, "total", 0, 0), true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"source/Report.mc:2:22",
		"source/Util.mc:2:9",
		"source/Util.mc:7:9",
		"source/Util.mc:7:17",
	}, locs(refs))
}

func TestReferences_Resources(t *testing.T) {
	t.Parallel()
	src := `function title() {
    return Rez.Strings.AppName;
}
`
	xml := `<resources>
    <strings>
        <string id="AppName">Demo</string>
    </strings>
    <layout id="Main">
        <label text="@Strings.AppName" />
    </layout>
</resources>
`
	tp := newTestProject(t, map[string]string{
		"source/Title.mc":               src,
		"resources/strings/strings.xml": xml,
	})

	refs, err := tp.References(context.Background(), srcPath("source/Title.mc"), posOf(t, src, "AppName", 0, 0), true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"resources/strings/strings.xml:3:21",
		"resources/strings/strings.xml:6:31",
		"source/Title.mc:2:24",
	}, locs(refs))
}

func TestSearchScopeFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ScopeProject, SearchScopeFor(NewDeclSet()))
	assert.Equal(t, "local", ScopeLocal.String())
	assert.Equal(t, "project", ScopeProject.String())
}

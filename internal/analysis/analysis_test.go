package analysis

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/mclens/internal/ast"
	"github.com/jward/mclens/internal/rez"
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

type fixture struct {
	prog  *Program
	files map[string]*ast.File
	diags []Diagnostic
}

func newTestProgram(t *testing.T, srcs map[string]string, docs ...*rez.Doc) *fixture {
	t.Helper()
	files := make(map[string]*ast.File, len(srcs))
	for path, src := range srcs {
		f, err := ast.Parse(path, src)
		require.NoError(t, err, path)
		files[path] = f
	}
	res, err := Analyze(context.Background(), Input{Files: files, Resources: docs}, nil, Options{CheckInvalidSymbols: "WARNING"})
	require.NoError(t, err)
	require.NotNil(t, res.Program)
	return &fixture{prog: res.Program, files: files, diags: res.Diagnostics}
}

func (fx *fixture) class(t *testing.T, names ...string) *Decl {
	t.Helper()
	d := fx.prog.qualified(names...)
	require.NotNil(t, d, "%v", names)
	return d
}

func TestAnalyze_ModulesMergeAcrossFiles(t *testing.T) {
	fx := newTestProgram(t, map[string]string{
		"a.mc": "module M { function a() {} }",
		"b.mc": "module M { function b() {} }",
	})
	m := fx.class(t, "M")
	assert.Equal(t, KindModule, m.Kind)
	require.Len(t, m.Sites, 2)
	assert.Equal(t, "a.mc", m.Sites[0].File)
	assert.Equal(t, "b.mc", m.Sites[1].File)
	assert.Len(t, m.Members("a"), 1)
	assert.Len(t, m.Members("b"), 1)
}

func TestAnalyze_SupersAndClassMembers(t *testing.T) {
	fx := newTestProgram(t, map[string]string{"base.mc": baseSrc, "derived.mc": derivedSrc})
	base := fx.class(t, "MyModule", "Base")
	derived := fx.class(t, "Derived")

	require.Equal(t, []*Decl{base}, fx.prog.Supers(derived))
	// Base has no extends clause and derives from Lang.Object.
	require.Len(t, fx.prog.Supers(base), 1)
	assert.Equal(t, "Toybox.Lang.Object", fx.prog.Supers(base)[0].QualifiedName())

	f1 := fx.prog.ClassMember(derived, "f1")
	require.Len(t, f1, 1)
	assert.Equal(t, base, f1[0].Parent)

	f2 := fx.prog.ClassMember(derived, "f2")
	require.Len(t, f2, 1)
	assert.Equal(t, derived, f2[0].Parent)

	assert.Len(t, fx.prog.ClassMember(derived, "toString"), 1)
	assert.Empty(t, fx.diags)
}

func TestAnalyze_DeclKeyIsStructural(t *testing.T) {
	fx := newTestProgram(t, map[string]string{"base.mc": baseSrc})
	f2 := fx.class(t, "MyModule", "Base").Members("f2")[0]
	assert.Equal(t, DeclKey{Scope: "$.MyModule.Base", Name: "f2", Kind: KindFunction}, f2.Key())

	// A fresh analysis of the same text produces equal keys for distinct
	// declaration objects.
	again := newTestProgram(t, map[string]string{"base.mc": baseSrc})
	f2b := again.class(t, "MyModule", "Base").Members("f2")[0]
	assert.NotSame(t, f2, f2b)
	assert.Equal(t, f2.Key(), f2b.Key())
}

func TestDecl_KeysAreSafeForConcurrentUse(t *testing.T) {
	fx := newTestProgram(t, map[string]string{"base.mc": baseSrc, "derived.mc": derivedSrc})
	var decls []*Decl
	fx.prog.Walk(func(d *Decl) bool {
		decls = append(decls, d)
		return true
	})

	keys := make([][]DeclKey, 4)
	var wg sync.WaitGroup
	for i := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, d := range decls {
				keys[i] = append(keys[i], d.Key())
			}
		}()
	}
	wg.Wait()
	for i := 1; i < len(keys); i++ {
		assert.Equal(t, keys[0], keys[i])
	}

	local := fx.class(t, "Derived").Members("f2")[0].Members("local")[0]
	assert.Equal(t, "$.Derived.f2.local", local.Path())
	assert.Equal(t, DeclKey{Scope: "$.Derived.f2", Name: "local", Kind: KindLocal}, local.Key())
}

func TestLookupName_Modes(t *testing.T) {
	fx := newTestProgram(t, map[string]string{"x.mc": `
class C {
    var f;
    function f2(p) {
        var before = p;
        g();
        var g = 1;
    }
    function g() {}
}
`})
	c := fx.class(t, "C")
	fn := c.Members("f2")[0]
	file := "x.mc"

	// Parameters are always visible; locals only after their declaration.
	got := fx.prog.LookupName("p", fn, file, ast.Pos{Line: 5, Col: 22}, LookupValue)
	require.Len(t, got, 1)
	assert.Equal(t, KindParam, got[0].Kind)

	got = fx.prog.LookupName("g", fn, file, ast.Pos{Line: 6, Col: 9}, LookupValue)
	require.Len(t, got, 1)
	assert.Equal(t, KindFunction, got[0].Kind)

	got = fx.prog.LookupName("g", fn, file, ast.Pos{Line: 8, Col: 1}, LookupValue)
	require.Len(t, got, 1)
	assert.Equal(t, KindLocal, got[0].Kind)

	// Callee lookups skip the local and bind to the method.
	got = fx.prog.LookupName("g", fn, file, ast.Pos{Line: 8, Col: 1}, LookupCallee)
	require.Len(t, got, 1)
	assert.Equal(t, KindFunction, got[0].Kind)

	// Type lookups only accept type kinds.
	assert.Empty(t, fx.prog.LookupName("f", fn, file, ast.Pos{Line: 8, Col: 1}, LookupType))
	got = fx.prog.LookupName("String", fn, file, ast.Pos{Line: 8, Col: 1}, LookupType)
	require.Len(t, got, 1)
	assert.Equal(t, "Toybox.Lang.String", got[0].QualifiedName())
}

func TestUsings(t *testing.T) {
	fx := newTestProgram(t, map[string]string{"base.mc": baseSrc, "derived.mc": derivedSrc})
	f := fx.files["base.mc"]
	u := fx.prog.UsingFor(f.Body[0].(*ast.UsingDecl))
	require.NotNil(t, u)
	assert.Equal(t, "Sys", u.Name)
	require.Len(t, u.Targets, 1)
	assert.Equal(t, "Toybox.System", u.Targets[0].QualifiedName())

	// The alias is file scoped: derived.mc does not see Sys.
	got := fx.prog.LookupName("Sys", fx.prog.Root, "derived.mc", ast.Pos{Line: 1, Col: 1}, LookupValue)
	assert.Empty(t, got)
	got = fx.prog.LookupName("Sys", fx.prog.Root, "base.mc", ast.Pos{Line: 1, Col: 1}, LookupValue)
	assert.Len(t, got, 1)
}

func TestTypeOf(t *testing.T) {
	fx := newTestProgram(t, map[string]string{"base.mc": baseSrc, "derived.mc": derivedSrc})
	base := fx.class(t, "MyModule", "Base")
	derived := fx.class(t, "Derived")

	// `helper` is declared `as MyModule.Base`.
	helper := derived.Members("helper")[0]
	assert.Equal(t, []Value{{Decl: base, Instance: true}}, fx.prog.TypeOfDecl(helper))

	// `local` is inferred from `new Derived()`.
	f2 := derived.Members("f2")[0]
	local := f2.Members("local")[0]
	assert.Equal(t, []Value{{Decl: derived, Instance: true}}, fx.prog.TypeOfDecl(local))

	// `MyModule.Base` used as an expression is the class itself.
	x, err := ast.ParseExpr("derived.mc", "MyModule.Base")
	require.NoError(t, err)
	assert.Equal(t, []Value{{Decl: base}}, fx.prog.TypeOf(x, derived, "derived.mc"))
}

func TestTypeOfDecl_MutualInitializersIndependentOfOrder(t *testing.T) {
	const src = `class Foo {}

module M {
    var a = b;
    var b = true ? a : new Foo();
}
`
	for _, order := range [][]string{{"a", "b"}, {"b", "a"}} {
		fx := newTestProgram(t, map[string]string{"m.mc": src})
		foo := fx.class(t, "Foo")
		m := fx.class(t, "M")
		for _, name := range order {
			got := fx.prog.TypeOfDecl(m.Members(name)[0])
			assert.Equal(t, []Value{{Decl: foo, Instance: true}}, got, "%s after %v", name, order)
		}
	}
}

func TestExposed(t *testing.T) {
	fx := newTestProgram(t, map[string]string{"base.mc": baseSrc, "derived.mc": derivedSrc})
	assert.True(t, fx.prog.Exposed("f3"))
	assert.False(t, fx.prog.Exposed("f2"))
}

func TestAnalyze_InheritanceCycleIsStructural(t *testing.T) {
	a, err := ast.Parse("a.mc", "class A extends B {}\nclass B extends A {}\n")
	require.NoError(t, err)
	res, err := Analyze(context.Background(), Input{Files: map[string]*ast.File{"a.mc": a}}, nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, res.Program)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, SeverityError, res.Diagnostics[0].Severity)
	assert.Contains(t, res.Diagnostics[0].Message, "inherits from itself")
}

func TestAnalyze_Canceled(t *testing.T) {
	f, err := ast.Parse("a.mc", "class A {}")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Analyze(ctx, Input{Files: map[string]*ast.File{"a.mc": f}}, nil, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_ReusesSymbolsForUnchangedTrees(t *testing.T) {
	f, err := ast.Parse("a.mc", "function f() { return :tick; }")
	require.NoError(t, err)
	in := Input{Files: map[string]*ast.File{"a.mc": f}}
	first, err := Analyze(context.Background(), in, nil, Options{})
	require.NoError(t, err)
	second, err := Analyze(context.Background(), in, first.Program, Options{})
	require.NoError(t, err)
	assert.True(t, second.Program.Exposed("tick"))
	assert.Same(t, &first.Program.files["a.mc"].symbols[0], &second.Program.files["a.mc"].symbols[0])
	// Declarations belong to their program.
	assert.NotSame(t, first.Program.Root.Members("f")[0], second.Program.Root.Members("f")[0])
	assert.Equal(t, first.Program.Root.Members("f")[0].Key(), second.Program.Root.Members("f")[0].Key())
}

func TestAnalyze_Resources(t *testing.T) {
	doc, err := rez.ParseXML("resources/strings.xml", []byte(`<strings><string id="AppName">Demo</string></strings>`))
	require.NoError(t, err)
	fx := newTestProgram(t, map[string]string{
		"app.mc": "function name() { return Rez.Strings.AppName; }",
	}, doc)
	d := fx.class(t, "Rez", "Strings").Members("AppName")
	require.Len(t, d, 1)
	assert.True(t, d[0].Resource)
	assert.Equal(t, "resources/strings.xml", d[0].File())
	assert.Empty(t, fx.diags)
}

func TestAnalyze_InvalidSymbols(t *testing.T) {
	fx := newTestProgram(t, map[string]string{
		"app.mc": "using Toybox.System;\nfunction f() {\n    System.printn(1);\n    missing();\n}\n",
	})
	require.Len(t, fx.diags, 2)
	assert.Equal(t, "Undefined symbol Toybox.System.printn", fx.diags[0].Message)
	assert.Equal(t, ast.Pos{Line: 3, Col: 12}, fx.diags[0].Range.Start)
	assert.Equal(t, "Undefined symbol missing", fx.diags[1].Message)
	assert.Equal(t, SeverityWarning, fx.diags[1].Severity)
}

func TestReadOnlyAPI(t *testing.T) {
	fx := newTestProgram(t, map[string]string{"a.mc": "class A {}"})
	view := fx.class(t, "Toybox", "WatchUi", "View")
	assert.True(t, view.ReadOnly())
	assert.False(t, fx.class(t, "A").ReadOnly())
}

package ast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse("test.mc", src)
	require.NoError(t, err)
	return f
}

func TestParse_ModuleClassFunction(t *testing.T) {
	f := mustParse(t, `
using Toybox.System as Sys;

module MyModule {
    class Base {
        var count as Number = 0;
        function initialize() {}
        function f1() as Void {
            f2();
        }
        function f2() {}
    }
}

class Derived extends MyModule.Base {
    function f2() {
        MyModule.Base.f2();
    }
}
`)
	require.Len(t, f.Body, 3)

	u, ok := f.Body[0].(*UsingDecl)
	require.True(t, ok)
	assert.Equal(t, "Sys", u.Alias.Name)

	mod, ok := f.Body[1].(*ModuleDecl)
	require.True(t, ok)
	assert.Equal(t, "MyModule", mod.ID.Name)
	require.Len(t, mod.Body, 1)

	base := mod.Body[0].(*ClassDecl)
	assert.Equal(t, "Base", base.ID.Name)
	assert.Nil(t, base.Super)
	require.Len(t, base.Body, 4)

	derived := f.Body[2].(*ClassDecl)
	super, ok := derived.Super.(*MemberExpr)
	require.True(t, ok)
	assert.Equal(t, "Base", super.Property.Name)

	f2 := derived.Body[0].(*FunctionDecl)
	call := f2.Body.Body[0].(*ExprStmt).X.(*CallExpr)
	callee := call.Callee.(*MemberExpr)
	assert.Equal(t, "f2", callee.Property.Name)
	assert.Equal(t, Pos{Line: 17, Col: 23}, callee.Property.Rng.Start)
	assert.Equal(t, Pos{Line: 17, Col: 25}, callee.Property.Rng.End)
}

func TestParse_Statements(t *testing.T) {
	f := mustParse(t, `
function run(items as Array<Array<Number>>, opts as { :a as Number }) as Number or Null {
    var total = 0, i;
    for (i = 0; i < items.size(); i++) {
        if (items[i] has :size and !(items[i] instanceof Lang.String)) {
            total += items[i].size();
        } else {
            continue;
        }
    }
    try {
        throw new Lang.Exception();
    } catch (e instanceof Lang.Exception) {
        total = -1;
    } finally {
        total--;
    }
    switch (total) {
        case 0:
        case :zero:
            break;
        default:
            total = total > 0 ? total : 0;
    }
    do { total++; } while (total < 10);
    var d = { :a => 1, "b" => [1, 2, 3]b };
    return total as Number;
}
`)
	fn := f.Body[0].(*FunctionDecl)
	require.Len(t, fn.Params, 2)
	tr, ok := fn.Params[0].Type.(*TypeRef)
	require.True(t, ok)
	require.Len(t, tr.Args, 1)
	_, ok = fn.Params[1].Type.(*OpaqueType)
	assert.True(t, ok)
	_, ok = fn.Ret.(*UnionType)
	assert.True(t, ok)
	assert.Len(t, fn.Body.Body, 7)
}

func TestParse_Annotations(t *testing.T) {
	f := mustParse(t, `
(:background :glance)
class App extends Application.AppBase {
    (:test) static function check(logger) { return true; }
    hidden var _x;
    enum { A, B = 2 }
    typedef Pair as [Number, Number];
}
`)
	cls := f.Body[0].(*ClassDecl)
	fn := cls.Body[0].(*FunctionDecl)
	assert.True(t, fn.Attrs.Static)
	v := cls.Body[1].(*VarDecl)
	assert.True(t, v.Attrs.Hidden)
	e := cls.Body[2].(*EnumDecl)
	assert.Nil(t, e.ID)
	assert.Len(t, e.Members, 2)
}

func TestParse_Error(t *testing.T) {
	_, err := Parse("bad.mc", "class A {\n  function f( {\n}\n")
	require.Error(t, err)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bad.mc", pe.File)
	assert.Equal(t, 2, pe.Line)
}

func TestParse_UnterminatedString(t *testing.T) {
	_, err := Parse("bad.mc", "var x = \"abc;\n")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)
	assert.Equal(t, 9, pe.Col)
}

func TestPathAt(t *testing.T) {
	f := mustParse(t, "class A {\n  function f() { g(x.y); }\n}\n")
	// `y` is at line 2, col 22.
	path := PathAt(f, Pos{Line: 2, Col: 22})
	require.NotEmpty(t, path)
	id, ok := path[len(path)-1].(*Ident)
	require.True(t, ok)
	assert.Equal(t, "y", id.Name)
	_, ok = path[len(path)-2].(*MemberExpr)
	assert.True(t, ok)

	// Half-open end: the column right after `y` is not inside it.
	path = PathAt(f, Pos{Line: 2, Col: 23})
	_, ok = path[len(path)-1].(*Ident)
	assert.False(t, ok)

	assert.Nil(t, PathAt(f, Pos{Line: 10, Col: 1}))
}

func TestParseExpr(t *testing.T) {
	x, err := ParseExpr("layout.xml", "Rez.Strings.AppName")
	require.NoError(t, err)
	m, ok := x.(*MemberExpr)
	require.True(t, ok)
	assert.Equal(t, "AppName", m.Property.Name)

	_, err = ParseExpr("layout.xml", "a b")
	assert.Error(t, err)
}

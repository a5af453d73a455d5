package ast

import (
	"fmt"
)

// Parse parses a Monkey C source file. It stops at the first syntax error
// and returns it as a *ParseError.
func Parse(path, src string) (file *File, err error) {
	toks, err := Tokenize(path, src)
	if err != nil {
		return nil, err
	}
	p := &parser{path: path, toks: toks}
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ParseError)
			if !ok {
				panic(r)
			}
			file, err = nil, pe
		}
	}()
	return p.parseFile(), nil
}

// ParseExpr parses a standalone expression. Used by resource documents
// whose attributes embed expression text.
func ParseExpr(path, src string) (x Expr, err error) {
	toks, err := Tokenize(path, src)
	if err != nil {
		return nil, err
	}
	p := &parser{path: path, toks: toks}
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ParseError)
			if !ok {
				panic(r)
			}
			x, err = nil, pe
		}
	}()
	x = p.parseExpr()
	if p.cur().Kind != TokEOF {
		p.errorf("unexpected %q after expression", p.cur().Text)
	}
	return x, nil
}

type parser struct {
	path string
	toks []Token
	pos  int
	prev Token
}

func (p *parser) cur() Token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokEOF {
		p.pos++
	}
	p.prev = t
	return t
}

// is reports whether the current token is the punctuation or keyword text.
func (p *parser) is(text string) bool {
	t := p.cur()
	return (t.Kind == TokPunct || t.Kind == TokKeyword) && t.Text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) {
	t := p.cur()
	panic(&ParseError{File: p.path, Line: t.Rng.Start.Line, Col: t.Rng.Start.Col, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) expect(text string) Token {
	if !p.is(text) {
		p.errorf("expected %q, found %s", text, describe(p.cur()))
	}
	return p.next()
}

func describe(t Token) string {
	if t.Kind == TokEOF {
		return "end of file"
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

func (p *parser) ident() *Ident {
	t := p.cur()
	if t.Kind != TokIdent {
		p.errorf("expected identifier, found %s", describe(t))
	}
	p.next()
	return &Ident{Name: t.Text, Rng: t.Rng}
}

func (p *parser) span(start Pos) Range {
	return Range{Start: start, End: p.prev.Rng.End}
}

func (p *parser) parseFile() *File {
	f := &File{Path: p.path}
	for p.cur().Kind != TokEOF {
		if p.accept(";") {
			continue
		}
		f.Body = append(f.Body, p.parseDecl())
	}
	f.Rng = Range{Start: Pos{Line: 1, Col: 1}, End: p.cur().Rng.End}
	return f
}

// skipAnnotations skips `(:name ...)` annotation groups.
func (p *parser) skipAnnotations() {
	for p.is("(") && p.peekAt(1).Text == ":" {
		p.skipBalanced("(", ")")
	}
}

func (p *parser) skipBalanced(open, close string) {
	depth := 0
	for {
		t := p.cur()
		if t.Kind == TokEOF {
			p.errorf("unbalanced %q", open)
		}
		p.next()
		if t.Kind == TokPunct && t.Text == open {
			depth++
		} else if t.Kind == TokPunct && t.Text == close {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *parser) parseAttrs() Attrs {
	var a Attrs
	for {
		switch {
		case p.accept("static"):
			a.Static = true
		case p.accept("hidden"), p.accept("protected"):
			a.Hidden = true
		case p.accept("private"):
			a.Private = true
		case p.accept("public"):
			a.Public = true
		case p.accept("native"):
			a.Native = true
		default:
			return a
		}
	}
}

func (p *parser) parseDecl() Stmt {
	p.skipAnnotations()
	start := p.cur().Rng.Start
	attrs := p.parseAttrs()
	switch {
	case p.is("module"):
		return p.parseModule(start)
	case p.is("class"):
		return p.parseClass(start, attrs)
	case p.is("function"):
		return p.parseFunction(start, attrs)
	case p.is("var"), p.is("const"):
		d := p.parseVarDecl(start, attrs)
		p.expect(";")
		d.Rng = p.span(start)
		return d
	case p.is("enum"):
		return p.parseEnum(start, attrs)
	case p.is("typedef"):
		return p.parseTypedef(start)
	case p.is("using"), p.is("import"):
		return p.parseUsing(start)
	}
	p.errorf("expected declaration, found %s", describe(p.cur()))
	return nil
}

func (p *parser) parseDeclBody() []Stmt {
	p.expect("{")
	var body []Stmt
	for !p.is("}") {
		if p.cur().Kind == TokEOF {
			p.errorf("expected \"}\", found end of file")
		}
		if p.accept(";") {
			continue
		}
		body = append(body, p.parseDecl())
	}
	p.expect("}")
	return body
}

func (p *parser) parseModule(start Pos) *ModuleDecl {
	p.expect("module")
	m := &ModuleDecl{ID: p.ident()}
	m.Body = p.parseDeclBody()
	m.Rng = p.span(start)
	return m
}

func (p *parser) parseClass(start Pos, attrs Attrs) *ClassDecl {
	p.expect("class")
	c := &ClassDecl{ID: p.ident(), Attrs: attrs}
	if p.accept("extends") {
		c.Super = p.parseNamePath()
	}
	c.Body = p.parseDeclBody()
	c.Rng = p.span(start)
	return c
}

func (p *parser) parseFunction(start Pos, attrs Attrs) *FunctionDecl {
	p.expect("function")
	f := &FunctionDecl{ID: p.ident(), Attrs: attrs}
	p.expect("(")
	for !p.is(")") {
		ps := p.cur().Rng.Start
		param := &Param{ID: p.ident()}
		if p.accept("as") {
			param.Type = p.parseType()
		}
		param.Rng = p.span(ps)
		f.Params = append(f.Params, param)
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	if p.accept("as") {
		f.Ret = p.parseType()
	}
	if p.is("{") {
		f.Body = p.parseBlock()
	} else {
		p.expect(";")
	}
	f.Rng = p.span(start)
	return f
}

// parseVarDecl parses `var a as T = x, b` without the trailing semicolon.
func (p *parser) parseVarDecl(start Pos, attrs Attrs) *VarDecl {
	d := &VarDecl{Const: p.is("const"), Attrs: attrs}
	p.next()
	for {
		ss := p.cur().Rng.Start
		spec := &VarSpec{ID: p.ident()}
		if p.accept("as") {
			spec.Type = p.parseType()
		}
		if p.accept("=") {
			spec.Init = p.parseAssign()
		}
		spec.Rng = p.span(ss)
		d.Specs = append(d.Specs, spec)
		if !p.accept(",") {
			break
		}
	}
	d.Rng = p.span(start)
	return d
}

func (p *parser) parseEnum(start Pos, attrs Attrs) *EnumDecl {
	p.expect("enum")
	e := &EnumDecl{Attrs: attrs}
	if p.cur().Kind == TokIdent {
		e.ID = p.ident()
	}
	p.expect("{")
	for !p.is("}") {
		ms := p.cur().Rng.Start
		m := &EnumMember{ID: p.ident()}
		if p.accept("=") {
			m.Init = p.parseAssign()
		}
		m.Rng = p.span(ms)
		e.Members = append(e.Members, m)
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	e.Rng = p.span(start)
	return e
}

func (p *parser) parseTypedef(start Pos) *TypedefDecl {
	p.expect("typedef")
	t := &TypedefDecl{ID: p.ident()}
	p.expect("as")
	t.Type = p.parseType()
	p.expect(";")
	t.Rng = p.span(start)
	return t
}

func (p *parser) parseUsing(start Pos) *UsingDecl {
	u := &UsingDecl{Import: p.is("import")}
	p.next()
	u.Path = p.parseNamePath()
	if !u.Import && p.accept("as") {
		u.Alias = p.ident()
	}
	p.expect(";")
	u.Rng = p.span(start)
	return u
}

// parseNamePath parses `A.B.C` (optionally rooted at `$`).
func (p *parser) parseNamePath() Expr {
	start := p.cur().Rng.Start
	var x Expr
	if p.is("$") {
		t := p.next()
		x = &Ident{Name: "$", Rng: t.Rng}
	} else {
		x = p.ident()
	}
	for p.accept(".") {
		m := &MemberExpr{Object: x, Property: p.ident()}
		m.Rng = p.span(start)
		x = m
	}
	return x
}

// --- Types ---

func (p *parser) parseType() Expr {
	start := p.cur().Rng.Start
	first := p.parseSingleType()
	if !p.is("or") {
		return first
	}
	u := &UnionType{Types: []Expr{first}}
	for p.accept("or") {
		u.Types = append(u.Types, p.parseSingleType())
	}
	u.Rng = p.span(start)
	return u
}

func (p *parser) parseSingleType() Expr {
	start := p.cur().Rng.Start
	switch {
	case p.is("{"):
		p.skipBalanced("{", "}")
		return &OpaqueType{Rng: p.span(start)}
	case p.is("["):
		p.skipBalanced("[", "]")
		return &OpaqueType{Rng: p.span(start)}
	case p.is("null"):
		p.next()
		return &OpaqueType{Rng: p.span(start)}
	}
	t := &TypeRef{Name: p.parseNamePath()}
	if p.is("(") {
		p.skipBalanced("(", ")")
	}
	if p.accept("<") {
		for !p.isCloseAngle() {
			t.Args = append(t.Args, p.parseType())
			if !p.accept(",") {
				break
			}
		}
		p.closeAngle()
	}
	t.Rng = p.span(start)
	return t
}

func (p *parser) isCloseAngle() bool {
	return p.is(">") || p.is(">>") || p.is(">>>")
}

// closeAngle consumes one `>`, splitting `>>` and `>>>` tokens produced by
// the lexer for nested container types.
func (p *parser) closeAngle() {
	t := p.cur()
	if t.Kind != TokPunct || len(t.Text) == 0 || t.Text[0] != '>' || (t.Text != ">" && t.Text != ">>" && t.Text != ">>>") {
		p.errorf("expected \">\", found %s", describe(t))
	}
	if t.Text == ">" {
		p.next()
		return
	}
	first := t
	first.Text = ">"
	first.Rng.End = Pos{Line: t.Rng.Start.Line, Col: t.Rng.Start.Col + 1}
	p.toks[p.pos].Text = t.Text[1:]
	p.toks[p.pos].Rng.Start = first.Rng.End
	p.prev = first
}

// --- Statements ---

func (p *parser) parseBlock() *Block {
	start := p.expect("{").Rng.Start
	b := &Block{}
	for !p.is("}") {
		if p.cur().Kind == TokEOF {
			p.errorf("expected \"}\", found end of file")
		}
		if p.accept(";") {
			continue
		}
		b.Body = append(b.Body, p.parseStmt())
	}
	p.expect("}")
	b.Rng = p.span(start)
	return b
}

func (p *parser) parseStmt() Stmt {
	start := p.cur().Rng.Start
	switch {
	case p.is("{"):
		return p.parseBlock()
	case p.is("var"), p.is("const"):
		d := p.parseVarDecl(start, Attrs{})
		p.expect(";")
		d.Rng = p.span(start)
		return d
	case p.is("if"):
		p.next()
		p.expect("(")
		s := &IfStmt{Cond: p.parseExpr()}
		p.expect(")")
		s.Then = p.parseStmt()
		if p.accept("else") {
			s.Else = p.parseStmt()
		}
		s.Rng = p.span(start)
		return s
	case p.is("while"):
		p.next()
		p.expect("(")
		s := &WhileStmt{Cond: p.parseExpr()}
		p.expect(")")
		s.Body = p.parseStmt()
		s.Rng = p.span(start)
		return s
	case p.is("do"):
		p.next()
		s := &DoWhileStmt{Body: p.parseStmt()}
		p.expect("while")
		p.expect("(")
		s.Cond = p.parseExpr()
		p.expect(")")
		p.expect(";")
		s.Rng = p.span(start)
		return s
	case p.is("for"):
		return p.parseFor(start)
	case p.is("return"):
		p.next()
		s := &ReturnStmt{}
		if !p.is(";") {
			s.X = p.parseExpr()
		}
		p.expect(";")
		s.Rng = p.span(start)
		return s
	case p.is("throw"):
		p.next()
		s := &ThrowStmt{X: p.parseExpr()}
		p.expect(";")
		s.Rng = p.span(start)
		return s
	case p.is("break"), p.is("continue"):
		t := p.next()
		p.expect(";")
		return &BranchStmt{Keyword: t.Text, Rng: p.span(start)}
	case p.is("try"):
		return p.parseTry(start)
	case p.is("switch"):
		return p.parseSwitch(start)
	}
	s := &ExprStmt{X: p.parseExpr()}
	p.expect(";")
	s.Rng = p.span(start)
	return s
}

func (p *parser) parseFor(start Pos) *ForStmt {
	p.expect("for")
	p.expect("(")
	s := &ForStmt{}
	if !p.is(";") {
		is := p.cur().Rng.Start
		if p.is("var") {
			s.Init = p.parseVarDecl(is, Attrs{})
		} else {
			s.Init = &ExprStmt{X: p.parseExpr()}
			s.Init.(*ExprStmt).Rng = p.span(is)
		}
	}
	p.expect(";")
	if !p.is(";") {
		s.Cond = p.parseExpr()
	}
	p.expect(";")
	if !p.is(")") {
		s.Update = p.parseExpr()
	}
	p.expect(")")
	s.Body = p.parseStmt()
	s.Rng = p.span(start)
	return s
}

func (p *parser) parseTry(start Pos) *TryStmt {
	p.expect("try")
	s := &TryStmt{Body: p.parseBlock()}
	for p.is("catch") {
		cs := p.next().Rng.Start
		c := &CatchClause{}
		p.expect("(")
		c.Param = p.ident()
		if p.accept("instanceof") {
			c.Type = p.parseNamePath()
		}
		p.expect(")")
		c.Body = p.parseBlock()
		c.Rng = p.span(cs)
		s.Catches = append(s.Catches, c)
	}
	if p.accept("finally") {
		s.Finally = p.parseBlock()
	}
	s.Rng = p.span(start)
	return s
}

func (p *parser) parseSwitch(start Pos) *SwitchStmt {
	p.expect("switch")
	p.expect("(")
	s := &SwitchStmt{Disc: p.parseExpr()}
	p.expect(")")
	p.expect("{")
	for !p.is("}") {
		cs := p.cur().Rng.Start
		c := &CaseClause{}
		if p.accept("default") {
			p.expect(":")
		} else {
			p.expect("case")
			c.Test = p.parseExpr()
			p.expect(":")
		}
		for !p.is("case") && !p.is("default") && !p.is("}") {
			if p.cur().Kind == TokEOF {
				p.errorf("expected \"}\", found end of file")
			}
			if p.accept(";") {
				continue
			}
			c.Body = append(c.Body, p.parseStmt())
		}
		c.Rng = p.span(cs)
		s.Cases = append(s.Cases, c)
	}
	p.expect("}")
	s.Rng = p.span(start)
	return s
}

// --- Expressions ---

func (p *parser) parseExpr() Expr { return p.parseAssign() }

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

func (p *parser) parseAssign() Expr {
	start := p.cur().Rng.Start
	lhs := p.parseCond()
	if t := p.cur(); t.Kind == TokPunct && assignOps[t.Text] {
		p.next()
		rhs := p.parseAssign()
		return &AssignExpr{Op: t.Text, Target: lhs, Value: rhs, Rng: p.span(start)}
	}
	return lhs
}

func (p *parser) parseCond() Expr {
	start := p.cur().Rng.Start
	c := p.parseBinary(1)
	if !p.accept("?") {
		return c
	}
	then := p.parseAssign()
	p.expect(":")
	els := p.parseAssign()
	return &CondExpr{Cond: c, Then: then, Else: els, Rng: p.span(start)}
}

var binaryPrec = map[string]int{
	"or": 1, "||": 1,
	"and": 2, "&&": 2,
	"|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7, "instanceof": 7, "has": 7,
	"<<": 8, ">>": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *parser) binaryOp() (string, int) {
	t := p.cur()
	if t.Kind != TokPunct && t.Kind != TokKeyword {
		return "", 0
	}
	prec, ok := binaryPrec[t.Text]
	if !ok {
		return "", 0
	}
	return t.Text, prec
}

func (p *parser) parseBinary(minPrec int) Expr {
	start := p.cur().Rng.Start
	x := p.parseAs()
	for {
		op, prec := p.binaryOp()
		if prec == 0 || prec < minPrec {
			return x
		}
		p.next()
		y := p.parseBinary(prec + 1)
		x = &BinaryExpr{Op: op, X: x, Y: y, Rng: p.span(start)}
	}
}

func (p *parser) parseAs() Expr {
	start := p.cur().Rng.Start
	x := p.parseUnary()
	for p.accept("as") {
		x = &AsExpr{X: x, Type: p.parseType(), Rng: p.span(start)}
	}
	return x
}

func (p *parser) parseUnary() Expr {
	start := p.cur().Rng.Start
	switch {
	case p.is("!"), p.is("-"), p.is("+"), p.is("~"), p.is("not"), p.is("++"), p.is("--"):
		op := p.next().Text
		x := p.parseUnary()
		return &UnaryExpr{Op: op, X: x, Rng: p.span(start)}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() Expr {
	start := p.cur().Rng.Start
	x := p.parsePrimary()
	for {
		switch {
		case p.accept("."):
			x = &MemberExpr{Object: x, Property: p.ident()}
			x.(*MemberExpr).Rng = p.span(start)
		case p.accept("("):
			call := &CallExpr{Callee: x, Args: p.parseArgs(")")}
			call.Rng = p.span(start)
			x = call
		case p.accept("["):
			idx := &IndexExpr{X: x, Index: p.parseExpr()}
			p.expect("]")
			idx.Rng = p.span(start)
			x = idx
		case p.is("++"), p.is("--"):
			op := p.next().Text
			x = &UnaryExpr{Op: op, X: x, Postfix: true, Rng: p.span(start)}
		default:
			return x
		}
	}
}

// parseArgs parses a comma separated list up to and including close.
func (p *parser) parseArgs(close string) []Expr {
	var args []Expr
	for !p.is(close) {
		args = append(args, p.parseAssign())
		if !p.accept(",") {
			break
		}
	}
	p.expect(close)
	return args
}

func (p *parser) parsePrimary() Expr {
	t := p.cur()
	start := t.Rng.Start
	switch t.Kind {
	case TokIdent:
		return p.ident()
	case TokNumber, TokString, TokChar:
		p.next()
		return &Literal{Kind: t.Kind.String(), Value: t.Text, Rng: t.Rng}
	}
	switch {
	case p.is("$"):
		p.next()
		return &Ident{Name: "$", Rng: t.Rng}
	case p.is("self"), p.is("me"):
		p.next()
		return &SelfExpr{Rng: t.Rng}
	case p.is("true"), p.is("false"), p.is("null"):
		p.next()
		return &Literal{Kind: t.Text, Value: t.Text, Rng: t.Rng}
	case p.is(":"):
		p.next()
		name := p.ident()
		return &SymbolLit{Name: name, Rng: p.span(start)}
	case p.is("("):
		p.next()
		x := p.parseExpr()
		p.expect(")")
		return &ParenExpr{X: x, Rng: p.span(start)}
	case p.is("["):
		p.next()
		a := &ArrayLit{Elems: p.parseArgs("]")}
		p.acceptArraySuffix()
		a.Rng = p.span(start)
		return a
	case p.is("{"):
		return p.parseDict(start)
	case p.is("new"):
		p.next()
		if p.accept("[") {
			size := p.parseExpr()
			p.expect("]")
			p.acceptArraySuffix()
			return &ArrayLit{Elems: []Expr{size}, Rng: p.span(start)}
		}
		n := &NewExpr{Type: p.parseNamePath()}
		p.expect("(")
		n.Args = p.parseArgs(")")
		n.Rng = p.span(start)
		return n
	}
	p.errorf("unexpected %s", describe(t))
	return nil
}

// acceptArraySuffix consumes the `b` of a byte array literal `[1, 2]b`.
func (p *parser) acceptArraySuffix() {
	if t := p.cur(); t.Kind == TokIdent && t.Text == "b" && t.Rng.Start == p.prev.Rng.End {
		p.next()
	}
}

func (p *parser) parseDict(start Pos) Expr {
	p.expect("{")
	d := &DictLit{}
	for !p.is("}") {
		k := p.parseAssign()
		p.expect("=>")
		v := p.parseAssign()
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, v)
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	d.Rng = p.span(start)
	return d
}

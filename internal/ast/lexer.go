package ast

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokKeyword
	TokNumber
	TokString
	TokChar
	TokPunct
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokIdent:
		return "identifier"
	case TokKeyword:
		return "keyword"
	case TokNumber:
		return "number"
	case TokString:
		return "string"
	case TokChar:
		return "char"
	default:
		return "punctuation"
	}
}

// Token is one lexeme with its source span.
type Token struct {
	Kind TokenKind
	Text string
	Rng  Range
}

var keywords = map[string]bool{
	"module": true, "class": true, "extends": true, "function": true,
	"var": true, "const": true, "enum": true, "typedef": true,
	"using": true, "import": true, "as": true, "if": true, "else": true,
	"while": true, "do": true, "for": true, "return": true, "try": true,
	"catch": true, "finally": true, "throw": true, "break": true,
	"continue": true, "switch": true, "case": true, "default": true,
	"new": true, "self": true, "me": true, "true": true, "false": true,
	"null": true, "static": true, "hidden": true, "private": true,
	"protected": true, "public": true, "native": true, "and": true,
	"or": true, "not": true, "instanceof": true, "has": true,
}

// IsKeyword reports whether name is reserved.
func IsKeyword(name string) bool { return keywords[name] }

// punctuation, longest first so the scanner can match greedily.
var puncts = []string{
	">>>=", "<<=", ">>=", "===", "!==", ">>>",
	"==", "!=", "<=", ">=", "&&", "||", "++", "--", "+=", "-=", "*=", "/=",
	"%=", "&=", "|=", "^=", "<<", ">>", "=>",
	"{", "}", "(", ")", "[", "]", ";", ",", ".", ":", "?", "=", "+", "-",
	"*", "/", "%", "<", ">", "!", "~", "&", "|", "^", "$",
}

type lexer struct {
	path string
	src  []rune
	off  int
	line int
	col  int
}

// Tokenize splits src into tokens. Comments and whitespace are dropped.
func Tokenize(path, src string) ([]Token, error) {
	lx := &lexer{path: path, src: []rune(src), line: 1, col: 1}
	var toks []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks, nil
		}
	}
}

func (lx *lexer) pos() Pos { return Pos{Line: lx.line, Col: lx.col} }

func (lx *lexer) peek(n int) rune {
	if lx.off+n >= len(lx.src) {
		return 0
	}
	return lx.src[lx.off+n]
}

func (lx *lexer) advance() rune {
	r := lx.src[lx.off]
	lx.off++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) errorf(p Pos, format string, args ...any) error {
	return &ParseError{File: lx.path, Line: p.Line, Col: p.Col, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) skipSpace() error {
	for lx.off < len(lx.src) {
		r := lx.peek(0)
		switch {
		case unicode.IsSpace(r):
			lx.advance()
		case r == '/' && lx.peek(1) == '/':
			for lx.off < len(lx.src) && lx.peek(0) != '\n' {
				lx.advance()
			}
		case r == '/' && lx.peek(1) == '*':
			start := lx.pos()
			lx.advance()
			lx.advance()
			for {
				if lx.off >= len(lx.src) {
					return lx.errorf(start, "unterminated block comment")
				}
				if lx.peek(0) == '*' && lx.peek(1) == '/' {
					lx.advance()
					lx.advance()
					break
				}
				lx.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (lx *lexer) next() (Token, error) {
	if err := lx.skipSpace(); err != nil {
		return Token{}, err
	}
	start := lx.pos()
	if lx.off >= len(lx.src) {
		return Token{Kind: TokEOF, Rng: Range{Start: start, End: start}}, nil
	}
	begin := lx.off
	r := lx.peek(0)
	var kind TokenKind

	switch {
	case isIdentStart(r):
		for lx.off < len(lx.src) && isIdentPart(lx.peek(0)) {
			lx.advance()
		}
		kind = TokIdent
		if keywords[string(lx.src[begin:lx.off])] {
			kind = TokKeyword
		}
	case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(lx.peek(1))):
		lx.scanNumber()
		kind = TokNumber
	case r == '"':
		if err := lx.scanQuoted('"'); err != nil {
			return Token{}, err
		}
		kind = TokString
	case r == '\'':
		if err := lx.scanQuoted('\''); err != nil {
			return Token{}, err
		}
		kind = TokChar
	default:
		rest := string(lx.src[lx.off:min(lx.off+4, len(lx.src))])
		matched := ""
		for _, p := range puncts {
			if strings.HasPrefix(rest, p) {
				matched = p
				break
			}
		}
		if matched == "" {
			return Token{}, lx.errorf(start, "unexpected character %q", r)
		}
		for range []rune(matched) {
			lx.advance()
		}
		kind = TokPunct
	}
	return Token{Kind: kind, Text: string(lx.src[begin:lx.off]), Rng: Range{Start: start, End: lx.pos()}}, nil
}

func (lx *lexer) scanNumber() {
	if lx.peek(0) == '0' && (lx.peek(1) == 'x' || lx.peek(1) == 'X') {
		lx.advance()
		lx.advance()
		for lx.off < len(lx.src) && strings.ContainsRune("0123456789abcdefABCDEF", lx.peek(0)) {
			lx.advance()
		}
	} else {
		for lx.off < len(lx.src) && (unicode.IsDigit(lx.peek(0)) || lx.peek(0) == '.') {
			if lx.peek(0) == '.' && !unicode.IsDigit(lx.peek(1)) {
				break
			}
			lx.advance()
		}
		if r := lx.peek(0); r == 'e' || r == 'E' {
			lx.advance()
			if r := lx.peek(0); r == '+' || r == '-' {
				lx.advance()
			}
			for lx.off < len(lx.src) && unicode.IsDigit(lx.peek(0)) {
				lx.advance()
			}
		}
	}
	// Type suffixes: 1l, 2d, 3f.
	if r := lx.peek(0); r == 'l' || r == 'L' || r == 'd' || r == 'D' || r == 'f' || r == 'F' {
		lx.advance()
	}
}

func (lx *lexer) scanQuoted(q rune) error {
	start := lx.pos()
	lx.advance()
	for {
		if lx.off >= len(lx.src) || lx.peek(0) == '\n' {
			return lx.errorf(start, "unterminated literal")
		}
		r := lx.advance()
		if r == '\\' && lx.off < len(lx.src) {
			lx.advance()
			continue
		}
		if r == q {
			return nil
		}
	}
}

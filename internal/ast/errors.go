package ast

import "fmt"

// ParseError reports the first syntax error in a file.
type ParseError struct {
	File string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

// Range returns a one-rune range at the error position.
func (e *ParseError) Range() Range {
	p := Pos{Line: e.Line, Col: e.Col}
	return Range{Start: p, End: Pos{Line: e.Line, Col: e.Col + 1}}
}

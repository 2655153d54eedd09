package expr

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a ParseError
type ErrorKind int

const (
	KindSyntax ErrorKind = iota
	KindInvalidLiteral
	KindUnknownSymbol
	KindUnknownRule
	KindInputRange
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindInvalidLiteral:
		return "invalid literal"
	case KindUnknownSymbol:
		return "unknown symbol"
	case KindUnknownRule:
		return "unknown rule"
	case KindInputRange:
		return "input out of range"
	default:
		return "error"
	}
}

// ParseError is returned by Parse, ParseTree and Build.
// Pos is a byte offset into the source; Line and Col are 1-based.
type ParseError struct {
	Kind  ErrorKind
	Pos   int
	Line  int
	Col   int
	Token string
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:%d: %s: %s", e.Line, e.Col, e.Kind, e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Snippet renders the source line holding the error with a caret under the
// offending token:
//
//	   1 | $0 % $1
//	     |    ^
func (e *ParseError) Snippet(source string) string {
	lines := strings.Split(source, "\n")
	line := e.Line
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	src := strings.TrimRight(lines[line-1], "\r")
	col := e.Col
	if col < 1 {
		col = 1
	}
	if col > len(src)+1 {
		col = len(src) + 1
	}
	width := len(e.Token)
	if width < 1 {
		width = 1
	}
	gutter := fmt.Sprintf("%4d | ", line)
	pad := strings.Repeat(" ", len(gutter)-2) + "| "
	return fmt.Sprintf("%s%s\n%s%s%s", gutter, src, pad, strings.Repeat(" ", col-1), strings.Repeat("^", width))
}

// InputRangeError reports an Input whose index is not below NumInputs
type InputRangeError struct {
	Index uint64
}

func (e *InputRangeError) Error() string {
	return fmt.Sprintf("input $%d is out of range, only $0 to $%d are available", e.Index, NumInputs-1)
}

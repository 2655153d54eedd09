package jit

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/xyproto/exprjit/codegen"
	"github.com/xyproto/exprjit/expr"
)

// Listing is the result of Dump
type Listing struct {
	Arch  codegen.Arch
	Expr  string
	IR    string
	Code  []byte
	Lines []codegen.Line
}

// Dump lowers and assembles e for arch without mapping it. Built-in call
// sites use address 0, so the code is for reading only.
func Dump(e expr.Expr, arch codegen.Arch) (*Listing, error) {
	be, err := codegen.NewBackend(arch)
	if err != nil {
		return nil, compileErr(KindUnsupported, "", err)
	}
	m := NewModule(be)
	for _, b := range expr.Builtins {
		m.Symbol(builtinSignatures[b].Name, 0)
	}
	id, fn, err := buildFunc(m, e)
	if err != nil {
		return nil, err
	}
	code, lines, _ := m.Code(id)
	return &Listing{
		Arch:  arch,
		Expr:  e.String(),
		IR:    fn.String(),
		Code:  code,
		Lines: lines,
	}, nil
}

// String renders the expression, the IR and an annotated hex dump
func (l *Listing) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; %s\n", l.Expr)
	fmt.Fprintf(&sb, "; %s, %s\n", l.Arch, humanize.Bytes(uint64(len(l.Code))))
	sb.WriteString(l.IR)
	for _, line := range l.Lines {
		hex := make([]string, len(line.Bytes))
		for i, b := range line.Bytes {
			hex[i] = fmt.Sprintf("%02x", b)
		}
		fmt.Fprintf(&sb, "%04x  %-30s %s\n", line.Offset, strings.Join(hex, " "), line.Asm)
	}
	return sb.String()
}

package jit

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Call after Close
var ErrClosed = errors.New("compiled function is closed")

// errUnsupportedOS is the cause of KindUnsupported errors on hosts
// without executable memory or native calls
var errUnsupportedOS = errors.New("unsupported operating system")

// Kind classifies a CompileError
type Kind int

const (
	KindInputRange Kind = iota + 1
	KindUnresolvedSymbol
	KindDeclaration
	KindVerify
	KindLimit
	KindAssemble
	KindMemory
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInputRange:
		return "input out of range"
	case KindUnresolvedSymbol:
		return "unresolved symbol"
	case KindDeclaration:
		return "declaration conflict"
	case KindVerify:
		return "verifier"
	case KindLimit:
		return "limit exceeded"
	case KindAssemble:
		return "assembler"
	case KindMemory:
		return "executable memory"
	case KindUnsupported:
		return "unsupported host"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// label is the metrics label value for k
func (k Kind) label() string {
	switch k {
	case KindInputRange:
		return "input_range"
	case KindUnresolvedSymbol:
		return "unresolved_symbol"
	case KindDeclaration:
		return "declaration"
	case KindVerify:
		return "verify"
	case KindLimit:
		return "limit"
	case KindAssemble:
		return "assemble"
	case KindMemory:
		return "memory"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// CompileError is returned by Compile and Dump. Symbol names the built-in
// or function involved, if any.
type CompileError struct {
	Kind   Kind
	Symbol string
	Err    error
}

func (e *CompileError) Error() string {
	msg := "compile: " + e.Kind.String()
	if e.Symbol != "" {
		msg += " " + e.Symbol
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func compileErr(kind Kind, symbol string, err error) *CompileError {
	return &CompileError{Kind: kind, Symbol: symbol, Err: err}
}

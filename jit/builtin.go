package jit

import (
	"github.com/xyproto/exprjit/builtins"
	"github.com/xyproto/exprjit/expr"
	"github.com/xyproto/exprjit/ir"
)

// BuiltinSignature is the symbol name and type a built-in is linked by
type BuiltinSignature struct {
	Name string
	Sig  ir.Signature
}

// builtinSignatures covers every expr.Builtin. Adding a built-in means
// adding it here and to builtinImpls.
var builtinSignatures = map[expr.Builtin]BuiltinSignature{
	expr.Print: {Name: "print", Sig: ir.NewSignature(ir.I32, 1, 1)},
	expr.Rand:  {Name: "rand", Sig: ir.NewSignature(ir.I32, 1, 1)},
}

var builtinImpls = map[expr.Builtin]func(int32) int32{
	expr.Print: builtins.Print,
	expr.Rand:  builtins.Rand,
}

// Signature returns how b is linked
func Signature(b expr.Builtin) (BuiltinSignature, bool) {
	s, ok := builtinSignatures[b]
	return s, ok
}

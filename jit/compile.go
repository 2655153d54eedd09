// Package jit compiles expressions to native functions of the host:
// lowering to ir, linking the built-ins by symbol name, assembling with a
// codegen backend and mapping the result executable.
package jit

import (
	"github.com/pkg/errors"
	"github.com/xyproto/exprjit/codegen"
	"github.com/xyproto/exprjit/expr"
	"github.com/xyproto/exprjit/internal/logging"
)

// Compile turns e into a function of the host machine. Errors are
// *CompileError.
func Compile(e expr.Expr) (f *CompiledFunction, err error) {
	size := 0
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, compileErr(KindVerify, "", errors.Errorf("internal error: %v", r))
		}
		observe(err, size)
	}()

	if err := validate(e); err != nil {
		return nil, err
	}
	be, err := codegen.NewHostBackend()
	if err != nil {
		return nil, compileErr(KindUnsupported, "", err)
	}
	syms, err := nativeSymbols()
	if err != nil {
		return nil, compileErr(KindUnsupported, "", err)
	}

	m := NewModule(be)
	for name, addr := range syms {
		m.Symbol(name, addr)
	}
	id, fn, err := buildFunc(m, e)
	if err != nil {
		return nil, err
	}
	logging.L().Debugf("lowered %s:\n%s", e, fn)

	if err := m.FinalizeDefinitions(); err != nil {
		return nil, err
	}
	defer m.Free()
	page, err := m.takePage(id)
	if err != nil {
		return nil, err
	}
	code, _, _ := m.Code(id)
	size = len(code)
	return newCompiledFunction(page, size), nil
}

// CompileSource parses source and compiles it. Parse failures are
// returned as *expr.ParseError.
func CompileSource(source string) (*CompiledFunction, error) {
	e, err := expr.Parse(source)
	if err != nil {
		return nil, err
	}
	return Compile(e)
}

package jit

import (
	"github.com/pkg/errors"
	"github.com/xyproto/exprjit/expr"
	"github.com/xyproto/exprjit/ir"
)

// entryName is the name of the compiled function in its module
const entryName = "main"

// lowerer turns an Expr into instructions of one block
type lowerer struct {
	b      *ir.Builder
	params []ir.Value
	refs   map[expr.Builtin]ir.FuncRef
}

// buildFunc declares the built-ins in m, lowers e into a new function and
// defines it. The built-in symbols must already be bound.
func buildFunc(m *Module, e expr.Expr) (FuncID, *ir.Func, error) {
	if err := validate(e); err != nil {
		return 0, nil, err
	}

	sig := ir.NewSignature(ir.I32, expr.NumInputs, 1)
	fn := ir.NewFunc(entryName, sig)

	refs := make(map[expr.Builtin]ir.FuncRef, len(expr.Builtins))
	for _, b := range expr.Builtins {
		bs := builtinSignatures[b]
		id, err := m.DeclareFunction(bs.Name, LinkageImport, bs.Sig)
		if err != nil {
			return 0, nil, err
		}
		ref, err := m.DeclareFuncInFunc(id, fn)
		if err != nil {
			return 0, nil, err
		}
		refs[b] = ref
	}

	builder := ir.NewBuilder(fn)
	blk := builder.CreateBlock()
	builder.AppendBlockParamsForFunctionParams(blk)
	builder.SwitchToBlock(blk)
	builder.SealBlock(blk)

	l := &lowerer{b: builder, params: builder.BlockParams(blk), refs: refs}
	root, err := l.lower(e)
	if err != nil {
		return 0, nil, err
	}
	builder.Return(root)
	if err := builder.Finalize(); err != nil {
		return 0, nil, builderErr(err)
	}

	id, err := m.DeclareFunction(entryName, LinkageLocal, sig)
	if err != nil {
		return 0, nil, err
	}
	if err := m.DefineFunction(id, fn); err != nil {
		return 0, nil, err
	}
	return id, fn, nil
}

// validate rejects trees Parse could not have produced
func validate(e expr.Expr) error {
	if err := expr.Validate(e); err != nil {
		var ire *expr.InputRangeError
		if errors.As(err, &ire) {
			return compileErr(KindInputRange, expr.Input{Index: ire.Index}.String(), err)
		}
		return compileErr(KindVerify, "", err)
	}
	return nil
}

func builderErr(err error) error {
	if errors.Is(err, ir.ErrTooManyValues) {
		return compileErr(KindLimit, "", err)
	}
	return compileErr(KindVerify, "", err)
}

// lower returns the value of e. It stops at the first builder error.
func (l *lowerer) lower(e expr.Expr) (ir.Value, error) {
	var v ir.Value
	switch n := e.(type) {
	case expr.Num:
		v = l.b.Iconst(ir.I32, n.Value)

	case expr.Input:
		if n.Index >= uint64(len(l.params)) {
			ire := &expr.InputRangeError{Index: n.Index}
			return 0, compileErr(KindInputRange, n.String(), ire)
		}
		return l.params[n.Index], nil

	case expr.BinOp:
		lhs, err := l.lower(n.LHS)
		if err != nil {
			return 0, err
		}
		rhs, err := l.lower(n.RHS)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case expr.Add:
			v = l.b.Iadd(lhs, rhs)
		case expr.Sub:
			v = l.b.Isub(lhs, rhs)
		case expr.Mul:
			v = l.b.Imul(lhs, rhs)
		case expr.Div:
			v = l.b.Sdiv(lhs, rhs)
		case expr.Eq:
			v = l.b.IcmpEq(lhs, rhs)
		default:
			return 0, compileErr(KindVerify, n.Op.String(), errors.New("unknown operator"))
		}

	case expr.Call:
		arg, err := l.lower(n.Arg)
		if err != nil {
			return 0, err
		}
		ref, ok := l.refs[n.Builtin]
		if !ok {
			return 0, compileErr(KindUnresolvedSymbol, n.Builtin.String(), errors.New("built-in is not declared"))
		}
		results := l.b.Call(ref, arg)
		if len(results) != 1 {
			if err := l.b.Err(); err != nil {
				return 0, builderErr(err)
			}
			return 0, compileErr(KindVerify, n.Builtin.String(), errors.Errorf("call has %d results", len(results)))
		}
		v = results[0]

	default:
		return 0, compileErr(KindVerify, "", errors.Errorf("unknown expression node %T", e))
	}

	if err := l.b.Err(); err != nil {
		return 0, builderErr(err)
	}
	return v, nil
}

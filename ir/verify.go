package ir

import (
	"fmt"
)

// VerifyError describes the first problem Verify found. Inst is -1 for
// problems that belong to a block or the function as a whole.
type VerifyError struct {
	Func  string
	Block Block
	Inst  int
	Msg   string
}

func (e *VerifyError) Error() string {
	if e.Inst < 0 {
		return fmt.Sprintf("verify %s: %s: %s", e.Func, e.Block, e.Msg)
	}
	return fmt.Sprintf("verify %s: %s inst %d: %s", e.Func, e.Block, e.Inst, e.Msg)
}

// Verify checks that fn is well formed: the entry block takes the function
// parameters, every value is defined before it is used in its block, every
// block ends in exactly one terminator, calls match their import signature,
// and returns match the function signature.
func Verify(fn *Func) error {
	if len(fn.blocks) == 0 {
		return &VerifyError{Func: fn.Name, Inst: -1, Msg: "function has no blocks"}
	}
	if len(fn.values) > MaxValues {
		return &VerifyError{Func: fn.Name, Inst: -1, Msg: ErrTooManyValues.Error()}
	}
	entry := fn.blocks[0]
	if len(entry.params) != len(fn.Sig.Params) {
		return &VerifyError{Func: fn.Name, Inst: -1,
			Msg: fmt.Sprintf("entry block has %d params, signature has %d", len(entry.params), len(fn.Sig.Params))}
	}
	for i, p := range entry.params {
		if fn.values[p].typ != fn.Sig.Params[i] {
			return &VerifyError{Func: fn.Name, Inst: -1,
				Msg: fmt.Sprintf("param %s is %s, signature says %s", p, fn.values[p].typ, fn.Sig.Params[i])}
		}
	}

	for bi, data := range fn.blocks {
		blk := Block(bi)
		fail := func(inst int, format string, args ...interface{}) error {
			return &VerifyError{Func: fn.Name, Block: blk, Inst: inst, Msg: fmt.Sprintf(format, args...)}
		}
		defined := make(map[Value]bool, len(data.params)+len(data.insts))
		for _, p := range data.params {
			defined[p] = true
		}
		if len(data.insts) == 0 {
			return fail(-1, "block is empty")
		}
		for ii, inst := range data.insts {
			for _, a := range inst.Args {
				if int(a) >= len(fn.values) {
					return fail(ii, "%s uses %s which does not exist", inst.Op, a)
				}
				if !defined[a] {
					return fail(ii, "%s uses %s before it is defined", inst.Op, a)
				}
				if fn.values[a].typ != I32 {
					return fail(ii, "%s uses %s of type %s", inst.Op, a, fn.values[a].typ)
				}
			}
			if inst.Op.IsTerminator() != (ii == len(data.insts)-1) {
				if inst.Op.IsTerminator() {
					return fail(ii, "terminator %s is not the last instruction", inst.Op)
				}
				return fail(ii, "block does not end in a terminator")
			}
			if err := checkInst(fn, inst, fail, ii); err != nil {
				return err
			}
			for _, r := range inst.Results {
				defined[r] = true
			}
		}
	}
	return nil
}

func checkInst(fn *Func, inst Inst, fail func(int, string, ...interface{}) error, ii int) error {
	want := func(args, results int) error {
		if len(inst.Args) != args {
			return fail(ii, "%s takes %d arguments, has %d", inst.Op, args, len(inst.Args))
		}
		if len(inst.Results) != results {
			return fail(ii, "%s has %d results, want %d", inst.Op, len(inst.Results), results)
		}
		return nil
	}
	switch inst.Op {
	case OpIconst:
		if err := want(0, 1); err != nil {
			return err
		}
		if inst.Type == I32 && int64(int32(inst.Imm)) != inst.Imm {
			return fail(ii, "iconst %d does not fit in i32", inst.Imm)
		}
	case OpIadd, OpIsub, OpImul, OpSdiv, OpIcmpEq:
		return want(2, 1)
	case OpCall:
		ext, ok := fn.Import(inst.Func)
		if !ok {
			return fail(ii, "call to undeclared %s", inst.Func)
		}
		if err := want(len(ext.Sig.Params), len(ext.Sig.Returns)); err != nil {
			return err
		}
	case OpReturn:
		if len(inst.Args) != len(fn.Sig.Returns) {
			return fail(ii, "return of %d values, signature has %d", len(inst.Args), len(fn.Sig.Returns))
		}
	default:
		return fail(ii, "unknown opcode %s", inst.Op)
	}
	return nil
}

package ir

import (
	"github.com/pkg/errors"
)

// ErrTooManyValues is returned when a function would define more than MaxValues values
var ErrTooManyValues = errors.Errorf("function has more than %d values", MaxValues)

// Builder appends instructions to a Func. The first error is kept and every
// later call is a no-op returning zero values; Finalize reports it.
type Builder struct {
	fn      *Func
	current Block
	hasCur  bool
	err     error
}

// NewBuilder returns a builder that appends to fn
func NewBuilder(fn *Func) *Builder {
	return &Builder{fn: fn}
}

// Func returns the function under construction
func (b *Builder) Func() *Func {
	return b.fn
}

// Err returns the first error recorded by the builder
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// CreateBlock adds an empty block
func (b *Builder) CreateBlock() Block {
	b.fn.blocks = append(b.fn.blocks, &blockData{})
	return Block(len(b.fn.blocks) - 1)
}

func (b *Builder) validBlock(blk Block) bool {
	if int(blk) >= len(b.fn.blocks) {
		b.fail(errors.Errorf("%s does not exist", blk))
		return false
	}
	return true
}

// AppendBlockParamsForFunctionParams gives blk one parameter per function parameter
func (b *Builder) AppendBlockParamsForFunctionParams(blk Block) {
	if b.err != nil || !b.validBlock(blk) {
		return
	}
	data := b.fn.blocks[blk]
	if len(data.params) != 0 || len(data.insts) != 0 {
		b.fail(errors.Errorf("%s already has parameters or instructions", blk))
		return
	}
	for _, t := range b.fn.Sig.Params {
		v, ok := b.newValue(t, blk, true)
		if !ok {
			return
		}
		data.params = append(data.params, v)
	}
}

// SwitchToBlock makes blk the insertion point
func (b *Builder) SwitchToBlock(blk Block) {
	if b.err != nil || !b.validBlock(blk) {
		return
	}
	b.current = blk
	b.hasCur = true
}

// SealBlock declares that blk has no more predecessors
func (b *Builder) SealBlock(blk Block) {
	if b.err != nil || !b.validBlock(blk) {
		return
	}
	b.fn.blocks[blk].sealed = true
}

// BlockParams returns the parameters of blk
func (b *Builder) BlockParams(blk Block) []Value {
	if b.err != nil || !b.validBlock(blk) {
		return nil
	}
	return b.fn.blocks[blk].params
}

func (b *Builder) newValue(t Type, blk Block, param bool) (Value, bool) {
	if len(b.fn.values) >= MaxValues {
		b.fail(ErrTooManyValues)
		return 0, false
	}
	return b.fn.newValue(t, blk, param), true
}

// insert appends inst to the current block, allocating nres results of type I32
func (b *Builder) insert(inst Inst, nres int) []Value {
	if b.err != nil {
		return nil
	}
	if !b.hasCur {
		b.fail(errors.Errorf("no current block for %s", inst.Op))
		return nil
	}
	data := b.fn.blocks[b.current]
	if n := len(data.insts); n > 0 && data.insts[n-1].Op.IsTerminator() {
		b.fail(errors.Errorf("%s after terminator in %s", inst.Op, b.current))
		return nil
	}
	for i := 0; i < nres; i++ {
		v, ok := b.newValue(inst.Type, b.current, false)
		if !ok {
			return nil
		}
		inst.Results = append(inst.Results, v)
	}
	data.insts = append(data.insts, inst)
	return inst.Results
}

func (b *Builder) single(inst Inst) Value {
	res := b.insert(inst, 1)
	if len(res) != 1 {
		return 0
	}
	return res[0]
}

// Iconst defines a constant. Only the low 32 bits of imm are kept for I32.
func (b *Builder) Iconst(t Type, imm int64) Value {
	if t == I32 {
		imm = int64(int32(imm))
	}
	return b.single(Inst{Op: OpIconst, Type: t, Imm: imm})
}

func (b *Builder) binary(op Opcode, x, y Value) Value {
	return b.single(Inst{Op: op, Type: I32, Args: []Value{x, y}})
}

// Iadd is wrapping addition
func (b *Builder) Iadd(x, y Value) Value { return b.binary(OpIadd, x, y) }

// Isub is wrapping subtraction
func (b *Builder) Isub(x, y Value) Value { return b.binary(OpIsub, x, y) }

// Imul is wrapping multiplication
func (b *Builder) Imul(x, y Value) Value { return b.binary(OpImul, x, y) }

// Sdiv is signed division truncating toward zero. A zero divisor gives 0.
func (b *Builder) Sdiv(x, y Value) Value { return b.binary(OpSdiv, x, y) }

// IcmpEq is 1 when x equals y and 0 otherwise
func (b *Builder) IcmpEq(x, y Value) Value { return b.binary(OpIcmpEq, x, y) }

// Call calls an imported function and returns its results
func (b *Builder) Call(ref FuncRef, args ...Value) []Value {
	if b.err != nil {
		return nil
	}
	ext, ok := b.fn.Import(ref)
	if !ok {
		b.fail(errors.Errorf("call to undeclared %s", ref))
		return nil
	}
	if len(ext.Sig.Returns) > 1 {
		b.fail(errors.Errorf("call to %s: multiple results are not supported", ext.Name))
		return nil
	}
	t := I32
	if len(ext.Sig.Returns) == 1 {
		t = ext.Sig.Returns[0]
	}
	return b.insert(Inst{Op: OpCall, Type: t, Func: ref, Args: append([]Value(nil), args...)}, len(ext.Sig.Returns))
}

// Return ends the current block
func (b *Builder) Return(vals ...Value) {
	b.insert(Inst{Op: OpReturn, Args: append([]Value(nil), vals...)}, 0)
}

// Finalize returns the first builder error, or the result of Verify
func (b *Builder) Finalize() error {
	if b.err != nil {
		return b.err
	}
	return Verify(b.fn)
}

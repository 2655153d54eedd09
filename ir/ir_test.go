package ir

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var printSig = NewSignature(I32, 1, 1)

// newMain returns a builder positioned in a sealed entry block of a
// (i32, i32, i32, i32) -> i32 function.
func newMain(t *testing.T) (*Builder, Block) {
	t.Helper()
	fn := NewFunc("main", NewSignature(I32, 4, 1))
	b := NewBuilder(fn)
	blk := b.CreateBlock()
	b.AppendBlockParamsForFunctionParams(blk)
	b.SwitchToBlock(blk)
	b.SealBlock(blk)
	require.NoError(t, b.Err())
	return b, blk
}

func TestBuilderNumbering(t *testing.T) {
	b, blk := newMain(t)
	params := b.BlockParams(blk)
	assert.Equal(t, []Value{0, 1, 2, 3}, params)

	c := b.Iconst(I32, 5)
	sum := b.Iadd(params[0], c)
	assert.Equal(t, Value(4), c)
	assert.Equal(t, Value(5), sum)
	b.Return(sum)

	require.NoError(t, b.Finalize())
	assert.Equal(t, 6, b.Func().NumValues())
	assert.True(t, b.Func().Sealed(blk))
	assert.Len(t, b.Func().Insts(blk), 3)
}

func TestFuncString(t *testing.T) {
	b, blk := newMain(t)
	fn := b.Func()
	ref := fn.ImportFunction(ExtFunc{Name: "print", Sig: printSig})
	params := b.BlockParams(blk)
	sum := b.Iadd(params[0], b.Iconst(I32, 5))
	res := b.Call(ref, sum)
	require.Len(t, res, 1)
	b.Return(res[0])
	require.NoError(t, b.Finalize())

	want := "function main(i32, i32, i32, i32) -> (i32) {\n" +
		"    fn0 = print(i32) -> (i32)\n" +
		"block0(v0: i32, v1: i32, v2: i32, v3: i32):\n" +
		"    v4 = iconst.i32 5\n" +
		"    v5 = iadd v0, v4\n" +
		"    v6 = call fn0(v5)\n" +
		"    return v6\n" +
		"}\n"
	assert.Equal(t, want, fn.String())
}

func TestIconstWraps(t *testing.T) {
	b, _ := newMain(t)
	v1 := b.Iconst(I32, 1<<32+5)
	v2 := b.Iconst(I32, math.MaxInt32+1)
	b.Return(v1)
	require.NoError(t, b.Finalize())

	insts := b.Func().Insts(0)
	assert.Equal(t, int64(5), insts[0].Imm)
	assert.Equal(t, int64(math.MinInt32), insts[1].Imm)
	assert.Equal(t, Value(5), v2)
}

func TestBuilderLimit(t *testing.T) {
	b, _ := newMain(t)
	var last Value
	for i := 0; i < MaxValues; i++ {
		last = b.Iconst(I32, int64(i))
	}
	b.Return(last)

	err := b.Finalize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyValues))
	assert.Equal(t, MaxValues, b.Func().NumValues())
}

func TestBuilderNoCurrentBlock(t *testing.T) {
	fn := NewFunc("main", NewSignature(I32, 0, 1))
	b := NewBuilder(fn)
	b.Iconst(I32, 1)
	assert.Error(t, b.Finalize())
}

func TestBuilderAfterTerminator(t *testing.T) {
	b, _ := newMain(t)
	v := b.Iconst(I32, 1)
	b.Return(v)
	b.Iconst(I32, 2)
	err := b.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after terminator")
}

func TestBuilderUndeclaredCall(t *testing.T) {
	b, _ := newMain(t)
	res := b.Call(FuncRef(3), b.Iconst(I32, 1))
	assert.Nil(t, res)
	assert.Error(t, b.Finalize())
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder, params []Value)
		msg   string
	}{
		{
			name: "missing terminator",
			build: func(b *Builder, params []Value) {
				b.Iadd(params[0], params[1])
			},
			msg: "does not end in a terminator",
		},
		{
			name: "call arity",
			build: func(b *Builder, params []Value) {
				ref := b.Func().ImportFunction(ExtFunc{Name: "print", Sig: printSig})
				res := b.Call(ref, params[0], params[1])
				b.Return(res[0])
			},
			msg: "takes 1 arguments, has 2",
		},
		{
			name: "return count",
			build: func(b *Builder, params []Value) {
				b.Return(params[0], params[1])
			},
			msg: "return of 2 values, signature has 1",
		},
		{
			name: "unknown value",
			build: func(b *Builder, params []Value) {
				b.Return(Value(42))
			},
			msg: "does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, blk := newMain(t)
			tt.build(b, b.BlockParams(blk))
			err := b.Finalize()
			require.Error(t, err)

			var ve *VerifyError
			require.True(t, errors.As(err, &ve), "got %T: %v", err, err)
			assert.Contains(t, ve.Error(), tt.msg)
		})
	}
}

func TestVerifyUseBeforeDef(t *testing.T) {
	b, blk := newMain(t)
	params := b.BlockParams(blk)
	c := b.Iconst(I32, 2)
	sum := b.Iadd(params[0], c)
	b.Return(sum)
	require.NoError(t, b.Finalize())

	// Move the iadd in front of the iconst it reads.
	insts := b.Func().blocks[blk].insts
	insts[0], insts[1] = insts[1], insts[0]

	err := Verify(b.Func())
	var ve *VerifyError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 0, ve.Inst)
	assert.Contains(t, ve.Msg, "before it is defined")
}

func TestVerifyEmpty(t *testing.T) {
	fn := NewFunc("empty", NewSignature(I32, 0, 1))
	assert.Error(t, Verify(fn))

	b := NewBuilder(fn)
	b.CreateBlock()
	err := Verify(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block is empty")
}

func TestSignature(t *testing.T) {
	s := NewSignature(I32, 2, 1)
	assert.Equal(t, "(i32, i32) -> (i32)", s.String())
	assert.True(t, s.Equal(NewSignature(I32, 2, 1)))
	assert.False(t, s.Equal(NewSignature(I32, 1, 1)))
	assert.False(t, s.Equal(NewSignature(I32, 2, 0)))
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "icmp_eq", OpIcmpEq.String())
	assert.Equal(t, "op99", Opcode(99).String())
	assert.True(t, OpReturn.IsTerminator())
	assert.False(t, OpCall.IsTerminator())
}

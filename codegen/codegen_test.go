package codegen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyproto/exprjit/ir"
)

// buildFunc returns a verified (i32 x4) -> i32 function whose body is
// produced by body from the four parameters
func buildFunc(t *testing.T, body func(b *ir.Builder, p []ir.Value) ir.Value) *ir.Func {
	t.Helper()
	fn := ir.NewFunc("main", ir.NewSignature(ir.I32, 4, 1))
	b := ir.NewBuilder(fn)
	blk := b.CreateBlock()
	b.AppendBlockParamsForFunctionParams(blk)
	b.SwitchToBlock(blk)
	b.SealBlock(blk)
	b.Return(body(b, b.BlockParams(blk)))
	require.NoError(t, b.Finalize())
	return fn
}

func addParams(b *ir.Builder, p []ir.Value) ir.Value {
	return b.Iadd(p[0], p[1])
}

func words(code []byte) []uint32 {
	out := make([]uint32, len(code)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(code[4*i:])
	}
	return out
}

func TestX86_64Add(t *testing.T) {
	be, err := NewBackend(ArchX86_64)
	require.NoError(t, err)

	code, err := be.Assemble(buildFunc(t, addParams), nil)
	require.NoError(t, err)

	want := []byte{
		0x55,             // push rbp
		0x48, 0x89, 0xe5, // mov rbp, rsp
		0x48, 0x81, 0xec, 0x20, 0x00, 0x00, 0x00, // sub rsp, 32
		0x89, 0xbd, 0xfc, 0xff, 0xff, 0xff, // mov [rbp-4], edi
		0x89, 0xb5, 0xf8, 0xff, 0xff, 0xff, // mov [rbp-8], esi
		0x89, 0x95, 0xf4, 0xff, 0xff, 0xff, // mov [rbp-12], edx
		0x89, 0x8d, 0xf0, 0xff, 0xff, 0xff, // mov [rbp-16], ecx
		0x8b, 0x85, 0xfc, 0xff, 0xff, 0xff, // mov eax, [rbp-4]
		0x8b, 0x8d, 0xf8, 0xff, 0xff, 0xff, // mov ecx, [rbp-8]
		0x01, 0xc8, // add eax, ecx
		0x89, 0x85, 0xec, 0xff, 0xff, 0xff, // mov [rbp-20], eax
		0x8b, 0x85, 0xec, 0xff, 0xff, 0xff, // mov eax, [rbp-20]
		0xc9, // leave
		0xc3, // ret
	}
	assert.Equal(t, want, code)
}

func TestARM64Add(t *testing.T) {
	be, err := NewBackend(ArchARM64)
	require.NoError(t, err)

	code, err := be.Assemble(buildFunc(t, addParams), nil)
	require.NoError(t, err)
	require.Zero(t, len(code)%4)

	want := []uint32{
		0xa9bf7bfd, // stp x29, x30, [sp, #-16]!
		0x910003fd, // mov x29, sp
		0xd10083ff, // sub sp, sp, #32
		0xb90003e0, // str w0, [sp]
		0xb90007e1, // str w1, [sp, #4]
		0xb9000be2, // str w2, [sp, #8]
		0xb9000fe3, // str w3, [sp, #12]
		0xb94003e9, // ldr w9, [sp]
		0xb94007ea, // ldr w10, [sp, #4]
		0x0b0a0129, // add w9, w9, w10
		0xb90013e9, // str w9, [sp, #16]
		0xb94013e0, // ldr w0, [sp, #16]
		0x910083ff, // add sp, sp, #32
		0xa8c17bfd, // ldp x29, x30, [sp], #16
		0xd65f03c0, // ret
	}
	assert.Equal(t, want, words(code))
}

func TestX86_64DivGuard(t *testing.T) {
	be, err := NewBackend(ArchX86_64)
	require.NoError(t, err)

	fn := buildFunc(t, func(b *ir.Builder, p []ir.Value) ir.Value {
		return b.Sdiv(p[0], p[1])
	})
	code, err := be.Assemble(fn, nil)
	require.NoError(t, err)

	guard := []byte{
		0x85, 0xc9, // test ecx, ecx
		0x74, 0x0e, // jz .zero
		0x83, 0xf9, 0xff, // cmp ecx, -1
		0x74, 0x05, // je .neg
		0x99,       // cdq
		0xf7, 0xf9, // idiv ecx
		0xeb, 0x06, // jmp .done
		0xf7, 0xd8, // .neg: neg eax
		0xeb, 0x02, // jmp .done
		0x31, 0xc0, // .zero: xor eax, eax
		0x89, 0x85, // .done: mov [rbp+disp32], eax
	}
	assert.True(t, bytes.Contains(code, guard), "division guard not found in % x", code)
}

func TestX86_64TwoDivisions(t *testing.T) {
	be, err := NewBackend(ArchX86_64)
	require.NoError(t, err)

	fn := buildFunc(t, func(b *ir.Builder, p []ir.Value) ir.Value {
		return b.Sdiv(b.Sdiv(p[0], p[1]), p[2])
	})
	code, err := be.Assemble(fn, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(code, []byte{0x99, 0xf7, 0xf9}))
}

func TestEqEncoding(t *testing.T) {
	eq := func(b *ir.Builder, p []ir.Value) ir.Value { return b.IcmpEq(p[2], p[3]) }

	x86, err := NewBackend(ArchX86_64)
	require.NoError(t, err)
	code, err := x86.Assemble(buildFunc(t, eq), nil)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(code, []byte{0x39, 0xc8, 0x0f, 0x94, 0xc0, 0x0f, 0xb6, 0xc0}))

	arm, err := NewBackend(ArchARM64)
	require.NoError(t, err)
	code, err = arm.Assemble(buildFunc(t, eq), nil)
	require.NoError(t, err)
	w := words(code)
	assert.Contains(t, w, uint32(0x6b0a013f)) // cmp w9, w10
	assert.Contains(t, w, uint32(0x1a9f17e9)) // cset w9, eq
}

func TestArithmeticEncodingARM64(t *testing.T) {
	tests := []struct {
		name string
		op   func(b *ir.Builder, x, y ir.Value) ir.Value
		word uint32
	}{
		{"sub", (*ir.Builder).Isub, 0x4b0a0129},
		{"mul", (*ir.Builder).Imul, 0x1b0a7d29},
		{"sdiv", (*ir.Builder).Sdiv, 0x1aca0d29},
	}
	be, err := NewBackend(ArchARM64)
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := buildFunc(t, func(b *ir.Builder, p []ir.Value) ir.Value { return tt.op(b, p[0], p[1]) })
			code, err := be.Assemble(fn, nil)
			require.NoError(t, err)
			assert.Contains(t, words(code), tt.word)
		})
	}
}

func TestConstants(t *testing.T) {
	minusOne := func(b *ir.Builder, p []ir.Value) ir.Value { return b.Iconst(ir.I32, -1) }

	x86, err := NewBackend(ArchX86_64)
	require.NoError(t, err)
	code, err := x86.Assemble(buildFunc(t, minusOne), nil)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(code, []byte{0xb8, 0xff, 0xff, 0xff, 0xff}))

	arm, err := NewBackend(ArchARM64)
	require.NoError(t, err)
	code, err = arm.Assemble(buildFunc(t, minusOne), nil)
	require.NoError(t, err)
	w := words(code)
	assert.Contains(t, w, uint32(0x529fffe9)) // movz w9, #0xffff
	assert.Contains(t, w, uint32(0x72bfffe9)) // movk w9, #0xffff, lsl #16
}

func TestCallEncoding(t *testing.T) {
	var wide uint64 = 0x1122334455667788
	addr := uintptr(wide)
	build := func(t *testing.T) *ir.Func {
		return buildFunc(t, func(b *ir.Builder, p []ir.Value) ir.Value {
			ref := b.Func().ImportFunction(ir.ExtFunc{Name: "print", Sig: ir.NewSignature(ir.I32, 1, 1)})
			return b.Call(ref, p[0])[0]
		})
	}

	x86, err := NewBackend(ArchX86_64)
	require.NoError(t, err)
	code, err := x86.Assemble(build(t), []uintptr{addr})
	require.NoError(t, err)
	call := []byte{
		0x8b, 0xbd, 0xfc, 0xff, 0xff, 0xff, // mov edi, [rbp-4]
		0x48, 0xb8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, // mov rax, addr
		0xff, 0xd0, // call rax
	}
	assert.True(t, bytes.Contains(code, call), "call sequence not found in % x", code)

	arm, err := NewBackend(ArchARM64)
	require.NoError(t, err)
	code, err = arm.Assemble(build(t), []uintptr{addr})
	require.NoError(t, err)
	w := words(code)
	seq := []uint32{
		0xb94003e0, // ldr w0, [sp]
		0xd28ef110, // movz x16, #0x7788
		0xf2aaacd0, // movk x16, #0x5566, lsl #16
		0xf2c66890, // movk x16, #0x3344, lsl #32
		0xf2e22450, // movk x16, #0x1122, lsl #48
		0xd63f0200, // blr x16
		0xb90013e0, // str w0, [sp, #16]
	}
	found := false
	for i := 0; i+len(seq) <= len(w); i++ {
		if assert.ObjectsAreEqual(seq, w[i:i+len(seq)]) {
			found = true
			break
		}
	}
	assert.True(t, found, "call sequence not found in %#x", w)
}

func TestAssembleRejects(t *testing.T) {
	be, err := NewBackend(ArchX86_64)
	require.NoError(t, err)

	withImport := buildFunc(t, func(b *ir.Builder, p []ir.Value) ir.Value {
		ref := b.Func().ImportFunction(ir.ExtFunc{Name: "rand", Sig: ir.NewSignature(ir.I32, 1, 1)})
		return b.Call(ref, p[0])[0]
	})
	_, err = be.Assemble(withImport, nil)
	assert.Error(t, err)

	twoBlocks := buildFunc(t, addParams)
	ir.NewBuilder(twoBlocks).CreateBlock()
	_, err = be.Assemble(twoBlocks, nil)
	assert.Error(t, err)

	tooWide := ir.NewFunc("wide", ir.NewSignature(ir.I32, 5, 1))
	b := ir.NewBuilder(tooWide)
	blk := b.CreateBlock()
	b.AppendBlockParamsForFunctionParams(blk)
	b.SwitchToBlock(blk)
	b.Return(b.BlockParams(blk)[4])
	require.NoError(t, b.Finalize())
	_, err = be.Assemble(tooWide, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestLargestFrame(t *testing.T) {
	fn := buildFunc(t, func(b *ir.Builder, p []ir.Value) ir.Value {
		v := p[0]
		for b.Func().NumValues() < ir.MaxValues {
			v = b.Iadd(v, p[1])
		}
		return v
	})
	require.Equal(t, ir.MaxValues, fn.NumValues())

	for _, arch := range []Arch{ArchX86_64, ArchARM64} {
		be, err := NewBackend(arch)
		require.NoError(t, err)
		_, err = be.Assemble(fn, nil)
		assert.NoError(t, err, arch.String())
	}
}

func TestLargestFrameARM64(t *testing.T) {
	fn := buildFunc(t, func(b *ir.Builder, p []ir.Value) ir.Value {
		v := p[0]
		for b.Func().NumValues() < ir.MaxValues {
			v = b.Iadd(v, p[1])
		}
		return v
	})
	be, err := NewBackend(ArchARM64)
	require.NoError(t, err)
	lines, err := be.Listing(fn, nil)
	require.NoError(t, err)

	var asm []string
	for _, l := range lines {
		asm = append(asm, l.Asm)
	}
	// 4096 slots of 4 bytes is 16384, exactly 4 << 12
	assert.Contains(t, asm, "sub sp, sp, #4, lsl #12")
	assert.Contains(t, asm, "add sp, sp, #4, lsl #12")
	assert.NotContains(t, asm, "sub sp, sp, #0")
	assert.Contains(t, asm, "str w9, [sp, #16380]")
	assert.Contains(t, asm, "ldr w0, [sp, #16380]")
}

func TestAdjustSP(t *testing.T) {
	tests := []struct {
		imm  uint32
		want []uint32
	}{
		{32, []uint32{0xd10083ff}},
		{0xfff, []uint32{0xd13fffff}},
		{0x1000, []uint32{0xd14007ff}},
		{0x1010, []uint32{0xd14007ff, 0xd10043ff}},
	}
	for _, tt := range tests {
		a := &ARM64{out: NewOut()}
		require.NoError(t, a.SubSP(tt.imm))
		code, err := a.out.Bytes()
		require.NoError(t, err)
		assert.Equal(t, tt.want, words(code), "sub sp, sp, #%#x", tt.imm)
	}

	a := &ARM64{out: NewOut()}
	require.NoError(t, a.AddSP(0x1010))
	code, err := a.out.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x914007ff, 0x910043ff}, words(code))

	assert.Error(t, a.SubSP(1<<24))
}

func TestListing(t *testing.T) {
	be, err := NewBackend(ArchX86_64)
	require.NoError(t, err)
	fn := buildFunc(t, addParams)

	lines, err := be.Listing(fn, nil)
	require.NoError(t, err)
	code, err := be.Assemble(fn, nil)
	require.NoError(t, err)

	require.NotEmpty(t, lines)
	assert.Equal(t, "push rbp", lines[0].Asm)
	assert.Equal(t, "ret", lines[len(lines)-1].Asm)

	var joined []byte
	for _, l := range lines {
		joined = append(joined, l.Bytes...)
	}
	assert.Equal(t, code, joined)
}

func TestOutLabels(t *testing.T) {
	o := NewOut()
	o.Write(0xeb)
	o.Rel8("end")
	o.WriteBytes([]byte{0x90, 0x90})
	require.NoError(t, o.Label("end"))
	code, err := o.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xeb, 0x02, 0x90, 0x90}, code)

	back := NewOut()
	require.NoError(t, back.Label("top"))
	back.Write(0xeb)
	back.Rel8("top")
	code, err = back.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xeb, 0xfe}, code)

	assert.Error(t, back.Label("top"))

	missing := NewOut()
	missing.Rel8("nowhere")
	_, err = missing.Bytes()
	assert.Error(t, err)

	far := NewOut()
	far.Rel8("far")
	far.WriteBytes(make([]byte, 200))
	require.NoError(t, far.Label("far"))
	_, err = far.Bytes()
	assert.Error(t, err)
}

func TestParseArch(t *testing.T) {
	for _, s := range []string{"amd64", "x86_64", "X86-64"} {
		a, err := ParseArch(s)
		require.NoError(t, err)
		assert.Equal(t, ArchX86_64, a)
	}
	for _, s := range []string{"arm64", "aarch64"} {
		a, err := ParseArch(s)
		require.NoError(t, err)
		assert.Equal(t, ArchARM64, a)
	}
	_, err := ParseArch("riscv64")
	assert.True(t, errors.Is(err, ErrUnsupportedArch))

	assert.Equal(t, "amd64", ArchX86_64.GoArch())
	assert.Equal(t, "aarch64", ArchARM64.String())

	_, err = NewBackend(ArchUnknown)
	assert.Error(t, err)
}

func TestGetRegister(t *testing.T) {
	r, err := GetRegister(ArchX86_64, "edi")
	require.NoError(t, err)
	assert.Equal(t, uint8(7), r.Encoding)
	assert.Equal(t, 32, r.Size)

	r, err = GetRegister(ArchARM64, "x16")
	require.NoError(t, err)
	assert.Equal(t, uint8(16), r.Encoding)

	assert.False(t, IsValidRegister(ArchARM64, "eax"))
	assert.False(t, IsValidRegister(ArchUnknown, "eax"))
}

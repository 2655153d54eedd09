package codegen

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xyproto/exprjit/ir"
)

// X86_64 emits System V x86-64 code. Slots are addressed relative to rbp,
// operands go through eax and ecx.
type X86_64 struct {
	out   *Out
	frame frame
	divs  int
}

func newX86_64(o *Out, fr frame) machine {
	return &X86_64{out: o, frame: fr}
}

func (x *X86_64) reg(name string) (uint8, error) {
	r, ok := x86_64Registers[name]
	if !ok {
		return 0, fmt.Errorf("unsupported x86_64 register: %s", name)
	}
	return r.Encoding, nil
}

// slot returns the rbp-relative displacement of v
func (x *X86_64) slot(v ir.Value) int32 {
	return -4 * (int32(v) + 1)
}

// Push emits push r64 (50+r)
func (x *X86_64) Push(src string) error {
	r, err := x.reg(src)
	if err != nil {
		return err
	}
	x.out.Mark("push %s", src)
	x.out.Write(0x50 + r)
	return nil
}

// MovRegToReg64 emits mov r/m64, r64 (REX.W 89 /r)
func (x *X86_64) MovRegToReg64(dest, src string) error {
	d, err := x.reg(dest)
	if err != nil {
		return err
	}
	s, err := x.reg(src)
	if err != nil {
		return err
	}
	x.out.Mark("mov %s, %s", dest, src)
	x.out.Write(0x48)
	x.out.Write(0x89)
	x.out.Write(0xc0 | s<<3 | d)
	return nil
}

// SubRspImm32 emits sub rsp, imm32 (REX.W 81 /5 id)
func (x *X86_64) SubRspImm32(imm uint32) {
	x.out.Mark("sub rsp, %d", imm)
	x.out.Write(0x48)
	x.out.Write(0x81)
	x.out.Write(0xec)
	x.out.Write4u(imm)
}

// rbpMem writes opcode with a [rbp+disp32] operand
func (x *X86_64) rbpMem(opcode, r uint8, disp int32) {
	x.out.Write(opcode)
	x.out.Write(0x80 | r<<3 | 5) // mod=10, rm=rbp
	x.out.Write4u(uint32(disp))
}

// StoreSlot emits mov [rbp+disp32], r32 (89 /r)
func (x *X86_64) StoreSlot(src string, v ir.Value) error {
	r, err := x.reg(src)
	if err != nil {
		return err
	}
	x.out.Mark("mov [rbp%+d], %s", x.slot(v), src)
	x.rbpMem(0x89, r, x.slot(v))
	return nil
}

// LoadSlot emits mov r32, [rbp+disp32] (8B /r)
func (x *X86_64) LoadSlot(dest string, v ir.Value) error {
	r, err := x.reg(dest)
	if err != nil {
		return err
	}
	x.out.Mark("mov %s, [rbp%+d]", dest, x.slot(v))
	x.rbpMem(0x8b, r, x.slot(v))
	return nil
}

// MovImm32 emits mov r32, imm32 (B8+r id)
func (x *X86_64) MovImm32(dest string, imm int32) error {
	r, err := x.reg(dest)
	if err != nil {
		return err
	}
	x.out.Mark("mov %s, %d", dest, imm)
	x.out.Write(0xb8 + r)
	x.out.Write4u(uint32(imm))
	return nil
}

// MovImm64 emits movabs r64, imm64 (REX.W B8+r io)
func (x *X86_64) MovImm64(dest string, imm uint64) error {
	r, err := x.reg(dest)
	if err != nil {
		return err
	}
	x.out.Mark("mov %s, %#x", dest, imm)
	x.out.Write(0x48)
	x.out.Write(0xb8 + r)
	x.out.Write8u(imm)
	return nil
}

// aluRR emits a two register 32-bit instruction "op dest, src" in the
// r/m32, r32 form
func (x *X86_64) aluRR(mnemonic string, opcode uint8, dest, src string) error {
	d, err := x.reg(dest)
	if err != nil {
		return err
	}
	s, err := x.reg(src)
	if err != nil {
		return err
	}
	x.out.Mark("%s %s, %s", mnemonic, dest, src)
	x.out.Write(opcode)
	x.out.Write(0xc0 | s<<3 | d)
	return nil
}

// Imul emits imul r32, r/m32 (0F AF /r)
func (x *X86_64) Imul(dest, src string) error {
	d, err := x.reg(dest)
	if err != nil {
		return err
	}
	s, err := x.reg(src)
	if err != nil {
		return err
	}
	x.out.Mark("imul %s, %s", dest, src)
	x.out.WriteBytes([]byte{0x0f, 0xaf, 0xc0 | d<<3 | s})
	return nil
}

// SeteZx emits sete al followed by movzx eax, al
func (x *X86_64) SeteZx() {
	x.out.Mark("sete al")
	x.out.WriteBytes([]byte{0x0f, 0x94, 0xc0})
	x.out.Mark("movzx eax, al")
	x.out.WriteBytes([]byte{0x0f, 0xb6, 0xc0})
}

// Sdiv divides eax by ecx into eax. A zero divisor gives 0 and
// MinInt32 / -1 gives MinInt32, so idiv never faults.
func (x *X86_64) Sdiv() error {
	x.divs++
	zero := fmt.Sprintf(".div%d.zero", x.divs)
	neg := fmt.Sprintf(".div%d.neg", x.divs)
	done := fmt.Sprintf(".div%d.done", x.divs)

	if err := x.aluRR("test", 0x85, "ecx", "ecx"); err != nil {
		return err
	}
	x.out.Mark("jz %s", zero)
	x.out.Write(0x74)
	x.out.Rel8(zero)
	x.out.Mark("cmp ecx, -1")
	x.out.WriteBytes([]byte{0x83, 0xf9, 0xff})
	x.out.Mark("je %s", neg)
	x.out.Write(0x74)
	x.out.Rel8(neg)
	x.out.Mark("cdq")
	x.out.Write(0x99)
	x.out.Mark("idiv ecx")
	x.out.WriteBytes([]byte{0xf7, 0xf9})
	x.out.Mark("jmp %s", done)
	x.out.Write(0xeb)
	x.out.Rel8(done)

	if err := x.out.Label(neg); err != nil {
		return err
	}
	x.out.Mark("neg eax")
	x.out.WriteBytes([]byte{0xf7, 0xd8})
	x.out.Mark("jmp %s", done)
	x.out.Write(0xeb)
	x.out.Rel8(done)

	if err := x.out.Label(zero); err != nil {
		return err
	}
	if err := x.aluRR("xor", 0x31, "eax", "eax"); err != nil {
		return err
	}
	return x.out.Label(done)
}

// CallReg emits call r64 (FF /2)
func (x *X86_64) CallReg(target string) error {
	r, err := x.reg(target)
	if err != nil {
		return err
	}
	x.out.Mark("call %s", target)
	x.out.Write(0xff)
	x.out.Write(0xd0 | r)
	return nil
}

// Epilogue emits leave; ret
func (x *X86_64) Epilogue() {
	x.out.Mark("leave")
	x.out.Write(0xc9)
	x.out.Mark("ret")
	x.out.Write(0xc3)
}

func (x *X86_64) prologue(params []ir.Value) error {
	if err := x.Push("rbp"); err != nil {
		return err
	}
	if err := x.MovRegToReg64("rbp", "rsp"); err != nil {
		return err
	}
	if x.frame.size > 0 {
		x.SubRspImm32(uint32(x.frame.size))
	}
	for i, p := range params {
		if err := x.StoreSlot(x86_64ArgRegs[i], p); err != nil {
			return err
		}
	}
	return nil
}

func (x *X86_64) iconst(dst ir.Value, imm int32) error {
	if err := x.MovImm32("eax", imm); err != nil {
		return err
	}
	return x.StoreSlot("eax", dst)
}

func (x *X86_64) binary(op ir.Opcode, dst, a, b ir.Value) error {
	if err := x.LoadSlot("eax", a); err != nil {
		return err
	}
	if err := x.LoadSlot("ecx", b); err != nil {
		return err
	}
	var err error
	switch op {
	case ir.OpIadd:
		err = x.aluRR("add", 0x01, "eax", "ecx")
	case ir.OpIsub:
		err = x.aluRR("sub", 0x29, "eax", "ecx")
	case ir.OpImul:
		err = x.Imul("eax", "ecx")
	case ir.OpSdiv:
		err = x.Sdiv()
	case ir.OpIcmpEq:
		err = x.aluRR("cmp", 0x39, "eax", "ecx")
		x.SeteZx()
	default:
		err = errors.Wrapf(ErrUnsupported, "x86_64 %s", op)
	}
	if err != nil {
		return err
	}
	return x.StoreSlot("eax", dst)
}

func (x *X86_64) call(addr uintptr, args, results []ir.Value) error {
	for i, a := range args {
		if err := x.LoadSlot(x86_64ArgRegs[i], a); err != nil {
			return err
		}
	}
	if err := x.MovImm64("rax", uint64(addr)); err != nil {
		return err
	}
	if err := x.CallReg("rax"); err != nil {
		return err
	}
	if len(results) == 1 {
		return x.StoreSlot("eax", results[0])
	}
	return nil
}

func (x *X86_64) ret(v ir.Value) error {
	if err := x.LoadSlot("eax", v); err != nil {
		return err
	}
	x.Epilogue()
	return nil
}

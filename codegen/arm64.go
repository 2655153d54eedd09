package codegen

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xyproto/exprjit/ir"
)

// ARM64 instruction encoding
// ARM64 uses fixed 32-bit little-endian instructions

// ARM64 emits AAPCS64 code. Slots are addressed relative to sp after the
// frame is allocated, operands go through w9 and w10.
type ARM64 struct {
	out   *Out
	frame frame
}

func newARM64(o *Out, fr frame) machine {
	return &ARM64{out: o, frame: fr}
}

// encodeInstr writes a 32-bit ARM64 instruction in little-endian format
func (a *ARM64) encodeInstr(instr uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], instr)
	a.out.WriteBytes(buf[:])
}

func (a *ARM64) reg(name string) (uint32, error) {
	r, ok := arm64Registers[name]
	if !ok {
		return 0, fmt.Errorf("invalid ARM64 register: %s", name)
	}
	return uint32(r.Encoding), nil
}

func (a *ARM64) regs(names ...string) ([]uint32, error) {
	out := make([]uint32, len(names))
	for i, name := range names {
		r, err := a.reg(name)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// slot returns the sp-relative byte offset of v
func (a *ARM64) slot(v ir.Value) uint32 {
	return 4 * uint32(v)
}

// StpFramePre emits stp x29, x30, [sp, #-16]!
func (a *ARM64) StpFramePre() {
	a.out.Mark("stp x29, x30, [sp, #-16]!")
	a.encodeInstr(0xa9bf7bfd)
}

// MovFPFromSP emits mov x29, sp (add x29, sp, #0)
func (a *ARM64) MovFPFromSP() {
	a.out.Mark("mov x29, sp")
	a.encodeInstr(0x910003fd)
}

// SubSP emits sub sp, sp, #imm, as a lsl #12 part and a low part when
// imm does not fit in 12 bits
// opcode: 1101000100 | sh | imm12 | Rn | Rd
func (a *ARM64) SubSP(imm uint32) error {
	return a.adjustSP("sub", 0xd10003ff, imm)
}

// AddSP emits add sp, sp, #imm
func (a *ARM64) AddSP(imm uint32) error {
	return a.adjustSP("add", 0x910003ff, imm)
}

func (a *ARM64) adjustSP(mnemonic string, opcode, imm uint32) error {
	hi, lo := imm>>12, imm&0xfff
	if hi > 0xfff {
		return fmt.Errorf("immediate value too large for %s: %d", mnemonic, imm)
	}
	if hi != 0 {
		a.out.Mark("%s sp, sp, #%d, lsl #12", mnemonic, hi)
		a.encodeInstr(opcode | 1<<22 | hi<<10)
	}
	if lo != 0 || hi == 0 {
		a.out.Mark("%s sp, sp, #%d", mnemonic, lo)
		a.encodeInstr(opcode | lo<<10)
	}
	return nil
}

// StrSlot emits str Wt, [sp, #off] (unsigned offset, scaled by 4)
func (a *ARM64) StrSlot(src string, v ir.Value) error {
	rt, err := a.reg(src)
	if err != nil {
		return err
	}
	off := a.slot(v)
	if off/4 > 0xfff {
		return fmt.Errorf("offset too large for STR: %d", off)
	}
	a.out.Mark("str %s, [sp, #%d]", src, off)
	a.encodeInstr(0xb9000000 | (off/4)<<10 | 31<<5 | rt)
	return nil
}

// LdrSlot emits ldr Wt, [sp, #off]
func (a *ARM64) LdrSlot(dest string, v ir.Value) error {
	rt, err := a.reg(dest)
	if err != nil {
		return err
	}
	off := a.slot(v)
	if off/4 > 0xfff {
		return fmt.Errorf("offset too large for LDR: %d", off)
	}
	a.out.Mark("ldr %s, [sp, #%d]", dest, off)
	a.encodeInstr(0xb9400000 | (off/4)<<10 | 31<<5 | rt)
	return nil
}

// MovImm32 loads a 32-bit constant with movz and, if the upper half is
// not zero, movk lsl #16
func (a *ARM64) MovImm32(dest string, imm int32) error {
	rd, err := a.reg(dest)
	if err != nil {
		return err
	}
	u := uint32(imm)
	lo, hi := u&0xffff, u>>16
	a.out.Mark("movz %s, #%#x", dest, lo)
	a.encodeInstr(0x52800000 | lo<<5 | rd)
	if hi != 0 {
		a.out.Mark("movk %s, #%#x, lsl #16", dest, hi)
		a.encodeInstr(0x72a00000 | hi<<5 | rd)
	}
	return nil
}

// MovImm64 loads a 64-bit address with movz and three movk, always four
// instructions so call sites have a fixed size
func (a *ARM64) MovImm64(dest string, imm uint64) error {
	rd, err := a.reg(dest)
	if err != nil {
		return err
	}
	a.out.Mark("movz %s, #%#x", dest, imm&0xffff)
	a.encodeInstr(0xd2800000 | uint32(imm&0xffff)<<5 | rd)
	for hw := uint32(1); hw < 4; hw++ {
		part := uint32(imm>>(16*hw)) & 0xffff
		a.out.Mark("movk %s, #%#x, lsl #%d", dest, part, 16*hw)
		a.encodeInstr(0xf2800000 | hw<<21 | part<<5 | rd)
	}
	return nil
}

// threeReg emits a data-processing (register) instruction "op Wd, Wn, Wm"
func (a *ARM64) threeReg(mnemonic string, base uint32, dest, n, m string) error {
	r, err := a.regs(dest, n, m)
	if err != nil {
		return err
	}
	a.out.Mark("%s %s, %s, %s", mnemonic, dest, n, m)
	a.encodeInstr(base | r[2]<<16 | r[1]<<5 | r[0])
	return nil
}

// CmpReg emits cmp Wn, Wm (subs wzr, Wn, Wm)
func (a *ARM64) CmpReg(n, m string) error {
	r, err := a.regs(n, m)
	if err != nil {
		return err
	}
	a.out.Mark("cmp %s, %s", n, m)
	a.encodeInstr(0x6b00001f | r[1]<<16 | r[0]<<5)
	return nil
}

// CsetEq emits cset Wd, eq (csinc Wd, wzr, wzr, ne)
func (a *ARM64) CsetEq(dest string) error {
	rd, err := a.reg(dest)
	if err != nil {
		return err
	}
	a.out.Mark("cset %s, eq", dest)
	a.encodeInstr(0x1a9f17e0 | rd)
	return nil
}

// Blr emits blr Xn
func (a *ARM64) Blr(target string) error {
	rn, err := a.reg(target)
	if err != nil {
		return err
	}
	a.out.Mark("blr %s", target)
	a.encodeInstr(0xd63f0000 | rn<<5)
	return nil
}

// Epilogue frees the frame and returns
func (a *ARM64) Epilogue() error {
	if a.frame.size > 0 {
		if err := a.AddSP(uint32(a.frame.size)); err != nil {
			return err
		}
	}
	a.out.Mark("ldp x29, x30, [sp], #16")
	a.encodeInstr(0xa8c17bfd)
	a.out.Mark("ret")
	a.encodeInstr(0xd65f03c0)
	return nil
}

func (a *ARM64) prologue(params []ir.Value) error {
	a.StpFramePre()
	a.MovFPFromSP()
	if a.frame.size > 0 {
		if err := a.SubSP(uint32(a.frame.size)); err != nil {
			return err
		}
	}
	for i, p := range params {
		if err := a.StrSlot(arm64ArgRegs[i], p); err != nil {
			return err
		}
	}
	return nil
}

func (a *ARM64) iconst(dst ir.Value, imm int32) error {
	if err := a.MovImm32("w9", imm); err != nil {
		return err
	}
	return a.StrSlot("w9", dst)
}

func (a *ARM64) binary(op ir.Opcode, dst, x, y ir.Value) error {
	if err := a.LdrSlot("w9", x); err != nil {
		return err
	}
	if err := a.LdrSlot("w10", y); err != nil {
		return err
	}
	var err error
	switch op {
	case ir.OpIadd:
		err = a.threeReg("add", 0x0b000000, "w9", "w9", "w10")
	case ir.OpIsub:
		err = a.threeReg("sub", 0x4b000000, "w9", "w9", "w10")
	case ir.OpImul:
		err = a.threeReg("mul", 0x1b007c00, "w9", "w9", "w10")
	case ir.OpSdiv:
		// sdiv yields 0 for a zero divisor and wraps MinInt32 / -1
		err = a.threeReg("sdiv", 0x1ac00c00, "w9", "w9", "w10")
	case ir.OpIcmpEq:
		if err = a.CmpReg("w9", "w10"); err == nil {
			err = a.CsetEq("w9")
		}
	default:
		err = errors.Wrapf(ErrUnsupported, "arm64 %s", op)
	}
	if err != nil {
		return err
	}
	return a.StrSlot("w9", dst)
}

func (a *ARM64) call(addr uintptr, args, results []ir.Value) error {
	for i, v := range args {
		if err := a.LdrSlot(arm64ArgRegs[i], v); err != nil {
			return err
		}
	}
	if err := a.MovImm64("x16", uint64(addr)); err != nil {
		return err
	}
	if err := a.Blr("x16"); err != nil {
		return err
	}
	if len(results) == 1 {
		return a.StrSlot("w0", results[0])
	}
	return nil
}

func (a *ARM64) ret(v ir.Value) error {
	if err := a.LdrSlot("w0", v); err != nil {
		return err
	}
	return a.Epilogue()
}

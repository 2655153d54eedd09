// Package codegen assembles ir functions into machine code for x86-64 and
// arm64. Code is position independent: calls to imported functions go
// through absolute addresses loaded into a scratch register.
package codegen

import (
	"github.com/pkg/errors"
	"github.com/xyproto/exprjit/ir"
)

// Backend turns a verified ir.Func into machine code. imports holds one
// absolute address per entry of fn.Imports(), in FuncRef order.
type Backend interface {
	Arch() Arch
	Assemble(fn *ir.Func, imports []uintptr) ([]byte, error)
	Listing(fn *ir.Func, imports []uintptr) ([]Line, error)
}

// ErrUnsupported is returned for functions a backend cannot lower
var ErrUnsupported = errors.New("unsupported by backend")

// machine is the per-architecture instruction selection used by backend.
// Every IR value lives in its own frame slot.
type machine interface {
	prologue(params []ir.Value) error
	iconst(dst ir.Value, imm int32) error
	binary(op ir.Opcode, dst, x, y ir.Value) error
	call(addr uintptr, args, results []ir.Value) error
	ret(v ir.Value) error
}

type backend struct {
	arch    Arch
	newMach func(o *Out, fr frame) machine
	maxArgs int
}

// NewBackend returns the backend for arch
func NewBackend(arch Arch) (Backend, error) {
	switch arch {
	case ArchX86_64:
		return &backend{arch: arch, newMach: newX86_64, maxArgs: len(x86_64ArgRegs)}, nil
	case ArchARM64:
		return &backend{arch: arch, newMach: newARM64, maxArgs: len(arm64ArgRegs)}, nil
	}
	return nil, errors.Wrap(ErrUnsupportedArch, arch.String())
}

// NewHostBackend returns the backend for the running process
func NewHostBackend() (Backend, error) {
	arch, err := HostArch()
	if err != nil {
		return nil, err
	}
	return NewBackend(arch)
}

func (b *backend) Arch() Arch {
	return b.arch
}

func (b *backend) Assemble(fn *ir.Func, imports []uintptr) ([]byte, error) {
	_, code, err := b.assemble(fn, imports)
	return code, err
}

func (b *backend) Listing(fn *ir.Func, imports []uintptr) ([]Line, error) {
	o, code, err := b.assemble(fn, imports)
	if err != nil {
		return nil, err
	}
	return o.Lines(code), nil
}

func (b *backend) assemble(fn *ir.Func, imports []uintptr) (*Out, []byte, error) {
	if err := b.check(fn, imports); err != nil {
		return nil, nil, errors.Wrapf(err, "assemble %s for %s", fn.Name, b.arch)
	}
	o := NewOut()
	m := b.newMach(o, newFrame(fn.NumValues()))
	blk := fn.Blocks()[0]

	if err := m.prologue(fn.BlockParams(blk)); err != nil {
		return nil, nil, err
	}
	for _, inst := range fn.Insts(blk) {
		var err error
		switch inst.Op {
		case ir.OpIconst:
			err = m.iconst(inst.Results[0], int32(inst.Imm))
		case ir.OpIadd, ir.OpIsub, ir.OpImul, ir.OpSdiv, ir.OpIcmpEq:
			err = m.binary(inst.Op, inst.Results[0], inst.Args[0], inst.Args[1])
		case ir.OpCall:
			err = m.call(imports[inst.Func], inst.Args, inst.Results)
		case ir.OpReturn:
			err = m.ret(inst.Args[0])
		default:
			err = errors.Wrapf(ErrUnsupported, "opcode %s", inst.Op)
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "assemble %s for %s", fn.Name, b.arch)
		}
	}
	code, err := o.Bytes()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "assemble %s for %s", fn.Name, b.arch)
	}
	return o, code, nil
}

func (b *backend) check(fn *ir.Func, imports []uintptr) error {
	if err := ir.Verify(fn); err != nil {
		return err
	}
	if n := len(fn.Blocks()); n != 1 {
		return errors.Wrapf(ErrUnsupported, "%d blocks, only straight-line functions are supported", n)
	}
	if len(fn.Sig.Params) > b.maxArgs {
		return errors.Wrapf(ErrUnsupported, "%d parameters, at most %d", len(fn.Sig.Params), b.maxArgs)
	}
	if len(fn.Sig.Returns) != 1 {
		return errors.Wrapf(ErrUnsupported, "%d results, exactly one is supported", len(fn.Sig.Returns))
	}
	if len(imports) != len(fn.Imports()) {
		return errors.Errorf("%d import addresses for %d imported functions", len(imports), len(fn.Imports()))
	}
	for _, ext := range fn.Imports() {
		if len(ext.Sig.Params) > b.maxArgs || len(ext.Sig.Returns) > 1 {
			return errors.Wrapf(ErrUnsupported, "import %s%s", ext.Name, ext.Sig)
		}
	}
	return nil
}

// frame gives every value a 4-byte slot. size is rounded up to 16 so the
// stack stays aligned at call sites.
type frame struct {
	slots int
	size  int
}

func newFrame(values int) frame {
	return frame{slots: values, size: (values*4 + 15) &^ 15}
}

// Package ir is the intermediate representation the JIT lowers expressions
// into and the codegen backends assemble: typed values produced by
// instructions inside blocks of one function, plus the external functions
// that function calls.
package ir

import (
	"fmt"
	"strings"
)

// MaxValues bounds the number of values in one function. Backends give each
// value a 4-byte frame slot, and arm64 reaches a slot with a scaled 12-bit
// offset from sp.
const MaxValues = 4096

// Type is the type of an IR value
type Type uint8

const (
	I32 Type = iota + 1
)

func (t Type) String() string {
	switch t {
	case I32:
		return "i32"
	default:
		return fmt.Sprintf("type%d", uint8(t))
	}
}

// Signature is a function type
type Signature struct {
	Params  []Type
	Returns []Type
}

// NewSignature returns a signature with n parameters and m results, all of type t
func NewSignature(t Type, n, m int) Signature {
	sig := Signature{}
	for i := 0; i < n; i++ {
		sig.Params = append(sig.Params, t)
	}
	for i := 0; i < m; i++ {
		sig.Returns = append(sig.Returns, t)
	}
	return sig
}

// Equal reports whether two signatures have the same parameter and return types
func (s Signature) Equal(o Signature) bool {
	if len(s.Params) != len(o.Params) || len(s.Returns) != len(o.Returns) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range s.Returns {
		if s.Returns[i] != o.Returns[i] {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	join := func(ts []Type) string {
		parts := make([]string, len(ts))
		for i, t := range ts {
			parts[i] = t.String()
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("(%s) -> (%s)", join(s.Params), join(s.Returns))
}

// ExtFunc is an external function a Func may call
type ExtFunc struct {
	Name string
	Sig  Signature
}

// Value, Block and FuncRef are indexes into the tables of one Func
type (
	Value   uint32
	Block   uint32
	FuncRef uint32
)

func (v Value) String() string   { return fmt.Sprintf("v%d", uint32(v)) }
func (b Block) String() string   { return fmt.Sprintf("block%d", uint32(b)) }
func (f FuncRef) String() string { return fmt.Sprintf("fn%d", uint32(f)) }

// Opcode selects what an instruction does
type Opcode uint8

const (
	OpIconst Opcode = iota + 1
	OpIadd
	OpIsub
	OpImul
	OpSdiv
	OpIcmpEq
	OpCall
	OpReturn
)

func (op Opcode) String() string {
	switch op {
	case OpIconst:
		return "iconst"
	case OpIadd:
		return "iadd"
	case OpIsub:
		return "isub"
	case OpImul:
		return "imul"
	case OpSdiv:
		return "sdiv"
	case OpIcmpEq:
		return "icmp_eq"
	case OpCall:
		return "call"
	case OpReturn:
		return "return"
	default:
		return fmt.Sprintf("op%d", uint8(op))
	}
}

// IsTerminator reports whether op ends a block
func (op Opcode) IsTerminator() bool {
	return op == OpReturn
}

// Inst is one instruction. Imm is used by iconst, Func by call.
type Inst struct {
	Op      Opcode
	Type    Type
	Args    []Value
	Imm     int64
	Func    FuncRef
	Results []Value
}

type blockData struct {
	params []Value
	insts  []Inst
	sealed bool
}

type valueDef struct {
	typ   Type
	block Block
	param bool
}

// Func is one function body
type Func struct {
	Name    string
	Sig     Signature
	imports []ExtFunc
	blocks  []*blockData
	values  []valueDef
}

// NewFunc returns an empty function
func NewFunc(name string, sig Signature) *Func {
	return &Func{Name: name, Sig: sig}
}

// ImportFunction makes ext callable from f and returns its reference
func (f *Func) ImportFunction(ext ExtFunc) FuncRef {
	f.imports = append(f.imports, ext)
	return FuncRef(len(f.imports) - 1)
}

// Imports returns the external functions in FuncRef order
func (f *Func) Imports() []ExtFunc {
	return f.imports
}

// Import returns the external function behind ref
func (f *Func) Import(ref FuncRef) (ExtFunc, bool) {
	if int(ref) >= len(f.imports) {
		return ExtFunc{}, false
	}
	return f.imports[ref], true
}

// Blocks returns all blocks in creation order
func (f *Func) Blocks() []Block {
	blocks := make([]Block, len(f.blocks))
	for i := range f.blocks {
		blocks[i] = Block(i)
	}
	return blocks
}

// BlockParams returns the parameters of b
func (f *Func) BlockParams(b Block) []Value {
	return f.blocks[b].params
}

// Insts returns the instructions of b
func (f *Func) Insts(b Block) []Inst {
	return f.blocks[b].insts
}

// Sealed reports whether no more predecessors can be added to b
func (f *Func) Sealed(b Block) bool {
	return f.blocks[b].sealed
}

// NumValues returns how many values f defines
func (f *Func) NumValues() int {
	return len(f.values)
}

// ValueType returns the type of v
func (f *Func) ValueType(v Value) Type {
	return f.values[v].typ
}

func (f *Func) newValue(t Type, b Block, param bool) Value {
	f.values = append(f.values, valueDef{typ: t, block: b, param: param})
	return Value(len(f.values) - 1)
}

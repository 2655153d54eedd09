package expr

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// NumInputs is the number of positional arguments every compiled function takes
const NumInputs = 4

// Expr is a node of the expression tree.
// The concrete types are Num, Input, BinOp and Call.
type Expr interface {
	String() string
	exprNode()
}

// Op is a binary operator
type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
	Eq
)

// String returns the source form of the operator
func (op Op) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Eq:
		return "=="
	default:
		return "Op(" + strconv.Itoa(int(op)) + ")"
	}
}

// OpFromString maps operator text to an Op
func OpFromString(s string) (Op, bool) {
	switch s {
	case "+":
		return Add, true
	case "-":
		return Sub, true
	case "*":
		return Mul, true
	case "/":
		return Div, true
	case "==":
		return Eq, true
	}
	return 0, false
}

// Builtin is one of the fixed functions callable from source.
// The implementations live in package builtins, the linkage in package jit.
type Builtin int

const (
	Print Builtin = iota
	Rand
)

// Builtins lists every built-in, in declaration order
var Builtins = []Builtin{Print, Rand}

// String returns the name used in source and as the linked symbol
func (b Builtin) String() string {
	switch b {
	case Print:
		return "print"
	case Rand:
		return "rand"
	default:
		return "Builtin(" + strconv.Itoa(int(b)) + ")"
	}
}

// BuiltinFromString maps a built-in name to a Builtin
func BuiltinFromString(name string) (Builtin, bool) {
	switch name {
	case "print":
		return Print, true
	case "rand":
		return Rand, true
	}
	return 0, false
}

// Num is an integer literal
type Num struct {
	Value int64
}

// Input reads positional argument Index
type Input struct {
	Index uint64
}

// BinOp applies Op to LHS and RHS
type BinOp struct {
	Op  Op
	LHS Expr
	RHS Expr
}

// Call invokes a built-in with a single argument
type Call struct {
	Builtin Builtin
	Arg     Expr
}

func (Num) exprNode()   {}
func (Input) exprNode() {}
func (BinOp) exprNode() {}
func (Call) exprNode()  {}

func (n Num) String() string   { return strconv.FormatInt(n.Value, 10) }
func (i Input) String() string { return "$" + strconv.FormatUint(i.Index, 10) }

func (b BinOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.LHS, b.Op, b.RHS)
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%s)", c.Builtin, c.Arg)
}

// NewInput returns Input{index}, or an InputRangeError if index is not below NumInputs
func NewInput(index uint64) (Input, error) {
	if index >= NumInputs {
		return Input{}, &InputRangeError{Index: index}
	}
	return Input{Index: index}, nil
}

// Validate walks e and reports the first node that cannot be compiled:
// an out of range Input, an unknown operator or built-in, or a nil child.
func Validate(e Expr) error {
	switch n := e.(type) {
	case Num:
		return nil
	case Input:
		if n.Index >= NumInputs {
			return &InputRangeError{Index: n.Index}
		}
		return nil
	case BinOp:
		if _, ok := OpFromString(n.Op.String()); !ok {
			return errors.Errorf("unknown operator %s", n.Op)
		}
		if err := Validate(n.LHS); err != nil {
			return err
		}
		return Validate(n.RHS)
	case Call:
		if _, ok := BuiltinFromString(n.Builtin.String()); !ok {
			return errors.Errorf("unknown built-in %s", n.Builtin)
		}
		return Validate(n.Arg)
	case nil:
		return errors.Errorf("missing expression")
	default:
		return errors.Errorf("unknown expression node %T", e)
	}
}

// HasCall reports whether e contains a built-in call
func HasCall(e Expr) bool {
	switch n := e.(type) {
	case BinOp:
		return HasCall(n.LHS) || HasCall(n.RHS)
	case Call:
		return true
	}
	return false
}

package expr

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Build converts a parse tree into an Expr, one rule to one constructor.
// It is the only consumer of Node, so a rule it does not know means the
// grammar and the builder went out of sync.
func Build(n *Node) (Expr, error) {
	if n == nil {
		return nil, &ParseError{Kind: KindUnknownRule, Line: 1, Col: 1, Msg: "missing parse tree node"}
	}
	switch n.Rule {
	case RuleRoot:
		if len(n.Children) != 1 {
			return nil, nodeError(n, KindSyntax, "root must have exactly one child, has %d", len(n.Children))
		}
		return Build(n.Children[0])

	case RuleNum:
		v, err := strconv.ParseInt(n.Text, 10, 64)
		if err != nil {
			pe := nodeError(n, KindInvalidLiteral, "number %s does not fit in 64 bits", n.Text)
			pe.Err = errors.Wrap(err, "parse number")
			return nil, pe
		}
		return Num{Value: v}, nil

	case RuleInput:
		index, err := strconv.ParseUint(n.Text[1:], 10, 64)
		if err != nil {
			pe := nodeError(n, KindInvalidLiteral, "input index %s does not fit in 64 bits", n.Text)
			pe.Err = errors.Wrap(err, "parse index")
			return nil, pe
		}
		in, err := NewInput(index)
		if err != nil {
			pe := nodeError(n, KindInputRange, "%s is not a valid input", n.Text)
			pe.Err = err
			return nil, pe
		}
		return in, nil

	case RuleCalc:
		if len(n.Children) != 3 {
			return nil, nodeError(n, KindSyntax, "calc must have 3 children, has %d", len(n.Children))
		}
		lhs, err := Build(n.Children[0])
		if err != nil {
			return nil, err
		}
		opNode := n.Children[1]
		op, ok := OpFromString(opNode.Text)
		if !ok {
			return nil, nodeError(opNode, KindUnknownSymbol, "unknown operator %q", opNode.Text)
		}
		rhs, err := Build(n.Children[2])
		if err != nil {
			return nil, err
		}
		return BinOp{Op: op, LHS: lhs, RHS: rhs}, nil

	case RuleCall:
		if len(n.Children) != 2 {
			return nil, nodeError(n, KindSyntax, "call must have 2 children, has %d", len(n.Children))
		}
		ident := n.Children[0]
		b, ok := BuiltinFromString(ident.Text)
		if !ok {
			return nil, nodeError(ident, KindUnknownSymbol, "unknown built-in %q, expected print or rand", ident.Text)
		}
		arg, err := Build(n.Children[1])
		if err != nil {
			return nil, err
		}
		return Call{Builtin: b, Arg: arg}, nil
	}
	return nil, nodeError(n, KindUnknownRule, "unknown rule %s", n.Rule)
}

func nodeError(n *Node, kind ErrorKind, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Kind:  kind,
		Pos:   n.Pos,
		Line:  n.Line,
		Col:   n.Col,
		Token: n.Text,
		Msg:   fmt.Sprintf(format, args...),
	}
}

package expr

import "fmt"

// Rule names a production of the grammar:
//
//	root    := calc | operand
//	calc    := operand op operand
//	operand := "(" root ")" | call | input | num
//	op      := "+" | "-" | "*" | "/" | "=="
//	call    := ident "(" root ")"
//	input   := "$" digits
//	num     := "-"? digits
//
// operand is not a node of its own; its alternatives appear directly.
type Rule int

const (
	RuleRoot Rule = iota
	RuleCalc
	RuleOp
	RuleCall
	RuleIdent
	RuleInput
	RuleNum
)

func (r Rule) String() string {
	switch r {
	case RuleRoot:
		return "root"
	case RuleCalc:
		return "calc"
	case RuleOp:
		return "op"
	case RuleCall:
		return "call"
	case RuleIdent:
		return "ident"
	case RuleInput:
		return "input"
	case RuleNum:
		return "num"
	default:
		return fmt.Sprintf("Rule(%d)", int(r))
	}
}

// Node is a node of the concrete parse tree.
// Text is the source text the node spans.
type Node struct {
	Rule     Rule
	Text     string
	Pos      int
	Line     int
	Col      int
	Children []*Node
}

// MaxDepth is how deeply parentheses and calls may nest
const MaxDepth = 10000

// grammar is a recursive descent recognizer with one token of lookahead
type grammar struct {
	source  string
	lexer   *Lexer
	current Token
	peek    Token
	depth   int
}

func newGrammar(source string) *grammar {
	g := &grammar{source: source, lexer: NewLexer(source)}
	g.nextToken()
	g.nextToken()
	return g
}

func (g *grammar) nextToken() {
	g.current = g.peek
	g.peek = g.lexer.NextToken()
}

func (g *grammar) errorf(kind ErrorKind, tok Token, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Kind:  kind,
		Pos:   tok.Pos,
		Line:  tok.Line,
		Col:   tok.Col,
		Token: tok.Value,
		Msg:   fmt.Sprintf(format, args...),
	}
}

func (g *grammar) unexpected(want string) *ParseError {
	tok := g.current
	if tok.Type == TokenEOF {
		return g.errorf(KindSyntax, tok, "expected %s, found end of input", want)
	}
	return g.errorf(KindSyntax, tok, "expected %s, found %q", want, tok.Value)
}

func (g *grammar) leaf(rule Rule, tok Token) *Node {
	return &Node{Rule: rule, Text: tok.Value, Pos: tok.Pos, Line: tok.Line, Col: tok.Col}
}

// span fills in Text for a node covering source[start:end]
func (g *grammar) span(n *Node, end int) *Node {
	n.Text = g.source[n.Pos:end]
	return n
}

// ParseTree recognizes source and returns its concrete parse tree, rooted at a RuleRoot node
func ParseTree(source string) (*Node, error) {
	g := newGrammar(source)
	root, err := g.root()
	if err != nil {
		return nil, err
	}
	if g.current.Type != TokenEOF {
		if g.current.Type == TokenOp {
			return nil, g.errorf(KindSyntax, g.current, "unexpected operator %q, use parentheses to combine more than two operands", g.current.Value)
		}
		return nil, g.unexpected("end of input")
	}
	return root, nil
}

// root := calc | operand
func (g *grammar) root() (*Node, error) {
	start := g.current
	g.depth++
	defer func() { g.depth-- }()
	if g.depth > MaxDepth {
		return nil, g.errorf(KindSyntax, start, "expression nested deeper than %d levels", MaxDepth)
	}
	lhs, end, err := g.operand()
	if err != nil {
		return nil, err
	}
	node := &Node{Rule: RuleRoot, Pos: start.Pos, Line: start.Line, Col: start.Col}
	if g.current.Type != TokenOp {
		node.Children = []*Node{lhs}
		return g.span(node, end), nil
	}

	// calc := operand op operand
	op := g.leaf(RuleOp, g.current)
	g.nextToken()
	rhs, end, err := g.operand()
	if err != nil {
		return nil, err
	}
	calc := &Node{Rule: RuleCalc, Pos: start.Pos, Line: start.Line, Col: start.Col, Children: []*Node{lhs, op, rhs}}
	node.Children = []*Node{g.span(calc, end)}
	return g.span(node, end), nil
}

// operand returns the node and the byte offset just past it
func (g *grammar) operand() (*Node, int, error) {
	tok := g.current
	switch tok.Type {
	case TokenLParen:
		g.nextToken()
		inner, err := g.root()
		if err != nil {
			return nil, 0, err
		}
		if g.current.Type != TokenRParen {
			if g.current.Type == TokenOp {
				return nil, 0, g.errorf(KindSyntax, g.current, "unexpected operator %q, use parentheses to combine more than two operands", g.current.Value)
			}
			return nil, 0, g.unexpected("')'")
		}
		end := g.current.Pos + 1
		g.nextToken()
		return inner, end, nil

	case TokenIdent:
		return g.call()

	case TokenInput:
		g.nextToken()
		return g.leaf(RuleInput, tok), tok.Pos + len(tok.Value), nil

	case TokenNumber:
		g.nextToken()
		return g.leaf(RuleNum, tok), tok.Pos + len(tok.Value), nil

	case TokenOp:
		// num := "-" digits, with the sign glued to the digits
		if tok.Value == "-" && g.peek.Type == TokenNumber && g.peek.Pos == tok.Pos+1 {
			digits := g.peek
			g.nextToken()
			g.nextToken()
			n := g.leaf(RuleNum, tok)
			n.Text = "-" + digits.Value
			return n, digits.Pos + len(digits.Value), nil
		}
		return nil, 0, g.errorf(KindSyntax, tok, "expected an operand, found operator %q", tok.Value)

	case TokenIllegal:
		if tok.Value == "$" {
			return nil, 0, g.errorf(KindSyntax, tok, "expected digits after '$'")
		}
		return nil, 0, g.errorf(KindSyntax, tok, "illegal character %q", tok.Value)
	}
	return nil, 0, g.unexpected("an operand")
}

// call := ident "(" root ")"
func (g *grammar) call() (*Node, int, error) {
	name := g.current
	if g.peek.Type != TokenLParen {
		g.nextToken()
		return nil, 0, g.unexpected(fmt.Sprintf("'(' after %q", name.Value))
	}
	g.nextToken()
	g.nextToken()
	arg, err := g.root()
	if err != nil {
		return nil, 0, err
	}
	if g.current.Type != TokenRParen {
		if g.current.Type == TokenOp {
			return nil, 0, g.errorf(KindSyntax, g.current, "unexpected operator %q, use parentheses to combine more than two operands", g.current.Value)
		}
		return nil, 0, g.unexpected("')'")
	}
	end := g.current.Pos + 1
	g.nextToken()
	n := &Node{
		Rule:     RuleCall,
		Pos:      name.Pos,
		Line:     name.Line,
		Col:      name.Col,
		Children: []*Node{g.leaf(RuleIdent, name), arg},
	}
	return g.span(n, end), end, nil
}

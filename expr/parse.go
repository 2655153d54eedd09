// Package expr holds the expression language: the lexer, the grammar that
// produces a concrete parse tree, and the builder that turns the tree into
// an Expr.
package expr

// Parse parses a single expression. The returned error is a *ParseError.
func Parse(source string) (Expr, error) {
	tree, err := ParseTree(source)
	if err != nil {
		return nil, err
	}
	return Build(tree)
}

// MustParse is like Parse but panics on error. For tests and fixed expressions.
func MustParse(source string) Expr {
	e, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return e
}

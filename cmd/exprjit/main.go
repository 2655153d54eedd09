// Command exprjit compiles a one-line arithmetic expression to native code
// and runs it with four integer inputs.
//
// Usage:
//
//	exprjit FILE                  same as exprjit run FILE
//	exprjit run FILE              read four integers from stdin and print the result
//	exprjit eval EXPR [N...]      evaluate EXPR with the given inputs
//	exprjit dump [--arch A] FILE  print the IR and machine code
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/xyproto/exprjit/expr"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// sourceError carries the source text a parse error refers to
type sourceError struct {
	source string
	err    error
}

func (e *sourceError) Error() string { return e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

// printError writes err to w prefixed with "error:", followed by the
// offending line for parse errors
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(w, "error:")
	fmt.Fprintf(w, " %v\n", err)

	var se *sourceError
	var pe *expr.ParseError
	if errors.As(err, &se) && errors.As(err, &pe) {
		fmt.Fprintln(w, pe.Snippet(se.source))
	}
}

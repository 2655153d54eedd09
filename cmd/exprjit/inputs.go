package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xyproto/exprjit/expr"
)

// ParseInputs reads the arguments of a compiled function from one line of
// whitespace separated integers. Missing values are 0. Every field must be
// an integer, but only the first four are used.
func ParseInputs(line string) ([expr.NumInputs]int32, error) {
	var in [expr.NumInputs]int32
	for i, field := range strings.Fields(line) {
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return in, errors.Wrapf(err, "input %d (%q) is not a 32-bit integer", i+1, field)
		}
		if i < len(in) {
			in[i] = int32(v)
		}
	}
	return in, nil
}

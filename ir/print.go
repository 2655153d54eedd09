package ir

import (
	"fmt"
	"strings"
)

// String renders fn in a readable text form
func (f *Func) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s%s {\n", f.Name, f.Sig)
	for i, ext := range f.imports {
		fmt.Fprintf(&sb, "    %s = %s%s\n", FuncRef(i), ext.Name, ext.Sig)
	}
	for bi, data := range f.blocks {
		sb.WriteString(Block(bi).String())
		if len(data.params) > 0 {
			parts := make([]string, len(data.params))
			for i, p := range data.params {
				parts[i] = fmt.Sprintf("%s: %s", p, f.values[p].typ)
			}
			sb.WriteString("(" + strings.Join(parts, ", ") + ")")
		}
		sb.WriteString(":\n")
		for _, inst := range data.insts {
			sb.WriteString("    " + f.instString(inst) + "\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (f *Func) instString(inst Inst) string {
	var lhs string
	if len(inst.Results) > 0 {
		parts := make([]string, len(inst.Results))
		for i, r := range inst.Results {
			parts[i] = r.String()
		}
		lhs = strings.Join(parts, ", ") + " = "
	}
	args := make([]string, len(inst.Args))
	for i, a := range inst.Args {
		args[i] = a.String()
	}
	switch inst.Op {
	case OpIconst:
		return fmt.Sprintf("%s%s.%s %d", lhs, inst.Op, inst.Type, inst.Imm)
	case OpCall:
		return fmt.Sprintf("%s%s %s(%s)", lhs, inst.Op, inst.Func, strings.Join(args, ", "))
	case OpReturn:
		if len(args) == 0 {
			return inst.Op.String()
		}
		return fmt.Sprintf("%s %s", inst.Op, strings.Join(args, ", "))
	default:
		return fmt.Sprintf("%s%s %s", lhs, inst.Op, strings.Join(args, ", "))
	}
}

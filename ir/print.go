// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"fmt"
	"io"
	"strings"
)

// Print writes a textual form of n (and, if n is RegionLike, its full
// child list, recursively) to w using ctx's NameStorage.
func Print(w io.Writer, ctx *Context, n *Node) {
	printNode(w, ctx, n, 0)
}

func printNode(w io.Writer, ctx *Context, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	names := ctx.Names()

	operandStrs := make([]string, len(n.operands))
	for i, op := range n.operands {
		operandStrs[i] = formatOperand(names, op)
	}

	switch {
	case n.kind.IsValue():
		fmt.Fprintf(w, "%s%s = %s(%s)\n", indent, names.NameOf(n), n.id.Name(), strings.Join(operandStrs, ", "))
	default:
		fmt.Fprintf(w, "%s%s(%s)\n", indent, n.id.Name(), strings.Join(operandStrs, ", "))
	}

	if n.kind.IsRegionLike() {
		n.Children(func(child *Node) bool {
			printNode(w, ctx, child, depth+1)
			return true
		})
	}
}

func formatOperand(names *NameStorage, op Operand) string {
	switch op.Kind() {
	case OperandNull:
		return "null"
	case OperandValue:
		v, _ := op.Value()
		return names.NameOf(v)
	case OperandI32:
		v, _ := op.I32()
		return fmt.Sprintf("%d", v)
	case OperandI64:
		v, _ := op.I64()
		return fmt.Sprintf("%d", v)
	case OperandF32:
		v, _ := op.F32()
		return fmt.Sprintf("%gf", v)
	case OperandF64:
		v, _ := op.F64()
		return fmt.Sprintf("%g", v)
	case OperandBool:
		v, _ := op.Bool()
		return fmt.Sprintf("%t", v)
	case OperandString:
		v, _ := op.String()
		return fmt.Sprintf("%q", v)
	default:
		return "<?>"
	}
}

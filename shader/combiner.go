// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/gnmcore/analysis"
	"github.com/gogpu/gnmcore/dialect"
	"github.com/gogpu/gnmcore/ir"
)

// Combine runs one instruction-combiner pass over the function rooted
// at seed: walking blocks in dominance pre-order, every pure
// instruction (dialect.IsWithoutSideEffects) is looked up by opcode and
// operand identity against the nearest dominating instruction with the
// same key; a hit is RAUW'd onto the earlier instruction and erased
// (spec.md §4.5). It reports whether it changed anything, so
// RunToFixedPoint knows when to stop.
func Combine(seed *ir.Node) bool {
	g := analysis.BuildCFG(seed)
	dom := analysis.BuildDominatorTree(g)

	buckets := map[string][]*ir.Node{}
	changed := false

	var visit func(cn *analysis.CFGNode)
	visit = func(cn *analysis.CFGNode) {
		var pushed []string
		cn.Block.Children(func(instr *ir.Node) bool {
			if instr.Erased() || !instr.Kind().IsValue() {
				return true
			}
			if !dialect.IsWithoutSideEffects(instr.ID()) {
				return true
			}
			key := canonicalKey(instr)
			stack := buckets[key]
			if len(stack) > 0 {
				prior := stack[len(stack)-1]
				instr.ReplaceAllUsesWith(prior)
				instr.Erase()
				changed = true
				return true
			}
			buckets[key] = append(stack, instr)
			pushed = append(pushed, key)
			return true
		})

		for _, c := range dom.Children(cn) {
			visit(c)
		}

		for _, key := range pushed {
			s := buckets[key]
			buckets[key] = s[:len(s)-1]
		}
	}
	visit(g.Entry)
	return changed
}

// RunToFixedPoint repeatedly calls Combine until a pass makes no change,
// matching spec.md §4.5's termination contract: each pass either removes
// at least one instruction or changes nothing.
func RunToFixedPoint(seed *ir.Node) {
	for Combine(seed) {
	}
}

// canonicalKey encodes an instruction's opcode and operand values into a
// string that is equal for two instructions iff RAUW-ing one onto the
// other would be sound: same opcode, same operand kinds and values (by
// creation order for Value operands, so structurally identical
// subexpressions compare equal without needing a separate GVN numbering
// pass).
func canonicalKey(instr *ir.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", instr.ID())
	for _, op := range instr.Operands() {
		sb.WriteByte('|')
		sb.WriteString(operandKeyPart(op))
	}
	return sb.String()
}

func operandKeyPart(op ir.Operand) string {
	switch op.Kind() {
	case ir.OperandValue:
		v, _ := op.Value()
		return fmt.Sprintf("v%d", v.Seq())
	case ir.OperandI32:
		n, _ := op.I32()
		return fmt.Sprintf("i32:%d", n)
	case ir.OperandI64:
		n, _ := op.I64()
		return fmt.Sprintf("i64:%d", n)
	case ir.OperandF32:
		n, _ := op.F32()
		return fmt.Sprintf("f32:%x", math.Float32bits(n))
	case ir.OperandF64:
		n, _ := op.F64()
		return fmt.Sprintf("f64:%x", math.Float64bits(n))
	case ir.OperandBool:
		b, _ := op.Bool()
		return fmt.Sprintf("b:%t", b)
	case ir.OperandString:
		s, _ := op.String()
		return fmt.Sprintf("s:%q", s)
	default:
		return "null"
	}
}

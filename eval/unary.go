// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package eval

import (
	"github.com/gogpu/gnmcore/dialect"
	"github.com/gogpu/gnmcore/ir"
)

// Unary lane-parallel-folds a single-operand SPIR-V-like op. An
// unsupported (op, lane kind) combination on any lane makes the whole
// result the null Value — callers that need partial results should
// fold lanes individually.
func Unary(op dialect.Op, v Value) Value {
	out := make([]ir.Operand, len(v.Lanes))
	for i, lane := range v.Lanes {
		folded, ok := unaryLane(op, lane)
		if !ok {
			return Null()
		}
		out[i] = folded
	}
	return Value{Lanes: out}
}

func unaryLane(op dialect.Op, a ir.Operand) (ir.Operand, bool) {
	switch op {
	case dialect.OpFNegate:
		switch a.Kind() {
		case ir.OperandF32:
			v, _ := a.F32()
			return ir.F32(-v), true
		case ir.OperandF64:
			v, _ := a.F64()
			return ir.F64(-v), true
		}
	case dialect.OpNot:
		switch a.Kind() {
		case ir.OperandI32:
			v, _ := a.I32()
			return ir.I32(^v), true
		case ir.OperandI64:
			v, _ := a.I64()
			return ir.I64(^v), true
		}
	case dialect.OpLogicalNot:
		if a.Kind() == ir.OperandBool {
			v, _ := a.Bool()
			return ir.Bool(!v), true
		}
	}
	return ir.Null(), false
}

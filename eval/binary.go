// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package eval

import (
	"math"

	"github.com/gogpu/gnmcore/dialect"
	"github.com/gogpu/gnmcore/ir"
)

// Binary lane-parallel-folds a two-operand SPIR-V-like op. a and b must
// have matching lane counts; mismatched shapes, divide-by-zero, and
// (op, kind) combinations outside the ones GCN's scalar/vector ALUs
// support all fold to Null rather than panicking.
func Binary(op dialect.Op, a, b Value) Value {
	if !sameShape(a, b) {
		return Null()
	}
	out := make([]ir.Operand, len(a.Lanes))
	for i := range a.Lanes {
		folded, ok := binaryLane(op, a.Lanes[i], b.Lanes[i])
		if !ok {
			return Null()
		}
		out[i] = folded
	}
	return Value{Lanes: out}
}

// promote widens a mixed I32/I64 pair to a common I64 pair so the
// integer ops below never have to special-case width mismatches —
// GCN's 32-bit scalar ALU results are promoted to 64-bit the same way
// when chained into a 64-bit destination.
func promote(a, b ir.Operand) (ir.Operand, ir.Operand, bool) {
	if a.Kind() == b.Kind() {
		return a, b, true
	}
	widen := func(o ir.Operand) (ir.Operand, bool) {
		if v, ok := o.I32(); ok {
			return ir.I64(int64(v)), true
		}
		return o, false
	}
	if a.Kind() == ir.OperandI32 && b.Kind() == ir.OperandI64 {
		wa, ok := widen(a)
		return wa, b, ok
	}
	if a.Kind() == ir.OperandI64 && b.Kind() == ir.OperandI32 {
		wb, ok := widen(b)
		return a, wb, ok
	}
	return a, b, false
}

func binaryLane(op dialect.Op, a, b ir.Operand) (ir.Operand, bool) {
	switch op {
	case dialect.OpIAdd, dialect.OpISub, dialect.OpIMul, dialect.OpSDiv, dialect.OpUDiv,
		dialect.OpSMod, dialect.OpUMod, dialect.OpShiftLeft, dialect.OpShiftRightArith,
		dialect.OpShiftRightLogic, dialect.OpBitwiseAnd, dialect.OpBitwiseOr, dialect.OpBitwiseXor,
		dialect.OpIEqual, dialect.OpINotEqual, dialect.OpSLessThan, dialect.OpULessThan,
		dialect.OpSGreaterThan, dialect.OpUGreaterThan:
		pa, pb, ok := promote(a, b)
		if !ok {
			return ir.Null(), false
		}
		return intBinary(op, pa, pb)
	case dialect.OpFAdd, dialect.OpFSub, dialect.OpFMul, dialect.OpFDiv, dialect.OpFMod,
		dialect.OpFOrdEqual, dialect.OpFOrdLessThan, dialect.OpFOrdGreaterThan, dialect.OpFUnordNotEqual:
		return floatBinary(op, a, b)
	case dialect.OpLogicalAnd, dialect.OpLogicalOr:
		return boolBinary(op, a, b)
	default:
		return ir.Null(), false
	}
}

func intBinary(op dialect.Op, a, b ir.Operand) (ir.Operand, bool) {
	if a.Kind() == ir.OperandI32 {
		x, _ := a.I32()
		y, _ := b.I32()
		r, ok := intOp(op, int64(x), int64(y), uint64(uint32(x)), uint64(uint32(y)))
		if !ok {
			return ir.Null(), false
		}
		if b, isBool := r.(bool); isBool {
			return ir.Bool(b), true
		}
		return ir.I32(int32(r.(int64))), true
	}
	x, okx := a.I64()
	y, oky := b.I64()
	if !okx || !oky {
		return ir.Null(), false
	}
	r, ok := intOp(op, x, y, uint64(x), uint64(y))
	if !ok {
		return ir.Null(), false
	}
	if b, isBool := r.(bool); isBool {
		return ir.Bool(b), true
	}
	return ir.I64(r.(int64)), true
}

// intOp computes op over both the signed and unsigned bit-identical
// views of the operands, returning either an int64 (arithmetic/bitwise
// result) or a bool (comparison result) boxed in an any.
func intOp(op dialect.Op, sx, sy int64, ux, uy uint64) (any, bool) {
	switch op {
	case dialect.OpIAdd:
		return sx + sy, true
	case dialect.OpISub:
		return sx - sy, true
	case dialect.OpIMul:
		return sx * sy, true
	case dialect.OpSDiv:
		if sy == 0 {
			return nil, false
		}
		return sx / sy, true
	case dialect.OpUDiv:
		if uy == 0 {
			return nil, false
		}
		return int64(ux / uy), true
	case dialect.OpSMod:
		if sy == 0 {
			return nil, false
		}
		return sx % sy, true
	case dialect.OpUMod:
		if uy == 0 {
			return nil, false
		}
		return int64(ux % uy), true
	case dialect.OpShiftLeft:
		return sx << uint(sy), true
	case dialect.OpShiftRightArith:
		return sx >> uint(sy), true
	case dialect.OpShiftRightLogic:
		return int64(ux >> uint(uy)), true
	case dialect.OpBitwiseAnd:
		return sx & sy, true
	case dialect.OpBitwiseOr:
		return sx | sy, true
	case dialect.OpBitwiseXor:
		return sx ^ sy, true
	case dialect.OpIEqual:
		return sx == sy, true
	case dialect.OpINotEqual:
		return sx != sy, true
	case dialect.OpSLessThan:
		return sx < sy, true
	case dialect.OpULessThan:
		return ux < uy, true
	case dialect.OpSGreaterThan:
		return sx > sy, true
	case dialect.OpUGreaterThan:
		return ux > uy, true
	default:
		return nil, false
	}
}

func floatBinary(op dialect.Op, a, b ir.Operand) (ir.Operand, bool) {
	if a.Kind() != b.Kind() {
		return ir.Null(), false
	}
	switch a.Kind() {
	case ir.OperandF32:
		x, _ := a.F32()
		y, _ := b.F32()
		return floatOp(op, float64(x), float64(y), true)
	case ir.OperandF64:
		x, _ := a.F64()
		y, _ := b.F64()
		return floatOp(op, x, y, false)
	default:
		return ir.Null(), false
	}
}

// floatOp implements IEEE-754 ordered/unordered comparison semantics
// directly: Go's native float comparisons already treat NaN as
// incomparable with everything including itself, which is exactly what
// "ordered" (false on NaN) and "unordered" (true on NaN) GCN compares
// need — no bit-cast trick required here, unlike ir.Operand.Compare's
// total order.
func floatOp(op dialect.Op, x, y float64, narrow bool) (ir.Operand, bool) {
	box := func(v float64) ir.Operand {
		if narrow {
			return ir.F32(float32(v))
		}
		return ir.F64(v)
	}
	switch op {
	case dialect.OpFAdd:
		return box(x + y), true
	case dialect.OpFSub:
		return box(x - y), true
	case dialect.OpFMul:
		return box(x * y), true
	case dialect.OpFDiv:
		return box(x / y), true
	case dialect.OpFMod:
		return box(math.Mod(x, y)), true
	case dialect.OpFOrdEqual:
		return ir.Bool(x == y), true
	case dialect.OpFOrdLessThan:
		return ir.Bool(x < y), true
	case dialect.OpFOrdGreaterThan:
		return ir.Bool(x > y), true
	case dialect.OpFUnordNotEqual:
		return ir.Bool(!(x == y)), true
	default:
		return ir.Null(), false
	}
}

func boolBinary(op dialect.Op, a, b ir.Operand) (ir.Operand, bool) {
	if a.Kind() != ir.OperandBool || b.Kind() != ir.OperandBool {
		return ir.Null(), false
	}
	x, _ := a.Bool()
	y, _ := b.Bool()
	switch op {
	case dialect.OpLogicalAnd:
		return ir.Bool(x && y), true
	case dialect.OpLogicalOr:
		return ir.Bool(x || y), true
	default:
		return ir.Null(), false
	}
}

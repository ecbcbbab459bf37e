// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package eval

import (
	"math"

	"github.com/gogpu/gnmcore/ir"
)

func int32BitsToFloat32(n int32) float32 { return math.Float32frombits(uint32(n)) }
func float32BitsToInt32(f float32) int32 { return int32(math.Float32bits(f)) }
func int64BitsToFloat64(n int64) float64 { return math.Float64frombits(uint64(n)) }
func float64BitsToInt64(f float64) int64 { return int64(math.Float64bits(f)) }

func byteWidth(k ir.OperandKind) (int, bool) {
	switch k {
	case ir.OperandI32, ir.OperandF32:
		return 4, true
	case ir.OperandI64, ir.OperandF64:
		return 8, true
	default:
		return 0, false
	}
}

// IConvertS folds OpConvertSToF: each lane's signed integer becomes a
// float of the requested width (ir.OperandF32 or ir.OperandF64).
func IConvertS(v Value, target ir.OperandKind) Value {
	return convertLanes(v, func(a ir.Operand) (ir.Operand, bool) {
		var x int64
		switch a.Kind() {
		case ir.OperandI32:
			n, _ := a.I32()
			x = int64(n)
		case ir.OperandI64:
			x, _ = a.I64()
		default:
			return ir.Null(), false
		}
		return boxFloat(float64(x), target)
	})
}

// IConvertU folds OpConvertUToF: each lane's bit pattern is read as
// unsigned before widening to float.
func IConvertU(v Value, target ir.OperandKind) Value {
	return convertLanes(v, func(a ir.Operand) (ir.Operand, bool) {
		var x uint64
		switch a.Kind() {
		case ir.OperandI32:
			n, _ := a.I32()
			x = uint64(uint32(n))
		case ir.OperandI64:
			n, _ := a.I64()
			x = uint64(n)
		default:
			return ir.Null(), false
		}
		return boxFloat(float64(x), target)
	})
}

// FConvertToS folds OpConvertFToS: each lane's float truncates toward
// zero into a signed integer of the requested width.
func FConvertToS(v Value, target ir.OperandKind) Value {
	return convertLanes(v, func(a ir.Operand) (ir.Operand, bool) {
		f, ok := asFloat64(a)
		if !ok {
			return ir.Null(), false
		}
		switch target {
		case ir.OperandI32:
			return ir.I32(int32(f)), true
		case ir.OperandI64:
			return ir.I64(int64(f)), true
		default:
			return ir.Null(), false
		}
	})
}

// FConvertToU folds OpConvertFToU.
func FConvertToU(v Value, target ir.OperandKind) Value {
	return convertLanes(v, func(a ir.Operand) (ir.Operand, bool) {
		f, ok := asFloat64(a)
		if !ok || f < 0 {
			return ir.Null(), false
		}
		switch target {
		case ir.OperandI32:
			return ir.I32(int32(uint32(f))), true
		case ir.OperandI64:
			return ir.I64(int64(uint64(f))), true
		default:
			return ir.Null(), false
		}
	})
}

// FConvert folds OpFConvert: a float narrows or widens to the other
// float width.
func FConvert(v Value, target ir.OperandKind) Value {
	return convertLanes(v, func(a ir.Operand) (ir.Operand, bool) {
		f, ok := asFloat64(a)
		if !ok {
			return ir.Null(), false
		}
		return boxFloat(f, target)
	})
}

// Bitcast folds OpBitcast. GCN's bitcast, like SPIR-V's, requires the
// source and destination to share a byte width — a 32-bit value can
// only reinterpret as another 32-bit value, never as a 64-bit one.
func Bitcast(v Value, target ir.OperandKind) Value {
	return convertLanes(v, func(a ir.Operand) (ir.Operand, bool) {
		sw, ok := byteWidth(a.Kind())
		if !ok {
			return ir.Null(), false
		}
		tw, ok := byteWidth(target)
		if !ok || sw != tw {
			return ir.Null(), false
		}
		switch {
		case a.Kind() == ir.OperandI32 && target == ir.OperandF32:
			n, _ := a.I32()
			return ir.F32(int32BitsToFloat32(n)), true
		case a.Kind() == ir.OperandF32 && target == ir.OperandI32:
			f, _ := a.F32()
			return ir.I32(float32BitsToInt32(f)), true
		case a.Kind() == ir.OperandI64 && target == ir.OperandF64:
			n, _ := a.I64()
			return ir.F64(int64BitsToFloat64(n)), true
		case a.Kind() == ir.OperandF64 && target == ir.OperandI64:
			f, _ := a.F64()
			return ir.I64(float64BitsToInt64(f)), true
		case a.Kind() == target:
			return a, true
		default:
			return ir.Null(), false
		}
	})
}

func convertLanes(v Value, fn func(ir.Operand) (ir.Operand, bool)) Value {
	out := make([]ir.Operand, len(v.Lanes))
	for i, lane := range v.Lanes {
		folded, ok := fn(lane)
		if !ok {
			return Null()
		}
		out[i] = folded
	}
	return Value{Lanes: out}
}

func asFloat64(a ir.Operand) (float64, bool) {
	switch a.Kind() {
	case ir.OperandF32:
		f, _ := a.F32()
		return float64(f), true
	case ir.OperandF64:
		f, _ := a.F64()
		return f, true
	default:
		return 0, false
	}
}

func boxFloat(f float64, target ir.OperandKind) (ir.Operand, bool) {
	switch target {
	case ir.OperandF32:
		return ir.F32(float32(f)), true
	case ir.OperandF64:
		return ir.F64(f), true
	default:
		return ir.Null(), false
	}
}

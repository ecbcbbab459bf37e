// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import "math"

// OperandKind tags the active alternative of an Operand.
type OperandKind uint8

const (
	OperandNull OperandKind = iota
	OperandValue
	OperandI32
	OperandI64
	OperandF32
	OperandF64
	OperandBool
	OperandString
)

// Operand is the tagged {null, Value*, i32, i64, f32, f64, bool, string}
// variant used by both the IR (as instruction arguments) and the
// evaluator (as constant-folding inputs). Every alternative lives in the
// same struct rather than behind an interface so Operand is a plain
// comparable-by-value type wherever possible and never boxes a Value
// pointer in an interface.
type Operand struct {
	kind  OperandKind
	value *Node // valid when kind == OperandValue
	bits  uint64
	str   string
}

// Null returns the null operand.
func Null() Operand { return Operand{kind: OperandNull} }

// FromValue wraps a Value-producing Node as an operand.
func FromValue(v *Node) Operand {
	if v == nil {
		return Null()
	}
	return Operand{kind: OperandValue, value: v}
}

func I32(v int32) Operand { return Operand{kind: OperandI32, bits: uint64(uint32(v))} }
func I64(v int64) Operand { return Operand{kind: OperandI64, bits: uint64(v)} }
func F32(v float32) Operand {
	return Operand{kind: OperandF32, bits: uint64(math.Float32bits(v))}
}
func F64(v float64) Operand { return Operand{kind: OperandF64, bits: math.Float64bits(v)} }
func Bool(v bool) Operand {
	b := uint64(0)
	if v {
		b = 1
	}
	return Operand{kind: OperandBool, bits: b}
}
func String(v string) Operand { return Operand{kind: OperandString, str: v} }

// String names an OperandKind, used for debugging and test assertions.
func (k OperandKind) String() string {
	switch k {
	case OperandNull:
		return "null"
	case OperandValue:
		return "value"
	case OperandI32:
		return "i32"
	case OperandI64:
		return "i64"
	case OperandF32:
		return "f32"
	case OperandF64:
		return "f64"
	case OperandBool:
		return "bool"
	case OperandString:
		return "string"
	default:
		return "?"
	}
}

func (o Operand) Kind() OperandKind { return o.kind }
func (o Operand) IsNull() bool      { return o.kind == OperandNull }

// Value returns the referenced node and true if o is an OperandValue.
func (o Operand) Value() (*Node, bool) {
	if o.kind != OperandValue {
		return nil, false
	}
	return o.value, true
}

func (o Operand) I32() (int32, bool) {
	if o.kind != OperandI32 {
		return 0, false
	}
	return int32(uint32(o.bits)), true
}

func (o Operand) I64() (int64, bool) {
	if o.kind != OperandI64 {
		return 0, false
	}
	return int64(o.bits), true
}

func (o Operand) F32() (float32, bool) {
	if o.kind != OperandF32 {
		return 0, false
	}
	return math.Float32frombits(uint32(o.bits)), true
}

func (o Operand) F64() (float64, bool) {
	if o.kind != OperandF64 {
		return 0, false
	}
	return math.Float64frombits(o.bits), true
}

func (o Operand) Bool() (bool, bool) {
	if o.kind != OperandBool {
		return false, false
	}
	return o.bits != 0, true
}

func (o Operand) String() (string, bool) {
	if o.kind != OperandString {
		return "", false
	}
	return o.str, true
}

// Compare gives Operand a total, NaN-safe order: operands are ordered
// first by kind, then by bit pattern (for the numeric/bool kinds — this
// is why floats are compared as bits rather than with < , which would
// make every NaN incomparable with everything including itself), then
// lexically for strings, and by creation order for Value references.
// This total order lets a caller sort or deduplicate operand lists with
// a plain sort instead of a NaN-aware comparator; Equal is built on it.
func (a Operand) Compare(b Operand) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case OperandNull:
		return 0
	case OperandValue:
		as, bs := a.value.seq, b.value.seq
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	case OperandString:
		switch {
		case a.str < b.str:
			return -1
		case a.str > b.str:
			return 1
		default:
			return 0
		}
	default: // I32, I64, F32, F64, Bool — all compared as raw bit patterns
		switch {
		case a.bits < b.bits:
			return -1
		case a.bits > b.bits:
			return 1
		default:
			return 0
		}
	}
}

// Equal reports whether two operands compare equal under Compare.
func (a Operand) Equal(b Operand) bool { return a.Compare(b) == 0 }

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package eval

import "github.com/gogpu/gnmcore/ir"

// CompositeConstruct assembles scalar constituents into a wider Value,
// folding SPIR-V-like OpCompositeConstruct the way the combiner's
// constant-folding pass does when every constituent is itself constant.
// Scalars and vectors may be mixed (a vec4 can be built from four
// scalars, or from a vec3 and a scalar); the result must land on one of
// the supported widths or the whole construct folds to Null.
func CompositeConstruct(parts ...Value) Value {
	var lanes []ir.Operand
	for _, p := range parts {
		if p.IsNull() {
			return Null()
		}
		lanes = append(lanes, p.Lanes...)
	}
	switch len(lanes) {
	case 1, 2, 3, 4, FixedArray8, FixedArray16:
		return Value{Lanes: lanes}
	default:
		return Null()
	}
}

// CompositeExtract reads lane index out of v, folding OpCompositeExtract.
func CompositeExtract(v Value, index int) (ir.Operand, bool) {
	if index < 0 || index >= len(v.Lanes) {
		return ir.Null(), false
	}
	return v.Lanes[index], true
}

// CompositeInsert returns a copy of v with lane index replaced by val,
// folding OpCompositeInsert.
func CompositeInsert(v Value, index int, val ir.Operand) Value {
	if index < 0 || index >= len(v.Lanes) {
		return Null()
	}
	out := append([]ir.Operand(nil), v.Lanes...)
	out[index] = val
	return Value{Lanes: out}
}

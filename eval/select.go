// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package eval

import "github.com/gogpu/gnmcore/ir"

// Select folds OpSelect lane-parallel: cond, t, and f must share a lane
// count, and each cond lane must be OperandBool, or the whole Value
// folds to Null (spec.md §4.5's "null on operand-shape mismatch").
func Select(cond, t, f Value) Value {
	if !sameShape(cond, t) || !sameShape(t, f) {
		return Null()
	}
	out := make([]ir.Operand, len(cond.Lanes))
	for i := range cond.Lanes {
		c, ok := cond.Lanes[i].Bool()
		if !ok {
			return Null()
		}
		if c {
			out[i] = t.Lanes[i]
		} else {
			out[i] = f.Lanes[i]
		}
	}
	return Value{Lanes: out}
}

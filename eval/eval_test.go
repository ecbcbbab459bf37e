// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/gnmcore/dialect"
	"github.com/gogpu/gnmcore/ir"
)

func TestBinaryIntegerPromotion(t *testing.T) {
	r := Binary(dialect.OpIAdd, Scalar(ir.I32(2)), Scalar(ir.I64(3)))
	require.False(t, r.IsNull())
	v, ok := r.Lane(0).I64()
	require.True(t, ok)
	require.Equal(t, int64(5), v)
}

func TestBinaryDivideByZeroFoldsNull(t *testing.T) {
	r := Binary(dialect.OpSDiv, Scalar(ir.I32(1)), Scalar(ir.I32(0)))
	require.True(t, r.IsNull())
}

func TestBinaryMismatchedShapeFoldsNull(t *testing.T) {
	r := Binary(dialect.OpIAdd, Vector(ir.I32(1), ir.I32(2)), Scalar(ir.I32(1)))
	require.True(t, r.IsNull())
}

func TestFloatOrderedComparisonNaN(t *testing.T) {
	nan := ir.F32(float32(math.NaN()))
	r := Binary(dialect.OpFOrdEqual, Scalar(nan), Scalar(ir.F32(1)))
	b, ok := r.Lane(0).Bool()
	require.True(t, ok)
	require.False(t, b, "ordered equal must be false when a NaN is involved")

	r2 := Binary(dialect.OpFUnordNotEqual, Scalar(nan), Scalar(ir.F32(1)))
	b2, _ := r2.Lane(0).Bool()
	require.True(t, b2, "unordered not-equal must be true when a NaN is involved")
}

func TestUnaryFNegateAndNot(t *testing.T) {
	r := Unary(dialect.OpFNegate, Scalar(ir.F32(3)))
	v, _ := r.Lane(0).F32()
	require.Equal(t, float32(-3), v)

	r2 := Unary(dialect.OpNot, Scalar(ir.I32(0)))
	v2, _ := r2.Lane(0).I32()
	require.Equal(t, int32(-1), v2)
}

func TestCompositeConstructExtractInsert(t *testing.T) {
	v := CompositeConstruct(Scalar(ir.I32(1)), Scalar(ir.I32(2)), Vector(ir.I32(3), ir.I32(4)))
	require.Equal(t, 4, v.NumLanes())

	lane, ok := CompositeExtract(v, 2)
	require.True(t, ok)
	n, _ := lane.I32()
	require.Equal(t, int32(3), n)

	v2 := CompositeInsert(v, 0, ir.I32(99))
	lane0, _ := CompositeExtract(v2, 0)
	n2, _ := lane0.I32()
	require.Equal(t, int32(99), n2)

	// original is untouched
	lane0Orig, _ := CompositeExtract(v, 0)
	n0, _ := lane0Orig.I32()
	require.Equal(t, int32(1), n0)
}

func TestCompositeConstructUnsupportedWidthFoldsNull(t *testing.T) {
	v := CompositeConstruct(Scalar(ir.I32(1)), Scalar(ir.I32(2)), Scalar(ir.I32(3)), Scalar(ir.I32(4)), Scalar(ir.I32(5)))
	require.True(t, v.IsNull())
}

func TestBitcastRequiresEqualWidth(t *testing.T) {
	r := Bitcast(Scalar(ir.I64(0)), ir.OperandF32)
	require.True(t, r.IsNull(), "64-bit source cannot bitcast to a 32-bit target")

	r2 := Bitcast(Scalar(ir.F32(1.5)), ir.OperandI32)
	require.False(t, r2.IsNull())
	n, _ := r2.Lane(0).I32()
	require.Equal(t, int32(math.Float32bits(1.5)), n)
}

func TestConvertRoundTrip(t *testing.T) {
	r := IConvertS(Scalar(ir.I32(-5)), ir.OperandF32)
	f, _ := r.Lane(0).F32()
	require.Equal(t, float32(-5), f)

	back := FConvertToS(r, ir.OperandI32)
	n, _ := back.Lane(0).I32()
	require.Equal(t, int32(-5), n)
}

func TestSelectLaneParallel(t *testing.T) {
	cond := Vector(ir.Bool(true), ir.Bool(false))
	tv := Vector(ir.I32(1), ir.I32(2))
	fv := Vector(ir.I32(9), ir.I32(8))

	r := Select(cond, tv, fv)
	require.False(t, r.IsNull())
	a, _ := r.Lane(0).I32()
	b, _ := r.Lane(1).I32()
	require.Equal(t, int32(1), a)
	require.Equal(t, int32(8), b)
}

func TestSelectShapeMismatchFoldsNull(t *testing.T) {
	r := Select(Scalar(ir.Bool(true)), Vector(ir.I32(1), ir.I32(2)), Scalar(ir.I32(0)))
	require.True(t, r.IsNull())
}

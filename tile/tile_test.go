// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package tile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTileModeArrayMode(t *testing.T) {
	m := TileMode(uint32(ArrayMode2DTiledThin) << 20)
	require.Equal(t, ArrayMode2DTiledThin, m.ArrayMode())
}

func TestShaderClassSelection(t *testing.T) {
	cases := []struct {
		mode  ArrayMode
		class shaderClass
	}{
		{ArrayModeLinearGeneral, classLinear},
		{ArrayModeLinearAligned, classLinear},
		{ArrayMode1DTiledThin, class1D},
		{ArrayMode1DTiledThick, class1D},
		{ArrayMode2DTiledThin, class2D},
		{ArrayMode3DTiledThick, class2D},
	}
	for _, c := range cases {
		m := TileMode(uint32(c.mode) << 20)
		require.Equal(t, c.class, m.shaderClass(), "array mode %v", c.mode)
	}
}

func TestSlotPoolAcquireReleaseCycles(t *testing.T) {
	var p slotPool
	seen := map[uint32]bool{}
	for i := 0; i < slotCount; i++ {
		slot := p.acquire()
		require.False(t, seen[slot], "slot %d handed out twice while in use", slot)
		seen[slot] = true
	}
	require.Len(t, seen, slotCount)

	for slot := range seen {
		p.release(slot)
	}
	// pool is fully free again; acquiring slotCount more must succeed
	// without panicking.
	for i := 0; i < slotCount; i++ {
		p.acquire()
	}
}

func TestSlotPoolExhaustionPanics(t *testing.T) {
	var p slotPool
	for i := 0; i < slotCount; i++ {
		p.acquire()
	}
	require.Panics(t, func() { p.acquire() })
}

// TestTilerSPIRVBindingPreservesSourceAliasing locks in the
// deliberately-kept binding mismatch documented on newBuiltinTilerSPIRV: the
// source tiler wires detiler2d to the detilerLinear kernel and
// tilerLinear to the tiler2d kernel.
func TestTilerSPIRVBindingPreservesSourceAliasing(t *testing.T) {
	require.Equal(t, builtinTilerSPIRV[kindDetileLinear], builtinTilerSPIRV[kindDetile2D])
	require.Equal(t, builtinTilerSPIRV[kindTile2D], builtinTilerSPIRV[kindTileLinear])
	require.NotEqual(t, builtinTilerSPIRV[kindDetile1D], builtinTilerSPIRV[kindDetile2D])
	require.NotEqual(t, builtinTilerSPIRV[kindTile1D], builtinTilerSPIRV[kindTileLinear])
}

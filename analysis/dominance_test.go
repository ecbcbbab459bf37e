// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDominanceDiamond checks spec.md §8 Scenario D: in
// entry -> {a,b} -> m, entry dominates everything, neither a nor b
// dominates the other or m, and m post-dominates a, b and entry.
func TestDominanceDiamond(t *testing.T) {
	_, entry, a, b, m := diamond(t)
	g := BuildCFG(entry)
	dom := BuildDominatorTree(g)

	en, an, bn, mn := g.Blocks[entry], g.Blocks[a], g.Blocks[b], g.Blocks[m]

	require.True(t, dom.Dominates(en, an))
	require.True(t, dom.Dominates(en, bn))
	require.True(t, dom.Dominates(en, mn))
	require.False(t, dom.StrictlyDominates(an, bn))
	require.False(t, dom.StrictlyDominates(bn, an))
	require.False(t, dom.StrictlyDominates(an, mn))
	require.Same(t, en, dom.IDom(mn))
	require.Equal(t, en, dom.NearestCommonDominator(an, bn))

	pdom := BuildPostDominatorTree(g)
	require.True(t, pdom.Dominates(mn, an))
	require.True(t, pdom.Dominates(mn, bn))
	require.True(t, pdom.StrictlyDominates(mn, en))
}

func TestBackEdgeDetection(t *testing.T) {
	ctx, entry, header, latch := loopShape(t)
	_ = ctx
	g := BuildCFG(entry)
	dom := BuildDominatorTree(g)
	edges := FindBackEdges(g, dom)

	require.Len(t, edges, 1)
	require.Same(t, g.Blocks[latch], edges[0].From)
	require.Same(t, g.Blocks[header], edges[0].To)
	require.True(t, IsLoopHeader(g.Blocks[header], edges))
}

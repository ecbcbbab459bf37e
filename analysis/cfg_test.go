// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/gnmcore/dialect"
	"github.com/gogpu/gnmcore/ir"
)

func labelID() dialect.InstructionID { return dialect.Pack(dialect.Builtin, dialect.OpLabel) }
func branchID() dialect.InstructionID { return dialect.Pack(dialect.Builtin, dialect.OpBranch) }
func branchCondID() dialect.InstructionID {
	return dialect.Pack(dialect.Builtin, dialect.OpBranchCond)
}
func returnID() dialect.InstructionID { return dialect.Pack(dialect.Builtin, dialect.OpReturn) }

// diamond builds the classic entry -> {a,b} -> m "diamond" shape used by
// spec.md §8 Scenario D: a single branch followed by two arms that
// rejoin at one merge block.
func diamond(t *testing.T) (ctx *ir.Context, entry, a, b, m *ir.Node) {
	t.Helper()
	ctx = ir.NewContext()
	entry = ctx.NewBlock(labelID())
	a = ctx.NewBlock(labelID())
	b = ctx.NewBlock(labelID())
	m = ctx.NewBlock(labelID())

	cond := ctx.NewValue(dialect.Pack(dialect.Builtin, dialect.OpConstant), ir.Bool(true))
	entry.AddChild(cond)
	entry.AddChild(ctx.NewInstruction(branchCondID(), ir.FromValue(cond), ir.FromValue(a), ir.FromValue(b)))

	a.AddChild(ctx.NewInstruction(branchID(), ir.FromValue(m)))
	b.AddChild(ctx.NewInstruction(branchID(), ir.FromValue(m)))
	m.AddChild(ctx.NewInstruction(returnID()))
	return
}

func TestBuildCFGDiamondShape(t *testing.T) {
	_, entry, a, b, m := diamond(t)
	g := BuildCFG(entry)

	require.Len(t, g.Entry.Succs, 2)
	require.Contains(t, []*ir.Node{g.Entry.Succs[0].Block, g.Entry.Succs[1].Block}, a)
	require.Contains(t, []*ir.Node{g.Entry.Succs[0].Block, g.Entry.Succs[1].Block}, b)

	an := g.Blocks[a]
	bn := g.Blocks[b]
	mn := g.Blocks[m]
	require.Len(t, an.Succs, 1)
	require.Same(t, mn, an.Succs[0])
	require.Len(t, bn.Succs, 1)
	require.Same(t, mn, bn.Succs[0])
	require.Len(t, mn.Preds, 2)
}

// TestCFGDeterminism checks spec.md §8 property 2: rebuilding the CFG
// from the same IR twice yields the same edge set and ordering.
func TestCFGDeterminism(t *testing.T) {
	_, entry, _, _, _ := diamond(t)
	g1 := BuildCFG(entry)
	g2 := BuildCFG(entry)

	require.Equal(t, len(g1.Preorder), len(g2.Preorder))
	for i := range g1.Preorder {
		require.Same(t, g1.Preorder[i].Block, g2.Preorder[i].Block)
	}
}

func loopBackID() dialect.InstructionID { return dialect.Pack(dialect.Builtin, dialect.OpLoopBack) }

// loopShape builds entry -> header -> {body -> latch -> header, exit}:
// a single natural loop with latch as the only back-edge source.
func loopShape(t *testing.T) (ctx *ir.Context, entry, header, latch *ir.Node) {
	t.Helper()
	ctx = ir.NewContext()
	entry = ctx.NewBlock(labelID())
	header = ctx.NewBlock(labelID())
	body := ctx.NewBlock(labelID())
	latch = ctx.NewBlock(labelID())
	exit := ctx.NewBlock(labelID())

	entry.AddChild(ctx.NewInstruction(branchID(), ir.FromValue(header)))

	cond := ctx.NewValue(dialect.Pack(dialect.Builtin, dialect.OpConstant), ir.Bool(true))
	header.AddChild(cond)
	header.AddChild(ctx.NewInstruction(branchCondID(), ir.FromValue(cond), ir.FromValue(body), ir.FromValue(exit)))

	body.AddChild(ctx.NewInstruction(branchID(), ir.FromValue(latch)))
	latch.AddChild(ctx.NewInstruction(loopBackID(), ir.FromValue(header)))
	exit.AddChild(ctx.NewInstruction(returnID()))
	return
}

func TestWithStopAtStopsRecursion(t *testing.T) {
	_, entry, a, _, m := diamond(t)
	g := BuildCFG(entry, WithStopAt(a))

	an := g.Blocks[a]
	require.Empty(t, an.Succs)
	_, seen := g.Blocks[m]
	// m is still reachable via b, so it is discovered regardless of a's stop.
	require.True(t, seen)
}

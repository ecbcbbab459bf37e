// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/gnmcore/dialect"
)

func addID() dialect.InstructionID {
	return dialect.Pack(dialect.SPIRVLike, dialect.OpIAdd)
}

func constID() dialect.InstructionID {
	return dialect.Pack(dialect.Builtin, dialect.OpConstant)
}

// useListMatches checks spec.md §8 property 4: for every Value v,
// v.useList equals {(u,i) : u.operand(i) == v}.
func useListMatches(t *testing.T, root *Node, v *Node) {
	t.Helper()
	expected := map[Use]bool{}
	var walk func(*Node)
	walk = func(n *Node) {
		for i, op := range n.Operands() {
			if ref, ok := op.Value(); ok && ref == v {
				expected[Use{User: n, OperandIndex: i}] = true
			}
		}
		if n.Kind().IsRegionLike() {
			n.Children(walk)
		}
	}
	walk(root)

	require.Len(t, v.Uses(), len(expected))
	for _, u := range v.Uses() {
		require.True(t, expected[u], "unexpected use %+v", u)
	}
}

func TestUseListIntegrityAfterMutations(t *testing.T) {
	ctx := NewContext()
	c1 := ctx.NewValue(constID(), I32(1))
	c2 := ctx.NewValue(constID(), I32(2))
	region := ctx.NewRegion()

	add := ctx.NewValue(addID(), FromValue(c1), FromValue(c2))
	region.AddChild(c1)
	region.AddChild(c2)
	region.AddChild(add)

	useListMatches(t, region, c1)
	useListMatches(t, region, c2)

	// replaceOperand
	c3 := ctx.NewValue(constID(), I32(3))
	region.AddChild(c3)
	add.ReplaceOperand(1, FromValue(c3))
	useListMatches(t, region, c2)
	useListMatches(t, region, c3)

	// eraseOperand shifts later use indices
	add.AddOperand(FromValue(c3))
	require.Equal(t, 3, add.NumOperands())
	add.EraseOperand(0) // removes c1 operand, shifts c3 from idx1->0 and idx2->1
	useListMatches(t, region, c1)
	useListMatches(t, region, c3)

	// erase c1 now that it has no operands referencing it but may still
	// have uses — it shouldn't, since we just removed its only use.
	require.False(t, c1.HasUses())
	c1.Erase()
	require.True(t, c1.Erased())
}

func TestEraseValueWithLiveUsesPanics(t *testing.T) {
	ctx := NewContext()
	c1 := ctx.NewValue(constID(), I32(1))
	region := ctx.NewRegion()
	region.AddChild(c1)
	add := ctx.NewValue(addID(), FromValue(c1), FromValue(c1))
	region.AddChild(add)

	require.Panics(t, func() { c1.Erase() })
}

func TestReplaceAllUsesWith(t *testing.T) {
	ctx := NewContext()
	region := ctx.NewRegion()
	c1 := ctx.NewValue(constID(), I32(1))
	c2 := ctx.NewValue(constID(), I32(2))
	region.AddChild(c1)
	region.AddChild(c2)

	add1 := ctx.NewValue(addID(), FromValue(c1), FromValue(c1))
	add2 := ctx.NewValue(addID(), FromValue(c1), I32(9))
	region.AddChild(add1)
	region.AddChild(add2)

	c1.ReplaceAllUsesWith(c2)
	require.False(t, c1.HasUses())
	useListMatches(t, region, c2)
	require.Equal(t, 3, len(c2.Uses()))
}

func TestRegionChildLinkage(t *testing.T) {
	ctx := NewContext()
	region := ctx.NewRegion()
	a := ctx.NewValue(constID())
	b := ctx.NewValue(constID())
	c := ctx.NewValue(constID())
	region.AddChild(a)
	region.AddChild(b)
	region.AddChild(c)

	require.Equal(t, a, region.First())
	require.Equal(t, c, region.Last())
	require.Equal(t, b, a.Next())
	require.Equal(t, a, b.Prev())
	require.Nil(t, c.Next())

	region.Remove(b)
	require.Equal(t, c, a.Next())
	require.Equal(t, a, c.Prev())
	require.Nil(t, b.Parent())

	InsertAfter(a, b)
	require.Equal(t, b, a.Next())
	require.Equal(t, c, b.Next())
}

func TestCloneIdempotence(t *testing.T) {
	src := NewContext()
	region := src.NewRegion()
	c1 := src.NewValue(constID(), I32(7))
	region.AddChild(c1)
	add := src.NewValue(addID(), FromValue(c1), FromValue(c1))
	region.AddChild(add)

	dest1 := NewContext()
	clone1 := Clone(region, dest1, CloneMap{})
	dest2 := NewContext()
	clone2 := Clone(region, dest2, CloneMap{})

	shape := func(n *Node) []string {
		var out []string
		var walk func(*Node)
		walk = func(node *Node) {
			out = append(out, node.ID().Name())
			for _, op := range node.Operands() {
				out = append(out, op.Kind().String())
			}
			if node.Kind().IsRegionLike() {
				node.Children(walk)
			}
		}
		walk(n)
		return out
	}

	require.Equal(t, shape(clone1), shape(clone2))

	// No cross-context edges: every value operand inside the clones
	// must belong to the same context as the clone root.
	var checkCtx func(*Node, *Context)
	checkCtx = func(n *Node, ctx *Context) {
		require.Same(t, ctx, n.Context())
		for _, op := range n.Operands() {
			if v, ok := op.Value(); ok {
				require.Same(t, ctx, v.Context())
			}
		}
		if n.Kind().IsRegionLike() {
			n.Children(func(c *Node) bool { checkCtx(c, ctx); return true })
		}
	}
	checkCtx(clone1, dest1)
	checkCtx(clone2, dest2)

	// The two clones share no instructions — duplicated, not aliased.
	require.NotSame(t, clone1, clone2)
}

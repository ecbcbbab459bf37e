// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import "github.com/gogpu/gnmcore/dialect"

// Context owns every Node ever created through it. Nodes are never
// individually freed — removing one from its parent region just makes
// it unreachable from the graph; the backing allocation is reclaimed
// only when the whole Context is garbage collected (spec.md §3). This
// mirrors the teacher's flat, append-only core.Storage arena, minus the
// epoch check: here the arena exists purely to keep every *Node reachable
// for teardown/debugging, not to validate handles — Node pointers are
// otherwise used directly, never behind a generation-checked handle.
type Context struct {
	nodes     []*Node
	locations map[Location]*Location
	names     *NameStorage
	nextSeq   uint64
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{
		locations: make(map[Location]*Location),
		names:     newNameStorage(),
	}
}

func (c *Context) alloc(kind Kind, id dialect.InstructionID) *Node {
	n := &Node{ctx: c, kind: kind, id: id, seq: c.nextSeq}
	c.nextSeq++
	c.nodes = append(c.nodes, n)
	return n
}

// NewInstruction creates a plain (non-value) instruction.
func (c *Context) NewInstruction(id dialect.InstructionID, operands ...Operand) *Node {
	n := c.alloc(KindInstruction, id)
	for _, op := range operands {
		n.AddOperand(op)
	}
	return n
}

// NewValue creates a value-producing instruction.
func (c *Context) NewValue(id dialect.InstructionID, operands ...Operand) *Node {
	n := c.alloc(KindValue, id)
	for _, op := range operands {
		n.AddOperand(op)
	}
	return n
}

// NewBlock creates a plain basic block.
func (c *Context) NewBlock(id dialect.InstructionID) *Node {
	return c.alloc(KindBlock, id)
}

// NewSelection creates a SelectionConstruct (header set by the caller
// via SetHeader/SetMerge once both blocks exist).
func (c *Context) NewSelection(id dialect.InstructionID) *Node {
	return c.alloc(KindSelection, id)
}

// NewLoop creates a LoopConstruct.
func (c *Context) NewLoop(id dialect.InstructionID) *Node {
	return c.alloc(KindLoop, id)
}

// NewContinueConstruct creates the continue-construct of a loop.
func (c *Context) NewContinueConstruct(id dialect.InstructionID) *Node {
	return c.alloc(KindContinue, id)
}

// NewRegion creates a detached, non-value RegionLike container — used
// for a module root or for memory-SSA's per-Context Region.
func (c *Context) NewRegion() *Node {
	return c.alloc(KindRegion, 0)
}

// NodeCount returns the number of nodes ever allocated by c, live or not.
func (c *Context) NodeCount() int { return len(c.nodes) }

// Names returns c's NameStorage, used by the printer.
func (c *Context) Names() *NameStorage { return c.names }

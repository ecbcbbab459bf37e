// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package analysis

import (
	"github.com/gogpu/gnmcore/dialect"
	"github.com/gogpu/gnmcore/ir"
)

// MemValueKind distinguishes the three ways a memory-SSA value can come
// into existence.
type MemValueKind uint8

const (
	// MemLiveOnEntry is the implicit value every variable holds before
	// any instruction in the function has run.
	MemLiveOnEntry MemValueKind = iota
	// MemStore is produced by a Store (or, for the all-memory pseudo
	// variable, a Barrier) instruction.
	MemStore
	// MemPhi merges two or more incoming memory values at a join block.
	MemPhi
)

// MemValue is one versioned state of a tracked variable — a node in the
// memory-SSA graph built alongside (not inside) the IR.
type MemValue struct {
	Kind     MemValueKind
	Block    *CFGNode
	Def      *ir.Node // the Store/Call instruction; nil for Phi/LiveOnEntry
	Var      *ir.Node // the base variable this value versions; nil for the all-memory pseudo variable
	Incoming map[*CFGNode]*MemValue // Phi only, keyed by predecessor block
	seq      int
}

// MemSSA is the result of BuildMemorySSA: for every Load it names the
// MemValue the load observes, for every Store/Call the MemValue it
// produces, and for every join block the Phis inserted there.
type MemSSA struct {
	UseDef map[*ir.Node]*MemValue
	DefOf  map[*ir.Node]*MemValue
	PhisAt map[*CFGNode]map[*ir.Node]*MemValue // nil key = all-memory pseudo variable
}

// baseVariable walks an access-chain pointer back to the OpVariable (or
// other root value) it was derived from, so "ptr[0]" and "ptr[1]" both
// version the same tracked variable rather than two unrelated ones.
func baseVariable(ptr *ir.Node) *ir.Node {
	for ptr != nil && ptr.ID().Dialect() == dialect.SPIRVLike && ptr.ID().Op() == dialect.OpAccessChain {
		base, ok := ptr.Operand(0).Value()
		if !ok {
			break
		}
		ptr = base
	}
	return ptr
}

// BuildMemorySSA constructs memory-SSA form over g using dom for Phi
// placement (spec.md §4.4). Opaque calls (dialect.PointerOperand
// reporting no specific index) are modeled as Barrier sites versioning
// a pseudo variable that every tracked variable's reaching-definition
// query also consults, since a barrier may touch any memory the
// function can reach.
func BuildMemorySSA(g *CFG, dom *DomTree) *MemSSA {
	defBlocks := map[*ir.Node]map[*CFGNode]bool{} // var -> blocks that define it (nil key = all-memory)

	markDef := func(v *ir.Node, b *CFGNode) {
		if defBlocks[v] == nil {
			defBlocks[v] = map[*CFGNode]bool{}
		}
		defBlocks[v][b] = true
	}

	for _, cn := range g.Preorder {
		cn.Block.Children(func(instr *ir.Node) bool {
			id := instr.ID()
			if id.Dialect() != dialect.SPIRVLike {
				return true
			}
			idx, _, writes, ok := dialect.PointerOperand(id.Op())
			if !ok || !writes {
				return true
			}
			var v *ir.Node
			if idx >= 0 {
				if ptr, ok := instr.Operand(idx).Value(); ok {
					v = baseVariable(ptr)
				}
			}
			markDef(v, cn)
			return true
		})
	}

	ssa := &MemSSA{
		UseDef: map[*ir.Node]*MemValue{},
		DefOf:  map[*ir.Node]*MemValue{},
		PhisAt: map[*CFGNode]map[*ir.Node]*MemValue{},
	}

	df := dominanceFrontiers(g, dom)
	for v, blocks := range defBlocks {
		for _, b := range iteratedFrontier(blocks, df) {
			if ssa.PhisAt[b] == nil {
				ssa.PhisAt[b] = map[*ir.Node]*MemValue{}
			}
			if _, exists := ssa.PhisAt[b][v]; !exists {
				ssa.PhisAt[b][v] = &MemValue{Kind: MemPhi, Block: b, Var: v, Incoming: map[*CFGNode]*MemValue{}}
			}
		}
	}

	stacks := map[*ir.Node][]*MemValue{}
	seq := 0
	nextSeq := func() int { seq++; return seq }
	top := func(v *ir.Node) *MemValue {
		s := stacks[v]
		if len(s) == 0 {
			return &MemValue{Kind: MemLiveOnEntry, Var: v}
		}
		return s[len(s)-1]
	}
	mostRecent := func(a, b *MemValue) *MemValue {
		if a.seq >= b.seq {
			return a
		}
		return b
	}

	var renameBlock func(*CFGNode)
	renameBlock = func(b *CFGNode) {
		pushed := map[*ir.Node]int{}
		push := func(v *ir.Node, mv *MemValue) {
			mv.seq = nextSeq()
			stacks[v] = append(stacks[v], mv)
			pushed[v]++
		}

		for v, phi := range ssa.PhisAt[b] {
			push(v, phi)
		}

		b.Block.Children(func(instr *ir.Node) bool {
			id := instr.ID()
			if id.Dialect() != dialect.SPIRVLike {
				return true
			}
			idx, reads, writes, ok := dialect.PointerOperand(id.Op())
			if !ok {
				return true
			}
			var v *ir.Node
			if idx >= 0 {
				if ptr, ok := instr.Operand(idx).Value(); ok {
					v = baseVariable(ptr)
				}
			}
			if reads && !writes {
				ssa.UseDef[instr] = mostRecent(top(v), top(nil))
			}
			if writes {
				mv := &MemValue{Kind: MemStore, Block: b, Def: instr, Var: v}
				push(v, mv)
				ssa.DefOf[instr] = mv
			}
			return true
		})

		for _, s := range b.Succs {
			for v, phi := range ssa.PhisAt[s] {
				phi.Incoming[b] = mostRecent(top(v), top(nil))
			}
		}

		for _, c := range dom.Children(b) {
			renameBlock(c)
		}

		for v, n := range pushed {
			stacks[v] = stacks[v][:len(stacks[v])-n]
		}
	}
	renameBlock(g.Entry)

	return ssa
}

func dominanceFrontiers(g *CFG, dom *DomTree) map[*CFGNode][]*CFGNode {
	df := map[*CFGNode][]*CFGNode{}
	for _, b := range g.Preorder {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			runner := p
			for runner != nil && runner != dom.IDom(b) {
				df[runner] = append(df[runner], b)
				runner = dom.IDom(runner)
			}
		}
	}
	return df
}

func iteratedFrontier(defBlocks map[*CFGNode]bool, df map[*CFGNode][]*CFGNode) []*CFGNode {
	inSet := map[*CFGNode]bool{}
	var result []*CFGNode
	worklist := make([]*CFGNode, 0, len(defBlocks))
	for b := range defBlocks {
		worklist = append(worklist, b)
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, f := range df[b] {
			if !inSet[f] {
				inSet[f] = true
				result = append(result, f)
				worklist = append(worklist, f)
			}
		}
	}
	return result
}

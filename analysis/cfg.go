// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package analysis builds the CFG, dominator/post-dominator trees, and
// memory-SSA form described in spec.md §4.3, plus the AnalysisStorage
// cache that keys any analysis result by its type and invalidates it in
// bulk.
package analysis

import (
	"sort"

	"github.com/gogpu/gnmcore/dialect"
	"github.com/gogpu/gnmcore/ir"
)

// CFGNode is one basic block's position in a built CFG. CFGs are
// rebuilt from the IR on demand and never own it (spec.md §3).
type CFGNode struct {
	Block     *ir.Node
	Preds     []*CFGNode
	Succs     []*CFGNode
	PreOrder  int
	PostOrder int
}

// CFG is the control-flow graph of one function-shaped region, rooted
// at its entry block.
type CFG struct {
	Entry    *CFGNode
	Blocks   map[*ir.Node]*CFGNode
	Preorder []*CFGNode // DFS preorder from Entry
}

type buildConfig struct {
	stopAt        map[*ir.Node]bool
	continueLabel *ir.Node
}

// Option configures BuildCFG.
type Option func(*buildConfig)

// WithStopAt stops the CFG walk from recursing past the given blocks:
// they appear as leaves with no discovered successors, even if their
// terminator names further blocks.
func WithStopAt(blocks ...*ir.Node) Option {
	return func(c *buildConfig) {
		for _, b := range blocks {
			c.stopAt[b] = true
		}
	}
}

// WithContinueLabel excludes edges targeting label from the built CFG —
// used when analyzing a loop body without its back edge.
func WithContinueLabel(label *ir.Node) Option {
	return func(c *buildConfig) { c.continueLabel = label }
}

// BuildCFG discovers labels and terminators starting from seed,
// following branch targets to build the graph (spec.md §4.3).
func BuildCFG(seed *ir.Node, opts ...Option) *CFG {
	cfg := buildConfig{stopAt: map[*ir.Node]bool{}}
	for _, o := range opts {
		o(&cfg)
	}

	g := &CFG{Blocks: make(map[*ir.Node]*CFGNode)}
	entry := g.nodeFor(seed)
	g.Entry = entry

	visited := map[*ir.Node]bool{seed: true}
	queue := []*ir.Node{seed}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		cn := g.nodeFor(b)

		if cfg.stopAt[b] {
			continue
		}
		for _, target := range successorsOf(b) {
			if target == cfg.continueLabel {
				continue
			}
			tn := g.nodeFor(target)
			cn.Succs = append(cn.Succs, tn)
			tn.Preds = append(tn.Preds, cn)
			if !visited[target] {
				visited[target] = true
				queue = append(queue, target)
			}
		}
	}

	g.numberPreorder()
	g.numberPostorder()
	return g
}

func (g *CFG) nodeFor(b *ir.Node) *CFGNode {
	if n, ok := g.Blocks[b]; ok {
		return n
	}
	n := &CFGNode{Block: b}
	g.Blocks[b] = n
	return n
}

// successorsOf extracts the target blocks named by b's terminator.
func successorsOf(b *ir.Node) []*ir.Node {
	term := b.Last()
	if term == nil || term.ID().Dialect() != dialect.Builtin {
		return nil
	}
	switch term.ID().Op() {
	case dialect.OpBranch:
		return valueOperandsAsBlocks(term, 0, 1)
	case dialect.OpBranchCond:
		return valueOperandsAsBlocks(term, 1, 3)
	case dialect.OpLoopBack:
		return valueOperandsAsBlocks(term, 0, 1)
	case dialect.OpSwitch:
		var out []*ir.Node
		// operand 0 = selector, operand 1 = default block, then
		// (value, block) pairs.
		out = append(out, valueOperandsAsBlocks(term, 1, 2)...)
		for i := 3; i < term.NumOperands(); i += 2 {
			out = append(out, valueOperandsAsBlocks(term, i, i+1)...)
		}
		return out
	default:
		return nil
	}
}

func valueOperandsAsBlocks(term *ir.Node, from, to int) []*ir.Node {
	var out []*ir.Node
	for i := from; i < to && i < term.NumOperands(); i++ {
		if v, ok := term.Operand(i).Value(); ok {
			out = append(out, v)
		}
	}
	return out
}

func (g *CFG) numberPreorder() {
	n := 0
	var visit func(*CFGNode)
	visited := map[*CFGNode]bool{}
	visit = func(cn *CFGNode) {
		if visited[cn] {
			return
		}
		visited[cn] = true
		cn.PreOrder = n
		n++
		g.Preorder = append(g.Preorder, cn)
		succs := append([]*CFGNode(nil), cn.Succs...)
		sort.Slice(succs, func(i, j int) bool { return succs[i].Block.Seq() < succs[j].Block.Seq() })
		for _, s := range succs {
			visit(s)
		}
	}
	visit(g.Entry)
}

func (g *CFG) numberPostorder() {
	n := 0
	visited := map[*CFGNode]bool{}
	var visit func(*CFGNode)
	visit = func(cn *CFGNode) {
		if visited[cn] {
			return
		}
		visited[cn] = true
		succs := append([]*CFGNode(nil), cn.Succs...)
		sort.Slice(succs, func(i, j int) bool { return succs[i].Block.Seq() < succs[j].Block.Seq() })
		for _, s := range succs {
			visit(s)
		}
		cn.PostOrder = n
		n++
	}
	visit(g.Entry)
}

// Sinks returns the CFG nodes with no successors — the roots of the
// reverse graph used for post-dominance.
func (g *CFG) Sinks() []*CFGNode {
	var out []*CFGNode
	for _, cn := range g.Preorder {
		if len(cn.Succs) == 0 {
			out = append(out, cn)
		}
	}
	return out
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package analysis

import "sort"

// DomTree is a dominator (or, built over the reversed CFG, a
// post-dominator) tree. It exposes parent lookup, children, and DFS
// in/out numbers so Dominates is a constant-time interval check rather
// than a tree walk.
type DomTree struct {
	root     *CFGNode
	idom     map[*CFGNode]*CFGNode
	children map[*CFGNode][]*CFGNode
	in, out  map[*CFGNode]int
}

// direction abstracts walking the CFG forwards (dominance) or backwards
// (post-dominance) so both trees share one construction routine.
type direction struct {
	preds func(*CFGNode) []*CFGNode
	succs func(*CFGNode) []*CFGNode
}

func forward(g *CFG) direction {
	return direction{
		preds: func(n *CFGNode) []*CFGNode { return n.Preds },
		succs: func(n *CFGNode) []*CFGNode { return n.Succs },
	}
}

func backward(g *CFG) direction {
	return direction{
		preds: func(n *CFGNode) []*CFGNode { return n.Succs },
		succs: func(n *CFGNode) []*CFGNode { return n.Preds },
	}
}

// BuildDominatorTree computes the dominator tree of g rooted at its
// entry block, using the iterative reverse-postorder dataflow algorithm
// (Cooper, Harvey & Kennedy, "A Simple, Fast Dominance Algorithm") —
// the practical engineering equivalent of Semi-NCA that the regalloc
// SSA backends in the pack build their dominance passes around.
func BuildDominatorTree(g *CFG) *DomTree {
	return buildTree(g, g.Entry, forward(g))
}

// BuildPostDominatorTree computes the post-dominator tree of g over a
// virtual single exit joining every sink block (spec.md §4.3's
// post-dominance requirement, used by the memory-SSA barrier placement
// pass to detect unreachable-on-some-path stores).
func BuildPostDominatorTree(g *CFG) *DomTree {
	sinks := g.Sinks()
	virtual := &CFGNode{}
	for _, s := range sinks {
		virtual.Preds = append(virtual.Preds, s)
	}
	dir := backward(g)
	dir.succs = func(n *CFGNode) []*CFGNode {
		if n == virtual {
			return virtual.Preds
		}
		return n.Preds
	}
	dir.preds = func(n *CFGNode) []*CFGNode {
		if n == virtual {
			return nil
		}
		succs := n.Succs
		if len(succs) == 0 {
			return []*CFGNode{virtual}
		}
		return succs
	}
	return buildTree(g, virtual, dir)
}

func buildTree(g *CFG, root *CFGNode, dir direction) *DomTree {
	order := reversePostorder(root, dir)
	rpoNum := make(map[*CFGNode]int, len(order))
	for i, n := range order {
		rpoNum[n] = i
	}

	idom := map[*CFGNode]*CFGNode{root: root}
	changed := true
	for changed {
		changed = false
		for _, b := range order {
			if b == root {
				continue
			}
			var newIdom *CFGNode
			for _, p := range dir.preds(b) {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, rpoNum)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, root) // root has no idom (it self-loops in the algorithm above)

	tree := &DomTree{
		root:     root,
		idom:     idom,
		children: map[*CFGNode][]*CFGNode{},
		in:       map[*CFGNode]int{},
		out:      map[*CFGNode]int{},
	}
	for n, p := range idom {
		tree.children[p] = append(tree.children[p], n)
	}
	for _, kids := range tree.children {
		sort.Slice(kids, func(i, j int) bool { return rpoNum[kids[i]] < rpoNum[kids[j]] })
	}
	clock := 0
	var number func(*CFGNode)
	number = func(n *CFGNode) {
		tree.in[n] = clock
		clock++
		for _, c := range tree.children[n] {
			number(c)
		}
		tree.out[n] = clock
		clock++
	}
	number(root)
	return tree
}

func intersect(a, b *CFGNode, idom map[*CFGNode]*CFGNode, rpo map[*CFGNode]int) *CFGNode {
	for a != b {
		for rpo[a] > rpo[b] {
			a = idom[a]
		}
		for rpo[b] > rpo[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(root *CFGNode, dir direction) []*CFGNode {
	var post []*CFGNode
	visited := map[*CFGNode]bool{}
	var visit func(*CFGNode)
	visit = func(n *CFGNode) {
		if visited[n] {
			return
		}
		visited[n] = true
		succs := append([]*CFGNode(nil), dir.succs(n)...)
		sort.Slice(succs, func(i, j int) bool { return blockSeq(succs[i]) < blockSeq(succs[j]) })
		for _, s := range succs {
			visit(s)
		}
		post = append(post, n)
	}
	visit(root)
	out := make([]*CFGNode, len(post))
	for i, n := range post {
		out[len(post)-1-i] = n
	}
	return out
}

func blockSeq(n *CFGNode) uint64 {
	if n.Block == nil {
		return ^uint64(0) // virtual post-dominance root sorts last
	}
	return n.Block.Seq()
}

// IDom returns n's immediate dominator, or nil for the root.
func (t *DomTree) IDom(n *CFGNode) *CFGNode { return t.idom[n] }

// Children returns n's immediate children in the dominator tree.
func (t *DomTree) Children(n *CFGNode) []*CFGNode { return t.children[n] }

// Dominates reports whether a dominates b (reflexive: a dominates a).
func (t *DomTree) Dominates(a, b *CFGNode) bool {
	return t.in[a] <= t.in[b] && t.out[b] <= t.out[a]
}

// StrictlyDominates reports whether a dominates b and a != b.
func (t *DomTree) StrictlyDominates(a, b *CFGNode) bool {
	return a != b && t.Dominates(a, b)
}

// NearestCommonDominator returns the deepest node dominating both a and
// b — the join point the memory-SSA Phi-insertion pass uses to find
// where two definitions merge.
func (t *DomTree) NearestCommonDominator(a, b *CFGNode) *CFGNode {
	ancestors := map[*CFGNode]bool{}
	for n := a; ; n = t.idom[n] {
		ancestors[n] = true
		if n == t.root {
			break
		}
	}
	for n := b; ; n = t.idom[n] {
		if ancestors[n] {
			return n
		}
		if n == t.root {
			return t.root
		}
	}
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package analysis

// BackEdge is a CFG edge u -> v where v dominates u — the definition
// used throughout spec.md §4.3 and §4.4 to find loop headers and latches
// without relying on the IR's own LoopConstruct/Latch links (those are
// set by the translator; BackEdges recomputes the same fact structurally,
// which is what the memory-SSA soundness property (spec.md §8 item 7)
// checks against).
type BackEdge struct {
	From *CFGNode
	To   *CFGNode // the loop header
}

// FindBackEdges walks every CFG edge against dom and reports the ones
// that target a dominator of their source.
func FindBackEdges(g *CFG, dom *DomTree) []BackEdge {
	var out []BackEdge
	for _, cn := range g.Preorder {
		for _, s := range cn.Succs {
			if dom.Dominates(s, cn) {
				out = append(out, BackEdge{From: cn, To: s})
			}
		}
	}
	return out
}

// IsLoopHeader reports whether h is the target of any back edge in edges.
func IsLoopHeader(h *CFGNode, edges []BackEdge) bool {
	for _, e := range edges {
		if e.To == h {
			return true
		}
	}
	return false
}

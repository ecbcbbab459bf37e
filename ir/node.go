// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package ir implements the ownership-stable node graph shared by every
// dialect: regions, blocks, instructions, values and their uses. Rather
// than a class hierarchy, every node is the same Go struct tagged with a
// Kind and a dialect.InstructionID — "Polymorphic IR: modeled as a
// tagged (Kind, opcode) pair rather than deep inheritance" (spec.md §9).
package ir

import "github.com/gogpu/gnmcore/dialect"

// Kind distinguishes the node shapes described in spec.md §3.
type Kind uint8

const (
	// KindInstruction is a plain instruction: no use-list, not a value.
	KindInstruction Kind = iota
	// KindValue is an Instruction that additionally tracks uses.
	KindValue
	// KindBlock is a Value that is itself a RegionLike child container.
	KindBlock
	// KindSelection is a Block-shaped construct with header/merge.
	KindSelection
	// KindLoop is a Block-shaped construct with header/merge/latch/continue.
	KindLoop
	// KindContinue is the continue-construct of a KindLoop.
	KindContinue
	// KindRegion is a non-value RegionLike: a detached container such
	// as a module root.
	KindRegion
)

// IsValue reports whether nodes of this kind track a use-list.
func (k Kind) IsValue() bool {
	return k != KindInstruction && k != KindRegion
}

// IsRegionLike reports whether nodes of this kind own a child list.
func (k Kind) IsRegionLike() bool {
	switch k {
	case KindBlock, KindSelection, KindLoop, KindContinue, KindRegion:
		return true
	default:
		return false
	}
}

// Use records one operand slot that references a Value: the
// instruction reading it (User) and which operand position (OperandIndex).
type Use struct {
	User         *Node
	OperandIndex int
}

// Node is the single concrete shape behind every IR entity. Which fields
// are meaningful is determined by Kind: the use-list is only maintained
// for IsValue() kinds, and first/last/prev/next only for IsRegionLike()
// containers and the instructions living inside them.
type Node struct {
	ctx *Context
	seq uint64 // creation order; gives Operand.Compare a deterministic tiebreak

	kind Kind
	id   dialect.InstructionID
	loc  *Location

	operands []Operand

	// Instruction linkage: at most one parent RegionLike lists this
	// node, and prev/next form that parent's doubly-linked child list.
	parent     *Node
	prev, next *Node

	// Value-only.
	uses []Use

	// RegionLike-only: child linked list endpoints.
	first, last *Node

	// Construct-only (Selection/Loop/Continue).
	header, merge, latch, continueConstruct *Node

	erased bool
}

// Context returns the Context that owns n.
func (n *Node) Context() *Context { return n.ctx }

// Kind returns n's node kind.
func (n *Node) Kind() Kind { return n.kind }

// ID returns n's dialect-qualified opcode.
func (n *Node) ID() dialect.InstructionID { return n.id }

// Location returns n's source location, or nil if synthesized.
func (n *Node) Location() *Location { return n.loc }

// SetLocation sets n's source location.
func (n *Node) SetLocation(l Location) { n.loc = n.ctx.intern(l) }

// Seq returns n's creation-order sequence number.
func (n *Node) Seq() uint64 { return n.seq }

// Parent returns n's containing RegionLike, or nil if n is detached.
func (n *Node) Parent() *Node { return n.parent }

// Prev and Next walk n's parent's child list.
func (n *Node) Prev() *Node { return n.prev }
func (n *Node) Next() *Node { return n.next }

// First and Last return the first/last child of a RegionLike n.
func (n *Node) First() *Node { return n.first }
func (n *Node) Last() *Node  { return n.last }

// Header, Merge, Latch, ContinueConstruct expose the construct-only
// cross-links of Selection/Loop/Continue nodes.
func (n *Node) Header() *Node            { return n.header }
func (n *Node) Merge() *Node             { return n.merge }
func (n *Node) Latch() *Node             { return n.latch }
func (n *Node) ContinueConstruct() *Node { return n.continueConstruct }

// SetHeader, SetMerge, SetLatch, SetContinueConstruct wire the
// construct-only cross-links; the shader translator sets these once,
// right after creating a Selection/Loop/Continue node.
func (n *Node) SetHeader(h *Node)            { n.header = h }
func (n *Node) SetMerge(m *Node)             { n.merge = m }
func (n *Node) SetLatch(l *Node)             { n.latch = l }
func (n *Node) SetContinueConstruct(c *Node) { n.continueConstruct = c }

// Operands returns n's operand list. Callers must not mutate the
// returned slice directly — use AddOperand/ReplaceOperand/EraseOperand
// so the use-list bookkeeping stays consistent.
func (n *Node) Operands() []Operand { return n.operands }

// Operand returns the operand at index i.
func (n *Node) Operand(i int) Operand { return n.operands[i] }

// NumOperands returns the number of operands.
func (n *Node) NumOperands() int { return len(n.operands) }

// Uses returns the multiset of (user, operandIndex) pairs referencing n.
// Only meaningful when n.Kind().IsValue().
func (n *Node) Uses() []Use { return n.uses }

// HasUses reports whether any live instruction references n.
func (n *Node) HasUses() bool { return len(n.uses) > 0 }

// AddOperand appends op to n's operand list, registering a Use on the
// referenced Value if op is an OperandValue.
func (n *Node) AddOperand(op Operand) {
	idx := len(n.operands)
	n.operands = append(n.operands, op)
	if v, ok := op.Value(); ok {
		v.uses = append(v.uses, Use{User: n, OperandIndex: idx})
	}
}

// ReplaceOperand overwrites the operand at index i with op, retiring the
// old Use entry (if any) and registering a new one (if any) so the
// invariant "use-list of a Value is exactly the multiset of operand
// positions referencing it" (spec.md §4.1) holds after the call.
func (n *Node) ReplaceOperand(i int, op Operand) {
	old := n.operands[i]
	if v, ok := old.Value(); ok {
		v.removeUse(n, i)
	}
	n.operands[i] = op
	if v, ok := op.Value(); ok {
		v.uses = append(v.uses, Use{User: n, OperandIndex: i})
	}
}

// EraseOperand removes the operand at index i, shifting later operands
// down by one and retargeting their recorded Use.OperandIndex so it
// keeps pointing at the right slot.
func (n *Node) EraseOperand(i int) {
	old := n.operands[i]
	if v, ok := old.Value(); ok {
		v.removeUse(n, i)
	}
	n.operands = append(n.operands[:i], n.operands[i+1:]...)
	for j := i; j < len(n.operands); j++ {
		if v, ok := n.operands[j].Value(); ok {
			v.shiftUse(n, j+1, j)
		}
	}
}

func (n *Node) removeUse(user *Node, operandIndex int) {
	for i, u := range n.uses {
		if u.User == user && u.OperandIndex == operandIndex {
			n.uses = append(n.uses[:i], n.uses[i+1:]...)
			return
		}
	}
}

func (n *Node) shiftUse(user *Node, from, to int) {
	for i, u := range n.uses {
		if u.User == user && u.OperandIndex == from {
			n.uses[i].OperandIndex = to
			return
		}
	}
}

// ReplaceAllUsesWith retargets every use of n onto other, leaving n with
// an empty use-list. n and other must belong to the same Context.
func (n *Node) ReplaceAllUsesWith(other *Node) {
	n.ReplaceUsesIf(other, func(Use) bool { return true })
}

// ReplaceUsesIf retargets onto other only the uses for which pred
// returns true, leaving the rest pointing at n.
func (n *Node) ReplaceUsesIf(other *Node, pred func(Use) bool) {
	kept := n.uses[:0]
	for _, u := range n.uses {
		if !pred(u) {
			kept = append(kept, u)
			continue
		}
		u.User.operands[u.OperandIndex] = FromValue(other)
		other.uses = append(other.uses, u)
	}
	n.uses = kept
}

// insertChildBefore splices child into parent's list immediately before
// mark (or at the end if mark is nil).
func insertChildBefore(parent, mark, child *Node) {
	child.parent = parent
	if mark == nil {
		child.prev = parent.last
		child.next = nil
		if parent.last != nil {
			parent.last.next = child
		} else {
			parent.first = child
		}
		parent.last = child
		return
	}
	child.prev = mark.prev
	child.next = mark
	if mark.prev != nil {
		mark.prev.next = child
	} else {
		parent.first = child
	}
	mark.prev = child
}

// AddChild appends child to the end of a RegionLike n's child list.
func (n *Node) AddChild(child *Node) {
	n.unlinkFromCurrentParent(child)
	insertChildBefore(n, nil, child)
}

// PrependChild inserts child at the start of a RegionLike n's child list.
func (n *Node) PrependChild(child *Node) {
	n.unlinkFromCurrentParent(child)
	insertChildBefore(n, n.first, child)
}

// InsertAfter inserts newNode immediately after point within point's
// parent region.
func InsertAfter(point, newNode *Node) {
	parent := point.parent
	parent.unlinkFromCurrentParent(newNode)
	insertChildBefore(parent, point.next, newNode)
}

// InsertBefore inserts newNode immediately before point within point's
// parent region.
func InsertBefore(point, newNode *Node) {
	parent := point.parent
	parent.unlinkFromCurrentParent(newNode)
	insertChildBefore(parent, point, newNode)
}

func (n *Node) unlinkFromCurrentParent(child *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
}

// Remove unlinks child from n's list without erasing it: child remains
// allocated and can be reinserted elsewhere (its operands and, if it is
// a Value, its uses are untouched).
func (n *Node) Remove(child *Node) {
	if child.parent != n {
		return
	}
	if child.prev != nil {
		child.prev.next = child.next
	} else {
		n.first = child.next
	}
	if child.next != nil {
		child.next.prev = child.prev
	} else {
		n.last = child.prev
	}
	child.parent = nil
	child.prev = nil
	child.next = nil
}

// Erase permanently retires n: it is unlinked from its parent (if any)
// and its operand list is cleared, dropping its uses of other Values.
// Erasing a Value with live uses is a fatal invariant violation
// (spec.md §4.1) — the caller must RAUW or otherwise clear n.Uses()
// first.
func (n *Node) Erase() {
	if n.kind.IsValue() && n.HasUses() {
		panic("ir: erase of value with live uses")
	}
	if n.parent != nil {
		n.parent.Remove(n)
	}
	for i := range n.operands {
		if v, ok := n.operands[i].Value(); ok {
			v.removeUse(n, i)
		}
	}
	n.operands = nil
	n.erased = true
}

// Erased reports whether Erase has been called on n.
func (n *Node) Erased() bool { return n.erased }

// Children iterates a RegionLike's direct children in list order. fn
// returning false stops iteration early.
func (n *Node) Children(fn func(*Node) bool) {
	for c := n.first; c != nil; {
		next := c.next // fn may remove c from the list
		if !fn(c) {
			return
		}
		c = next
	}
}

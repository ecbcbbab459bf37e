// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package dialect defines the opcode sets layered over the ir package's
// node storage. An instruction's identity is a (Dialect, Op) pair packed
// into a single InstructionID rather than a distinct Go type per opcode —
// the IR stays one concrete node shape, and dialects are thin accessors
// over it.
package dialect

// Dialect identifies which opcode table an instruction's Op is drawn
// from.
type Dialect uint8

const (
	// Builtin covers module/function/block structural ops shared by
	// every IR: parameters, constants, control flow.
	Builtin Dialect = iota
	// SPIRVLike covers the SPIR-V-shaped ops the shader translator
	// emits as it lowers GCN (arithmetic, memory, composite, image).
	SPIRVLike
	// MemSSA covers the memory-SSA auxiliary IR: Var/Def/Use/Phi/
	// Barrier/Jump/Exit/Scope.
	MemSSA
	// SOP2 covers GCN's two-operand scalar ALU opcode family, decoded
	// directly from the guest shader binary before translation.
	SOP2
)

// Op is an opcode within a Dialect. Its numeric value is only unique
// within that dialect.
type Op uint16

// InstructionID packs a Dialect and Op into one comparable value so
// instructions can be switched on and deduplicated by a single integer
// key instead of a (type, field) pair.
type InstructionID uint32

// Pack combines a dialect and opcode into an InstructionID.
func Pack(d Dialect, op Op) InstructionID {
	return InstructionID(d)<<16 | InstructionID(op)
}

// Dialect returns the dialect component of id.
func (id InstructionID) Dialect() Dialect { return Dialect(id >> 16) }

// Op returns the opcode component of id.
func (id InstructionID) Op() Op { return Op(id & 0xFFFF) }

// Name returns a human-readable mnemonic for id, used by the IR printer.
func (id InstructionID) Name() string {
	switch id.Dialect() {
	case Builtin:
		return builtinNames[id.Op()]
	case SPIRVLike:
		return spirvNames[id.Op()]
	case MemSSA:
		return memSSANames[id.Op()]
	case SOP2:
		return sop2Names[id.Op()]
	default:
		return "<unknown-dialect>"
	}
}

func nameTable(entries map[Op]string, size int) []string {
	t := make([]string, size)
	for op, name := range entries {
		t[op] = name
	}
	for i, n := range t {
		if n == "" {
			t[i] = "<unnamed>"
		}
	}
	return t
}

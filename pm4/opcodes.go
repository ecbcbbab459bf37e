// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pm4

// Op is a type-3 PM4 opcode.
type Op uint8

// Standard GFX/compute opcodes (spec.md §4.9). Values follow the
// numbering used by AMD's open GCN PM4 packet definitions.
const (
	OpNop Op = 0x10

	OpSetConfigReg   Op = 0x68
	OpSetContextReg  Op = 0x69
	OpSetShReg       Op = 0x76
	OpSetUConfigReg  Op = 0x79

	OpIndirectBuffer      Op = 0x3F
	OpIndirectBufferConst Op = 0x33

	OpNumInstances       Op = 0x2F
	OpDrawIndex2         Op = 0x27
	OpDrawIndexAuto      Op = 0x2D
	OpDrawIndexOffset2   Op = 0x35
	OpDrawIndexIndirect  Op = 0x29

	OpDispatchDirect   Op = 0x15
	OpDispatchIndirect Op = 0x16

	OpEventWriteEOP Op = 0x47
	OpReleaseMem    Op = 0x49

	OpWriteData Op = 0x37
	OpDMAData   Op = 0x50

	OpWaitRegMem Op = 0x3C
	OpCondWrite  Op = 0x45

	OpWaitOnCECounter      Op = 0x86
	OpWaitOnDECounterDiff  Op = 0x88
	OpIncrementCECounter   Op = 0x84
	OpIncrementDECounter   Op = 0x85
)

// Custom IT_* opcodes (spec.md §6): cross-cutting device-level
// requests that ride the same PM4 stream as standard packets, handled
// by the device layer (C11) rather than a pipe's own register/draw
// state.
const (
	ITFlip          Op = 0xF0
	ITMapMemory     Op = 0xF1
	ITUnmapMemory   Op = 0xF2
	ITProtectMemory Op = 0xF3
	ITUnmapProcess  Op = 0xF4

	// ITMapProcess has no assigned value in spec.md's §6 payload table
	// (only 0xF0-0xF4 are listed there for the six IT_* ops named in
	// §4.9); placed immediately after the documented range. See
	// DESIGN.md for the open-question writeup this shares with the
	// 0xF0-0xF4 vendor-opcode-overlap question from spec.md §9.
	ITMapProcess Op = 0xF5
)

// DataSel selects what EVENT_WRITE_EOP/RELEASE_MEM write to their
// target address (spec.md §4.9).
type DataSel uint8

const (
	DataSelNone       DataSel = 0
	DataSelConstant32 DataSel = 1
	DataSelConstant64 DataSel = 2
	DataSelWallClock  DataSel = 3
	DataSelMonotonic  DataSel = 4
)

// CompareFn is the comparison WAIT_REG_MEM/COND_WRITE polls with.
type CompareFn uint8

const (
	CompareAlways CompareFn = 0
	CompareLess   CompareFn = 1
	CompareLessEq CompareFn = 2
	CompareEqual  CompareFn = 3
	CompareNotEq  CompareFn = 4
	CompareGtEq   CompareFn = 5
	CompareGt     CompareFn = 6
)

// Eval applies fn to (polled & mask) versus ref.
func (fn CompareFn) Eval(polled, mask, ref uint32) bool {
	v := polled & mask
	switch fn {
	case CompareAlways:
		return true
	case CompareLess:
		return v < ref
	case CompareLessEq:
		return v <= ref
	case CompareEqual:
		return v == ref
	case CompareNotEq:
		return v != ref
	case CompareGtEq:
		return v >= ref
	case CompareGt:
		return v > ref
	default:
		return false
	}
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dialect

// SOP2 mirrors a slice of AMD GCN's scalar two-operand ALU encoding
// (SOP2 microcode format): the shader translator's decode stage recovers
// these opcodes straight from the guest binary before lowering each one
// to the SPIR-V-like dialect.
const (
	SOP2_SAddU32 Op = iota
	SOP2_SSubU32
	SOP2_SAddI32
	SOP2_SSubI32
	SOP2_SMinI32
	SOP2_SMaxI32
	SOP2_SAndB32
	SOP2_SOrB32
	SOP2_SXorB32
	SOP2_SLshlB32
	SOP2_SLshrB32
	SOP2_SAshrI32
	SOP2_SMulI32
)

var sop2Names = nameTable(map[Op]string{
	SOP2_SAddU32: "s_add_u32", SOP2_SSubU32: "s_sub_u32",
	SOP2_SAddI32: "s_add_i32", SOP2_SSubI32: "s_sub_i32",
	SOP2_SMinI32: "s_min_i32", SOP2_SMaxI32: "s_max_i32",
	SOP2_SAndB32: "s_and_b32", SOP2_SOrB32: "s_or_b32", SOP2_SXorB32: "s_xor_b32",
	SOP2_SLshlB32: "s_lshl_b32", SOP2_SLshrB32: "s_lshr_b32", SOP2_SAshrI32: "s_ashr_i32",
	SOP2_SMulI32: "s_mul_i32",
}, int(SOP2_SMulI32)+1)

// ToSPIRVLike maps a SOP2 opcode to the SPIR-V-like op the translator
// lowers it to. ok is false for opcodes with no 1:1 arithmetic mapping
// (SOP2_SMinI32 and SOP2_SMaxI32) and for unknown opcodes.
func ToSPIRVLike(op Op) (Op, bool) {
	switch op {
	case SOP2_SAddU32, SOP2_SAddI32:
		return OpIAdd, true
	case SOP2_SSubU32, SOP2_SSubI32:
		return OpISub, true
	case SOP2_SMulI32:
		return OpIMul, true
	case SOP2_SAndB32:
		return OpBitwiseAnd, true
	case SOP2_SOrB32:
		return OpBitwiseOr, true
	case SOP2_SXorB32:
		return OpBitwiseXor, true
	case SOP2_SLshlB32:
		return OpShiftLeft, true
	case SOP2_SLshrB32:
		return OpShiftRightLogic, true
	case SOP2_SAshrI32:
		return OpShiftRightArith, true
	case SOP2_SMinI32, SOP2_SMaxI32:
		// min/max have no single SPIR-V-like arithmetic opcode in this
		// IR; the translator expands them to a compare + select pair.
		return 0, false
	default:
		return 0, false
	}
}

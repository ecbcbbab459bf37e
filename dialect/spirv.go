// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dialect

// SPIRVLike opcodes. Names deliberately echo SPIR-V's own mnemonics
// (OpIAdd, OpFMul, ...) since this dialect is what the shader translator
// (package shader) emits while lowering GCN — it is not SPIR-V itself,
// only SPIR-V-shaped IR; no encoder in this module serializes it to
// SPIR-V binary words.
const (
	OpIAdd Op = iota
	OpISub
	OpIMul
	OpSDiv
	OpUDiv
	OpSMod
	OpUMod
	OpShiftLeft
	OpShiftRightArith
	OpShiftRightLogic
	OpBitwiseAnd
	OpBitwiseOr
	OpBitwiseXor
	OpNot

	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFMod
	OpFNegate

	OpIEqual
	OpINotEqual
	OpSLessThan
	OpULessThan
	OpSGreaterThan
	OpUGreaterThan
	OpFOrdEqual
	OpFOrdLessThan
	OpFOrdGreaterThan
	OpFUnordNotEqual

	OpLogicalAnd
	OpLogicalOr
	OpLogicalNot
	OpSelect

	OpConvertSToF
	OpConvertUToF
	OpConvertFToS
	OpConvertFToU
	OpBitcast
	OpFConvert

	OpCompositeConstruct
	OpCompositeExtract
	OpCompositeInsert

	OpLoad
	OpStore
	OpAccessChain
	OpVariable

	OpImageSampleImplicitLod
	OpImageFetch
	OpImageWrite

	OpFunctionCall
	OpPhi
)

var spirvNames = nameTable(map[Op]string{
	OpIAdd: "iadd", OpISub: "isub", OpIMul: "imul", OpSDiv: "sdiv", OpUDiv: "udiv",
	OpSMod: "smod", OpUMod: "umod", OpShiftLeft: "shl", OpShiftRightArith: "shr_a",
	OpShiftRightLogic: "shr_l", OpBitwiseAnd: "and", OpBitwiseOr: "or", OpBitwiseXor: "xor", OpNot: "not",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv", OpFMod: "fmod", OpFNegate: "fneg",
	OpIEqual: "ieq", OpINotEqual: "ine", OpSLessThan: "slt", OpULessThan: "ult",
	OpSGreaterThan: "sgt", OpUGreaterThan: "ugt", OpFOrdEqual: "foeq", OpFOrdLessThan: "folt",
	OpFOrdGreaterThan: "fogt", OpFUnordNotEqual: "fune",
	OpLogicalAnd: "land", OpLogicalOr: "lor", OpLogicalNot: "lnot", OpSelect: "select",
	OpConvertSToF: "s_to_f", OpConvertUToF: "u_to_f", OpConvertFToS: "f_to_s", OpConvertFToU: "f_to_u",
	OpBitcast: "bitcast", OpFConvert: "fconvert",
	OpCompositeConstruct: "composite_construct", OpCompositeExtract: "composite_extract",
	OpCompositeInsert: "composite_insert",
	OpLoad: "load", OpStore: "store", OpAccessChain: "access_chain", OpVariable: "variable",
	OpImageSampleImplicitLod: "image_sample", OpImageFetch: "image_fetch", OpImageWrite: "image_write",
	OpFunctionCall: "fcall", OpPhi: "phi",
}, int(OpPhi)+1)

// pureOps are ops with no side effects — candidates for the instruction
// combiner's common-subexpression elimination (spec.md §4.5).
var pureOps = map[Op]bool{
	OpIAdd: true, OpISub: true, OpIMul: true, OpSDiv: true, OpUDiv: true, OpSMod: true, OpUMod: true,
	OpShiftLeft: true, OpShiftRightArith: true, OpShiftRightLogic: true,
	OpBitwiseAnd: true, OpBitwiseOr: true, OpBitwiseXor: true, OpNot: true,
	OpFAdd: true, OpFSub: true, OpFMul: true, OpFDiv: true, OpFMod: true, OpFNegate: true,
	OpIEqual: true, OpINotEqual: true, OpSLessThan: true, OpULessThan: true,
	OpSGreaterThan: true, OpUGreaterThan: true, OpFOrdEqual: true, OpFOrdLessThan: true,
	OpFOrdGreaterThan: true, OpFUnordNotEqual: true,
	OpLogicalAnd: true, OpLogicalOr: true, OpLogicalNot: true, OpSelect: true,
	OpConvertSToF: true, OpConvertUToF: true, OpConvertFToS: true, OpConvertFToU: true,
	OpBitcast: true, OpFConvert: true,
	OpCompositeConstruct: true, OpCompositeExtract: true, OpCompositeInsert: true,
	OpAccessChain: true,
}

// IsWithoutSideEffects reports whether op is pure and therefore eligible
// for the combiner's dominating-duplicate search.
func IsWithoutSideEffects(id InstructionID) bool {
	return id.Dialect() == SPIRVLike && pureOps[id.Op()]
}

// PointerOperand reports which operand index of a SPIR-V-like
// memory-touching op names the pointer it reads or writes, and what kind
// of access that is. ok is false for ops that touch no memory.
func PointerOperand(op Op) (index int, reads, writes bool, ok bool) {
	switch op {
	case OpLoad:
		return 0, true, false, true
	case OpStore:
		return 0, false, true, true
	case OpFunctionCall:
		// Conservatively: an opaque call may read and write any
		// memory it can reach; memory-SSA models it as a Barrier
		// rather than a pointer-indexed Def/Use.
		return -1, true, true, true
	default:
		return -1, false, false, false
	}
}

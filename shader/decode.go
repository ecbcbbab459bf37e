// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gnmcore/dialect"
)

// SOP2Instruction is one decoded scalar two-operand instruction word,
// following GCN's SOP2 microcode layout: encoding class in bits 31:30,
// a 7-bit opcode in 29:23, a 7-bit scalar destination in 22:16, and two
// 8-bit scalar source fields in 15:8 and 7:0.
type SOP2Instruction struct {
	Op    dialect.Op
	SDst  uint8
	SSrc0 uint8
	SSrc1 uint8
}

const sop2EncodingClass = 0b10

var sop2OpTable = map[uint8]dialect.Op{
	0: dialect.SOP2_SAddU32,
	1: dialect.SOP2_SSubU32,
	2: dialect.SOP2_SAddI32,
	3: dialect.SOP2_SSubI32,
	4: dialect.SOP2_SMinI32,
	5: dialect.SOP2_SMaxI32,
	6: dialect.SOP2_SAndB32,
	7: dialect.SOP2_SOrB32,
	8: dialect.SOP2_SXorB32,
	9: dialect.SOP2_SLshlB32,
	10: dialect.SOP2_SLshrB32,
	11: dialect.SOP2_SAshrI32,
	12: dialect.SOP2_SMulI32,
}

// DecodeSOP2Word decodes a single 32-bit little-endian instruction word.
// ok is false if word isn't a SOP2 encoding or its opcode field isn't
// one of the mnemonics this translator understands.
func DecodeSOP2Word(word uint32) (SOP2Instruction, bool) {
	class := uint8(word>>30) & 0b11
	if class != sop2EncodingClass {
		return SOP2Instruction{}, false
	}
	opBits := uint8(word>>23) & 0x7F
	op, ok := sop2OpTable[opBits]
	if !ok {
		return SOP2Instruction{}, false
	}
	return SOP2Instruction{
		Op:    op,
		SDst:  uint8(word>>16) & 0x7F,
		SSrc1: uint8(word>>8) & 0xFF,
		SSrc0: uint8(word) & 0xFF,
	}, true
}

// DecodeSOP2Stream decodes a flat little-endian word stream, stopping at
// the first word it cannot decode as SOP2 — this translator only
// implements the scalar-ALU subset of GCN needed to exercise the IR
// pipeline end to end, not full ISA coverage.
func DecodeSOP2Stream(binaryData []byte) ([]SOP2Instruction, error) {
	if len(binaryData)%4 != 0 {
		return nil, fmt.Errorf("shader: binary length %d is not word-aligned", len(binaryData))
	}
	var out []SOP2Instruction
	for off := 0; off < len(binaryData); off += 4 {
		word := binary.LittleEndian.Uint32(binaryData[off:])
		instr, ok := DecodeSOP2Word(word)
		if !ok {
			break
		}
		out = append(out, instr)
	}
	return out, nil
}

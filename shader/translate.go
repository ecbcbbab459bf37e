// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"fmt"

	"github.com/gogpu/gnmcore/dialect"
	"github.com/gogpu/gnmcore/ir"
)

// Translation is the IR produced by lowering one GCN binary: a single
// function-shaped block plus the live SGPR -> Value bindings at the end
// of the decoded instruction stream.
type Translation struct {
	Context   *ir.Context
	Function  *ir.Node
	Registers map[uint8]*ir.Node
}

// Translate decodes binaryData as a SOP2 instruction stream under env
// and lowers it into SPIR-V-like IR, expanding the opcodes
// dialect.ToSPIRVLike has no direct mapping for (min/max) into a
// compare-and-select pair, per spec.md §4.5.
func Translate(env Environment, binaryData []byte) (*Translation, error) {
	instrs, err := DecodeSOP2Stream(binaryData)
	if err != nil {
		return nil, err
	}

	ctx := ir.NewContext()
	fn := ctx.NewBlock(dialect.Pack(dialect.Builtin, dialect.OpFunction))
	regs := make(map[uint8]*ir.Node, 16)

	for _, u := range env.UserSGPRs {
		p := ctx.NewValue(dialect.Pack(dialect.Builtin, dialect.OpParameter))
		fn.AddChild(p)
		regs[u.Register] = p
	}

	readReg := func(r uint8) *ir.Node {
		if v, ok := regs[r]; ok {
			return v
		}
		v := ctx.NewValue(dialect.Pack(dialect.Builtin, dialect.OpUndef))
		fn.AddChild(v)
		regs[r] = v
		return v
	}

	for _, instr := range instrs {
		a := readReg(instr.SSrc0)
		b := readReg(instr.SSrc1)

		var result *ir.Node
		if spirvOp, ok := dialect.ToSPIRVLike(instr.Op); ok {
			result = ctx.NewValue(dialect.Pack(dialect.SPIRVLike, spirvOp), ir.FromValue(a), ir.FromValue(b))
			fn.AddChild(result)
		} else {
			cmp, ok := minMaxCompare(instr.Op)
			if !ok {
				return nil, fmt.Errorf("shader: no lowering for SOP2 opcode %v", instr.Op)
			}
			cond := ctx.NewValue(dialect.Pack(dialect.SPIRVLike, cmp), ir.FromValue(a), ir.FromValue(b))
			fn.AddChild(cond)
			result = ctx.NewValue(dialect.Pack(dialect.SPIRVLike, dialect.OpSelect), ir.FromValue(cond), ir.FromValue(a), ir.FromValue(b))
			fn.AddChild(result)
		}
		regs[instr.SDst] = result
	}

	fn.AddChild(ctx.NewInstruction(dialect.Pack(dialect.Builtin, dialect.OpReturn)))
	return &Translation{Context: ctx, Function: fn, Registers: regs}, nil
}

func minMaxCompare(op dialect.Op) (dialect.Op, bool) {
	switch op {
	case dialect.SOP2_SMinI32:
		return dialect.OpSLessThan, true
	case dialect.SOP2_SMaxI32:
		return dialect.OpSGreaterThan, true
	default:
		return 0, false
	}
}

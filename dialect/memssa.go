// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package dialect

// MemSSA opcodes model spec.md §3's auxiliary memory-SSA IR: an SSA form
// over abstract memory cells rather than scalar values.
const (
	OpVar Op = iota
	OpDef
	OpUse
	OpPhi_
	OpBarrier
	OpJump
	OpExit
	OpScope
)

var memSSANames = nameTable(map[Op]string{
	OpVar:     "msa.var",
	OpDef:     "msa.def",
	OpUse:     "msa.use",
	OpPhi_:    "msa.phi",
	OpBarrier: "msa.barrier",
	OpJump:    "msa.jump",
	OpExit:    "msa.exit",
	OpScope:   "msa.scope",
}, int(OpScope)+1)

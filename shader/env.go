// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package shader translates GCN shader binaries into the SPIR-V-like IR
// the cache (package cache) hands off for host compilation, and runs the
// instruction-combiner optimizer pass over the result (spec.md §4.5).
package shader

// Stage identifies which pipeline stage a GCN binary targets. Only the
// stages the PM4 draw/dispatch opcodes can bind are represented.
type Stage uint8

const (
	StageVertex Stage = iota
	StagePixel
	StageCompute
	StageGeometry
	StageHull
	StageDomain
)

// UserSGPR describes one scalar general-purpose register the runtime
// preloads before the shader starts — GCN's mechanism for passing
// descriptor-table pointers, vertex/instance offsets, and similar
// driver-managed state into the first few SGPRs.
type UserSGPR struct {
	Register uint8
	Purpose  string // e.g. "vertex_buffer_table", "constant_buffer_table"
}

// Environment is the translator's input alongside the raw binary: which
// stage it targets and how the frontend wired up its user-SGPR layout.
type Environment struct {
	Stage      Stage
	UserSGPRs  []UserSGPR
	NumSGPRs   int
	NumVGPRs   int
}

// SGPRPurpose returns the purpose string bound to reg, or "" if reg is
// not a user SGPR under this environment.
func (e Environment) SGPRPurpose(reg uint8) string {
	for _, u := range e.UserSGPRs {
		if u.Register == reg {
			return u.Purpose
		}
	}
	return ""
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package bits provides the small usage-flag algebra used by the
// resource cache's access tracking and the device's flip path: a set of
// flags, a read/write split, and a compatibility test for deciding
// whether two accesses need a barrier between them.
package bits

// Access is a bitset of how a resource or register range is being
// touched. The write-shaped flags are collected in writeMask so
// IsReadOnly is a single mask test.
type Access uint32

const (
	None Access = 0

	Read       Access = 1 << 0
	Write      Access = 1 << 1
	CopySrc    Access = 1 << 2
	CopyDst    Access = 1 << 3
	ShaderRead Access = 1 << 4
	ShaderRW   Access = 1 << 5
	Indirect   Access = 1 << 6
)

var writeMask = Write | CopyDst | ShaderRW

// IsReadOnly reports whether a contains no write-shaped flag.
func (a Access) IsReadOnly() bool {
	return a&writeMask == 0
}

// IsEmpty reports whether no flags are set.
func (a Access) IsEmpty() bool {
	return a == None
}

// Contains reports whether every flag in other is also set in a.
func (a Access) Contains(other Access) bool {
	return a&other == other
}

// IsCompatible reports whether two accesses to the same resource can
// proceed without an intervening barrier: either one is empty, both are
// read-only, or they are identical. Any other combination mixes a write
// with something else and needs ordering.
func (a Access) IsCompatible(other Access) bool {
	if a.IsEmpty() || other.IsEmpty() {
		return true
	}
	if a.IsReadOnly() && other.IsReadOnly() {
		return true
	}
	return a == other
}

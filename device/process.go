// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

import (
	"fmt"
	"sync"
)

// kMaxProcessCount bounds the number of guest processes (VM slots) a
// Device can host concurrently (spec.md §3's Process/VM slot type).
// spec.md does not name an exact value; 16 is chosen as comfortably
// above the handful of titles a single emulator session ever runs
// concurrently, matching the source's own small, fixed slot table.
const kMaxProcessCount = 16

// BufferAttribute describes one of a process's 10 registrable display
// buffer formats (spec.md §3's `buffer-attributes[10]`).
type BufferAttribute struct {
	Width, Height uint32
	Pitch         uint32
	Format        uint32
	TileModeRaw   uint32
}

// Process is one guest VM slot (spec.md §3): `{pid -> vmId, fd,
// buffer-attributes[10], buffers[10], vmTable}`.
type Process struct {
	PID  uint64
	VMID uint32
	FD   int

	BufferAttributes [10]BufferAttribute
	Buffers          [10]uint64 // guest addresses of the 10 registered display buffers

	Memory *VMTable
}

// ErrProcessTableFull is returned by MapProcess when every VM slot is
// occupied.
var ErrProcessTableFull = fmt.Errorf("device: process table full (max %d)", kMaxProcessCount)

// ErrProcessNotFound is returned by UnmapProcess and lookups for a pid
// with no mapped VM slot.
var ErrProcessNotFound = fmt.Errorf("device: process not found")

// ProcessTable owns the kMaxProcessCount VM slots a Device
// multiplexes guest processes across, keyed by both pid and the vmId
// a pipe's PM4 stream carries (spec.md §6: guest addresses arrive as
// `vmId<<40 | a`).
type ProcessTable struct {
	mu      sync.Mutex
	bySlot  [kMaxProcessCount]*Process
	byPID   map[uint64]*Process
}

// NewProcessTable constructs an empty table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{byPID: make(map[uint64]*Process)}
}

// MapProcess allocates a free VM slot for pid, backed by fd (the
// guest's memory-mapped file descriptor in the source implementation;
// kept only as an opaque attribute here since this emulator backs
// guest memory with host-allocated slices rather than mmap).
func (t *ProcessTable) MapProcess(pid uint64, fd int) (*Process, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byPID[pid]; exists {
		return nil, fmt.Errorf("device: pid %d already mapped", pid)
	}

	for slot, p := range t.bySlot {
		if p == nil {
			proc := &Process{
				PID:    pid,
				VMID:   uint32(slot),
				FD:     fd,
				Memory: newVMTable(),
			}
			t.bySlot[slot] = proc
			t.byPID[pid] = proc
			return proc, nil
		}
	}
	return nil, ErrProcessTableFull
}

// UnmapProcess releases pid's VM slot, freeing it for reuse.
func (t *ProcessTable) UnmapProcess(pid uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	proc, ok := t.byPID[pid]
	if !ok {
		return ErrProcessNotFound
	}
	delete(t.byPID, pid)
	t.bySlot[proc.VMID] = nil
	return nil
}

// ByVMID returns the process occupying slot vmId, or nil if the slot
// is free.
func (t *ProcessTable) ByVMID(vmID uint32) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(vmID) >= len(t.bySlot) {
		return nil
	}
	return t.bySlot[vmID]
}

// ByPID returns the process mapped to pid, or nil.
func (t *ProcessTable) ByPID(pid uint64) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byPID[pid]
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// vmMapping is one entry of a process's vmTable: an interval map
// payload `{memoryType, prot, offset, baseAddress}` keyed by guest
// address range (spec.md §3). baseAddress in the source names a host
// virtual address a guest range is mmap'd to; here it names the
// host-allocated backing slice itself, since this emulator doesn't
// share an address space with guest code.
type vmMapping struct {
	start, end uint64
	memoryType uint32
	prot       uint32
	offset     uint64
	backing    []byte
}

func (m vmMapping) contains(addr uint64) bool { return addr >= m.start && addr < m.end }

// VMTable is one process's guest address space: a linear scan over
// live mappings, the same bounded-linear-scan shape as the resource
// cache's syncTable (see [[cache-synctable]] in DESIGN.md) — a
// process maps at most a few dozen ranges, so no interval-tree
// library is warranted here either.
type VMTable struct {
	mu       sync.RWMutex
	mappings []vmMapping
}

func newVMTable() *VMTable { return &VMTable{} }

// ErrNoMapping is returned when an access falls outside every mapped
// range.
var ErrNoMapping = fmt.Errorf("device: address not mapped")

// Map installs a new mapping covering [addr, addr+size), backed by
// freshly allocated host memory representing the guest's physical
// pages (mapMemory, spec.md §4.10).
func (t *VMTable) Map(addr, size uint64, memoryType, prot uint32, offset uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mappings = append(t.mappings, vmMapping{
		start:      addr,
		end:        addr + size,
		memoryType: memoryType,
		prot:       prot,
		offset:     offset,
		backing:    make([]byte, size),
	})
}

// Unmap removes the mapping exactly covering [addr, addr+size), if
// any (unmapMemory, spec.md §4.10).
func (t *VMTable) Unmap(addr, size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	end := addr + size
	out := t.mappings[:0]
	for _, m := range t.mappings {
		if m.start == addr && m.end == end {
			continue
		}
		out = append(out, m)
	}
	t.mappings = out
}

// Protect updates the protection flags of the mapping exactly covering
// [addr, addr+size) (protectMemory, spec.md §4.10).
func (t *VMTable) Protect(addr, size uint64, prot uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	end := addr + size
	for i := range t.mappings {
		if t.mappings[i].start == addr && t.mappings[i].end == end {
			t.mappings[i].prot = prot
			return nil
		}
	}
	return ErrNoMapping
}

func (t *VMTable) find(addr uint64) (vmMapping, bool) {
	for _, m := range t.mappings {
		if m.contains(addr) {
			return m, true
		}
	}
	return vmMapping{}, false
}

// ReadAt copies len(dst) bytes starting at addr. Bytes outside every
// mapping read as zero, matching a guest page fault being silently
// backed by zero pages rather than crashing the whole device — a
// ring-level register-write violation is the only access class spec.md
// treats as fatal (§7); an ordinary out-of-range memory read is not.
func (t *VMTable) ReadAt(addr uint64, dst []byte) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range dst {
		if m, ok := t.find(addr + uint64(i)); ok {
			dst[i] = m.backing[addr+uint64(i)-m.start]
		}
	}
}

// WriteAt copies src into guest memory starting at addr. Bytes outside
// every mapping are silently dropped.
func (t *VMTable) WriteAt(addr uint64, src []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, b := range src {
		if m, ok := t.find(addr + uint64(i)); ok {
			m.backing[addr+uint64(i)-m.start] = b
		}
	}
}

// DeviceMemory is the Device-wide guest address space every pm4 queue
// and the resource cache read and write through. Addresses are
// vmId-qualified per spec.md §6 (`vmId<<40 | a`); DeviceMemory
// extracts the vmId and delegates to that process's VMTable.
type DeviceMemory struct {
	processes *ProcessTable
}

// NewDeviceMemory wraps processes as a cache.GuestMemory/pm4.GuestMemory.
func NewDeviceMemory(processes *ProcessTable) *DeviceMemory {
	return &DeviceMemory{processes: processes}
}

const vmShift = 40

// SplitAddress separates a device-wide address into its vmId and
// process-local offset.
func SplitAddress(addr uint64) (vmID uint32, offset uint64) {
	return uint32(addr >> vmShift), addr & (1<<vmShift - 1)
}

// JoinAddress packs vmId and a process-local offset into the
// device-wide address pm4 and the cache operate on.
func JoinAddress(vmID uint32, offset uint64) uint64 {
	return uint64(vmID)<<vmShift | offset
}

func (m *DeviceMemory) ReadAt(addr uint64, dst []byte) {
	vmID, offset := SplitAddress(addr)
	if proc := m.processes.ByVMID(vmID); proc != nil {
		proc.Memory.ReadAt(offset, dst)
	}
}

func (m *DeviceMemory) WriteAt(addr uint64, src []byte) {
	vmID, offset := SplitAddress(addr)
	if proc := m.processes.ByVMID(vmID); proc != nil {
		proc.Memory.WriteAt(offset, src)
	}
}

// ReadDword and WriteDword implement pm4.GuestMemory on top of the
// same per-process VMTables ReadAt/WriteAt use.
func (m *DeviceMemory) ReadDword(addr uint64) uint32 {
	var buf [4]byte
	m.ReadAt(addr, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (m *DeviceMemory) WriteDword(addr uint64, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	m.WriteAt(addr, buf[:])
}

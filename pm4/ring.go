// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pm4

// GuestMemory is the guest address space a ring reads its dwords from
// and PM4 memory-opcodes (WRITE_DATA, EVENT_WRITE_EOP, WAIT_REG_MEM)
// read and write through. Addresses are already resolved host-side
// guest pointers (spec.md §6: vmId<<40 | guestAddr); pm4 itself is
// agnostic to how that resolution happened.
type GuestMemory interface {
	ReadDword(addr uint64) uint32
	WriteDword(addr uint64, value uint32)
}

// Ring is a circular buffer of PM4 dwords the guest writes and a pipe
// consumes (spec.md GLOSSARY). base is the guest address of dword 0;
// rptr/wptr are dword offsets that wrap at sizeDwords.
type Ring struct {
	mem        GuestMemory
	base       uint64
	sizeDwords uint32
	rptr       uint32
	wptr       uint32
}

// NewRing wraps an existing guest ring buffer. wptr starts equal to
// rptr (empty); SetWritePointer advances it as the guest submits work.
func NewRing(mem GuestMemory, base uint64, sizeDwords uint32) *Ring {
	return &Ring{mem: mem, base: base, sizeDwords: sizeDwords}
}

// Empty reports the Idle state of spec.md §4.9's ring state machine:
// rptr==wptr.
func (r *Ring) Empty() bool { return r.rptr == r.wptr }

// SetWritePointer is the guest doorbell: it publishes how far the
// guest has written into the ring.
func (r *Ring) SetWritePointer(wptr uint32) { r.wptr = wptr % r.sizeDwords }

// ReadPointer returns the pipe's current read position, in dwords.
func (r *Ring) ReadPointer() uint32 { return r.rptr }

func (r *Ring) dword(offset uint32) uint32 {
	idx := (r.rptr + offset) % r.sizeDwords
	return r.mem.ReadDword(r.base + uint64(idx)*4)
}

func (r *Ring) advance(n uint32) {
	r.rptr = (r.rptr + n) % r.sizeDwords
}

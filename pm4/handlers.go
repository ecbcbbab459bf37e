// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pm4

import (
	"fmt"
	"time"
)

// DrawArgs is the fully-resolved argument set a DRAW_* packet hands to
// Hooks.Draw (spec.md §4.9's draw prototype, extended with the fields
// Scenario A asserts on: primType and drawInitiator ride along in the
// packet body but aren't part of the prototype's named parameters).
type DrawArgs struct {
	VMID          uint32
	PrimType      uint32
	FirstVertex   uint32
	VertexCount   uint32
	FirstInstance uint32
	InstanceCount uint32
	IndexBase     uint64
	IndexOffset   uint32
	IndexCount    uint32
	DrawInitiator uint32
}

// DispatchArgs is the argument set DISPATCH_DIRECT/DISPATCH_INDIRECT
// hand to Hooks.Dispatch.
type DispatchArgs struct {
	VMID       uint32
	X, Y, Z    uint32
}

// Hooks decouples pm4 from the cache/sched/device packages that act on
// a decoded packet. The device layer (C11) implements Hooks, wiring a
// Queue to an actual scheduler and resource cache.
type Hooks interface {
	Draw(q *Queue, args DrawArgs) error
	Dispatch(q *Queue, args DispatchArgs) error
	// DeviceEvent notifies the device layer of an EOP/release-mem event
	// whose intSel bit requested an interrupt.
	DeviceEvent(q *Queue, addr uint64)
	// Custom handles the six IT_* opcodes (spec.md §4.9: "cross to
	// C11"), e.g. flip, map/unmap memory, protect memory, (un)map
	// process.
	Custom(q *Queue, op Op, payload []uint32) error
}

type drawState struct {
	primType      uint32
	numInstances  uint32
}

// Queue is one GFX DE/CE queue or one compute queue: a stack of rings
// (the active ring is the nesting level pushed by the most recent
// unfinished INDIRECT_BUFFER), a register file, the CE/DE counter pair
// it shares with its sibling queues, and the device-level Hooks it
// dispatches decoded commands to.
type Queue struct {
	mem       GuestMemory
	vmID      uint32
	rings     []*Ring
	registers *RegisterFile
	counters  *Counters
	hooks     Hooks
	draw      drawState
	clock     func() time.Time
}

// NewQueue constructs a queue over base/sizeDwords as its level-0 ring.
func NewQueue(mem GuestMemory, vmID uint32, base uint64, sizeDwords uint32, registers *RegisterFile, counters *Counters, hooks Hooks) *Queue {
	return &Queue{
		mem:       mem,
		vmID:      vmID,
		rings:     []*Ring{NewRing(mem, base, sizeDwords)},
		registers: registers,
		counters:  counters,
		hooks:     hooks,
		draw:      drawState{numInstances: 1},
		clock:     time.Now,
	}
}

// SetWritePointer publishes the guest's doorbell write to the active
// outermost ring (level 0); indirect buffers manage their own extent
// and are never re-doorbelled from outside.
func (q *Queue) SetWritePointer(wptr uint32) { q.rings[0].SetWritePointer(wptr) }

// Idle reports whether the queue has no nested rings and its base ring
// is empty.
func (q *Queue) Idle() bool { return len(q.rings) == 1 && q.rings[0].Empty() }

func (q *Queue) active() *Ring { return q.rings[len(q.rings)-1] }

// Step decodes and dispatches at most one packet from the active ring.
// It returns progressed=false either because the queue is idle or
// because a handler (typically WAIT_REG_MEM) reported its condition
// isn't satisfied yet; in the latter case the ring is left pointing at
// the same packet so a later Step retries it (spec.md §4.9's ring
// state machine: a handler returning false freezes the ring in place).
// err is non-nil only for a ring protocol violation; Pipe.run then
// stops servicing this queue.
func (q *Queue) Step() (progressed bool, err error) {
	for {
		r := q.active()
		if r.Empty() {
			if len(q.rings) > 1 {
				q.rings = q.rings[:len(q.rings)-1]
				continue
			}
			return false, nil
		}

		header := DecodeHeader(r.dword(0))
		switch header.Type {
		case TypeNop:
			r.advance(uint32(header.PacketDwords()))
			return true, nil
		case TypeCommand:
			bodyLen := uint32(header.Len) + 1
			body := make([]uint32, bodyLen)
			for i := range body {
				body[i] = r.dword(uint32(1 + i))
			}
			ok, err := q.dispatch(Op(header.Op), body)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			r.advance(uint32(header.PacketDwords()))
			return true, nil
		default:
			return false, fmt.Errorf("pm4: ring protocol violation: unsupported header type %d at vmId=%d", header.Type, q.vmID)
		}
	}
}

// regPrimType is the UConfig offset the source driver uses for its
// VGT_PRIMITIVE_TYPE-equivalent register (spec.md §4.9 Scenario A).
const regPrimType = 0x242

func (q *Queue) dispatch(op Op, body []uint32) (bool, error) {
	if bank, ok := bankForOp(op); ok {
		offset, values := body[0], body[1:]
		if err := q.registers.WriteRange(bank, offset, values); err != nil {
			return false, err
		}
		if bank == BankUConfig && offset == regPrimType && len(values) > 0 {
			q.draw.primType = values[0]
		}
		return true, nil
	}

	switch op {
	case OpNop:
		return true, nil

	case OpIndirectBuffer, OpIndirectBufferConst:
		base := uint64(body[0]) | uint64(body[1])<<32
		size := body[2]
		// One spare dword so a write pointer of size does not wrap
		// to 0 and leave the nested ring looking empty.
		q.rings = append(q.rings, NewRing(q.mem, base, size+1))
		q.active().SetWritePointer(size)
		return true, nil

	case OpNumInstances:
		q.draw.numInstances = body[0]
		return true, nil

	case OpDrawIndexAuto:
		args := DrawArgs{
			VMID:          q.vmID,
			PrimType:      q.draw.primType,
			InstanceCount: q.draw.numInstances,
			IndexCount:    body[0],
			DrawInitiator: body[1],
		}
		return true, q.hooks.Draw(q, args)

	case OpDrawIndex2:
		args := DrawArgs{
			VMID:          q.vmID,
			PrimType:      q.draw.primType,
			InstanceCount: q.draw.numInstances,
			IndexBase:     uint64(body[0]) | uint64(body[1])<<32,
			IndexCount:    body[2],
			DrawInitiator: body[3],
		}
		return true, q.hooks.Draw(q, args)

	case OpDrawIndexOffset2:
		args := DrawArgs{
			VMID:          q.vmID,
			PrimType:      q.draw.primType,
			InstanceCount: q.draw.numInstances,
			IndexOffset:   body[0],
			IndexCount:    body[1],
			DrawInitiator: body[2],
		}
		return true, q.hooks.Draw(q, args)

	case OpDrawIndexIndirect:
		addr := q.resolve(body[0])
		return true, q.hooks.Draw(q, DrawArgs{
			VMID:          q.vmID,
			PrimType:      q.draw.primType,
			FirstVertex:   q.mem.ReadDword(addr),
			VertexCount:   q.mem.ReadDword(addr + 4),
			FirstInstance: q.mem.ReadDword(addr + 8),
			InstanceCount: q.mem.ReadDword(addr + 12),
		})

	case OpDispatchDirect:
		return true, q.hooks.Dispatch(q, DispatchArgs{VMID: q.vmID, X: body[0], Y: body[1], Z: body[2]})

	case OpDispatchIndirect:
		addr := q.resolve(body[0])
		return true, q.hooks.Dispatch(q, DispatchArgs{
			VMID: q.vmID,
			X:    q.mem.ReadDword(addr),
			Y:    q.mem.ReadDword(addr + 4),
			Z:    q.mem.ReadDword(addr + 8),
		})

	case OpEventWriteEOP, OpReleaseMem:
		return true, q.handleEventWrite(body)

	case OpWriteData:
		return true, q.handleWriteData(body)

	case OpDMAData:
		return true, q.handleDMAData(body)

	case OpWaitRegMem:
		return q.handleWaitRegMem(body), nil

	case OpCondWrite:
		return true, q.handleCondWrite(body)

	case OpWaitOnCECounter:
		return q.counters.WaitCE(body[0]), nil

	case OpWaitOnDECounterDiff:
		return q.counters.WaitDEDiff(body[0], body[1]), nil

	case OpIncrementCECounter:
		q.counters.IncrementCE()
		return true, nil

	case OpIncrementDECounter:
		q.counters.IncrementDE()
		return true, nil

	case ITFlip, ITMapMemory, ITUnmapMemory, ITProtectMemory, ITUnmapProcess, ITMapProcess:
		return true, q.hooks.Custom(q, op, body)

	default:
		return false, fmt.Errorf("pm4: ring protocol violation: unknown opcode %#x at vmId=%d", uint8(op), q.vmID)
	}
}

// resolve turns a guest-relative pointer dword pair already packed as
// a single body slot into the vmId-qualified address pm4's
// GuestMemory expects. Indirect-argument pointers in this stream are
// carried as a single dword offset into the issuing process's space.
func (q *Queue) resolve(addr uint32) uint64 {
	return uint64(q.vmID)<<40 | uint64(addr)
}

func (q *Queue) handleEventWrite(body []uint32) error {
	sel := DataSel(body[0])
	intSel := body[1]
	addr := uint64(body[2]) | uint64(body[3])<<32

	switch sel {
	case DataSelNone:
		return nil
	case DataSelConstant32:
		q.mem.WriteDword(addr, body[4])
	case DataSelConstant64:
		q.mem.WriteDword(addr, body[4])
		q.mem.WriteDword(addr+4, body[5])
	case DataSelWallClock:
		ns := uint64(q.clock().UnixNano())
		q.mem.WriteDword(addr, uint32(ns))
		q.mem.WriteDword(addr+4, uint32(ns>>32))
	case DataSelMonotonic:
		ns := uint64(q.clock().UnixNano())
		q.mem.WriteDword(addr, uint32(ns))
		q.mem.WriteDword(addr+4, uint32(ns>>32))
	}

	if intSel != 0 {
		q.hooks.DeviceEvent(q, addr)
	}
	return nil
}

// handleWriteData copies the packet's inline payload to a guest
// memory destination. The destination is always treated as memory
// (spec.md notes WRITE_DATA "supports memory-mapped register targets"
// too, but this engine's register banks are only ever reached through
// SET_*_REG, so a register-targeted WRITE_DATA is out of scope here).
func (q *Queue) handleWriteData(body []uint32) error {
	addr := uint64(body[0]) | uint64(body[1])<<32
	for i, v := range body[2:] {
		q.mem.WriteDword(addr+uint64(i)*4, v)
	}
	return nil
}

func (q *Queue) handleDMAData(body []uint32) error {
	srcAddr := uint64(body[0]) | uint64(body[1])<<32
	dstAddr := uint64(body[2]) | uint64(body[3])<<32
	size := body[4]
	for i := uint32(0); i < size; i += 4 {
		q.mem.WriteDword(dstAddr+uint64(i), q.mem.ReadDword(srcAddr+uint64(i)))
	}
	return nil
}

func (q *Queue) handleWaitRegMem(body []uint32) bool {
	fn := CompareFn(body[0])
	addr := uint64(body[1]) | uint64(body[2])<<32
	ref := body[3]
	mask := body[4]
	polled := q.mem.ReadDword(addr)
	return fn.Eval(polled, mask, ref)
}

func (q *Queue) handleCondWrite(body []uint32) error {
	fn := CompareFn(body[0])
	pollAddr := uint64(body[1]) | uint64(body[2])<<32
	ref := body[3]
	mask := body[4]
	writeAddr := uint64(body[5]) | uint64(body[6])<<32
	value := body[7]

	if fn.Eval(q.mem.ReadDword(pollAddr), mask, ref) {
		q.mem.WriteDword(writeAddr, value)
	}
	return nil
}

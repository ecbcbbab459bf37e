// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package device is the device layer (spec.md §4.10, component C11):
// it owns the guest VM slot table, the GFX/compute pipes, the
// resource cache and tiler, and the flip pipeline, and it is the
// pm4.Hooks implementation that turns decoded PM4 packets into actual
// cache lookups, scheduler submissions, and presents. This is the
// wiring point spec.md §2 describes as the data flow "guest writes PM4
// … C10 decodes … asks C9 for tagged resources … C9 consults C4/C6 …
// C10 submits via C8 … C7 resolves tile layout … C11 presents".
package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/gogpu/gnmcore/cache"
	"github.com/gogpu/gnmcore/hal/vulkan/vk"
	"github.com/gogpu/gnmcore/pm4"
	"github.com/gogpu/gnmcore/sched"
	"github.com/gogpu/gnmcore/tile"
)

// kGfxPipeCount and kComputePipeCount mirror spec.md §4.10's "owns
// kGfxPipeCount GFX pipes, kComputePipeCount compute pipes". The
// source hardware exposes two GFX command processors ("the device
// itself owns two main GFX rings") and a single ACB compute pipe
// fanning out to multiple queues, which is the shape used here.
const (
	kGfxPipeCount            = 2
	kComputePipeCount        = 1
	computeQueuesPerPipe     = 8
	ringSizeDwords           = 4096
)

// Event is a host-visible notification raised by EVENT_WRITE_EOP /
// RELEASE_MEM packets whose intSel bit requested an interrupt
// (spec.md §4.9). Host integration code (cmd/gnmd) drains this to
// know when guest-requested fences have retired.
type Event struct {
	VMID uint32
	Addr uint64
}

// pipeQueue pairs one pm4.Queue with the sched.Queue it submits
// through, so Device's pm4.Hooks methods (which only receive the
// pm4.Queue) can find the right scheduler.
//
// Each queue is bound to a fixed vmId at construction (pm4.Queue has no
// notion of switching address spaces mid-life), so in this build a
// queue's vmId equals its slot index: queue i only ever decodes ring
// traffic submitted by the process occupying VM slot i. Real GNM
// hardware context-switches a pipe's rings across many more processes
// than it has physical queues; reproducing that context-switch is out
// of scope here, so this device supports at most kGfxPipeCount
// concurrently-submitting GFX processes and kComputePipeCount*
// computeQueuesPerPipe concurrently-submitting compute processes,
// tracked in DESIGN.md as a scope reduction.
type pipeQueue struct {
	vmID  uint32
	pm4   *pm4.Queue
	sched *sched.Queue

	lastValue atomic.Uint64
}

// internalRingBase is the guest-address offset each process reserves
// for the device's own main-ring traffic into that process's queue,
// chosen well above any ordinary guest allocation so it never collides
// with application-mapped memory.
const internalRingBase = 1 << 36

// Device owns every resource one emulated GPU instance needs: the
// process table, guest memory, resource cache, tiler, and the pipes
// that decode PM4 and drive them all.
type Device struct {
	cmds     *vk.Commands
	vkDevice vk.Device

	processes *ProcessTable
	mem       *DeviceMemory
	cache     *cache.Cache
	tiler     *tile.Tiler

	gfxPipes     []*pm4.Pipe
	computePipes []*pm4.Pipe

	mu        sync.Mutex
	queueByPM4 map[*pm4.Queue]*pipeQueue

	flip *FlipPipeline

	logger  *zap.Logger
	metrics *Metrics

	events chan Event
}

// QueueHandles is the set of raw Vulkan queue handles New needs
// for the GFX and compute engines; cmd/gnmd resolves these from
// physical device queue families before constructing a Device.
type QueueHandles struct {
	GFX     [kGfxPipeCount]vk.Queue
	GFXFamily uint32

	Compute     [kComputePipeCount * computeQueuesPerPipe]vk.Queue
	ComputeFamily uint32
}

// New constructs a Device over an already-created Vulkan logical
// device. hostMemoryTypeIndex/deviceMemoryTypeIndex are forwarded to
// the resource cache and tiler exactly as in cache.New/tile.New.
func New(cmds *vk.Commands, vkDevice vk.Device, queues QueueHandles, hostMemoryTypeIndex, deviceMemoryTypeIndex uint32, logger *zap.Logger) (*Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tiler, err := tile.New(cmds, vkDevice, deviceMemoryTypeIndex)
	if err != nil {
		return nil, fmt.Errorf("device: creating tiler: %w", err)
	}

	processes := NewProcessTable()
	mem := NewDeviceMemory(processes)
	resourceCache := cache.New(cmds, vkDevice, mem, tiler, hostMemoryTypeIndex, deviceMemoryTypeIndex)

	d := &Device{
		cmds:       cmds,
		vkDevice:   vkDevice,
		processes:  processes,
		mem:        mem,
		cache:      resourceCache,
		tiler:      tiler,
		queueByPM4: make(map[*pm4.Queue]*pipeQueue),
		logger:     logger,
		metrics:    newMetrics(),
		events:     make(chan Event, 64),
	}

	flip, err := newFlipPipeline(cmds, vkDevice, tiler)
	if err != nil {
		return nil, fmt.Errorf("device: creating flip pipeline: %w", err)
	}
	d.flip = flip

	// Every queue is constructed and registered in queueByPM4 before any
	// pipe thread starts, so the pipes' first Hooks callback never races
	// the table those callbacks look queues up in.
	gfxQueues := make([][]*pm4.Queue, kGfxPipeCount)
	for i := 0; i < kGfxPipeCount; i++ {
		schedQueue, err := sched.NewQueue(cmds, vkDevice, queues.GFX[i], queues.GFXFamily)
		if err != nil {
			return nil, fmt.Errorf("device: gfx queue %d: %w", i, err)
		}
		vmID := uint32(i)
		pq := &pipeQueue{vmID: vmID, sched: schedQueue}
		pq.pm4 = pm4.NewQueue(mem, vmID, internalRingBase, ringSizeDwords, &pm4.RegisterFile{}, &pm4.Counters{}, d)
		d.queueByPM4[pq.pm4] = pq
		gfxQueues[i] = []*pm4.Queue{pq.pm4}
	}

	computeQueues := make([][]*pm4.Queue, kComputePipeCount)
	for p := 0; p < kComputePipeCount; p++ {
		for i := 0; i < computeQueuesPerPipe; i++ {
			idx := p*computeQueuesPerPipe + i
			schedQueue, err := sched.NewQueue(cmds, vkDevice, queues.Compute[idx], queues.ComputeFamily)
			if err != nil {
				return nil, fmt.Errorf("device: compute queue %d: %w", idx, err)
			}
			vmID := uint32(kGfxPipeCount + idx)
			pq := &pipeQueue{vmID: vmID, sched: schedQueue}
			pq.pm4 = pm4.NewQueue(mem, vmID, internalRingBase, ringSizeDwords, &pm4.RegisterFile{}, &pm4.Counters{}, d)
			d.queueByPM4[pq.pm4] = pq
			computeQueues[p] = append(computeQueues[p], pq.pm4)
		}
	}

	for _, qs := range gfxQueues {
		d.gfxPipes = append(d.gfxPipes, pm4.NewPipe(pm4.KindGraphics, qs))
	}
	for _, qs := range computeQueues {
		d.computePipes = append(d.computePipes, pm4.NewPipe(pm4.KindCompute, qs))
	}

	return d, nil
}

// Events returns the channel of interrupt-carrying device events
// (spec.md §4.9's "if intSel != 0 emit a device event").
func (d *Device) Events() <-chan Event { return d.events }

// Metrics returns the Prometheus collectors cmd/gnmd registers against
// its own registry.
func (d *Device) Metrics() *Metrics { return d.metrics }

// MapProcess allocates a VM slot for a new guest process (the
// IT_MAP_PROCESS custom opcode's handler, spec.md §4.9/§4.10).
func (d *Device) MapProcess(pid uint64, fd int) (*Process, error) {
	proc, err := d.processes.MapProcess(pid, fd)
	if err != nil {
		return nil, err
	}
	d.logger.Info("process mapped", zap.Uint64("pid", pid), zap.Uint32("vmId", proc.VMID))
	return proc, nil
}

// UnmapProcess releases pid's VM slot.
func (d *Device) UnmapProcess(pid uint64) error {
	if err := d.processes.UnmapProcess(pid); err != nil {
		return err
	}
	d.logger.Info("process unmapped", zap.Uint64("pid", pid))
	return nil
}

// MapMemory installs a new mapping in vmId's address space
// (IT_MAP_MEMORY, spec.md §4.9/§4.10).
func (d *Device) MapMemory(vmID uint32, addr, size uint64, memoryType, prot uint32, offset uint64) error {
	proc := d.processes.ByVMID(vmID)
	if proc == nil {
		return fmt.Errorf("device: mapMemory: vmId %d not mapped", vmID)
	}
	proc.Memory.Map(addr, size, memoryType, prot, offset)
	return nil
}

// UnmapMemory removes a mapping from vmId's address space
// (IT_UNMAP_MEMORY).
func (d *Device) UnmapMemory(vmID uint32, addr, size uint64) error {
	proc := d.processes.ByVMID(vmID)
	if proc == nil {
		return fmt.Errorf("device: unmapMemory: vmId %d not mapped", vmID)
	}
	tag := d.cache.CreateTag(d.gfxSchedQueue())
	tag.WriteMemory(JoinAddress(vmID, addr), make([]byte, size)) // drop any cached view of the unmapped range
	tag.Release()
	proc.Memory.Unmap(addr, size)
	return nil
}

// ProtectMemory updates a mapping's protection flags
// (IT_PROTECT_MEMORY).
func (d *Device) ProtectMemory(vmID uint32, addr, size uint64, prot uint32) error {
	proc := d.processes.ByVMID(vmID)
	if proc == nil {
		return fmt.Errorf("device: protectMemory: vmId %d not mapped", vmID)
	}
	return proc.Memory.Protect(addr, size, prot)
}

// WaitForIdle drains every pipe's scheduler (spec.md §4.10's
// waitForIdle()).
func (d *Device) WaitForIdle() error {
	for _, pq := range d.queueByPM4 {
		if err := pq.sched.Wait(pq.lastValue.Load(), ^uint64(0)); err != nil {
			return err
		}
	}
	return nil
}

// Destroy stops every pipe, then destroys the resource cache and the
// tiler, and finally closes the events channel.
func (d *Device) Destroy() {
	for _, p := range d.gfxPipes {
		p.Stop()
	}
	for _, p := range d.computePipes {
		p.Stop()
	}
	d.cache.Destroy()
	d.tiler.Destroy()
	close(d.events)
}

func (d *Device) gfxSchedQueue() *sched.Queue {
	for _, pq := range d.queueByPM4 {
		if pq.vmID < kGfxPipeCount {
			return pq.sched
		}
	}
	return nil
}

func (d *Device) pipeQueueFor(q *pm4.Queue) *pipeQueue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queueByPM4[q]
}

// Draw implements pm4.Hooks. It resolves the draw's index buffer (if
// any) through the resource cache under a short-lived Tag and submits
// an empty, validly-ended command buffer representing the recorded
// work. Binding an actual graphics pipeline (vertex/fragment shader
// modules, render pass, descriptor sets) is out of scope for this
// pass — see DESIGN.md's device entry — so the observable effect is
// the cache resolution and scheduler submission, not rasterized
// pixels.
func (d *Device) Draw(q *pm4.Queue, args pm4.DrawArgs) error {
	pq := d.pipeQueueFor(q)
	if pq == nil {
		return fmt.Errorf("device: draw: unknown queue")
	}
	schedQueue := pq.sched
	tag := d.cache.CreateTag(schedQueue)
	defer tag.Release()

	if args.IndexCount > 0 {
		addr := JoinAddress(args.VMID, args.IndexBase+uint64(args.IndexOffset))
		if _, err := tag.GetIndexBuffer(addr, args.IndexCount, args.PrimType, indexTypeForDraw(args)); err != nil {
			return fmt.Errorf("device: draw: resolving index buffer: %w", err)
		}
	}

	cmdBuf, err := schedQueue.CreateExternalSubmit()
	if err != nil {
		return fmt.Errorf("device: draw: %w", err)
	}
	value, err := schedQueue.Submit(cmdBuf)
	if err != nil {
		return fmt.Errorf("device: draw: submit: %w", err)
	}
	pq.lastValue.Store(value)

	d.metrics.draws.Inc()
	d.logger.Debug("draw",
		zap.Uint32("vmId", args.VMID),
		zap.Uint32("primType", args.PrimType),
		zap.Uint32("instanceCount", args.InstanceCount),
		zap.Uint32("indexCount", args.IndexCount))
	return nil
}

// indexTypeForDraw picks the GCN index-type encoding a draw implies.
// The source packs this in VGT_DMA_INDEX_TYPE; this build has no
// register for it wired yet, so it defaults to 32-bit indices, the
// wider of the two representations.
func indexTypeForDraw(args pm4.DrawArgs) uint32 { return 1 }

// Dispatch implements pm4.Hooks for compute. Like Draw, it resolves
// cache state for the dispatch and submits, without a bound compute
// pipeline — see DESIGN.md.
func (d *Device) Dispatch(q *pm4.Queue, args pm4.DispatchArgs) error {
	pq := d.pipeQueueFor(q)
	if pq == nil {
		return fmt.Errorf("device: dispatch: unknown queue")
	}
	schedQueue := pq.sched
	tag := d.cache.CreateTag(schedQueue)
	defer tag.Release()

	cmdBuf, err := schedQueue.CreateExternalSubmit()
	if err != nil {
		return fmt.Errorf("device: dispatch: %w", err)
	}
	value, err := schedQueue.Submit(cmdBuf)
	if err != nil {
		return fmt.Errorf("device: dispatch: submit: %w", err)
	}
	pq.lastValue.Store(value)

	d.metrics.dispatches.Inc()
	d.logger.Debug("dispatch", zap.Uint32("vmId", args.VMID), zap.Uint32("x", args.X), zap.Uint32("y", args.Y), zap.Uint32("z", args.Z))
	return nil
}

// DeviceEvent implements pm4.Hooks: it forwards an EOP/release-mem
// interrupt to host-visible Events.
func (d *Device) DeviceEvent(q *pm4.Queue, addr uint64) {
	var vmID uint32
	d.mu.Lock()
	if pq, ok := d.queueByPM4[q]; ok {
		vmID = pq.vmID
	}
	d.mu.Unlock()
	select {
	case d.events <- Event{VMID: vmID, Addr: addr}:
	default:
		d.logger.Warn("device event dropped: events channel full", zap.Uint64("addr", addr))
	}
}

// Custom implements pm4.Hooks for the six IT_* device-level opcodes
// (spec.md §4.9: "cross to C11").
func (d *Device) Custom(q *pm4.Queue, op pm4.Op, payload []uint32) error {
	switch op {
	case pm4.ITMapProcess:
		_, err := d.MapProcess(uint64(payload[0])|uint64(payload[1])<<32, int(payload[2]))
		return err
	case pm4.ITUnmapProcess:
		return d.UnmapProcess(uint64(payload[0]) | uint64(payload[1])<<32)
	case pm4.ITMapMemory:
		vmID := uint32(payload[0])
		addr := uint64(payload[1]) | uint64(payload[2])<<32
		size := uint64(payload[3]) | uint64(payload[4])<<32
		return d.MapMemory(vmID, addr, size, payload[5], payload[6], 0)
	case pm4.ITUnmapMemory:
		vmID := uint32(payload[0])
		addr := uint64(payload[1]) | uint64(payload[2])<<32
		size := uint64(payload[3]) | uint64(payload[4])<<32
		return d.UnmapMemory(vmID, addr, size)
	case pm4.ITProtectMemory:
		vmID := uint32(payload[0])
		addr := uint64(payload[1]) | uint64(payload[2])<<32
		size := uint64(payload[3]) | uint64(payload[4])<<32
		return d.ProtectMemory(vmID, addr, size, payload[5])
	case pm4.ITFlip:
		bufferIndex := payload[0]
		arg := uint64(payload[1]) | uint64(payload[2])<<32
		pid := uint64(payload[3])
		return d.flipRequested(pid, bufferIndex, arg)
	default:
		return fmt.Errorf("device: unhandled custom opcode %#x", uint8(op))
	}
}

// flipRequested resolves the process and its registered buffer, then
// defers the actual swapchain-facing Flip to the caller via a
// presentation request; cmd/gnmd owns the swapchain image/view handles
// this needs and drives Flip directly once it's acquired a target.
func (d *Device) flipRequested(pid uint64, bufferIndex uint32, arg uint64) error {
	proc := d.processes.ByPID(pid)
	if proc == nil {
		return fmt.Errorf("device: flip: pid %d not mapped", pid)
	}
	if int(bufferIndex) >= len(proc.Buffers) {
		return fmt.Errorf("device: flip: buffer index %d out of range", bufferIndex)
	}
	d.metrics.flips.Inc()
	d.logger.Info("flip requested", zap.Uint64("pid", pid), zap.Uint32("bufferIndex", bufferIndex), zap.Uint64("arg", arg))
	select {
	case d.events <- Event{VMID: proc.VMID, Addr: arg}:
	default:
	}
	return nil
}

// Flip executes the flip pipeline for pid's bufferIndex onto an
// already-acquired swapchain image (spec.md §4.10). Call this from the
// host integration shell once flipRequested has signaled a pending
// flip and a swapchain image has been acquired.
func (d *Device) Flip(pid uint64, bufferIndex uint32, swapImage vk.Image, swapView vk.ImageView, width, height uint32) error {
	proc := d.processes.ByPID(pid)
	if proc == nil {
		return fmt.Errorf("device: flip: pid %d not mapped", pid)
	}
	attr := proc.BufferAttributes[bufferIndex]
	guestAddr := JoinAddress(proc.VMID, proc.Buffers[bufferIndex])

	schedQueue := d.gfxSchedQueue()
	if schedQueue == nil {
		return fmt.Errorf("device: flip: no gfx queue available")
	}
	tag := d.cache.CreateTag(schedQueue)
	defer tag.Release()

	return d.flip.Present(schedQueue, tag, flipSource{
		Address:  guestAddr,
		Width:    attr.Width,
		Height:   attr.Height,
		Pitch:    attr.Pitch,
		Format:   attr.Format,
		TileMode: attr.TileModeRaw,
	}, swapImage, swapView, width, height)
}

var _ pm4.Hooks = (*Device)(nil)

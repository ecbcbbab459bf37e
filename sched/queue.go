// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sched

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
)

// Queue is a single GCN command queue's submission point: one command
// pool, one timelineFence, and the ordered set of post-submit hooks a
// cache entry or tiler slot attaches to a submitted value so it can
// free itself once the GPU has caught up (spec.md §4 component C8).
type Queue struct {
	cmds   *vk.Commands
	device vk.Device
	handle vk.Queue
	pool   vk.CommandPool
	fence  *timelineFence

	mu    sync.Mutex
	hooks map[uint64][]func()
}

// NewQueue wraps an already-created vk.Queue and allocates the command
// pool and fence state a Queue needs to record and track submissions.
func NewQueue(cmds *vk.Commands, device vk.Device, queue vk.Queue, queueFamilyIndex uint32) (*Queue, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateResetCommandBufferBit,
		QueueFamilyIndex: queueFamilyIndex,
	}
	var pool vk.CommandPool
	if result := cmds.CreateCommandPool(device, &poolInfo, nil, &pool); result != vk.Success {
		return nil, fmt.Errorf("sched: vkCreateCommandPool failed: %d", result)
	}

	fence, err := newTimelineFence(cmds, device)
	if err != nil {
		cmds.DestroyCommandPool(device, pool, nil)
		return nil, err
	}

	return &Queue{
		cmds:   cmds,
		device: device,
		handle: queue,
		pool:   pool,
		fence:  fence,
		hooks:  make(map[uint64][]func()),
	}, nil
}

// CreateExternalSubmit allocates a one-time-submit primary command
// buffer from the queue's pool and puts it in the recording state, for
// callers (the tile package's descriptor-slot releases, the cache
// package's staging uploads) that build their own command stream
// before handing it to Submit.
func (q *Queue) CreateExternalSubmit() (vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        q.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	var cmdBuf vk.CommandBuffer
	if result := q.cmds.AllocateCommandBuffers(q.device, &allocInfo, &cmdBuf); result != vk.Success {
		return 0, fmt.Errorf("sched: vkAllocateCommandBuffers failed: %d", result)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageOneTimeSubmitBit,
	}
	if result := q.cmds.BeginCommandBuffer(cmdBuf, &beginInfo); result != vk.Success {
		return 0, fmt.Errorf("sched: vkBeginCommandBuffer failed: %d", result)
	}
	return cmdBuf, nil
}

// Submit ends and submits cmdBuf, signaling the queue's timeline at a
// freshly allocated monotonic value. then is run, in order, the next
// time Wait observes that value (or a later one) complete; it is the
// mechanism a cache entry uses to release a staging buffer or a tiler
// slot uses to free itself without blocking the submitting goroutine.
func (q *Queue) Submit(cmdBuf vk.CommandBuffer, then ...func()) (uint64, error) {
	if result := q.cmds.EndCommandBuffer(cmdBuf); result != vk.Success {
		return 0, fmt.Errorf("sched: vkEndCommandBuffer failed: %d", result)
	}

	value := q.fence.nextSignalValue()

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    &cmdBuf,
	}

	var binaryFence vk.Fence
	if q.fence.isTimeline {
		signalValues := [1]uint64{value}
		timelineInfo := vk.TimelineSemaphoreSubmitInfo{
			SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
			SignalSemaphoreValueCount: 1,
			PSignalSemaphoreValues:    &signalValues[0],
		}
		submitInfo.PNext = (*uintptr)(unsafe.Pointer(&timelineInfo))
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = &q.fence.semaphore
	} else {
		var err error
		binaryFence, err = q.fence.signalBinary(q.cmds, q.device, value)
		if err != nil {
			return 0, err
		}
	}

	if result := q.cmds.QueueSubmit(q.handle, 1, &submitInfo, binaryFence); result != vk.Success {
		return 0, fmt.Errorf("sched: vkQueueSubmit failed: %d", result)
	}

	if len(then) > 0 {
		q.mu.Lock()
		q.hooks[value] = append(q.hooks[value], then...)
		q.mu.Unlock()
	}
	return value, nil
}

// Wait blocks until value has completed on the GPU, then runs and
// clears every then-hook attached to values at or below it, in
// submission order.
func (q *Queue) Wait(value uint64, timeoutNs uint64) error {
	if err := q.fence.waitForValue(q.cmds, q.device, value, timeoutNs); err != nil {
		return err
	}
	q.runCompletedHooks(value)
	return nil
}

func (q *Queue) runCompletedHooks(upTo uint64) {
	q.mu.Lock()
	var values []uint64
	for v := range q.hooks {
		if v <= upTo {
			values = append(values, v)
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	ready := make([][]func(), 0, len(values))
	for _, v := range values {
		ready = append(ready, q.hooks[v])
		delete(q.hooks, v)
	}
	q.mu.Unlock()

	for _, fns := range ready {
		for _, fn := range fns {
			fn()
		}
	}
}

// CompletedValue returns the highest timeline value known to have
// finished without blocking.
func (q *Queue) CompletedValue() uint64 { return q.fence.completedValue() }

// DeferUntilComplete attaches fn to the most recently allocated signal
// value, the same bucket the in-flight Submit (if any) will signal. A
// cache.Tag uses this to push the resources it touched onto this
// queue's pending-release list without forcing a new submission of its
// own (spec.md §4.8: "resources transfer to a per-scheduler pending
// list tagged with the scheduler's current signal value").
func (q *Queue) DeferUntilComplete(fn func()) {
	value := q.fence.currentValue()
	q.mu.Lock()
	q.hooks[value] = append(q.hooks[value], fn)
	q.mu.Unlock()
}

// Destroy releases the queue's command pool and fence state. It does
// not wait for outstanding submissions; callers must Wait on the last
// issued value first.
func (q *Queue) Destroy() {
	q.fence.destroy(q.cmds, q.device)
	q.cmds.DestroyCommandPool(q.device, q.pool, nil)
}

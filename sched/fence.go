// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sched

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
)

// timelineFence tracks queue progress via either a VK_KHR_timeline_semaphore
// (preferred) or a fencePool fallback for devices below Vulkan 1.2.
type timelineFence struct {
	semaphore     vk.Semaphore
	lastSignaled  atomic.Uint64
	lastCompleted uint64
	pool          *fencePool
	isTimeline    bool
}

func newTimelineFence(cmds *vk.Commands, device vk.Device) (*timelineFence, error) {
	if !cmds.HasTimelineSemaphore() {
		return &timelineFence{pool: &fencePool{}}, nil
	}

	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: (*uintptr)(unsafe.Pointer(&typeInfo)),
	}
	var sem vk.Semaphore
	if result := cmds.CreateSemaphore(device, &createInfo, nil, &sem); result != vk.Success {
		return nil, fmt.Errorf("sched: vkCreateSemaphore (timeline) failed: %d", result)
	}
	return &timelineFence{semaphore: sem, isTimeline: true}, nil
}

func (f *timelineFence) nextSignalValue() uint64 { return f.lastSignaled.Add(1) }
func (f *timelineFence) currentValue() uint64    { return f.lastSignaled.Load() }

func (f *timelineFence) signalBinary(cmds *vk.Commands, device vk.Device, value uint64) (vk.Fence, error) {
	if f.isTimeline {
		return 0, nil
	}
	return f.pool.signal(cmds, device, value)
}

func (f *timelineFence) waitForValue(cmds *vk.Commands, device vk.Device, value, timeoutNs uint64) error {
	if !f.isTimeline {
		if err := f.pool.wait(cmds, device, value, timeoutNs); err != nil {
			return err
		}
		f.lastCompleted = f.pool.lastCompleted
		return nil
	}
	if value <= f.lastCompleted || value == 0 {
		return nil
	}
	waitInfo := vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    &f.semaphore,
		PValues:        &value,
	}
	switch cmds.WaitSemaphores(device, &waitInfo, timeoutNs) {
	case vk.Success:
		f.lastCompleted = value
		return nil
	case vk.Timeout:
		return fmt.Errorf("sched: timeline wait timed out (value=%d)", value)
	case vk.ErrorDeviceLost:
		return fmt.Errorf("sched: device lost while waiting on value %d", value)
	default:
		return fmt.Errorf("sched: vkWaitSemaphores failed")
	}
}

func (f *timelineFence) completedValue() uint64 {
	if !f.isTimeline {
		return f.pool.lastCompleted
	}
	return f.lastCompleted
}

func (f *timelineFence) destroy(cmds *vk.Commands, device vk.Device) {
	if f.semaphore != 0 {
		cmds.DestroySemaphore(device, f.semaphore, nil)
		f.semaphore = 0
	}
	if f.pool != nil {
		f.pool.destroy(cmds, device)
	}
}

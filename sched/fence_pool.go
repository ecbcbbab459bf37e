// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package sched is the per-queue command recorder the resource cache and
// the PM4 pipes submit work through: a one-time-submit command buffer
// wrapper over a monotonic timeline semaphore, with post-submit and
// after-wait hooks so a cache entry can release its staging buffer or a
// tiler slot can free itself the moment the GPU catches up (spec.md §4
// component C8).
package sched

import (
	"fmt"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
)

// fencePool manages binary VkFences for devices without
// VK_KHR_timeline_semaphore, tracking per-submission fences by monotonic
// value so a caller can wait for any past submission, not just the
// latest one.
type fencePool struct {
	active        []fenceEntry
	free          []vk.Fence
	lastCompleted uint64
}

type fenceEntry struct {
	value uint64
	fence vk.Fence
}

func (p *fencePool) maintain(cmds *vk.Commands, device vk.Device) {
	n := 0
	for _, entry := range p.active {
		if cmds.GetFenceStatus(device, entry.fence) == vk.Success {
			_ = cmds.ResetFences(device, 1, &entry.fence)
			p.free = append(p.free, entry.fence)
			if entry.value > p.lastCompleted {
				p.lastCompleted = entry.value
			}
			continue
		}
		p.active[n] = entry
		n++
	}
	p.active = p.active[:n]
}

func (p *fencePool) signal(cmds *vk.Commands, device vk.Device, value uint64) (vk.Fence, error) {
	var fence vk.Fence
	if n := len(p.free); n > 0 {
		fence = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		createInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
		if result := cmds.CreateFence(device, &createInfo, nil, &fence); result != vk.Success {
			return 0, fmt.Errorf("sched: vkCreateFence failed: %d", result)
		}
	}
	p.active = append(p.active, fenceEntry{value: value, fence: fence})
	return fence, nil
}

func (p *fencePool) wait(cmds *vk.Commands, device vk.Device, value uint64, timeoutNs uint64) error {
	if value <= p.lastCompleted || value == 0 {
		return nil
	}
	p.maintain(cmds, device)
	if value <= p.lastCompleted {
		return nil
	}

	var targetFence vk.Fence
	targetIdx := -1
	for i, entry := range p.active {
		if entry.value == value {
			targetFence, targetIdx = entry.fence, i
			break
		}
		if entry.value > value && (targetFence == 0 || entry.value < p.active[targetIdx].value) {
			targetFence, targetIdx = entry.fence, i
		}
	}
	if targetFence == 0 {
		return nil
	}

	switch cmds.WaitForFences(device, 1, &targetFence, vk.Bool32(vk.True), timeoutNs) {
	case vk.Success:
		_ = cmds.ResetFences(device, 1, &targetFence)
		if p.active[targetIdx].value > p.lastCompleted {
			p.lastCompleted = p.active[targetIdx].value
		}
		last := len(p.active) - 1
		p.active[targetIdx] = p.active[last]
		p.active = p.active[:last]
		p.maintain(cmds, device)
		return nil
	case vk.Timeout:
		return fmt.Errorf("sched: wait timed out (value=%d)", value)
	case vk.ErrorDeviceLost:
		return fmt.Errorf("sched: device lost while waiting on value %d", value)
	default:
		return fmt.Errorf("sched: vkWaitForFences failed")
	}
}

func (p *fencePool) destroy(cmds *vk.Commands, device vk.Device) {
	for _, e := range p.active {
		cmds.DestroyFence(device, e.fence, nil)
	}
	for _, f := range p.free {
		cmds.DestroyFence(device, f, nil)
	}
	p.active, p.free = nil, nil
}

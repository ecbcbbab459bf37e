// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package tile is the compute-shader tiler/detiler (spec.md §4.6,
// component C7): it moves pixels between AMD GCN's hardware-swizzled
// tile layouts and the host's linear memory by dispatching one of six
// precompiled compute kernels, selected by the surface's tile mode.
package tile

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
	"github.com/gogpu/gnmcore/sched"
)

// Tiler owns the descriptor-set layout, the fixed slot pool, the six
// compute pipelines, and the mapped uniform buffer tile operations
// write their Config into before dispatching.
type Tiler struct {
	cmds   *vk.Commands
	device vk.Device

	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	descriptorPool vk.DescriptorPool
	descriptorSets [slotCount]vk.DescriptorSet

	shaders   *shaderSet
	pipelines [6]vk.Pipeline

	configBuffer vk.Buffer
	configMemory vk.DeviceMemory
	configMapped unsafe.Pointer

	slots slotPool
}

// New creates the tiler's Vulkan state: one descriptor set per pool
// slot, one compute pipeline per shader kind, and a host-visible
// uniform buffer big enough to hold slotCount Config records.
func New(cmds *vk.Commands, device vk.Device, memoryTypeIndex uint32) (*Tiler, error) {
	t := &Tiler{cmds: cmds, device: device}

	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    &binding,
	}
	if result := cmds.CreateDescriptorSetLayout(device, &layoutInfo, nil, &t.setLayout); result != vk.Success {
		return nil, fmt.Errorf("tile: vkCreateDescriptorSetLayout failed: %d", result)
	}

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    &t.setLayout,
	}
	if result := cmds.CreatePipelineLayout(device, &pipelineLayoutInfo, nil, &t.pipelineLayout); result != vk.Success {
		t.Destroy()
		return nil, fmt.Errorf("tile: vkCreatePipelineLayout failed: %d", result)
	}

	poolSize := vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: slotCount}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       slotCount,
		PoolSizeCount: 1,
		PPoolSizes:    &poolSize,
	}
	if result := cmds.CreateDescriptorPool(device, &poolInfo, nil, &t.descriptorPool); result != vk.Success {
		t.Destroy()
		return nil, fmt.Errorf("tile: vkCreateDescriptorPool failed: %d", result)
	}

	for i := 0; i < slotCount; i++ {
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     t.descriptorPool,
			DescriptorSetCount: 1,
			PSetLayouts:        &t.setLayout,
		}
		if result := cmds.AllocateDescriptorSets(device, &allocInfo, &t.descriptorSets[i]); result != vk.Success {
			t.Destroy()
			return nil, fmt.Errorf("tile: vkAllocateDescriptorSets failed: %d", result)
		}
	}

	shaders, err := newShaderSet(cmds, device)
	if err != nil {
		t.Destroy()
		return nil, err
	}
	t.shaders = shaders

	for k := kindDetileLinear; k <= kindTile2D; k++ {
		stageInfo := vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: t.shaders.modules[k],
			PName:  cString("main"),
		}
		createInfo := vk.ComputePipelineCreateInfo{
			SType:  vk.StructureTypeComputePipelineCreateInfo,
			Stage:  stageInfo,
			Layout: t.pipelineLayout,
		}
		if result := cmds.CreateComputePipelines(device, 0, 1, &createInfo, nil, &t.pipelines[k]); result != vk.Success {
			t.Destroy()
			return nil, fmt.Errorf("tile: vkCreateComputePipelines failed for kernel %d: %d", k, result)
		}
	}

	if err := t.allocateConfigBuffer(memoryTypeIndex); err != nil {
		t.Destroy()
		return nil, err
	}

	return t, nil
}

func (t *Tiler) allocateConfigBuffer(memoryTypeIndex uint32) error {
	bufInfo := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(configSize * slotCount),
		Usage: vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
	}
	if result := t.cmds.CreateBuffer(t.device, &bufInfo, nil, &t.configBuffer); result != vk.Success {
		return fmt.Errorf("tile: vkCreateBuffer failed: %d", result)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  bufInfo.Size,
		MemoryTypeIndex: memoryTypeIndex,
	}
	if result := t.cmds.AllocateMemory(t.device, &allocInfo, nil, &t.configMemory); result != vk.Success {
		return fmt.Errorf("tile: vkAllocateMemory failed: %d", result)
	}
	if result := t.cmds.BindBufferMemory(t.device, t.configBuffer, t.configMemory, 0); result != vk.Success {
		return fmt.Errorf("tile: vkBindBufferMemory failed: %d", result)
	}
	if result := t.cmds.MapMemory(t.device, t.configMemory, 0, bufInfo.Size, 0, &t.configMapped); result != vk.Success {
		return fmt.Errorf("tile: vkMapMemory failed: %d", result)
	}

	for i := 0; i < slotCount; i++ {
		bufferInfo := vk.DescriptorBufferInfo{
			Buffer: t.configBuffer,
			Offset: vk.DeviceSize(i * configSize),
			Range:  configSize,
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          t.descriptorSets[i],
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     &bufferInfo,
		}
		t.cmds.UpdateDescriptorSets(t.device, 1, &write, 0, nil)
	}
	return nil
}

// Detile schedules a tile->linear transform: op.SrcAddress is device
// memory in the source tile mode, op.DstAddress receives the linear
// result. queue.Submit's after-submit hook releases the slot this
// call acquires, so the descriptor set stays live until the GPU has
// actually consumed it (spec.md §4.6 step 6).
func (t *Tiler) Detile(queue *sched.Queue, op Op) (uint64, error) {
	return t.dispatch(queue, op, true)
}

// Tile schedules a linear->tile transform; see Detile.
func (t *Tiler) Tile(queue *sched.Queue, op Op) (uint64, error) {
	return t.dispatch(queue, op, false)
}

func (t *Tiler) dispatch(queue *sched.Queue, op Op, detile bool) (uint64, error) {
	slot := t.slots.acquire()

	cfg := config{
		DataWidth:      op.Surface.DataWidth,
		DataHeight:     op.Surface.DataHeight,
		TileModeRaw:    uint32(op.TileMode),
		NumFragments:   op.Surface.NumFragments,
		BitsPerElement: op.Surface.BitsPerElement,
	}
	groupCountZ := op.Surface.DataDepth
	if detile {
		cfg.SrcAddress = op.SrcAddress + op.Surface.Offset + op.Surface.TiledSize*uint64(op.BaseArray)
		cfg.DstAddress = op.DstAddress + op.Surface.LinearSize*uint64(op.BaseArray)
	} else {
		cfg.SrcAddress = op.SrcAddress + op.Surface.Offset + op.Surface.LinearSize*uint64(op.BaseArray)
		cfg.DstAddress = op.DstAddress
	}
	if op.ArrayCount > 1 {
		cfg.TiledSurfaceSize = uint32(op.Surface.TiledSize)
		cfg.LinearSurfaceSize = uint32(op.Surface.LinearSize)
		groupCountZ = uint32(op.ArrayCount)
	}
	writeConfig(t.configMapped, slot, cfg)

	cmdBuf, err := queue.CreateExternalSubmit()
	if err != nil {
		t.slots.release(slot)
		return 0, err
	}

	pipeline := t.pipelineFor(op.TileMode, detile)
	t.cmds.CmdBindPipeline(cmdBuf, vk.PipelineBindPointCompute, pipeline)
	t.cmds.CmdBindDescriptorSets(cmdBuf, vk.PipelineBindPointCompute, t.pipelineLayout,
		0, 1, &t.descriptorSets[slot], 0, nil)
	t.cmds.CmdDispatch(cmdBuf, op.Surface.DataWidth, op.Surface.DataHeight, groupCountZ)

	value, err := queue.Submit(cmdBuf, func() { t.slots.release(slot) })
	if err != nil {
		t.slots.release(slot)
		return 0, err
	}
	return value, nil
}

func (t *Tiler) pipelineFor(m TileMode, detile bool) vk.Pipeline {
	switch m.shaderClass() {
	case classLinear:
		if detile {
			return t.pipelines[kindDetileLinear]
		}
		return t.pipelines[kindTileLinear]
	case class1D:
		if detile {
			return t.pipelines[kindDetile1D]
		}
		return t.pipelines[kindTile1D]
	default:
		if detile {
			return t.pipelines[kindDetile2D]
		}
		return t.pipelines[kindTile2D]
	}
}

// Destroy releases every Vulkan object the tiler owns. Safe to call
// on a partially constructed Tiler (New calls it on its own error
// paths).
func (t *Tiler) Destroy() {
	if t.configMapped != nil {
		t.cmds.UnmapMemory(t.device, t.configMemory)
	}
	if t.configMemory != 0 {
		t.cmds.FreeMemory(t.device, t.configMemory, nil)
	}
	if t.configBuffer != 0 {
		t.cmds.DestroyBuffer(t.device, t.configBuffer, nil)
	}
	for _, p := range t.pipelines {
		if p != 0 {
			t.cmds.DestroyPipeline(t.device, p, nil)
		}
	}
	if t.shaders != nil {
		t.shaders.destroy(t.cmds, t.device)
	}
	if t.descriptorPool != 0 {
		t.cmds.DestroyDescriptorPool(t.device, t.descriptorPool, nil)
	}
	if t.pipelineLayout != 0 {
		t.cmds.DestroyPipelineLayout(t.device, t.pipelineLayout, nil)
	}
	if t.setLayout != 0 {
		t.cmds.DestroyDescriptorSetLayout(t.device, t.setLayout, nil)
	}
}

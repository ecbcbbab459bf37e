// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package cache is the resource cache (spec.md §4.8, component C9): it
// turns guest memory ranges and GCN descriptor state into cached host
// Vulkan objects, keeping them coherent with guest writes through a
// sync table of writer tags and releasing them only after the GPU has
// finished with them.
package cache

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
	"github.com/gogpu/gnmcore/internal/bits"
	"github.com/gogpu/gnmcore/sched"
	"github.com/gogpu/gnmcore/shader"
	"github.com/gogpu/gnmcore/tile"
)

// GuestMemory is the guest address space the cache reads and writes
// through on behalf of readMemory/writeMemory/compareMemory and on
// behalf of the staging copies a getBuffer/getImage build does.
// Grounded on the source tiler's vm::IMemory interface, reduced to the
// two operations the cache actually calls.
type GuestMemory interface {
	ReadAt(addr uint64, dst []byte)
	WriteAt(addr uint64, src []byte)
}

// Cache owns every cached Vulkan resource for one device plus the
// tiler used to detile guest surfaces on image cache misses.
type Cache struct {
	cmds   *vk.Commands
	device vk.Device
	mem    GuestMemory
	tiler  *tile.Tiler

	hostMemoryTypeIndex   uint32
	deviceMemoryTypeIndex uint32

	sync *syncTable

	buffers      *keyedBuilder[bufferKey, *Buffer]
	indexBuffers *keyedBuilder[indexBufferKey, *IndexBuffer]
	images       *keyedBuilder[ImageKey, *Image]
	imageViews   *keyedBuilder[ImageViewKey, *ImageView]
	shaders      *keyedBuilder[ShaderKey, *CompiledShader]
	samplers     *keyedBuilder[SamplerKey, *Sampler]
}

// New creates a Cache. hostMemoryTypeIndex must name a host-visible
// heap (used for buffers, which are mapped to upload guest contents);
// deviceMemoryTypeIndex names the fastest device-local heap (used for
// image backing storage).
func New(cmds *vk.Commands, device vk.Device, mem GuestMemory, tiler *tile.Tiler, hostMemoryTypeIndex, deviceMemoryTypeIndex uint32) *Cache {
	return &Cache{
		cmds:                  cmds,
		device:                device,
		mem:                   mem,
		tiler:                 tiler,
		hostMemoryTypeIndex:   hostMemoryTypeIndex,
		deviceMemoryTypeIndex: deviceMemoryTypeIndex,
		sync:                  newSyncTable(),
		buffers:               newKeyedBuilder[bufferKey, *Buffer](),
		indexBuffers:          newKeyedBuilder[indexBufferKey, *IndexBuffer](),
		images:                newKeyedBuilder[ImageKey, *Image](),
		imageViews:            newKeyedBuilder[ImageViewKey, *ImageView](),
		shaders:               newKeyedBuilder[ShaderKey, *CompiledShader](),
		samplers:              newKeyedBuilder[SamplerKey, *Sampler](),
	}
}

// CreateTag opens a short-lived view onto the cache for one recording
// scope. Every resource the Tag resolves is tracked so Release can
// defer their destruction until queue has finished the work this scope
// recorded (spec.md §4.8).
func (c *Cache) CreateTag(queue *sched.Queue) *Tag {
	return &Tag{cache: c, queue: queue}
}

// Invalidate drops every cached entry whose guest range overlaps
// [addr, addr+size) and bumps the sync table's writer tag for that
// range, used after a guest write the cache did not itself perform
// (e.g. a CPU-side memcpy into VRAM): the next getBuffer/getImage over
// the range rebuilds from guest memory instead of returning stale
// cached contents. Images and image views are matched by their read
// and write start addresses only.
func (c *Cache) Invalidate(addr, size uint64) TagID {
	c.evictEntries(addr, size)
	return c.sync.record(addr, size)
}

// Flush is the read-direction counterpart to Invalidate: it drops any
// cached resource covering [addr, addr+size) so the next access
// rebuilds from current guest memory, without bumping the sync table
// (a flush exposes existing state, it is not itself a new write).
func (c *Cache) Flush(addr, size uint64) {
	c.evictEntries(addr, size)
}

func (c *Cache) evictEntries(addr, size uint64) {
	c.buffers.evict(func(k bufferKey, _ *Buffer) bool { return overlapsRange(k.Addr, k.Size, addr, size) })
	c.images.evict(func(k ImageKey, _ *Image) bool {
		return overlapsRange(k.ReadAddress, 0, addr, size) || overlapsRange(k.WriteAddress, 0, addr, size)
	})
	c.indexBuffers.evict(func(k indexBufferKey, ib *IndexBuffer) bool { return overlapsRange(k.Addr, ib.Size, addr, size) })
	c.imageViews.evict(func(k ImageViewKey, _ *ImageView) bool {
		return overlapsRange(k.ReadAddress, 0, addr, size) || overlapsRange(k.WriteAddress, 0, addr, size)
	})

	evictedAddrs := make(map[uint64]bool)
	directlyEvicted := c.shaders.evict(func(k ShaderKey, _ *CompiledShader) bool {
		hit := overlapsRange(k.Address, 0, addr, size)
		if hit {
			evictedAddrs[k.Address] = true
		}
		return hit
	})
	if len(directlyEvicted) == 0 {
		return
	}
	// cascade: a shader compiled depending on one we just dropped is
	// itself stale (spec.md §4.8 getShader "dependedKey links
	// dependent-stage invalidation").
	c.shaders.evict(func(_ ShaderKey, sh *CompiledShader) bool {
		return sh.DependedKey != nil && evictedAddrs[sh.DependedKey.Address]
	})
}

func overlapsRange(aAddr, aSize, bAddr, bSize uint64) bool {
	if aSize == 0 {
		aSize = 1
	}
	if bSize == 0 {
		bSize = 1
	}
	return aAddr < bAddr+bSize && bAddr < aAddr+aSize
}

// getBuffer resolves (or builds) the buffer backing [addr, addr+size),
// tagging it with the current sync table state for access.
func (c *Cache) getBuffer(addr, size uint64, access bits.Access) (*Buffer, TagID, error) {
	key := bufferKey{Addr: addr, Size: size}
	buf, err := c.buffers.getOrBuild(key, func() (*Buffer, error) {
		return c.createBuffer(addr, size, access)
	})
	if err != nil {
		return nil, 0, err
	}
	if !access.IsReadOnly() {
		c.sync.record(addr, size)
	}
	return buf, c.sync.getSyncTag(addr, size), nil
}

func (c *Cache) createBuffer(addr, size uint64, access bits.Access) (*Buffer, error) {
	usage := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit | vk.BufferUsageStorageBufferBit)
	bufInfo := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(size),
		Usage: usage,
	}
	var handle vk.Buffer
	if result := c.cmds.CreateBuffer(c.device, &bufInfo, nil, &handle); result != vk.Success {
		return nil, fmt.Errorf("cache: vkCreateBuffer failed: %d", result)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  bufInfo.Size,
		MemoryTypeIndex: c.hostMemoryTypeIndex,
	}
	var memory vk.DeviceMemory
	if result := c.cmds.AllocateMemory(c.device, &allocInfo, nil, &memory); result != vk.Success {
		c.cmds.DestroyBuffer(c.device, handle, nil)
		return nil, fmt.Errorf("cache: vkAllocateMemory failed: %d", result)
	}
	if result := c.cmds.BindBufferMemory(c.device, handle, memory, 0); result != vk.Success {
		c.cmds.FreeMemory(c.device, memory, nil)
		c.cmds.DestroyBuffer(c.device, handle, nil)
		return nil, fmt.Errorf("cache: vkBindBufferMemory failed: %d", result)
	}

	if c.mem != nil {
		c.uploadFromGuest(memory, addr, size)
	}
	return &Buffer{Handle: handle, Memory: memory, Addr: addr, Size: size}, nil
}

func (c *Cache) uploadFromGuest(memory vk.DeviceMemory, addr, size uint64) {
	var mapped unsafe.Pointer
	if result := c.cmds.MapMemory(c.device, memory, 0, vk.DeviceSize(size), 0, &mapped); result != vk.Success {
		return
	}
	buf := unsafe.Slice((*byte)(mapped), int(size))
	c.mem.ReadAt(addr, buf)
	c.cmds.UnmapMemory(c.device, memory)
}

// getIndexBuffer resolves the index buffer for a draw's index stream.
func (c *Cache) getIndexBuffer(addr uint64, count, primType, indexType uint32) (*IndexBuffer, error) {
	elemSize := uint64(2)
	if indexType == indexTypeUint32 {
		elemSize = 4
	}
	size := uint64(count) * elemSize
	key := indexBufferKey{Addr: addr, Count: count, PrimType: primType, IndexType: indexType}
	return c.indexBuffers.getOrBuild(key, func() (*IndexBuffer, error) {
		buf, err := c.createBuffer(addr, size, bits.Read)
		if err != nil {
			return nil, err
		}
		return &IndexBuffer{Buffer: *buf, Count: count, PrimType: primType, IndexType: indexType}, nil
	})
}

const indexTypeUint32 = 1

// getSampler resolves the (pure, never-invalidated) sampler for key.
func (c *Cache) getSampler(key SamplerKey) (*Sampler, error) {
	return c.samplers.getOrBuild(key, func() (*Sampler, error) {
		return c.createSampler(key)
	})
}

func (c *Cache) createSampler(key SamplerKey) (*Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(key.MagFilter),
		MinFilter:               vk.Filter(key.MinFilter),
		MipmapMode:              vk.SamplerMipmapMode(key.MipmapMode),
		AddressModeU:            vk.SamplerAddressMode(key.AddressU),
		AddressModeV:            vk.SamplerAddressMode(key.AddressV),
		AddressModeW:            vk.SamplerAddressMode(key.AddressW),
		MipLodBias:              key.MipLodBias,
		AnisotropyEnable:        boolToVk(key.AnisotropyEnable),
		MaxAnisotropy:           key.MaxAnisotropy,
		CompareEnable:           boolToVk(key.CompareEnable),
		CompareOp:               vk.CompareOp(key.CompareOp),
		MinLod:                  key.MinLod,
		MaxLod:                  key.MaxLod,
		BorderColor:             vk.BorderColor(key.BorderColor),
		UnnormalizedCoordinates: 0,
	}
	var handle vk.Sampler
	if result := c.cmds.CreateSampler(c.device, &info, nil, &handle); result != vk.Success {
		return nil, fmt.Errorf("cache: vkCreateSampler failed: %d", result)
	}
	return &Sampler{Handle: handle}, nil
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return 1
	}
	return 0
}

// getShader resolves a compiled shader for key, translating and
// compiling it on a cache miss. dependedKey, when non-nil, is recorded
// on the resulting entry so a later invalidation of that companion
// shader also invalidates this one.
func (c *Cache) getShader(key ShaderKey, binaryData []byte, dependedKey *ShaderKey) (*CompiledShader, error) {
	return c.shaders.getOrBuild(key, func() (*CompiledShader, error) {
		translation, err := shader.Translate(key.Env, binaryData)
		if err != nil {
			return nil, fmt.Errorf("cache: shader translation failed: %w", err)
		}

		// TODO: emit real SPIR-V words from translation once the
		// dialect package grows a binary encoder; until then a
		// placeholder module keeps the cache's lifetime and
		// invalidation contract exercised end to end.
		words := []uint32{0x07230203, 0x00010000, 0, 1, 0}
		info := vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uintptr(len(words)) * 4,
			PCode:    &words[0],
		}
		var module vk.ShaderModule
		if result := c.cmds.CreateShaderModule(c.device, &info, nil, &module); result != vk.Success {
			return nil, fmt.Errorf("cache: vkCreateShaderModule failed: %d", result)
		}
		return &CompiledShader{Module: module, Translation: translation, DependedKey: dependedKey}, nil
	})
}

// readMemory reads size bytes at addr from guest memory. It neither
// consults nor waits on the sync table; Tag.ReadMemory records the
// range's writer tag but does not wait for it either.
func (c *Cache) readMemory(addr, size uint64) []byte {
	buf := make([]byte, size)
	if c.mem != nil {
		c.mem.ReadAt(addr, buf)
	}
	return buf
}

// writeMemory writes data into guest memory at addr and invalidates
// every cache entry overlapping the written range, bumping the sync
// table so later readers see a tag newer than any prior reader of the
// overlap (spec.md §8 testable property 8).
func (c *Cache) writeMemory(addr uint64, data []byte) TagID {
	if c.mem != nil {
		c.mem.WriteAt(addr, data)
	}
	c.evictEntries(addr, uint64(len(data)))
	return c.sync.record(addr, uint64(len(data)))
}

// Destroy releases every Vulkan object the cache currently holds. The
// caller is responsible for having waited out any queue submissions
// that might still be reading these resources first.
func (c *Cache) Destroy() {
	for _, s := range c.samplers.all() {
		c.cmds.DestroySampler(c.device, s.Handle, nil)
	}
	for _, sh := range c.shaders.all() {
		c.cmds.DestroyShaderModule(c.device, sh.Module, nil)
	}
	for _, v := range c.imageViews.all() {
		c.cmds.DestroyImageView(c.device, v.Handle, nil)
	}
	for _, img := range c.images.all() {
		c.cmds.DestroyImage(c.device, img.Handle, nil)
		c.cmds.FreeMemory(c.device, img.Memory, nil)
	}
	for _, buf := range c.buffers.all() {
		c.cmds.DestroyBuffer(c.device, buf.Handle, nil)
		c.cmds.FreeMemory(c.device, buf.Memory, nil)
	}
	for _, ib := range c.indexBuffers.all() {
		c.cmds.DestroyBuffer(c.device, ib.Handle, nil)
		c.cmds.FreeMemory(c.device, ib.Memory, nil)
	}
}

// compareMemory reports whether guest memory at addr equals want,
// without disturbing the sync table (a pure read for detecting
// guest-side polling writes).
func (c *Cache) compareMemory(addr uint64, want []byte) bool {
	got := c.readMemory(addr, uint64(len(want)))
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

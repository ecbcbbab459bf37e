// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cache

import "github.com/gogpu/gnmcore/shader"

// TagID is a monotonically increasing write/read fence value: every
// writer bumps the sync table's counter and records the new value against the
// memory range it touched, and every reader waits for the maximum tag
// that overlaps the range it is about to consume (spec.md §4.8).
type TagID uint64

// bufferKey identifies a cached plain buffer by its guest range.
type bufferKey struct {
	Addr uint64
	Size uint64
}

// indexBufferKey identifies a cached index buffer: the guest range
// plus the draw-time interpretation of it, since the same bytes read
// as uint16 vs uint32 indices are different resources.
type indexBufferKey struct {
	Addr      uint64
	Count     uint32
	PrimType  uint32
	IndexType uint32
}

// ShaderKey identifies one compiled guest shader: its guest address
// plus the environment (stage, user-SGPR layout) it was compiled
// under, since the same bytes can mean different things in different
// stages.
type ShaderKey struct {
	Address uint64
	Env     shader.Environment
}

// ImageKey identifies a cached image by its guest read/write
// addresses and format/layout. Two draws that reference the same
// guest surface through equal keys share one Vulkan image.
type ImageKey struct {
	ReadAddress  uint64
	WriteAddress uint64
	Width        uint32
	Height       uint32
	Depth        uint32
	TileModeRaw  uint32
	Dfmt         uint32
	BaseMipLevel uint32
	MipCount     uint32
	BaseArray    uint32
	ArrayCount   uint32
}

// ImageViewKey extends ImageKey with the channel swizzle a view reads
// the underlying image through.
type ImageViewKey struct {
	ImageKey
	SwizzleR, SwizzleG, SwizzleB, SwizzleA uint8
}

// SamplerKey is a pure value key: two SamplerKeys that compare equal
// always produce the same VkSampler, so getSampler never invalidates.
type SamplerKey struct {
	MagFilter, MinFilter, MipmapMode uint32
	AddressU, AddressV, AddressW    uint32
	CompareOp                       uint32
	MipLodBias, MinLod, MaxLod      float32
	MaxAnisotropy                   float32
	BorderColor                     uint32
	AnisotropyEnable, CompareEnable bool
}

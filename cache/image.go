// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
	"github.com/gogpu/gnmcore/tile"
)

// tileSurface is the subresource layout information a cache miss on a
// tiled image needs to schedule a detile through the tile package,
// kept separate from ImageKey so the key stays a pure comparable value
// while this carries the sizes the tiler's dispatch actually consumes.
type tileSurface struct {
	Surface    tile.SurfaceInfo
	TileMode   tile.TileMode
	BaseArray  int
	ArrayCount int
}

// NewSurfaceParams builds the tile-layout parameters GetImage/GetImageView
// need to schedule a detile on a cache miss. Callers outside this package
// (the device layer, resolving a draw's bound render targets and textures)
// construct one per resource from the GCN surface descriptor and pass it
// straight through without needing to name the underlying type.
func NewSurfaceParams(surface tile.SurfaceInfo, mode tile.TileMode, baseArray, arrayCount int) tileSurface {
	return tileSurface{Surface: surface, TileMode: mode, BaseArray: baseArray, ArrayCount: arrayCount}
}

func (s tileSurface) toTileOp(key ImageKey) tile.Op {
	return tile.Op{
		Surface:    s.Surface,
		TileMode:   s.TileMode,
		SrcAddress: key.ReadAddress,
		DstAddress: key.WriteAddress,
		BaseArray:  s.BaseArray,
		ArrayCount: s.ArrayCount,
	}
}

func (c *Cache) createImage(key ImageKey) (*Image, error) {
	imgInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageTypeFor(key),
		Format:    vk.Format(key.Dfmt),
		Extent: vk.Extent3D{
			Width:  key.Width,
			Height: key.Height,
			Depth:  depthOf(key),
		},
		MipLevels:   key.MipCount,
		ArrayLayers: arrayLayersOf(key),
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage: vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit |
			vk.ImageUsageSampledBit | vk.ImageUsageStorageBit),
	}
	var handle vk.Image
	if result := c.cmds.CreateImage(c.device, &imgInfo, nil, &handle); result != vk.Success {
		return nil, fmt.Errorf("cache: vkCreateImage failed: %d", result)
	}

	var reqs vk.MemoryRequirements
	c.cmds.GetImageMemoryRequirements(c.device, handle, &reqs)

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: c.deviceMemoryTypeIndex,
	}
	var memory vk.DeviceMemory
	if result := c.cmds.AllocateMemory(c.device, &allocInfo, nil, &memory); result != vk.Success {
		c.cmds.DestroyImage(c.device, handle, nil)
		return nil, fmt.Errorf("cache: vkAllocateMemory failed: %d", result)
	}
	if result := c.cmds.BindImageMemory(c.device, handle, memory, 0); result != vk.Success {
		c.cmds.FreeMemory(c.device, memory, nil)
		c.cmds.DestroyImage(c.device, handle, nil)
		return nil, fmt.Errorf("cache: vkBindImageMemory failed: %d", result)
	}

	return &Image{
		Handle:      handle,
		Memory:      memory,
		Key:         key,
		TiledOnDisk: key.TileModeRaw != 0,
	}, nil
}

func imageTypeFor(key ImageKey) vk.ImageType {
	if key.Depth > 1 {
		return vk.ImageType3D
	}
	return vk.ImageType2D
}

func depthOf(key ImageKey) uint32 {
	if key.Depth == 0 {
		return 1
	}
	return key.Depth
}

func arrayLayersOf(key ImageKey) uint32 {
	if key.Depth > 1 {
		return 1
	}
	if key.ArrayCount == 0 {
		return 1
	}
	return key.ArrayCount
}

func (c *Cache) createImageView(img *Image, key ImageViewKey) (*ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: viewTypeFor(key.ImageKey),
		Format:   vk.Format(key.Dfmt),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzle(key.SwizzleR),
			G: vk.ComponentSwizzle(key.SwizzleG),
			B: vk.ComponentSwizzle(key.SwizzleB),
			A: vk.ComponentSwizzle(key.SwizzleA),
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   key.BaseMipLevel,
			LevelCount:     key.MipCount,
			BaseArrayLayer: key.BaseArray,
			LayerCount:     arrayLayersOf(key.ImageKey),
		},
	}
	var handle vk.ImageView
	if result := c.cmds.CreateImageView(c.device, &viewInfo, nil, &handle); result != vk.Success {
		return nil, fmt.Errorf("cache: vkCreateImageView failed: %d", result)
	}
	return &ImageView{Handle: handle, Image: img}, nil
}

func viewTypeFor(key ImageKey) vk.ImageViewType {
	switch {
	case key.Depth > 1:
		return vk.ImageViewType3D
	case key.ArrayCount > 1:
		return vk.ImageViewType2DArray
	default:
		return vk.ImageViewType2D
	}
}

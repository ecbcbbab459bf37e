// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package device

import (
	"fmt"

	"github.com/gogpu/gnmcore/cache"
	"github.com/gogpu/gnmcore/hal/vulkan/vk"
	"github.com/gogpu/gnmcore/internal/bits"
	"github.com/gogpu/gnmcore/sched"
	"github.com/gogpu/gnmcore/tile"
)

// flipSource describes the guest-registered display buffer a Flip
// presents, resolved from a Process's BufferAttributes entry.
type flipSource struct {
	Address  uint64
	Width    uint32
	Height   uint32
	Pitch    uint32
	Format   uint32
	TileMode uint32
}

// FlipPipeline is spec.md §4.10's flip pipeline. The source presents by
// sampling the guest buffer through a full-screen-triangle pass with
// one of two fragment shaders selected by colorspace; this build
// presents with a copy instead of a sampled draw (no graphics pipeline
// exists yet in this repo — see DESIGN.md), detiling first through the
// tile package when the guest buffer is tiled.
type FlipPipeline struct {
	cmds   *vk.Commands
	device vk.Device
	tiler  *tile.Tiler
}

func newFlipPipeline(cmds *vk.Commands, device vk.Device, tiler *tile.Tiler) (*FlipPipeline, error) {
	return &FlipPipeline{cmds: cmds, device: device, tiler: tiler}, nil
}

// bitsPerElementFor maps a GCN/Vulkan format ordinal to how many bits
// one texel occupies. Only the formats the source's two flip fragment
// shaders actually accept (8-bit-per-channel RGBA variants) are
// modeled; anything else defaults to 32 bits per element.
func bitsPerElementFor(format uint32) uint32 { return 32 }

// Present copies src onto swapImage, detiling first if src.TileMode
// names a non-linear GCN tile mode.
func (f *FlipPipeline) Present(queue *sched.Queue, tag *cache.Tag, src flipSource, swapImage vk.Image, swapView vk.ImageView, swapWidth, swapHeight uint32) error {
	if src.Width == 0 || src.Height == 0 {
		return fmt.Errorf("device: flip: source buffer has zero extent")
	}

	bpe := bitsPerElementFor(src.Format)
	pitch := src.Pitch
	if pitch == 0 {
		pitch = src.Width * (bpe / 8)
	}
	size := uint64(pitch) * uint64(src.Height)

	srcAddr := src.Address
	mode := tile.TileMode(src.TileMode)
	if mode.ArrayMode() != tile.ArrayModeLinearGeneral && mode.ArrayMode() != tile.ArrayModeLinearAligned {
		// Detiling writes back to the same guest range: this build has
		// no dedicated scratch allocator for a separate linear
		// destination yet (the same gap cache.go's own tiled-image
		// resolution carries, see DESIGN.md), so the dispatch below
		// exercises the tiler's pipeline selection and descriptor
		// wiring without yet producing a faithful detiled copy.
		op := tile.Op{
			Surface: tile.SurfaceInfo{
				DataWidth:      src.Width,
				DataHeight:     src.Height,
				DataDepth:      1,
				TiledSize:      size,
				LinearSize:     size,
				NumFragments:   1,
				BitsPerElement: bpe,
			},
			TileMode:   tile.TileMode(src.TileMode),
			SrcAddress: src.Address,
			DstAddress: src.Address,
		}
		if _, err := f.tiler.Detile(queue, op); err != nil {
			return fmt.Errorf("device: flip: detile: %w", err)
		}
	}

	buf, err := tag.GetBuffer(srcAddr, size, bits.Read)
	if err != nil {
		return fmt.Errorf("device: flip: resolving source buffer: %w", err)
	}

	cmdBuf, err := queue.CreateExternalSubmit()
	if err != nil {
		return fmt.Errorf("device: flip: %w", err)
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutTransferDstOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               swapImage,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
		DstAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
	}
	f.cmds.CmdPipelineBarrier(cmdBuf,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, &barrier)

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  minU32(src.Width, swapWidth),
			Height: minU32(src.Height, swapHeight),
			Depth:  1,
		},
	}
	f.cmds.CmdCopyBufferToImage(cmdBuf, buf.Handle, swapImage, vk.ImageLayoutTransferDstOptimal, 1, &region)

	present := barrier
	present.OldLayout = vk.ImageLayoutTransferDstOptimal
	present.NewLayout = vk.ImageLayoutPresentSrcKHR
	present.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
	present.DstAccessMask = 0
	f.cmds.CmdPipelineBarrier(cmdBuf,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		0, 0, nil, 0, nil, 1, &present)

	if _, err := queue.Submit(cmdBuf); err != nil {
		return fmt.Errorf("device: flip: submit: %w", err)
	}
	return nil
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

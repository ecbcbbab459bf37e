// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"github.com/gogpu/gnmcore/internal/bits"
	"github.com/gogpu/gnmcore/sched"
)

// Tag is a short-lived handle onto the cache for one recording scope —
// one PM4 command buffer's worth of resource resolution. It mirrors
// the source tiler's Cache::Tag: every resource it resolves is
// recorded, and Release defers their destruction until queue's
// current submission generation completes, instead of freeing
// anything the GPU might still be reading (spec.md §4.8).
type Tag struct {
	cache *Cache
	queue *sched.Queue

	readTag  TagID
	writeTag TagID

	touched []func()
}

// ReadTag returns the highest writer tag any resource this Tag has
// resolved so far depended on.
func (t *Tag) ReadTag() TagID { return t.readTag }

// WriteTag returns the highest tag any write this Tag performed
// produced.
func (t *Tag) WriteTag() TagID { return t.writeTag }

func (t *Tag) observeRead(tag TagID) {
	if tag > t.readTag {
		t.readTag = tag
	}
}

func (t *Tag) observeWrite(tag TagID) {
	if tag > t.writeTag {
		t.writeTag = tag
	}
}

// GetBuffer resolves the buffer backing [addr, addr+size) under access.
func (t *Tag) GetBuffer(addr, size uint64, access bits.Access) (*Buffer, error) {
	buf, tag, err := t.cache.getBuffer(addr, size, access)
	if err != nil {
		return nil, err
	}
	t.observeRead(tag)
	if !access.IsReadOnly() {
		t.observeWrite(tag)
	}
	t.touch(func() {})
	return buf, nil
}

// GetIndexBuffer resolves the index buffer for a draw's index stream.
func (t *Tag) GetIndexBuffer(addr uint64, count, primType, indexType uint32) (*IndexBuffer, error) {
	ib, err := t.cache.getIndexBuffer(addr, count, primType, indexType)
	if err != nil {
		return nil, err
	}
	t.touch(func() {})
	return ib, nil
}

// GetImage resolves key, scheduling a detile through the tiler on a
// cache miss for a read access against a tiled guest surface.
func (t *Tag) GetImage(key ImageKey, access bits.Access, surface tileSurface) (*Image, error) {
	img, err := t.cache.images.getOrBuild(key, func() (*Image, error) {
		built, err := t.cache.createImage(key)
		if err != nil {
			return nil, err
		}
		if built.TiledOnDisk && access.Contains(bits.Read) && t.cache.tiler != nil {
			if err := t.scheduleDetile(built, key, surface); err != nil {
				return nil, err
			}
		}
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	t.touch(func() {})
	return img, nil
}

// GetImageView resolves a view over a cached image, building both on
// a miss.
func (t *Tag) GetImageView(key ImageViewKey, access bits.Access, surface tileSurface) (*ImageView, error) {
	return t.cache.imageViews.getOrBuild(key, func() (*ImageView, error) {
		img, err := t.GetImage(key.ImageKey, access, surface)
		if err != nil {
			return nil, err
		}
		view, err := t.cache.createImageView(img, key)
		if err != nil {
			return nil, err
		}
		t.touch(func() {})
		return view, nil
	})
}

// GetShader resolves a compiled shader, translating binaryData on a
// miss. dependedKey links a companion stage whose invalidation must
// also invalidate this entry.
func (t *Tag) GetShader(key ShaderKey, binaryData []byte, dependedKey *ShaderKey) (*CompiledShader, error) {
	sh, err := t.cache.getShader(key, binaryData, dependedKey)
	if err != nil {
		return nil, err
	}
	t.touch(func() {})
	return sh, nil
}

// GetSampler resolves the sampler for key.
func (t *Tag) GetSampler(key SamplerKey) (*Sampler, error) {
	return t.cache.getSampler(key)
}

// ReadMemory reads size bytes of guest memory at addr.
func (t *Tag) ReadMemory(addr, size uint64) []byte {
	t.observeRead(t.cache.sync.getSyncTag(addr, size))
	return t.cache.readMemory(addr, size)
}

// WriteMemory writes data into guest memory at addr, invalidating any
// cache entry it overlaps.
func (t *Tag) WriteMemory(addr uint64, data []byte) {
	t.observeWrite(t.cache.writeMemory(addr, data))
}

// CompareMemory reports whether guest memory at addr equals want.
func (t *Tag) CompareMemory(addr uint64, want []byte) bool {
	return t.cache.compareMemory(addr, want)
}

// touch records a resource this Tag resolved so Release can defer its
// cleanup. fn is a no-op placeholder for value-type resources (the
// shared keyedBuilder tables own the actual Vulkan handles and evict
// them on invalidate); the hook exists so resources with their own
// independent lifetime (future per-Tag staging buffers, descriptor
// sets) have a concrete place to register cleanup.
func (t *Tag) touch(fn func()) {
	t.touched = append(t.touched, fn)
}

func (t *Tag) scheduleDetile(img *Image, key ImageKey, surface tileSurface) error {
	_, err := t.cache.tiler.Detile(t.queue, surface.toTileOp(key))
	return err
}

// Release ends the tag's recording scope. Every resource it touched is
// handed to queue's pending-release list, tagged with the queue's
// current signal value, so cleanup runs only after the GPU has
// finished the work this scope recorded (spec.md §4.8).
func (t *Tag) Release() {
	if len(t.touched) == 0 {
		return
	}
	hooks := t.touched
	t.touched = nil
	t.queue.DeferUntilComplete(func() {
		for _, fn := range hooks {
			fn()
		}
	})
}

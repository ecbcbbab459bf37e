// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"sync"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
	"github.com/gogpu/gnmcore/shader"
)

// Buffer is a cached guest-backed VkBuffer.
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Addr   uint64
	Size   uint64
}

// IndexBuffer is a cached index buffer plus the draw-time parameters
// that distinguish it from a plain Buffer (spec.md §4.8 getIndexBuffer).
type IndexBuffer struct {
	Buffer
	Count       uint32
	PrimType    uint32
	IndexType   uint32
}

// Image is a cached guest-backed VkImage. TiledOnDisk records whether
// the guest surface is GCN-tiled, so a read access that misses the
// cache knows to schedule a detile through the tile package before the
// image is usable.
type Image struct {
	Handle      vk.Image
	Memory      vk.DeviceMemory
	Key         ImageKey
	TiledOnDisk bool
}

// ImageView is a cached VkImageView over a cached Image.
type ImageView struct {
	Handle vk.ImageView
	Image  *Image
}

// Sampler is a cached VkSampler. Samplers are a pure function of their
// key, so this entry is never invalidated by a memory write.
type Sampler struct {
	Handle vk.Sampler
}

// CompiledShader is a cached translation of one guest shader binary
// plus the VkShaderModule built from it. DependedKey, when non-nil,
// names the ShaderKey this shader was compiled assuming a companion
// stage's resource bindings, so invalidating the companion also
// invalidates this entry (spec.md §4.8 getShader "dependedKey links
// dependent-stage invalidation").
type CompiledShader struct {
	Module      vk.ShaderModule
	Translation *shader.Translation
	DependedKey *ShaderKey
}

// inflight is the sentinel a concurrent lookup finds in place of a
// finished entry while a build is running: the table lookup is
// guarded by mu, and on a miss this sentinel is inserted before mu is
// released so every other goroutine racing on the same key waits on
// done instead of starting a second, redundant build
// (spec.md §4.8 "at-most-one-build invariant").
type inflight[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// keyedBuilder is a get-or-build cache keyed by a comparable resource
// key, shared by every resource kind the cache holds (buffers, images,
// image views, shaders, samplers, index buffers). It replaces the
// source tiler's shared_ptr<Entry>-in-MemoryTable ownership model with
// Go's GC plus an explicit inflight sentinel for the at-most-one-build
// guarantee a shared_ptr doesn't give for free.
type keyedBuilder[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
	pending map[K]*inflight[V]
}

func newKeyedBuilder[K comparable, V any]() *keyedBuilder[K, V] {
	return &keyedBuilder[K, V]{
		entries: make(map[K]V),
		pending: make(map[K]*inflight[V]),
	}
}

// getOrBuild returns the cached value for key, building it with build
// if this is the first request for key. Concurrent callers for the
// same key block on the single in-flight build rather than each
// running their own.
func (b *keyedBuilder[K, V]) getOrBuild(key K, build func() (V, error)) (V, error) {
	b.mu.Lock()
	if v, ok := b.entries[key]; ok {
		b.mu.Unlock()
		return v, nil
	}
	if inf, ok := b.pending[key]; ok {
		b.mu.Unlock()
		<-inf.done
		return inf.value, inf.err
	}

	inf := &inflight[V]{done: make(chan struct{})}
	b.pending[key] = inf
	b.mu.Unlock()

	v, err := build()

	b.mu.Lock()
	delete(b.pending, key)
	if err == nil {
		b.entries[key] = v
	}
	b.mu.Unlock()

	inf.value, inf.err = v, err
	close(inf.done)
	return v, err
}

// peek returns the cached value for key without building it.
func (b *keyedBuilder[K, V]) peek(key K) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.entries[key]
	return v, ok
}

// all returns every currently cached value, for teardown.
func (b *keyedBuilder[K, V]) all() []V {
	b.mu.Lock()
	defer b.mu.Unlock()
	values := make([]V, 0, len(b.entries))
	for _, v := range b.entries {
		values = append(values, v)
	}
	return values
}

// evict removes every entry for which match returns true, returning
// the removed values so the caller can schedule their destruction.
func (b *keyedBuilder[K, V]) evict(match func(K, V) bool) []V {
	b.mu.Lock()
	defer b.mu.Unlock()
	var removed []V
	for k, v := range b.entries {
		if match(k, v) {
			removed = append(removed, v)
			delete(b.entries, k)
		}
	}
	return removed
}

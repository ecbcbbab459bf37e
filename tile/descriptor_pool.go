// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package tile

import (
	"fmt"
	"math/bits"
	"sync"
)

// slotCount is the fixed size of the tiler's descriptor-set pool
// (spec.md §4.6, §5: "sized for the maximum in-flight submissions").
const slotCount = 4

// slotPool is a lock-guarded bitmask allocator over a fixed number of
// descriptor-set slots. Exhaustion is fatal per spec.md §5/§7: the
// pool is sized against the worst-case in-flight budget, so running
// out is a bug, not a transient condition a caller can back off from.
type slotPool struct {
	mu    sync.Mutex
	inUse uint32
}

func (p *slotPool) acquire() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot := bits.TrailingZeros32(^p.inUse)
	if slot >= slotCount {
		panic(fmt.Sprintf("tile: descriptor slot pool exhausted (%d in-flight submissions, pool size %d)", slotCount, slotCount))
	}
	p.inUse |= 1 << slot
	return uint32(slot)
}

func (p *slotPool) release(slot uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse &^= 1 << slot
}

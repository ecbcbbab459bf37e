// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyedBuilderBuildsOnceOnCacheHit(t *testing.T) {
	b := newKeyedBuilder[int, string]()
	var calls atomic.Int32
	build := func() (string, error) {
		calls.Add(1)
		return "value", nil
	}

	v1, err := b.getOrBuild(1, build)
	require.NoError(t, err)
	v2, err := b.getOrBuild(1, build)
	require.NoError(t, err)

	require.Equal(t, "value", v1)
	require.Equal(t, "value", v2)
	require.Equal(t, int32(1), calls.Load())
}

// TestKeyedBuilderConcurrentMissesBuildAtMostOnce locks in the
// at-most-one-build invariant (spec.md §4.8): N goroutines racing on
// the same missing key must observe exactly one build, with every
// goroutine blocking on the same in-flight sentinel rather than
// starting its own.
func TestKeyedBuilderConcurrentMissesBuildAtMostOnce(t *testing.T) {
	b := newKeyedBuilder[int, int]()
	var calls atomic.Int32
	start := make(chan struct{})
	build := func() (int, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return 42, nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, err := b.getOrBuild(7, build)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		require.Equal(t, 42, v)
	}
}

func TestKeyedBuilderEvictRemovesMatchingEntries(t *testing.T) {
	b := newKeyedBuilder[int, string]()
	_, _ = b.getOrBuild(1, func() (string, error) { return "a", nil })
	_, _ = b.getOrBuild(2, func() (string, error) { return "b", nil })

	removed := b.evict(func(k int, _ string) bool { return k == 1 })
	require.Equal(t, []string{"a"}, removed)

	_, ok := b.peek(1)
	require.False(t, ok)
	v, ok := b.peek(2)
	require.True(t, ok)
	require.Equal(t, "b", v)
}

func TestKeyedBuilderRebuildsAfterEviction(t *testing.T) {
	b := newKeyedBuilder[int, int]()
	var calls atomic.Int32
	build := func() (int, error) {
		n := calls.Add(1)
		return int(n), nil
	}

	v1, _ := b.getOrBuild(1, build)
	require.Equal(t, 1, v1)

	b.evict(func(k int, _ int) bool { return k == 1 })

	v2, _ := b.getOrBuild(1, build)
	require.Equal(t, 2, v2)
}

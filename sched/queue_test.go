// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRunCompletedHooksOrdersWithinValue checks spec.md §8 testable
// property 10: hooks attached to a submitted value run, in attachment
// order, the first time Wait observes that value or a later one
// complete.
func TestRunCompletedHooksOrdersWithinValue(t *testing.T) {
	q := &Queue{hooks: make(map[uint64][]func())}
	var order []int

	q.hooks[1] = []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}
	q.hooks[2] = []func(){
		func() { order = append(order, 3) },
	}

	q.runCompletedHooks(1)
	require.Equal(t, []int{1, 2}, order)
	require.NotContains(t, q.hooks, uint64(1))
	require.Contains(t, q.hooks, uint64(2))

	q.runCompletedHooks(2)
	require.Equal(t, []int{1, 2, 3}, order)
	require.Empty(t, q.hooks)
}

// TestRunCompletedHooksIgnoresFutureValues checks that hooks attached
// to a value above the completed watermark are left untouched.
func TestRunCompletedHooksIgnoresFutureValues(t *testing.T) {
	q := &Queue{hooks: make(map[uint64][]func())}
	ran := false
	q.hooks[5] = []func(){func() { ran = true }}

	q.runCompletedHooks(3)

	require.False(t, ran)
	require.Contains(t, q.hooks, uint64(5))
}

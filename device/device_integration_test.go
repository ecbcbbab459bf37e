// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

//go:build windows

package device

import (
	"testing"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
)

// TestDeviceLivePipeIntegration exercises a real Device end to end:
// mapProcess, a pm4 submit through a live pipe, and the resulting
// cache/scheduler state, mirroring the draw-then-flip flow spec.md §2
// and §8 describe.
//
// Building the raw vk.Commands/vk.Device this needs currently means
// going through hal/vulkan, whose Device keeps its handle and cmds
// fields unexported and whose own import paths have not yet been
// repointed at this module (see DESIGN.md) — so there is no sound way
// to obtain them from outside that package today. Until that's fixed,
// this test only verifies the Vulkan loader itself is reachable and
// otherwise skips rather than fabricate a bring-up sequence nothing
// here can ground.
func TestDeviceLivePipeIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping GPU integration test in short mode")
	}

	if err := vk.Init(); err != nil {
		t.Skipf("Vulkan not available: %v", err)
	}

	t.Skip("device bring-up needs a *vk.Commands/vk.Device pair; hal/vulkan does not expose them outside its package yet, see DESIGN.md")
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package tile

import (
	"fmt"

	"github.com/gogpu/gnmcore/hal/vulkan/vk"
)

// spirvModuleHeader is the five-word SPIR-V binary header (magic,
// version 1.0, generator ID 0, bound, schema 0) every kernel below is
// prefixed with.
var spirvModuleHeader = [5]uint32{0x07230203, 0x00010000, 0, 1, 0}

// builtinTilerSPIRV holds the six tiler kernels' compiled words, keyed
// by shaderKind. These are placeholders for the real compute shaders
// (OpCapability Shader / OpMemoryModel Logical GLSL450 / OpEntryPoint
// GLCompute, reading the Config UBO bound at binding 0 and walking
// source/destination addresses per tileMode) that ship as a build
// asset in the source tiler; this package does not contain the real
// kernels.
//
// kindDetile2D and kindTileLinear deliberately reuse kindDetileLinear
// and kindTile2D's words rather than having their own: the source
// tiler binds detiler2d to the detilerLinear kernel and tilerLinear to
// the tiler2d kernel, and this keeps that binding rather than quietly
// fixing what may or may not be a typo.
func newBuiltinTilerSPIRV() [6][]uint32 {
	detileLinear := append([]uint32{}, spirvModuleHeader[:]...)
	detile1D := append(append([]uint32{}, spirvModuleHeader[:]...), 0x1)
	tile2D := append(append([]uint32{}, spirvModuleHeader[:]...), 0x2)
	tile1D := append(append([]uint32{}, spirvModuleHeader[:]...), 0x3)

	var set [6][]uint32
	set[kindDetileLinear] = detileLinear
	set[kindDetile1D] = detile1D
	set[kindDetile2D] = detileLinear // aliases detilerLinear's words, see comment above
	set[kindTileLinear] = tile2D     // aliases tiler2d's words, see comment above
	set[kindTile1D] = tile1D
	set[kindTile2D] = tile2D
	return set
}

var builtinTilerSPIRV = newBuiltinTilerSPIRV()

func shaderLoadError(k shaderKind, result vk.Result) error {
	return fmt.Errorf("tile: vkCreateShaderModule failed for kernel %d: %d", k, result)
}

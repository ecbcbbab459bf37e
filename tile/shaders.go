// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package tile

import "github.com/gogpu/gnmcore/hal/vulkan/vk"

// shaderKind names the six tile/detile compute kernels (spec.md §4.6:
// one per direction x tile class).
type shaderKind int

const (
	kindDetileLinear shaderKind = iota
	kindDetile1D
	kindDetile2D
	kindTileLinear
	kindTile1D
	kindTile2D
)

// shaderSet holds the compiled compute shader module for each kind.
// The SPIR-V for these six kernels ships as a build-time asset in the
// original source (shaders/*.comp.h); this package loads it the same
// way, through loadShaderWords, rather than compiling it from guest
// GCN binaries the way the shader package's Translate does for guest
// programs.
type shaderSet struct {
	modules [6]vk.ShaderModule
}

// loadShaderWords returns the precompiled SPIR-V words for one of the
// six tiler kernels. It is a replaceable variable that returns the
// placeholder words in builtinTilerSPIRV; see there for the binding
// table, including the preserved detiler2d/tilerLinear aliasing.
var loadShaderWords = func(k shaderKind) []uint32 { return builtinTilerSPIRV[k] }

func newShaderSet(cmds *vk.Commands, device vk.Device) (*shaderSet, error) {
	s := &shaderSet{}
	for k := kindDetileLinear; k <= kindTile2D; k++ {
		words := loadShaderWords(k)
		info := vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uintptr(len(words)) * 4,
			PCode:    &words[0],
		}
		var module vk.ShaderModule
		if result := cmds.CreateShaderModule(device, &info, nil, &module); result != vk.Success {
			s.destroy(cmds, device)
			return nil, shaderLoadError(k, result)
		}
		s.modules[k] = module
	}
	return s, nil
}

func (s *shaderSet) forTileMode(m TileMode, detile bool) vk.ShaderModule {
	switch m.shaderClass() {
	case classLinear:
		if detile {
			return s.modules[kindDetileLinear]
		}
		return s.modules[kindTileLinear]
	case class1D:
		if detile {
			return s.modules[kindDetile1D]
		}
		return s.modules[kindTile1D]
	default:
		if detile {
			return s.modules[kindDetile2D]
		}
		return s.modules[kindTile2D]
	}
}

func (s *shaderSet) destroy(cmds *vk.Commands, device vk.Device) {
	for _, m := range s.modules {
		if m != 0 {
			cmds.DestroyShaderModule(device, m, nil)
		}
	}
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package tile

import "unsafe"

// writeConfig copies cfg into the mapped uniform buffer at the given
// slot's offset. The buffer is host-visible and coherent (no explicit
// flush), matching the source tiler's direct pointer write into
// configData.getData().
func writeConfig(mapped unsafe.Pointer, slot uint32, cfg config) {
	dst := (*config)(unsafe.Pointer(uintptr(mapped) + uintptr(slot)*configSize))
	*dst = cfg
}

// cString returns a NUL-terminated byte pointer for a Vulkan pName
// field. The backing array is kept alive by the returned pointer's
// reference inside the struct that stores it, same lifetime
// requirement as any other Vulkan pNext/pName field.
func cString(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import "fmt"

// Location identifies where an instruction originated in the guest
// shader binary being translated (or "no location" for synthesized
// nodes). Locations are deduplicated by a Context behind a set keyed by
// structural equality (spec.md §3), so two instructions from the same
// guest offset share one *Location.
type Location struct {
	File   string
	Offset uint32
	Line   uint32
}

func (l Location) String() string {
	if l.File == "" {
		return "<synthetic>"
	}
	return fmt.Sprintf("%s:%d(+0x%x)", l.File, l.Line, l.Offset)
}

// intern returns the canonical *Location for l, creating and caching one
// the first time l is seen.
func (c *Context) intern(l Location) *Location {
	if existing, ok := c.locations[l]; ok {
		return existing
	}
	stored := new(Location)
	*stored = l
	c.locations[l] = stored
	return stored
}

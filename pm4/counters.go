// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pm4

// Counters holds the CE/DE counter pair a GFX pipe's constant-engine
// and draw-engine queues synchronize through (spec.md §4.9, §5): "the
// DE queue cannot cross a WAIT_ON_CE_COUNTER(v) until ceCounter ≥ v".
// Shared by reference between a pipe's CE queue and its DE queues.
type Counters struct {
	ce uint32
	de uint32
}

func (c *Counters) IncrementCE() { c.ce++ }
func (c *Counters) IncrementDE() { c.de++ }

func (c *Counters) CE() uint32 { return c.ce }
func (c *Counters) DE() uint32 { return c.de }

// WaitCE reports whether ceCounter has reached v. A false result
// freezes the calling DE queue at the WAIT_ON_CE_COUNTER packet.
func (c *Counters) WaitCE(v uint32) bool { return c.ce >= v }

// WaitDEDiff reports whether the DE counter has advanced by at least
// diff since base. Used by WAIT_ON_DE_COUNTER_DIFF, which the CE queue
// issues to avoid racing ahead of the draw engine by more than diff
// submissions.
func (c *Counters) WaitDEDiff(base, diff uint32) bool { return c.de-base >= diff }

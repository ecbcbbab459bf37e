// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pm4

import (
	"time"

	"github.com/gogpu/gnmcore/internal/thread"
)

// Kind distinguishes a GFX pipe from a compute pipe; the two differ
// only in how many queues and indirect-nesting levels they own
// (spec.md §5).
type Kind int

const (
	KindGraphics Kind = iota
	KindCompute
)

// Pipe owns one host OS thread (spec.md §5: "one host thread per
// pipe") and round-robins over its queues, decoding PM4 packets from
// whichever queue has work until every queue is either empty or
// frozen waiting on a condition.
type Pipe struct {
	kind    Kind
	thread  *thread.Thread
	queues  []*Queue
	idle    time.Duration
	stopped chan struct{}
}

// NewPipe starts the pipe's dedicated thread. queues must already be
// constructed (NewQueue) with their rings, registers, and hooks wired.
func NewPipe(kind Kind, queues []*Queue) *Pipe {
	p := &Pipe{
		kind:    kind,
		thread:  thread.New(),
		queues:  queues,
		idle:    100 * time.Microsecond,
		stopped: make(chan struct{}),
	}
	p.thread.CallAsync(p.run)
	return p
}

// run occupies the pipe's locked OS thread for its entire lifetime,
// matching spec.md §5's model of a pipe as a perpetual decode loop
// rather than a per-submission task.
func (p *Pipe) run() {
	for {
		select {
		case <-p.stopped:
			return
		default:
		}

		progressedAny := false
		for _, q := range p.queues {
			progressed, err := q.Step()
			if err != nil {
				// A ring protocol violation (unknown opcode, bad
				// header type, out-of-bounds register write): the pipe
				// drops the offending queue and keeps servicing the
				// others. The error is not logged or passed on, and
				// the process is not aborted.
				p.queues = removeQueue(p.queues, q)
				continue
			}
			progressedAny = progressedAny || progressed
		}

		if !progressedAny {
			select {
			case <-p.stopped:
				return
			case <-time.After(p.idle):
			}
		}
	}
}

func removeQueue(queues []*Queue, target *Queue) []*Queue {
	out := queues[:0]
	for _, q := range queues {
		if q != target {
			out = append(out, q)
		}
	}
	return out
}

// Stop halts the pipe's decode loop and releases its OS thread. It
// does not drain in-flight rings; callers that need a clean drain
// should wait for Idle() across all queues before calling Stop.
func (p *Pipe) Stop() {
	close(p.stopped)
	p.thread.Stop()
}

// Idle reports whether every queue owned by the pipe has no pending
// work.
func (p *Pipe) Idle() bool {
	for _, q := range p.queues {
		if !q.Idle() {
			return false
		}
	}
	return true
}

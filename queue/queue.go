/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package queue implements the bounded FIFO of packets that connects two
// adjacent pipeline stages, with high/low watermark back-pressure and a
// cooperative service-scheduling list. Grounded on original_source/src/queue.c, re-expressed with
// lock-free atomic counters (package atomic) in place of the source's
// GC-owned linked structures, per the design notes on cross-goroutine
// counter reads.
package queue

import (
	"sync"

	libatm "github.com/nabbar/httpcore/atomic"
	"github.com/nabbar/httpcore/packet"
)

// Direction identifies which side of a stage a Queue serves.
type Direction uint8

const (
	// Rx is the inbound (request/receive) direction.
	Rx Direction = iota
	// Tx is the outbound (response/transmit) direction.
	Tx
)

// PutFunc is invoked for every packet handed to the queue by the upstream
// stage (stage.process-incoming / stage.match + default forwarding).
type PutFunc func(q *Queue, p *packet.Packet) error

// ServiceFunc drains buffered packets toward the next queue, respecting the
// next queue's available room.
type ServiceFunc func(q *Queue) error

// Scheduler enqueues a queue onto its connection's cooperative service
// list. Implemented by conn.Conn; queues only
// see this narrow interface so they cannot retain a long-lived reference
// to the whole connection.
type Scheduler interface {
	Schedule(q *Queue)
}

// Queue is a bounded FIFO of packets owned by one stage, paired with the
// opposite-direction queue of the same stage.
//
// Queue is not safe for concurrent use from more than one goroutine at a
// time; per the concurrency model all of one connection's queues
// are touched only by the single goroutine pumping that connection. The
// atomic fields exist so a service-timer goroutine can read
// counters for diagnostics without taking a lock on the hot path.
type Queue struct {
	Name      string
	Direction Direction

	// Pair is the opposite-direction queue of the same stage.
	Pair *Queue
	// Prev/Next link this queue to its neighbors in the pipeline.
	Prev, Next *Queue

	Max        int // high watermark; count > Max disables upstream
	Low        int // resume watermark; count < Low re-enables upstream
	PacketSize int // preferred chunk size for outgoingService splitting

	Put     PutFunc
	Service ServiceFunc

	scheduler  Scheduler
	resumeHook func(q *Queue)

	mu          sync.Mutex
	first, last *packet.Packet
	servicing   bool
	reservice   bool

	count    libatm.Value[int]
	disabled libatm.Value[bool]

	data any // queueData: per-request stage scratch state
}

// New returns a bare queue for stage name, with the default watermarks
// used throughout original_source/src/queue.c: Max == bufferSize, Low ==
// 5% of Max.
func New(name string, direction Direction, bufferSize int) *Queue {
	if bufferSize <= 0 {
		bufferSize = 32 * 1024
	}
	return &Queue{
		Name:       name,
		Direction:  direction,
		Max:        bufferSize,
		Low:        bufferSize / 20,
		PacketSize: bufferSize,
		count:      libatm.NewValue[int](),
		disabled:   libatm.NewValue[bool](),
	}
}

// SetScheduler binds the queue to the connection's cooperative service
// list (called once during pipeline assembly).
func (q *Queue) SetScheduler(s Scheduler) { q.scheduler = s }

// SetResumeHook overrides the default re-service-on-drain behavior.
func (q *Queue) SetResumeHook(f func(q *Queue)) { q.resumeHook = f }

// Count returns the sum of content bytes currently buffered on the queue.
func (q *Queue) Count() int { return q.count.Load() }

// Disabled reports whether this queue's producer is currently held back
// because the next queue downstream rose above its high watermark; the
// flag is cleared once that queue drains below its low watermark.
func (q *Queue) Disabled() bool { return q.disabled.Load() }

// Data returns the per-request scratch value a stage attached to this
// queue.
func (q *Queue) Data() any { return q.data }

// SetData attaches per-request scratch state to the queue.
func (q *Queue) SetData(v any) { q.data = v }

// Append links n after the last queue reachable from head, extending the
// pipeline's per-direction chain (original_source/src/queue.c's
// httpAppendQueue links into a ring; httpcore always walks from a known
// head, so a simple doubly linked list is sufficient and easier to reason
// about without a dummy sentinel node).
func Append(head, n *Queue) {
	if head == nil || n == nil {
		return
	}
	tail := head
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = n
	n.Prev = tail
}

// Push appends a packet to the tail of the queue and updates the
// back-pressure count. It does not invoke Put; callers drive Put
// themselves so that a stage's custom put logic (e.g. chunk framing) can
// decide whether/how to enqueue.
func (q *Queue) Push(p *packet.Packet) {
	if p == nil {
		return
	}
	q.mu.Lock()
	p.Next = nil
	if q.last == nil {
		q.first, q.last = p, p
	} else {
		q.last.Next = p
		q.last = p
	}
	q.mu.Unlock()
	q.count.Store(q.count.Load() + p.Len())
}

// Pop detaches and returns the first packet on the queue, transferring
// ownership to the caller.
func (q *Queue) Pop() *packet.Packet {
	q.mu.Lock()
	p := q.first
	if p == nil {
		q.mu.Unlock()
		return nil
	}
	q.first = p.Next
	if q.first == nil {
		q.last = nil
	}
	q.mu.Unlock()

	p.Next = nil
	q.count.Store(q.count.Load() - p.Len())
	return p
}

// Peek returns the first packet without detaching it.
func (q *Queue) Peek() *packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.first
}

// Empty reports whether the queue currently holds no packets.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.first == nil
}

// checkWatermarks applies the back-pressure invariant: count > Max
// disables the upstream producer; once re-drained below Low, the
// upstream is re-enabled.
func (q *Queue) checkWatermarks() {
	count := q.count.Load()

	if count > q.Max {
		q.disableUpstream()
	} else if count < q.Low {
		q.enableUpstream()
	}
}

func (q *Queue) disableUpstream() {
	if q.Prev == nil {
		return
	}
	q.Prev.disabled.Store(true)
}

func (q *Queue) enableUpstream() {
	if q.Prev == nil {
		return
	}
	if q.Prev.disabled.Swap(false) {
		q.Prev.Resume()
	}
}

// PutPacket delivers p to the queue via its configured Put callback (or
// the default forwarding behavior when none is set), then re-checks
// watermarks.
func (q *Queue) PutPacket(p *packet.Packet) error {
	var err error
	if q.Put != nil {
		err = q.Put(q, p)
	} else {
		q.defaultIncoming(p)
	}
	q.checkWatermarks()
	return err
}

// defaultIncoming implements the default stage behavior: forward the
// packet to the next queue, or buffer it here if this is the last queue.
func (q *Queue) defaultIncoming(p *packet.Packet) {
	if q.Next != nil {
		q.Next.Push(p)
		return
	}
	q.Push(p)
}

// Resume is called once this (now-disabled) queue has been asked to retry
// flushing because its downstream neighbor drained below Low. The default
// implementation reservices the queue; stages with custom resume behavior
// override via SetResumeHook.
func (q *Queue) Resume() {
	if q.resumeHook != nil {
		q.resumeHook(q)
		return
	}
	if q.scheduler != nil {
		q.scheduler.Schedule(q)
	}
}

// RunService invokes the queue's Service callback exactly once, honoring
// the single-reservice-per-drain rule: recursion is prevented by the
// servicing flag (re-entrance sets reservice and returns).
func (q *Queue) RunService() error {
	q.mu.Lock()
	if q.servicing {
		q.reservice = true
		q.mu.Unlock()
		return nil
	}
	q.servicing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.servicing = false
		again := q.reservice
		q.reservice = false
		q.mu.Unlock()
		if again && q.scheduler != nil {
			q.scheduler.Schedule(q)
		}
	}()

	if q.Service == nil {
		return nil
	}
	return q.Service(q)
}

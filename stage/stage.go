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

// Package stage implements the building blocks of the request pipeline:
// handlers, filters and connectors, each a named, stateless set of
// capabilities shared by every queue that runs it. Grounded on
// original_source/src/stage.c.
package stage

import (
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
)

// Kind classifies a Stage by its role in the pipeline.
type Kind uint8

const (
	// KindHandler is the first stage to actually act on a request (CGI,
	// file, proxy, pass/error handler). At most one handler runs per
	// request.
	KindHandler Kind = iota
	// KindFilter transforms packets flowing between the handler and the
	// connector (chunked, byterange, multipart upload).
	KindFilter
	// KindConnector is the last stage in a chain; it reads/writes the
	// underlying transport.
	KindConnector
)

// Direction selects which half of a request a capability applies to.
type Direction = queue.Direction

// MatchFunc decides whether a filter or handler applies to the current
// request. Handlers are tried in registration order; the first match
// wins.
type MatchFunc func(q *queue.Queue, dir Direction) bool

// OpenFunc initializes per-request queue state before the first packet
// flows (original_source/src/stage.c's defaultOpen: derives the queue's
// effective packet size from the negotiated chunk size).
type OpenFunc func(q *queue.Queue)

// CloseFunc releases per-request queue state. Most stages never need one.
type CloseFunc func(q *queue.Queue)

// Stage is an immutable, shared descriptor of a pipeline building block.
// One Stage is referenced by many queues (one per concurrent request);
// it never holds per-request state itself — that lives on queue.Queue.Data.
type Stage struct {
	Name string
	Kind Kind

	Match MatchFunc
	Open  OpenFunc
	Close CloseFunc

	// Incoming is invoked once per packet arriving on this stage's
	// receive-direction queue from the upstream stage.
	Incoming queue.PutFunc
	// IncomingService drains a stage's buffered inbound packets; most
	// stages never buffer inbound data and leave this nil.
	IncomingService queue.ServiceFunc
	// Outgoing is invoked once per packet queued for transmission.
	Outgoing queue.PutFunc
	// OutgoingService drains the outgoing queue toward the next stage,
	// respecting the next queue's back-pressure (default below).
	OutgoingService queue.ServiceFunc
}

// New returns a Stage with the default behaviors from
// original_source/src/stage.c's httpCreateStage: pass-through incoming,
// buffering outgoing, and a service routine that forwards while the next
// queue accepts. Callers override whichever fields their stage needs.
func New(name string, kind Kind) *Stage {
	return &Stage{
		Name:            name,
		Kind:            kind,
		Incoming:        DefaultIncoming,
		Outgoing:        DefaultOutgoing,
		OutgoingService: DefaultOutgoingService,
	}
}

// DefaultOutgoing buffers the packet for the service routine to drain;
// it never forwards directly (original_source/src/stage.c's outgoing()).
func DefaultOutgoing(q *queue.Queue, p *packet.Packet) error {
	q.Push(p)
	return nil
}

// DefaultIncoming forwards a packet to the next queue, or buffers it
// locally when this is the last queue in the chain — mirroring
// original_source/src/stage.c's incoming(). A zero-length data packet on
// the last queue still schedules the stage so end-of-stream is observed.
func DefaultIncoming(q *queue.Queue, p *packet.Packet) error {
	if q.Next != nil {
		return q.Next.PutPacket(p)
	}
	q.Push(p)
	q.Resume()
	return nil
}

// DefaultOutgoingService drains q while the next queue in the chain has
// room, exactly as original_source/src/stage.c's
// httpDefaultOutgoingServiceStage: stop (without dropping the packet)
// the moment downstream is full, so a later Resume restarts from the
// same point.
func DefaultOutgoingService(q *queue.Queue) error {
	for {
		if q.Disabled() {
			return nil
		}
		p := q.Pop()
		if p == nil {
			return nil
		}
		if q.Next != nil {
			q.Next.Push(p)
		}
	}
}

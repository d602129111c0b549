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

// Package packet implements the single unit of data movement between queues:
// an immutable-header, mutable-content buffer that carries headers, data,
// end-of-stream, or a range boundary marker between pipeline stages.
package packet

// Kind identifies the variant a Packet carries. A Packet is exclusively one
// of these four kinds at any time; the zero value is KindData so an
// accidentally zeroed Packet behaves as an (empty) data packet rather than
// silently matching header or end-of-stream logic.
type Kind uint8

const (
	// KindData carries a content byte slice flowing through the pipeline.
	KindData Kind = iota
	// KindHeader carries the serialized request-line/status-line and header
	// block, usually as a Prefix with no Content.
	KindHeader
	// KindEnd marks the end of the body for the current request/response.
	// It never carries Content.
	KindEnd
	// KindRange marks the start of a ranged-response part; it carries the
	// Content-Range boundary text as Prefix and no Content of its own.
	KindRange
)

// Packet is the unit of data movement between queues.
//
// Invariant: Content == nil iff the packet is KindEnd or is a pure prefix
// carrier (KindHeader, KindRange). A Packet is singly linked within the
// Queue that owns it; Next is nil for the last packet on a queue.
//
// Ownership: a Packet is exclusively owned by the Queue it currently
// resides on. Detaching a Packet from its queue (Queue.Pop) transfers
// ownership to the caller; the caller must not keep a reference to a Next
// chain it does not also own.
type Packet struct {
	Kind Kind

	// Prefix is prepended ahead of Content when the packet is written to
	// the wire (e.g. a chunk size line "4\r\n", or a Content-Range boundary)
	// without counting against the owning Queue's back-pressure budget.
	Prefix []byte

	// Content is the payload bytes. Nil for KindEnd and for pure prefix
	// carriers.
	Content []byte

	// EntityLength stands in for a not-yet-materialized body region, used
	// by the sendfile pre-declaration path: a packet may describe N bytes
	// of file content without holding them in memory yet.
	EntityLength int64

	// Next links this packet to the following one on the same queue.
	Next *Packet
}

// NewData returns a KindData packet wrapping content. The slice is not
// copied; callers must not mutate it after handing it to a Queue.
func NewData(content []byte) *Packet {
	return &Packet{Kind: KindData, Content: content}
}

// NewHeader returns a KindHeader packet carrying the serialized header
// block as Prefix.
func NewHeader(raw []byte) *Packet {
	return &Packet{Kind: KindHeader, Prefix: raw}
}

// NewEnd returns the terminal KindEnd packet for a body.
func NewEnd() *Packet {
	return &Packet{Kind: KindEnd}
}

// NewRangeMarker returns a KindRange packet carrying the Content-Range (or
// multipart/byteranges part boundary) header text as Prefix.
func NewRangeMarker(boundary []byte) *Packet {
	return &Packet{Kind: KindRange, Prefix: boundary}
}

// Len returns the number of content bytes this packet contributes to a
// Queue's back-pressure count. Prefix bytes never count.
func (p *Packet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Content)
}

// IsEnd reports whether this packet is the terminal end-of-stream marker.
func (p *Packet) IsEnd() bool {
	return p != nil && p.Kind == KindEnd
}

// Split divides p at content offset n into a leading packet (bytes [0,n))
// and a trailing packet (bytes [n, len)). The leading packet keeps p's
// Prefix; the trailing packet inherits any EntityLength remainder (spec
// §4.2 packet resize contract). Split panics if n is out of [0, len(p.Content)].
func (p *Packet) Split(n int) (lead, trail *Packet) {
	if p == nil {
		return nil, nil
	}
	if n < 0 || n > len(p.Content) {
		panic("packet: split offset out of range")
	}

	lead = &Packet{
		Kind:    p.Kind,
		Prefix:  p.Prefix,
		Content: p.Content[:n:n],
	}
	trail = &Packet{
		Kind:    p.Kind,
		Content: p.Content[n:],
	}

	if p.EntityLength > int64(len(p.Content)) {
		// the packet stands in for a larger not-yet-materialized region;
		// the remainder rides on the trailing packet.
		trail.EntityLength = p.EntityLength - int64(len(p.Content)) + int64(len(trail.Content))
	}

	return lead, trail
}

// Clone returns a shallow copy of p with Next reset to nil, suitable for
// re-queuing a packet without disturbing the chain it was detached from.
func (p *Packet) Clone() *Packet {
	if p == nil {
		return nil
	}
	c := *p
	c.Next = nil
	return &c
}

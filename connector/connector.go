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

// Package connector implements the network connector stage: the tail of a
// Tx pipeline that turns buffered packets into socket writes. Grounded on
// original_source/src/net.c's httpSendBlock/writevNet aggregation and
// sendFile paths, re-expressed around net.Buffers and
// net.Conn.(io.ReaderFrom), which already perform the scatter/gather write
// and, for a *net.TCPConn given an *os.File source, the zero-copy transfer
// the original reaches for a raw sendfile(2) to get.
//
// This package does not reproduce the source's EAGAIN/writable-event
// bookkeeping: Go's net.Conn is blocking by default, so net.Buffers.WriteTo
// already loops internally until every byte is written or a fatal error
// occurs, which is what original_source's partial-write/EAGAIN branches
// exist to emulate over a non-blocking descriptor.
package connector

import (
	"io"
	"net"
	"os"

	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
)

// Config bounds a connector's scatter/gather write vector.
type Config struct {
	// MaxIOVec caps how many packets are folded into one vectored write
	// call, mirroring original_source's HTTP_MAX_IOVEC.
	MaxIOVec int

	// OnComplete, when set, is invoked once the connector drains a
	// KindEnd marker: the one observable point downstream of the handler
	// where a response is known to be fully written to the wire, since
	// the marker itself carries no bytes and nothing else in the Tx
	// chain is told where the chain terminates.
	OnComplete func()
}

// New returns a KindConnector stage that drains q's outgoing buffer onto
// sock using a vectored write, switching to a direct file transfer when it
// meets a sendfile-marker packet.
func New(name string, sock net.Conn, cfg Config) *stage.Stage {
	if cfg.MaxIOVec <= 0 {
		cfg.MaxIOVec = 16
	}

	st := stage.New(name, stage.KindConnector)
	st.OutgoingService = func(q *queue.Queue) error {
		return drain(q, sock, cfg.MaxIOVec, cfg.OnComplete)
	}
	return st
}

// drain writes as many buffered packets as fit under cap in one vectored
// call, switches to the sendfile path for a file-backed packet, fires
// onComplete the moment a KindEnd marker is consumed, and repeats until
// the queue is empty.
func drain(q *queue.Queue, sock net.Conn, cap int, onComplete func()) error {
	for {
		p := q.Peek()
		if p == nil {
			return nil
		}

		if isSendfile(p) {
			q.Pop()
			if err := sendFile(q, sock, p); err != nil {
				return err
			}
			continue
		}

		bufs, n, end := collect(q, cap)
		if n > 0 {
			if _, err := bufs.WriteTo(sock); err != nil {
				return ErrorWriteFailed.Error(err)
			}
		}
		if end && onComplete != nil {
			onComplete()
		}
		if n == 0 && !end {
			return nil
		}
	}
}

// isSendfile reports whether p describes a not-yet-materialized file body
// region (original_source's sendfile pre-declaration: length known, bytes
// not copied into the packet).
func isSendfile(p *packet.Packet) bool {
	return p.Kind == packet.KindData && p.Content == nil && p.EntityLength > 0
}

// sendFile transfers p.EntityLength bytes directly from the *os.File the
// handler stashed on the queue's scratch data via SetData, using
// io.CopyN so a *net.TCPConn destination takes the ReadFrom zero-copy
// path automatically.
func sendFile(q *queue.Queue, sock net.Conn, p *packet.Packet) error {
	f, ok := q.Data().(*os.File)
	if !ok || f == nil {
		return ErrorSendfileFailed.Error()
	}
	if _, err := io.CopyN(sock, f, p.EntityLength); err != nil {
		return ErrorSendfileFailed.Error(err)
	}
	return nil
}

// collect pops up to cap packets (stopping at a KindEnd marker, which is
// never written) and returns their Prefix+Content as one net.Buffers
// vector, the total byte count collected, and whether a KindEnd marker
// ended the batch.
func collect(q *queue.Queue, cap int) (bufs net.Buffers, n int, end bool) {
	for i := 0; i < cap; i++ {
		p := q.Peek()
		if p == nil || isSendfile(p) {
			break
		}
		q.Pop()
		if len(p.Prefix) > 0 {
			bufs = append(bufs, p.Prefix)
			n += len(p.Prefix)
		}
		if p.Kind == packet.KindEnd {
			end = true
			break
		}
		if len(p.Content) > 0 {
			bufs = append(bufs, p.Content)
			n += len(p.Content)
		}
	}
	return bufs, n, end
}

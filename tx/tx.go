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

// Package tx holds one request's outbound response-builder state: status,
// headers, body-length accounting, chunk/range configuration and the
// selected handler/pipeline. Grounded on original_source/src/tx.c.
package tx

import (
	"strconv"

	"github.com/nabbar/httpcore/wire"
	"github.com/nabbar/httpcore/wire/byterange"
)

// ContentLengthMode distinguishes tx.c's three content-length states.
const (
	ContentLengthUnknown int64 = -1
)

// ChunkMode distinguishes tx.c's three chunk-size states.
const (
	ChunkAuto     int64 = -1
	ChunkDisabled int64 = 0
)

// Flags captures the boolean facets of a response.
type Flags struct {
	HeadersCreated bool
	NoBody         bool
	Sendfile       bool
	Finalized      bool
}

// Tx is exclusively owned by its connection and valid only for the
// current request/response exchange.
type Tx struct {
	Status        int
	StatusMessage string
	Method        wire.Method // echoed from Rx for client-side symmetry

	Header wire.Header

	ContentLength int64
	ChunkSize     int64

	Ranges          []byterange.Range
	CurrentRange    int
	RangeBoundary   string

	HandlerName string
	Pipeline    []string // stage names, in outbound order

	FileHandle  any // opaque; sendfile path owns its own file descriptor type
	AltBody     string

	Flags Flags

	bytesWritten int64
}

// New returns a Tx pre-set to 200 OK with an unknown content length,
// matching original_source/src/tx.c's initial state before a handler
// runs.
func New() *Tx {
	return &Tx{
		Status:        200,
		StatusMessage: "OK",
		Header:        wire.NewHeader(),
		ContentLength: ContentLengthUnknown,
		ChunkSize:     ChunkAuto,
	}
}

// Reset clears Tx for reuse across a keep-alive connection's next
// response.
func (t *Tx) Reset() {
	t.Status, t.StatusMessage = 200, "OK"
	t.Method = 0
	t.Header = wire.NewHeader()
	t.ContentLength = ContentLengthUnknown
	t.ChunkSize = ChunkAuto
	t.Ranges, t.CurrentRange, t.RangeBoundary = nil, 0, ""
	t.HandlerName, t.Pipeline = "", nil
	t.FileHandle, t.AltBody = nil, ""
	t.Flags = Flags{}
	t.bytesWritten = 0
}

// SetError overrides the response with a status and an HTML alt-body,
// the transmitter-side half of the error model.
func (t *Tx) SetError(status int, message, body string) {
	t.Status = status
	t.StatusMessage = message
	t.AltBody = body
	t.ContentLength = int64(len(body))
}

// ShouldChunk reports whether the response must switch to chunked framing
// before emitting the first data byte: no known content length and
// chunking has not been explicitly disabled.
func (t *Tx) ShouldChunk(version wire.Version) bool {
	if version != wire.Version11 {
		return false
	}
	if t.ContentLength != ContentLengthUnknown {
		return false
	}
	return t.ChunkSize != ChunkDisabled
}

// AddBytesWritten records how many bytes of body have been emitted so
// far, used by the connector/service loop to finalize Content-Length when
// it becomes known only after the handler has produced the full body.
func (t *Tx) AddBytesWritten(n int64) { t.bytesWritten += n }

// BytesWritten returns the number of body bytes emitted on this response
// so far.
func (t *Tx) BytesWritten() int64 { return t.bytesWritten }

// BuildHeaderBlock renders the status line and header block as bytes
// ready to prepend to the first outgoing packet.
func (t *Tx) BuildHeaderBlock(version wire.Version, keepAlive bool) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, version.String()...)
	buf = append(buf, ' ')
	buf = append(buf, strconv.Itoa(t.Status)...)
	buf = append(buf, ' ')
	buf = append(buf, t.StatusMessage...)
	buf = append(buf, '\r', '\n')

	if t.ContentLength >= 0 {
		t.Header.Set("Content-Length", strconv.FormatInt(t.ContentLength, 10))
	} else if t.ShouldChunk(version) {
		t.Header.Set("Transfer-Encoding", "chunked")
	}
	if keepAlive {
		t.Header.Set("Connection", "keep-alive")
	} else {
		t.Header.Set("Connection", "close")
	}

	for k, vals := range t.Header {
		for _, v := range vals {
			buf = append(buf, capitalizeHeaderKey(k)...)
			buf = append(buf, ':', ' ')
			buf = append(buf, v...)
			buf = append(buf, '\r', '\n')
		}
	}
	buf = append(buf, '\r', '\n')
	t.Flags.HeadersCreated = true
	return buf
}

// capitalizeHeaderKey renders a lowercased header key in Header-Case for
// the wire, matching conventional HTTP/1.x casing.
func capitalizeHeaderKey(key string) string {
	out := []byte(key)
	upperNext := true
	for i, c := range out {
		if upperNext && c >= 'a' && c <= 'z' {
			out[i] = c - 'a' + 'A'
		}
		upperNext = c == '-'
	}
	return string(out)
}

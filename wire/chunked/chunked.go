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

// Package chunked implements the Transfer-Encoding: chunked filter state
// machine, grounded on original_source/src/chunkFilter.c.
package chunked

import (
	"bytes"
	"strconv"

	"github.com/nabbar/httpcore/errors"
)

// State is the chunk-filter's position in the decode state machine,
// named identically to original_source/src/chunkFilter.c's HTTP_CHUNK_*.
type State uint8

const (
	Start State = iota
	Data
	EOF
)

const (
	ErrorBadChunkSize errors.CodeError = iota + errors.MinPkgWire + 100
)

func init() {
	errors.RegisterIdFctMessage(ErrorBadChunkSize, func(code errors.CodeError) string {
		if code == ErrorBadChunkSize {
			return "invalid chunk size line"
		}
		return ""
	})
}

// ErrBadChunkSize is returned when a chunk-size line fails to parse as hex.
var ErrBadChunkSize = ErrorBadChunkSize.Error()

// Decoder decodes an inbound chunked body incrementally. Feed appends raw
// bytes as they arrive on the wire and returns any newly available body
// bytes, consuming framing as it goes.
type Decoder struct {
	state     State
	remaining int64
	buf       []byte
}

// NewDecoder returns a Decoder positioned at Start, matching
// original_source/src/chunkFilter.c's openChunk.
func NewDecoder() *Decoder {
	return &Decoder{state: Start}
}

// State reports the decoder's current position.
func (d *Decoder) State() State { return d.state }

// Feed appends in to the decoder's internal buffer and extracts as much
// body data as is fully framed. It returns the decoded body bytes, a
// done flag once the terminating 0-size chunk has been consumed, and an
// error on malformed chunk-size lines.
func (d *Decoder) Feed(in []byte) (body []byte, done bool, err error) {
	d.buf = append(d.buf, in...)

	for {
		switch d.state {
		case Start:
			i := bytes.Index(d.buf, []byte("\r\n"))
			if i < 0 {
				return body, false, nil
			}
			line := d.buf[:i]
			if semi := bytes.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi]
			}
			n, perr := strconv.ParseInt(string(bytes.TrimSpace(line)), 16, 64)
			if perr != nil || n < 0 {
				return body, false, ErrBadChunkSize
			}
			d.buf = d.buf[i+2:]
			if n == 0 {
				d.state = EOF
				// consume the trailing "\r\n" after the zero chunk, if present
				if len(d.buf) >= 2 && d.buf[0] == '\r' && d.buf[1] == '\n' {
					d.buf = d.buf[2:]
				}
				return body, true, nil
			}
			d.remaining = n
			d.state = Data
		case Data:
			if int64(len(d.buf)) < d.remaining {
				body = append(body, d.buf...)
				d.remaining -= int64(len(d.buf))
				d.buf = nil
				return body, false, nil
			}
			body = append(body, d.buf[:d.remaining]...)
			d.buf = d.buf[d.remaining:]
			d.remaining = 0
			if len(d.buf) >= 2 && d.buf[0] == '\r' && d.buf[1] == '\n' {
				d.buf = d.buf[2:]
			}
			d.state = Start
		case EOF:
			return body, true, nil
		}
	}
}

// Encoder frames an outbound body as chunked transfer-encoding.
// original_source/src/chunkFilter.c prepends "\r\nSIZE\r\n" (the leading
// CRLF absorbed as the previous chunk's trailer) and a final
// "\r\n0\r\n\r\n"; Encoder instead emits the canonical "SIZE\r\nDATA\r\n"
// framing per chunk, which round-trips identically with Decoder.
type Encoder struct {
	started bool
}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// EncodeChunk returns the framed bytes for one data chunk. An empty data
// slice is a no-op (use Terminator to end the stream).
func (e *Encoder) EncodeChunk(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	e.started = true
	out := make([]byte, 0, len(data)+16)
	out = strconv.AppendInt(out, int64(len(data)), 16)
	out = append(out, '\r', '\n')
	out = append(out, data...)
	out = append(out, '\r', '\n')
	return out
}

// Terminator returns the final zero-size chunk plus trailer-less blank
// line that ends a chunked body.
func (e *Encoder) Terminator() []byte {
	return []byte("0\r\n\r\n")
}

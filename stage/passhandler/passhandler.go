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

// Package passhandler is the reference pass/error handler: a terminal
// stage.Stage that answers a request with a synthesized HTML error body,
// mirroring original_source/src/error.c's httpError rendering for the
// case headers have not yet been sent. It exists so a route can wire a
// failure outcome (no host matched, no handler configured, an upstream
// handler aborted) through the ordinary pipeline instead of every
// call site reaching into conn.Fail's direct-socket path by hand.
package passhandler

import (
	"html"
	"strconv"

	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
)

// New returns a terminal KindHandler stage that answers every request
// routed to it with status and the HTML body RenderBody renders for it.
func New(name string, status int, message string) *stage.Stage {
	st := stage.New(name, stage.KindHandler)
	st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
		if !p.IsEnd() {
			return nil
		}

		body := RenderBody(status, message)
		header := "HTTP/1.1 " + strconv.Itoa(status) + " " + message + "\r\n" +
			"Content-Type: text/html\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
			"Connection: close\r\n\r\n"

		return flush(q.Pair, packet.NewHeader([]byte(header)), packet.NewData([]byte(body)), packet.NewEnd())
	}
	return st
}

// RenderBody renders the minimal HTML alt-body a failed request gets,
// status and message escaped into an <h1>. conn.Fail synthesizes the same
// body directly when it answers a request with no pipeline attached; this
// is the one place both paths share so they stay byte-identical.
func RenderBody(status int, message string) string {
	return "<html><head><title>Error</title></head><body><h1>" +
		html.EscapeString(strconv.Itoa(status)) + " " + html.EscapeString(message) +
		"</h1></body></html>"
}

// flush pushes packets directly onto the tail of head's chain (the
// connector queue) and runs its service, bypassing any filters in
// between: a rendered error response needs no chunk framing or
// byte-range slicing.
func flush(head *queue.Queue, packets ...*packet.Packet) error {
	tail := head
	for tail.Next != nil {
		tail = tail.Next
	}
	for _, p := range packets {
		tail.Push(p)
	}
	return tail.RunService()
}

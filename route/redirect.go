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

package route

import (
	"strconv"

	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
)

// NewRedirectHandler returns a terminal KindHandler stage that answers
// every request routed to it with an HTTP redirect to location,
// mirroring redirectTarget's httpRedirect + HTTP_ROUTE_COMPLETE. The
// response always carries "Connection: close": a redirect target never
// negotiates keep-alive the way a normal handler does. The stage itself
// does not close the socket.
func NewRedirectHandler(name string, status int, location string) *stage.Stage {
	st := stage.New(name, stage.KindHandler)
	st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
		if !p.IsEnd() {
			return nil
		}
		body := "Redirecting to " + location + "\r\n"
		header := "HTTP/1.1 " + strconv.Itoa(status) + " Redirect\r\n" +
			"Location: " + location + "\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
			"Connection: close\r\n\r\n"

		return flush(q.Pair, packet.NewHeader([]byte(header)), packet.NewData([]byte(body)), packet.NewEnd())
	}
	return st
}

// NewCloseHandler returns a terminal KindHandler stage that resets the
// connection with status, mirroring closeTarget's httpError +
// HTTP_CODE_RESET.
func NewCloseHandler(name string, status int, message string) *stage.Stage {
	st := stage.New(name, stage.KindHandler)
	st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
		if !p.IsEnd() {
			return nil
		}
		header := "HTTP/1.1 " + strconv.Itoa(status) + " " + message + "\r\n" +
			"Content-Length: " + strconv.Itoa(len(message)) + "\r\n" +
			"Connection: close\r\n\r\n"

		return flush(q.Pair, packet.NewHeader([]byte(header)), packet.NewData([]byte(message)), packet.NewEnd())
	}
	return st
}

// redirectHandlerName derives a stable, route-local handler name for an
// inline SetRedirect(status, dest) call so Host.Route can register the
// generated stage on first use without the caller pre-declaring it.
func redirectHandlerName(status int, dest string) string {
	return "route-redirect-" + strconv.Itoa(status) + "-" + dest
}

// flush pushes packets directly onto the tail of head's Tx chain (the
// connector queue) and runs its service, bypassing any filters in
// between. A redirect/close response is fully pre-rendered; it needs no
// chunk framing or byte-range slicing, so there is nothing for a filter
// to do to it, the same way Conn.Fail's alt-body path bypasses the
// pipeline entirely.
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

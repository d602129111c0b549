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

// Package sessionhandler is a terminal stage.Stage that answers a
// request with a fixed body, issuing a session cookie (spec §6) on the
// way out whenever the request carried none: the decision (mint or
// reuse, Secure or not) is resolved against conn.Conn before this
// stage's Incoming ever runs, the same routing-layer-decides-first shape
// route's redirect/close handlers and auth's challenge handlers use.
package sessionhandler

import (
	"strconv"
	"strings"

	"github.com/nabbar/httpcore/conn"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/session"
	"github.com/nabbar/httpcore/stage"
)

// New returns a terminal KindHandler stage bound to one live connection
// c and session store: every request it answers carries status/headers/
// body, plus a Set-Cookie header when c.EnsureSession mints a fresh id.
func New(name string, c *conn.Conn, store *session.Store, status int, reason string, headers map[string]string, body []byte) *stage.Stage {
	st := stage.New(name, stage.KindHandler)
	st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
		if !p.IsEnd() {
			return nil
		}

		id, isNew := c.EnsureSession(store)

		var b strings.Builder
		b.WriteString("HTTP/1.1 " + strconv.Itoa(status) + " " + reason + "\r\n")
		for k, v := range headers {
			b.WriteString(k + ": " + v + "\r\n")
		}
		if isNew {
			b.WriteString("Set-Cookie: " + session.SetCookieHeader(id, c.Secure()) + "\r\n")
		}
		b.WriteString("\r\n")

		return flush(q.Pair, packet.NewHeader([]byte(b.String())), packet.NewData(body), packet.NewEnd())
	}
	return st
}

// flush pushes packets directly onto the tail of head's chain (the
// connector queue) and runs its service, the same bypass-the-filters
// pattern every terminal handler in this repository uses.
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

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

package service

import (
	"github.com/nabbar/httpcore/conn"
)

// AccessLogHook returns a conn.CompleteHook that renders a Combined Log
// Format line through the Service's logger for every finished request.
func (s *Service) AccessLogHook() conn.CompleteHook {
	return func(c *conn.Conn) {
		if s.log == nil {
			return
		}
		l := s.log()
		if l == nil {
			return
		}
		sum := c.Summary()
		request := sum.Method + " " + sum.RequestURI + " " + sum.Proto
		l.Access(sum.RemoteAddr, sum.RemoteUser, sum.When, 0, sum.Method, request, sum.Proto, sum.Status, sum.BytesSent).Log()
	}
}

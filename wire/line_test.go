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

package wire_test

import (
	. "github.com/nabbar/httpcore/wire"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("[TC-WL] Request and status lines", func() {
	It("[TC-WL-001] ParseRequestLine parses method, URI and version", func() {
		rl, err := ParseRequestLine([]byte("GET /index.html HTTP/1.1\r\n"))
		Expect(err).ToNot(HaveOccurred())
		Expect(rl.Method).To(Equal(MethodGet))
		Expect(rl.Raw).To(Equal("GET"))
		Expect(rl.URI).To(Equal("/index.html"))
		Expect(rl.Version).To(Equal(Version11))
	})

	It("[TC-WL-002] ParseRequestLine preserves an unrecognized method token", func() {
		rl, err := ParseRequestLine([]byte("PATCH /x HTTP/1.1"))
		Expect(err).ToNot(HaveOccurred())
		Expect(rl.Method).To(Equal(MethodUnknown))
		Expect(rl.Raw).To(Equal("PATCH"))
	})

	It("[TC-WL-003] ParseRequestLine rejects a line with the wrong field count", func() {
		_, err := ParseRequestLine([]byte("GET /x"))
		Expect(err).To(MatchError(ErrMalformedRequestLine))
	})

	It("[TC-WL-004] ParseRequestLine rejects an unsupported version", func() {
		_, err := ParseRequestLine([]byte("GET / HTTP/2.0"))
		Expect(err).To(MatchError(ErrUnsupportedVersion))
	})

	It("[TC-WL-005] ParseStatusLine parses version, status and reason", func() {
		sl, err := ParseStatusLine([]byte("HTTP/1.1 404 Not Found\r\n"))
		Expect(err).ToNot(HaveOccurred())
		Expect(sl.Version).To(Equal(Version11))
		Expect(sl.Status).To(Equal(404))
		Expect(sl.Reason).To(Equal("Not Found"))
	})

	It("[TC-WL-006] ParseStatusLine accepts a status line with no reason phrase", func() {
		sl, err := ParseStatusLine([]byte("HTTP/1.0 204"))
		Expect(err).ToNot(HaveOccurred())
		Expect(sl.Status).To(Equal(204))
		Expect(sl.Reason).To(Equal(""))
	})

	It("[TC-WL-007] ParseStatusLine rejects an out-of-range status code", func() {
		_, err := ParseStatusLine([]byte("HTTP/1.1 9999 Bogus"))
		Expect(err).To(MatchError(ErrMalformedStatusLine))
	})

	It("[TC-WL-008] Version.String renders the wire form, defaulting to HTTP/0.9", func() {
		Expect(Version10.String()).To(Equal("HTTP/1.0"))
		Expect(Version11.String()).To(Equal("HTTP/1.1"))
		Expect(VersionUnknown.String()).To(Equal("HTTP/0.9"))
	})

	It("[TC-WL-009] HeadersEndIndex finds the blank-line terminator", func() {
		buf := []byte("A: 1\r\nB: 2\r\n\r\nbody")
		Expect(HeadersEndIndex(buf)).To(Equal(len("A: 1\r\nB: 2\r\n\r\n")))
	})

	It("[TC-WL-010] HeadersEndIndex returns -1 when headers are not yet complete", func() {
		Expect(HeadersEndIndex([]byte("A: 1\r\n"))).To(Equal(-1))
	})

	It("[TC-WL-011] SplitLines joins RFC 2616 folded continuation lines", func() {
		block := []byte("A: 1\r\nB: 2\r\n continued\r\nC: 3")
		lines := SplitLines(block)
		Expect(lines).To(Equal([]string{"A: 1", "B: 2 continued", "C: 3"}))
	})

	It("[TC-WL-012] ParseHeaderLine splits on the first colon and trims the value", func() {
		k, v, ok := ParseHeaderLine("X-A:  value ")
		Expect(ok).To(BeTrue())
		Expect(k).To(Equal("X-A"))
		Expect(v).To(Equal("value"))
	})

	It("[TC-WL-013] ParseHeaderLine reports ok=false with no colon", func() {
		_, _, ok := ParseHeaderLine("not-a-header-line")
		Expect(ok).To(BeFalse())
	})
})

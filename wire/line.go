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

package wire

import (
	"bytes"
	"strconv"
	"strings"
)

// Version is the parsed HTTP protocol version of a request or response.
type Version uint8

const (
	VersionUnknown Version = iota
	Version10
	Version11
)

// String renders the version the way it appears on the wire.
func (v Version) String() string {
	switch v {
	case Version10:
		return "HTTP/1.0"
	case Version11:
		return "HTTP/1.1"
	default:
		return "HTTP/0.9"
	}
}

// Method is the parsed request method. Unrecognized tokens are preserved
// verbatim with Method == MethodUnknown and Raw set.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodOptions
	MethodTrace
)

var methodNames = map[string]Method{
	"GET":     MethodGet,
	"HEAD":    MethodHead,
	"POST":    MethodPost,
	"PUT":     MethodPut,
	"DELETE":  MethodDelete,
	"OPTIONS": MethodOptions,
	"TRACE":   MethodTrace,
}

func parseMethod(tok string) Method {
	if m, ok := methodNames[tok]; ok {
		return m
	}
	return MethodUnknown
}

// RequestLine is the parsed first line of an HTTP request.
type RequestLine struct {
	Method  Method
	Raw     string // the literal method token, for MethodUnknown or CGI surface
	URI     string
	Version Version
}

// ParseRequestLine parses "METHOD SP URI SP HTTP/x.y". HTTP/0.9 style
// one-token request lines are rejected: this engine only speaks 1.0/1.1.
func ParseRequestLine(line []byte) (RequestLine, error) {
	line = bytes.TrimRight(line, "\r\n")
	parts := strings.Fields(string(line))
	if len(parts) != 3 {
		return RequestLine{}, ErrMalformedRequestLine
	}
	ver, err := parseVersion(parts[2])
	if err != nil {
		return RequestLine{}, err
	}
	return RequestLine{
		Method:  parseMethod(parts[0]),
		Raw:     parts[0],
		URI:     parts[1],
		Version: ver,
	}, nil
}

// StatusLine is the parsed first line of an HTTP response.
type StatusLine struct {
	Version Version
	Status  int
	Reason  string
}

// ParseStatusLine parses "HTTP/x.y SP STATUS SP REASON".
func ParseStatusLine(line []byte) (StatusLine, error) {
	line = bytes.TrimRight(line, "\r\n")
	s := string(line)
	sp1 := strings.IndexByte(s, ' ')
	if sp1 < 0 {
		return StatusLine{}, ErrMalformedStatusLine
	}
	ver, err := parseVersion(s[:sp1])
	if err != nil {
		return StatusLine{}, err
	}
	rest := strings.TrimLeft(s[sp1+1:], " ")
	sp2 := strings.IndexByte(rest, ' ')
	var codeTok, reason string
	if sp2 < 0 {
		codeTok = rest
	} else {
		codeTok = rest[:sp2]
		reason = strings.TrimLeft(rest[sp2+1:], " ")
	}
	code, err := strconv.Atoi(codeTok)
	if err != nil || code < 100 || code > 599 {
		return StatusLine{}, ErrMalformedStatusLine
	}
	return StatusLine{Version: ver, Status: code, Reason: reason}, nil
}

func parseVersion(tok string) (Version, error) {
	switch tok {
	case "HTTP/1.0":
		return Version10, nil
	case "HTTP/1.1":
		return Version11, nil
	default:
		return VersionUnknown, ErrUnsupportedVersion
	}
}

// HeadersEndIndex returns the index just past the first "\r\n\r\n"
// terminator in buf, or -1 if not yet present.
func HeadersEndIndex(buf []byte) int {
	i := bytes.Index(buf, []byte("\r\n\r\n"))
	if i < 0 {
		return -1
	}
	return i + 4
}

// SplitLines splits a header block (without the trailing blank line) into
// unfolded "Key: Value" lines, joining RFC 2616 line-folding continuations
// (a line starting with SP or TAB) onto the previous line.
func SplitLines(block []byte) []string {
	raw := strings.Split(strings.TrimRight(string(block), "\r\n"), "\r\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if len(l) > 0 && (l[0] == ' ' || l[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += " " + strings.TrimLeft(l, " \t")
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// ParseHeaderLine splits "Key: Value" into its two parts.
func ParseHeaderLine(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	return line[:i], strings.TrimSpace(line[i+1:]), true
}

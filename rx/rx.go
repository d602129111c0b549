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

// Package rx holds one request's parsed inbound state: method, URI,
// headers, body accounting, ranges, cookies, form/upload data and
// authentication scratch. Grounded on original_source/src/rx.c.
package rx

import (
	"strconv"
	"strings"

	"github.com/nabbar/httpcore/wire"
	"github.com/nabbar/httpcore/wire/byterange"
	"github.com/nabbar/httpcore/wire/multipart"
)

// ChunkState mirrors the chunk filter's position for the current request
// body.
type ChunkState uint8

const (
	ChunkNone ChunkState = iota
	ChunkStart
	ChunkData
	ChunkEOF
)

// Flags captures the boolean facets of a request alongside the rest of
// Rx's fields.
type Flags struct {
	Chunked    bool
	IfModified bool
	Form       bool
	Upload     bool
	Head       bool
	Options    bool
	Trace      bool
	AutoDelete bool
}

// Auth carries the raw credential material extracted from the
// Authorization header, before auth.Verify interprets it.
type Auth struct {
	Type   string // "", "Basic", "Digest"
	Header string // raw Authorization header value
	User   string
}

// Rx is exclusively owned by its connection and valid only for the
// current request.
type Rx struct {
	Method       wire.Method
	MethodRaw    string
	OriginalURI  string
	Path         string
	Query        string
	Version      wire.Version
	Header       wire.Header

	ContentLength   int64 // -1 == unknown
	RemainingBody   int64
	ChunkState      ChunkState

	Ranges []byterange.Range

	Cookies map[string]string
	Form    map[string]string
	Files   []multipart.File

	Auth Auth

	Flags Flags

	vars map[string]string // lazily built CGI/${token} variable surface
}

// New returns a zeroed Rx with ContentLength marked unknown, ready to be
// filled in as the request line and headers are parsed.
func New() *Rx {
	return &Rx{
		Header:        wire.NewHeader(),
		ContentLength: -1,
		Cookies:       make(map[string]string),
		Form:          make(map[string]string),
	}
}

// Reset clears Rx for reuse across a keep-alive connection's next request,
// without reallocating the backing maps where avoidable.
func (r *Rx) Reset() {
	r.Method, r.MethodRaw, r.OriginalURI, r.Path, r.Query = 0, "", "", "", ""
	r.Version = wire.VersionUnknown
	r.Header = wire.NewHeader()
	r.ContentLength, r.RemainingBody = -1, 0
	r.ChunkState = ChunkNone
	r.Ranges = nil
	r.Cookies = make(map[string]string)
	r.Form = make(map[string]string)
	r.Files = nil
	r.Auth = Auth{}
	r.Flags = Flags{}
	r.vars = nil
}

// ApplyRequestLine populates Method/URI/Version from a parsed request
// line, and splits the URI into Path and Query.
func (r *Rx) ApplyRequestLine(rl wire.RequestLine) {
	r.Method = rl.Method
	r.MethodRaw = rl.Raw
	r.OriginalURI = rl.URI
	r.Version = rl.Version
	r.Flags.Head = rl.Method == wire.MethodHead
	r.Flags.Options = rl.Method == wire.MethodOptions
	r.Flags.Trace = rl.Method == wire.MethodTrace

	if i := strings.IndexByte(rl.URI, '?'); i >= 0 {
		r.Path, r.Query = rl.URI[:i], rl.URI[i+1:]
	} else {
		r.Path = rl.URI
	}
}

// ParseCookies decodes the Cookie header into the Cookies map.
func (r *Rx) ParseCookies() {
	h := r.Header.Get("cookie")
	if h == "" {
		return
	}
	for _, pair := range strings.Split(h, ";") {
		pair = strings.TrimSpace(pair)
		if eq := strings.IndexByte(pair, '='); eq > 0 {
			r.Cookies[pair[:eq]] = pair[eq+1:]
		}
	}
}

// Vars renders the CGI-style variable surface handlers consume,
// merged with the form-variable map so route ${token} expansion can see
// both.
func (r *Rx) Vars(serverName, serverPort, remoteAddr, remotePort string) map[string]string {
	if r.vars != nil {
		return r.vars
	}
	v := map[string]string{
		"REQUEST_METHOD":   r.MethodRaw,
		"REQUEST_URI":      r.OriginalURI,
		"QUERY_STRING":     r.Query,
		"CONTENT_TYPE":     r.Header.Get("content-type"),
		"SCRIPT_NAME":      r.Path,
		"PATH_INFO":        r.Path,
		"PATH_TRANSLATED":  r.Path,
		"SERVER_NAME":      serverName,
		"SERVER_PORT":      serverPort,
		"SERVER_PROTOCOL":  r.Version.String(),
		"REMOTE_ADDR":      remoteAddr,
		"REMOTE_PORT":      remotePort,
		"REMOTE_USER":      r.Auth.User,
		"AUTH_TYPE":        r.Auth.Type,
	}
	if r.ContentLength >= 0 {
		v["CONTENT_LENGTH"] = strconv.FormatInt(r.ContentLength, 10)
	}
	for i, f := range r.Files {
		pfx := "FILE_" + strconv.Itoa(i) + "_"
		v[pfx+"FILENAME"] = f.TempFilename
		v[pfx+"CLIENT_FILENAME"] = f.ClientFilename
		v[pfx+"CONTENT_TYPE"] = f.ContentType
		v[pfx+"NAME"] = f.FieldName
		v[pfx+"SIZE"] = strconv.FormatInt(f.Size, 10)
	}
	for k, val := range r.Form {
		v[k] = val
	}
	r.vars = v
	return v
}

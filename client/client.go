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

// Package client implements client-side HTTP/1.x request issuance over the
// same wire codec the server side uses: a request is assembled onto a
// socket by hand (status line, headers, optional chunked body) rather than
// through net/http, so the exact bytes this module parses on the server
// side are the exact bytes it emits here. A Client auto-follows 301/302/303
// redirects and retries once per realm on a 401 challenge it holds
// credentials for, with redirects and auth retries counted together
// against one combined cap.
package client

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nabbar/httpcore/auth"
	"github.com/nabbar/httpcore/certificates"
	"github.com/nabbar/httpcore/password"
	"github.com/nabbar/httpcore/wire"
	"github.com/nabbar/httpcore/wire/chunked"
)

// MaxCombinedRetries is the default cap on redirect-follows plus
// auth-retries within one Do call, matching the combined counter the
// original source keeps to terminate redirect/auth loops.
const MaxCombinedRetries = 16

// defaultDialTimeout bounds how long Dial waits for a TCP handshake when
// Config.DialTimeout is unset.
const defaultDialTimeout = 30 * time.Second

// Credential is a username/password pair offered for one realm.
type Credential struct {
	User     string
	Password string
}

// Config configures a Client. TLS is consulted only for "https" targets;
// a nil TLS with an https target uses the Go runtime's default
// verification (no client certificate, system root pool).
type Config struct {
	TLS            certificates.TLSConfig
	DialTimeout    time.Duration
	FollowRedirect bool
	// Credentials maps a realm name to the pair presented when the server
	// challenges that realm with a 401; realms without an entry here are
	// never retried.
	Credentials map[string]Credential
	// MaxRetries overrides MaxCombinedRetries when positive.
	MaxRetries int
}

// Response is one parsed HTTP/1.x response.
type Response struct {
	Version wire.Version
	Status  int
	Reason  string
	Header  wire.Header
	Body    []byte
}

// Client issues requests and keeps one persistent connection per
// host:port for reuse across calls, the client-side mirror of
// original_source's per-host connect/reuse socket table.
type Client struct {
	cfg Config

	mu    sync.Mutex
	conns map[string]net.Conn
}

// New returns a ready Client. cfg.MaxRetries defaults to
// MaxCombinedRetries when zero.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, conns: make(map[string]net.Conn)}
}

// Close closes every pooled connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for k, cn := range c.conns {
		if err := cn.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.conns, k)
	}
	return first
}

// Do parses rawURL, connects (or reuses) a socket to its resolved
// host+port, assembles an outgoing request header (including any auth
// header a prior round of this same call computed) and enqueues it, then
// follows redirects and retries a 401 challenge at most once per realm,
// up to the combined cap.
func (c *Client) Do(method, rawURL string, header wire.Header, body []byte) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, ErrorInvalidURL.Error(err)
	}
	if header == nil {
		header = wire.NewHeader()
	}

	max := c.cfg.MaxRetries
	if max <= 0 {
		max = MaxCombinedRetries
	}

	usedRealm := make(map[string]bool)
	retries := 0

	for {
		resp, err := c.connect(method, u, header, body)
		if err != nil {
			return nil, err
		}

		action, next := c.needRetry(resp, u, usedRealm)
		if action == retryNone {
			return resp, nil
		}

		retries++
		if retries > max {
			return resp, ErrorTooManyRetries.Error()
		}

		switch action {
		case retryRedirect:
			u = next
			if resp.Status == 303 {
				method = "GET"
				body = nil
			}
		case retryAuth:
			if err = c.applyAuthorization(header, resp, u, method, usedRealm); err != nil {
				return resp, err
			}
		}
	}
}

type retryAction uint8

const (
	retryNone retryAction = iota
	retryRedirect
	retryAuth
)

// needRetry reports true (with the follow-up action and, for a redirect,
// the resolved target) when resp indicates a retryable condition: a 401
// naming a realm this Client holds credentials for and has not yet
// retried, or a 301/302/303 with FollowRedirect enabled and a Location
// header present (a 303 is followed with GET and no body).
func (c *Client) needRetry(resp *Response, base *url.URL, usedRealm map[string]bool) (retryAction, *url.URL) {
	if resp.Status == 401 {
		realm, _, _ := parseChallenge(resp.Header.Get("WWW-Authenticate"))
		if realm == "" || usedRealm[realm] {
			return retryNone, nil
		}
		if _, ok := c.cfg.Credentials[realm]; ok {
			return retryAuth, nil
		}
		return retryNone, nil
	}
	if c.cfg.FollowRedirect && (resp.Status == 301 || resp.Status == 302 || resp.Status == 303) {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return retryNone, nil
		}
		next, err := base.Parse(loc)
		if err != nil {
			return retryNone, nil
		}
		return retryRedirect, next
	}
	return retryNone, nil
}

// applyAuthorization computes and sets the Authorization header for the
// realm resp's WWW-Authenticate challenge names, marking that realm used
// so a second 401 for the same realm is not retried again.
func (c *Client) applyAuthorization(header wire.Header, resp *Response, u *url.URL, method string, usedRealm map[string]bool) error {
	realm, typ, raw := parseChallenge(resp.Header.Get("WWW-Authenticate"))
	if realm == "" {
		return ErrorMalformedResponse.Error()
	}
	cred, ok := c.cfg.Credentials[realm]
	if !ok {
		return ErrorMalformedResponse.Error()
	}
	usedRealm[realm] = true

	switch typ {
	case auth.Basic:
		token := base64.StdEncoding.EncodeToString([]byte(cred.User + ":" + cred.Password))
		header.Set("Authorization", "Basic "+token)
	case auth.Digest:
		ch := parseDigestChallengeFields(raw)
		uri := u.RequestURI()
		ha1 := password.HA1(cred.User, realm, cred.Password)
		ha2 := password.HA2(method, uri)

		var value string
		if ch["qop"] != "" {
			cnonce := password.Generate(16)
			nc := "00000001"
			resp := password.DigestResponseQop(ha1, ch["nonce"], nc, cnonce, ch["qop"], ha2)
			value = buildDigestAuthorization(cred.User, realm, ch["nonce"], uri, resp, ch["qop"], cnonce, nc, ch["opaque"])
		} else {
			resp := password.DigestResponseLegacy(ha1, ch["nonce"], ha2)
			value = buildDigestAuthorization(cred.User, realm, ch["nonce"], uri, resp, "", "", "", ch["opaque"])
		}
		header.Set("Authorization", value)
	default:
		return ErrorMalformedResponse.Error()
	}
	return nil
}

// buildDigestAuthorization renders the client's Authorization: Digest
// header value per RFC 2617 §3.2.2.
func buildDigestAuthorization(user, realm, nonce, uri, response, qop, cnonce, nc, opaque string) string {
	var b strings.Builder
	b.WriteString(`Digest username="`)
	b.WriteString(user)
	b.WriteString(`", realm="`)
	b.WriteString(realm)
	b.WriteString(`", nonce="`)
	b.WriteString(nonce)
	b.WriteString(`", uri="`)
	b.WriteString(uri)
	b.WriteString(`", response="`)
	b.WriteString(response)
	b.WriteByte('"')
	if qop != "" {
		b.WriteString(`, qop=`)
		b.WriteString(qop)
		b.WriteString(`, nc=`)
		b.WriteString(nc)
		b.WriteString(`, cnonce="`)
		b.WriteString(cnonce)
		b.WriteByte('"')
	}
	if opaque != "" {
		b.WriteString(`, opaque="`)
		b.WriteString(opaque)
		b.WriteByte('"')
	}
	return b.String()
}

// parseChallenge splits a WWW-Authenticate header value into its scheme,
// realm, and the raw remainder (the key=value field list following the
// scheme token).
func parseChallenge(header string) (realm string, typ auth.Type, raw string) {
	header = strings.TrimSpace(header)
	switch {
	case strings.HasPrefix(header, "Basic "):
		typ = auth.Basic
		raw = header[len("Basic "):]
	case strings.HasPrefix(header, "Digest "):
		typ = auth.Digest
		raw = header[len("Digest "):]
	default:
		return "", auth.None, ""
	}
	fields := parseDigestChallengeFields(raw)
	return fields["realm"], typ, raw
}

// parseDigestChallengeFields parses `key=value, key="quoted value"` pairs
// from a challenge or credential field list, unescaping backslash-escapes
// inside quoted values. Shared shape with auth.splitDigestFields, since
// both directions of RFC 2617 use the same field-list grammar.
func parseDigestChallengeFields(s string) map[string]string {
	out := make(map[string]string)
	i, n := 0, len(s)
	for i < n {
		for i < n && (s[i] == ' ' || s[i] == ',') {
			i++
		}
		start := i
		for i < n && s[i] != '=' {
			i++
		}
		if i >= n {
			break
		}
		key := strings.ToLower(strings.TrimSpace(s[start:i]))
		i++
		var val strings.Builder
		if i < n && s[i] == '"' {
			i++
			for i < n {
				if s[i] == '\\' && i+1 < n {
					val.WriteByte(s[i+1])
					i += 2
					continue
				}
				if s[i] == '"' {
					i++
					break
				}
				val.WriteByte(s[i])
				i++
			}
		} else {
			start = i
			for i < n && s[i] != ',' {
				i++
			}
			val.WriteString(strings.TrimSpace(s[start:i]))
		}
		out[key] = val.String()
	}
	return out
}

// connect opens (or reuses) a socket to u's host, writes the assembled
// request, and parses the response.
func (c *Client) connect(method string, u *url.URL, header wire.Header, body []byte) (*Response, error) {
	sock, err := c.dial(u)
	if err != nil {
		return nil, err
	}

	if err = writeRequest(sock, method, u, header, body); err != nil {
		c.drop(u)
		return nil, err
	}

	resp, err := readResponse(sock)
	if err != nil {
		c.drop(u)
		return nil, err
	}
	if resp.Header.Get("Connection") == "close" {
		c.drop(u)
	}
	return resp, nil
}

// addr returns the pool key for u: host:port, defaulting the port from
// the scheme when the URL omits one.
func addr(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return u.Host + ":443"
	}
	return u.Host + ":80"
}

// dial returns a pooled connection for u's host, opening a new one
// (TLS-wrapped for "https") when none is cached.
func (c *Client) dial(u *url.URL) (net.Conn, error) {
	key := addr(u)

	c.mu.Lock()
	if sock, ok := c.conns[key]; ok {
		c.mu.Unlock()
		return sock, nil
	}
	c.mu.Unlock()

	timeout := c.cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	var sock net.Conn
	var err error
	if u.Scheme == "https" {
		var tlsCfg *tls.Config
		if c.cfg.TLS != nil {
			tlsCfg = c.cfg.TLS.TLS(u.Hostname())
		} else {
			tlsCfg = &tls.Config{ServerName: u.Hostname()}
		}
		d := &net.Dialer{Timeout: timeout}
		sock, err = tls.DialWithDialer(d, "tcp", key, tlsCfg)
	} else {
		sock, err = net.DialTimeout("tcp", key, timeout)
	}
	if err != nil {
		return nil, ErrorDialFailed.Error(err)
	}

	c.mu.Lock()
	c.conns[key] = sock
	c.mu.Unlock()
	return sock, nil
}

// drop closes and evicts the pooled connection for u's host, used once a
// write/read fails or the server asked to close.
func (c *Client) drop(u *url.URL) {
	key := addr(u)
	c.mu.Lock()
	sock, ok := c.conns[key]
	delete(c.conns, key)
	c.mu.Unlock()
	if ok {
		_ = sock.Close()
	}
}

// writeRequest assembles and writes the request line, headers (Host,
// Content-Length when body is non-empty, and every entry in header), and
// body onto sock.
func writeRequest(sock net.Conn, method string, u *url.URL, header wire.Header, body []byte) error {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	if u.RequestURI() != "" {
		b.WriteString(u.RequestURI())
	} else {
		b.WriteByte('/')
	}
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: ")
	b.WriteString(u.Host)
	b.WriteString("\r\n")
	if len(body) > 0 {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	for k, vals := range header {
		for _, v := range vals {
			b.WriteString(capitalizeHeaderKey(k))
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	b.WriteString("\r\n")

	if _, err := io.WriteString(sock, b.String()); err != nil {
		return ErrorWriteFailed.Error(err)
	}
	if len(body) > 0 {
		if _, err := sock.Write(body); err != nil {
			return ErrorWriteFailed.Error(err)
		}
	}
	return nil
}

// capitalizeHeaderKey renders a lowercase header key in Header-Case,
// matching tx.Tx.BuildHeaderBlock's on-the-wire rendering so requests and
// responses share one visual convention.
func capitalizeHeaderKey(key string) string {
	parts := strings.Split(key, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}

// readResponse reads the status line and header block off sock, then the
// body per Content-Length or Transfer-Encoding: chunked. A response with
// neither is read until the peer closes the connection, per HTTP/1.0
// close-delimited semantics.
func readResponse(sock net.Conn) (*Response, error) {
	r := bufio.NewReader(sock)

	statusLine, err := r.ReadString('\n')
	if err != nil {
		return nil, ErrorReadFailed.Error(err)
	}
	sl, err := wire.ParseStatusLine([]byte(statusLine))
	if err != nil {
		return nil, ErrorMalformedResponse.Error(err)
	}

	h := wire.NewHeader()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, ErrorReadFailed.Error(err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		key, value, ok := wire.ParseHeaderLine(trimmed)
		if !ok {
			return nil, ErrorMalformedResponse.Error()
		}
		if err = h.AddLine(key, value); err != nil {
			return nil, ErrorMalformedResponse.Error(err)
		}
	}

	body, err := readBody(r, h)
	if err != nil {
		return nil, err
	}

	return &Response{Version: sl.Version, Status: sl.Status, Reason: sl.Reason, Header: h, Body: body}, nil
}

// readBody dispatches on the parsed headers to the matching body framing.
func readBody(r *bufio.Reader, h wire.Header) ([]byte, error) {
	if strings.EqualFold(h.Get("Transfer-Encoding"), "chunked") {
		return readChunkedBody(r)
	}
	if cl := h.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, ErrorMalformedResponse.Error()
		}
		if n == 0 {
			return nil, nil
		}
		buf := make([]byte, n)
		if _, err = io.ReadFull(r, buf); err != nil {
			return nil, ErrorReadFailed.Error(err)
		}
		return buf, nil
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrorReadFailed.Error(err)
	}
	return buf, nil
}

// readChunkedBody drains sock through a chunked.Decoder until the
// terminating zero-size chunk is consumed.
func readChunkedBody(r *bufio.Reader) ([]byte, error) {
	dec := chunked.NewDecoder()
	var body []byte
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			part, done, derr := dec.Feed(chunk[:n])
			if derr != nil {
				return nil, ErrorMalformedResponse.Error(derr)
			}
			body = append(body, part...)
			if done {
				return body, nil
			}
		}
		if err != nil {
			return nil, ErrorReadFailed.Error(err)
		}
	}
}

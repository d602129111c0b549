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

// Package conn implements the connection state machine that owns one
// socket, one rx.Rx, one tx.Tx, one pipeline.Pipeline and a keep-alive
// counter, and drives it through the Begin..Complete/Error lifecycle.
// Grounded on original_source/src/conn.c and original_source/src/http.c,
// re-expressed for a goroutine-per-connection model in place of the
// source's single dispatcher-callback model: each Conn runs its advance
// loop on whatever goroutine calls Advance, serialized by its own mutex
// rather than by dispatcher affinity.
package conn

import (
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nabbar/httpcore/logger"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/pipeline"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/rx"
	"github.com/nabbar/httpcore/session"
	"github.com/nabbar/httpcore/stage/passhandler"
	"github.com/nabbar/httpcore/tx"
	"github.com/nabbar/httpcore/wire"
	"github.com/nabbar/httpcore/wire/chunked"
)

// State enumerates the connection lifecycle positions.
// Values are ordered so that State comparison (`new >= old`) implements
// the monotonic-transition invariant directly.
type State uint8

const (
	Begin State = iota
	Connected
	FirstLine
	Parsed
	Content
	Ready
	Running
	Complete
	Error
)

func (s State) String() string {
	switch s {
	case Begin:
		return "Begin"
	case Connected:
		return "Connected"
	case FirstLine:
		return "FirstLine"
	case Parsed:
		return "Parsed"
	case Content:
		return "Content"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Complete:
		return "Complete"
	case Error:
		return "Error"
	}
	return "Unknown"
}

// Flags mirror the source's HTTP_ABORT / HTTP_CLOSE error modifiers.
type Flags struct {
	Abort bool
	Close bool
}

// CompleteHook is invoked once, exactly at the transition into Complete,
// with enough information to render an access-log line.
type CompleteHook func(c *Conn)

// Summary is the snapshot OnComplete hooks receive: just enough of the
// finished Rx/Tx to render a Combined Log Format line without exposing
// the live, mutex-guarded Conn itself.
type Summary struct {
	RemoteAddr string
	RemoteUser string
	When       time.Time
	Method     string
	RequestURI string
	Proto      string
	Status     int
	BytesSent  int64
	Referer    string
	UserAgent  string
}

// Summary renders the access-log snapshot for the current request. It
// takes c.mu itself, so it must not be called with c.mu held (OnComplete
// hooks are invoked from within the state machine with the lock
// released, see step()).
func (c *Conn) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Summary{
		RemoteAddr: c.remoteAddr,
		When:       c.lastActivity,
	}
	if c.Rx != nil {
		s.Method = c.Rx.MethodRaw
		s.RequestURI = c.Rx.OriginalURI
		s.Proto = c.Rx.Version.String()
		s.RemoteUser = c.Rx.Auth.User
		s.Referer = c.Rx.Header.Get("referer")
		s.UserAgent = c.Rx.Header.Get("user-agent")
	}
	if c.Tx != nil {
		s.Status = c.Tx.Status
		s.BytesSent = c.Tx.BytesWritten()
	}
	return s
}

// OnComplete replaces the completion hook, letting the owning service
// wire in an access-log sink after construction.
func (c *Conn) OnComplete(hook CompleteHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = hook
}

// Limits bounds a single connection's resource consumption; populated
// from the owning endpoint/host.
type Limits struct {
	HeaderSize      int64 `validate:"gt=0"`
	ReceiveBodySize int64 `validate:"gte=0"`
	UploadSize      int64 `validate:"gte=0"`

	InactivityTimeout time.Duration `validate:"gt=0"`
	RequestTimeout    time.Duration `validate:"gte=0"`
	KeepAliveCount    int           `validate:"gte=0"`
}

// Validate rejects a Limits whose fields fall outside the ranges a running
// connection can sanely enforce, the struct-tag counterpart to
// route.RouteConfig and httpserver.ServerConfig's own Validate.
func (l Limits) Validate() error {
	if err := validator.New().Struct(l); err != nil {
		return ErrorInvalidLimits.Error(err)
	}
	return nil
}

// Conn is exclusively bound to one socket for its lifetime; all of its
// mutable state is touched only while holding mu, standing in for the
// source's single-dispatcher-affinity guarantee.
type Conn struct {
	mu sync.Mutex

	log logger.Logger

	sock net.Conn

	state   State
	flags   Flags
	connErr bool

	Rx *rx.Rx
	Tx *tx.Tx

	Pipe *pipeline.Pipeline

	host          string
	remoteAddr    string
	remotePort    string
	serverName    string
	serverPort    string

	secure bool

	limits Limits

	keepAliveCount int

	started      time.Time
	lastActivity time.Time

	input []byte // conn.input: cross-event read accumulator

	chunkDec *chunked.Decoder // lazily created once a chunked body starts

	advancing bool // reentrancy guard for the advance loop

	onComplete CompleteHook

	errorMsg string
}

// New allocates a Conn in the Begin state, not yet bound to a socket.
func New(log logger.Logger, limits Limits, onComplete CompleteHook) *Conn {
	return &Conn{
		log:            log,
		state:          Begin,
		limits:         limits,
		keepAliveCount: limits.KeepAliveCount,
		onComplete:     onComplete,
	}
}

// Bind attaches a socket and transitions Begin -> Connected.
func (c *Conn) Bind(sock net.Conn, serverName, serverPort string, secure bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sock = sock
	c.serverName, c.serverPort = serverName, serverPort
	c.secure = secure
	if host, port, err := net.SplitHostPort(sock.RemoteAddr().String()); err == nil {
		c.remoteAddr, c.remotePort = host, port
	}
	c.started = time.Now()
	c.lastActivity = c.started
	c.setState(Connected)
}

// State returns the connection's current lifecycle position.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState enforces the monotonic-transition invariant. Callers must hold mu.
func (c *Conn) setState(s State) {
	if s < c.state {
		return
	}
	c.state = s
	c.lastActivity = time.Now()
}

// KeepAlive reports whether another request may be served on this
// socket once the current one completes.
func (c *Conn) KeepAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keepAliveCount >= 0 && !c.connErr
}

// Secure reports whether the underlying socket was accepted on a TLS
// endpoint (used by the session cookie's Secure flag).
func (c *Conn) Secure() bool { return c.secure }

// EnsureSession resolves this request's session id against store: the
// id carried by the "-http-session-" cookie when it is still live, or a
// freshly minted one otherwise. isNew reports whether a Set-Cookie
// header must be issued for the returned id, the same routing-layer
// decision point a handler's response rendering reads from (spec §6).
func (c *Conn) EnsureSession(store *session.Store) (id string, isNew bool) {
	if existing, ok := c.Rx.Cookies[session.CookieName]; ok && existing != "" {
		if store.Touch(existing) {
			return existing, false
		}
	}
	return store.Create(), true
}

// RemoteAddr and RemotePort expose the peer address split for the CGI
// variable surface.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }
func (c *Conn) RemotePort() string { return c.remotePort }

// PrepServerConn resets a connection for a new request on an existing
// keep-alive socket, mirroring original_source/src/conn.c's
// httpPrepServerConn/commonPrep.
func (c *Conn) PrepServerConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Rx = rx.New()
	c.Tx = tx.New()
	c.flags = Flags{}
	c.connErr = false
	c.errorMsg = ""
	c.chunkDec = nil
	c.Pipe = nil
	c.state = Begin
	c.setState(Begin)
}

// Advance runs the reentrancy-guarded state-progression routine (spec
// §4.1: "Advance is driven by a single reentrancy-guarded routine").
// feed supplies newly read socket bytes, if any; Advance returns once no
// further progress is possible without new I/O.
func (c *Conn) Advance(feed []byte) error {
	c.mu.Lock()
	if c.advancing {
		c.mu.Unlock()
		return ErrReentrantAdvance
	}
	c.advancing = true
	defer func() {
		c.mu.Lock()
		c.advancing = false
		c.mu.Unlock()
	}()
	if len(feed) > 0 {
		c.input = append(c.input, feed...)
	}
	c.lastActivity = time.Now()
	c.mu.Unlock()

	for {
		progressed, err := c.step()
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
}

// step attempts one state-machine predicate/action pair and reports
// whether it made progress: the advance loop keeps calling step while
// it returns true, then yields back to the caller.
func (c *Conn) step() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Begin, Connected:
		if i := wire.HeadersEndIndex(c.input); i < 0 {
			if int64(len(c.input)) > c.limits.HeaderSize {
				c.failLocked(413, "Header too large")
				return true, nil
			}
			return false, nil
		}
		nl := indexCRLF(c.input)
		if nl < 0 {
			return false, nil
		}
		rl, err := wire.ParseRequestLine(c.input[:nl])
		if err != nil {
			c.failLocked(400, "Malformed request line")
			return true, nil
		}
		c.Rx = rx.New()
		c.Rx.ApplyRequestLine(rl)
		c.input = c.input[nl+2:]
		c.setState(FirstLine)
		return true, nil

	case FirstLine:
		end := wire.HeadersEndIndex(c.input)
		if end < 0 {
			if int64(len(c.input)) > c.limits.HeaderSize {
				c.failLocked(413, "Header block too large")
				return true, nil
			}
			return false, nil
		}
		for _, line := range wire.SplitLines(c.input[:end]) {
			k, v, ok := wire.ParseHeaderLine(line)
			if !ok {
				continue
			}
			if err := c.Rx.Header.AddLine(k, v); err != nil {
				c.failLocked(400, "Malformed header")
				return true, nil
			}
		}
		c.input = c.input[end:]
		if cl := c.Rx.Header.Get("content-length"); cl != "" {
			n, ok := parseContentLength(cl)
			if !ok {
				c.failLocked(400, "Malformed Content-Length")
				return true, nil
			}
			if n > c.limits.ReceiveBodySize {
				c.failLocked(413, "Request body too large")
				return true, nil
			}
			c.Rx.ContentLength = n
			c.Rx.RemainingBody = n
		}
		c.Rx.Flags.Chunked = c.Rx.Header.Get("transfer-encoding") == "chunked"
		c.Rx.ParseCookies()
		c.setState(Parsed)
		return true, nil

	case Parsed:
		// Host match, route match and pipeline assembly are orchestrated
		// by the owning endpoint/service between Advance calls: Advance
		// stops here until the caller has attached c.Pipe (or failed the
		// request), then re-enters.
		if c.Pipe == nil {
			return false, nil
		}
		if c.Rx.RemainingBody > 0 || c.Rx.Flags.Chunked {
			c.setState(Content)
		} else {
			// No body: the handler stage only ever fires on a packet
			// arrival, so a bodyless request still needs its end-of-body
			// marker pushed through once, here, since Content is skipped
			// entirely.
			pipe := c.Pipe
			c.mu.Unlock()
			if pipe != nil {
				_ = pipe.RxHead.PutPacket(packet.NewEnd())
			}
			c.mu.Lock()
			c.setState(Ready)
		}
		return true, nil

	case Content:
		// Body bytes accumulate in c.input (the same cross-event buffer
		// FirstLine parses headers from) until a full chunk or the
		// remaining fixed length is available; every decoded byte is
		// pushed onto the attached pipeline's Rx head so the handler
		// stage sees it, mirroring original_source/src/chunkFilter.c
		// feeding decoded body data straight into the handler queue.
		if c.Rx.Flags.Chunked {
			if c.chunkDec == nil {
				c.chunkDec = chunked.NewDecoder()
			}
			in := c.input
			c.input = nil
			body, done, cerr := c.chunkDec.Feed(in)
			if cerr != nil {
				c.failLocked(400, "Malformed chunked body")
				return true, nil
			}
			c.Rx.ChunkState = rx.ChunkData
			pipe := c.Pipe
			c.mu.Unlock()
			if pipe != nil {
				if len(body) > 0 {
					_ = pipe.RxHead.PutPacket(packet.NewData(body))
				}
				if done {
					_ = pipe.RxHead.PutPacket(packet.NewEnd())
				}
			}
			c.mu.Lock()
			if done {
				c.Rx.ChunkState = rx.ChunkEOF
				c.setState(Ready)
				return true, nil
			}
			return false, nil
		}

		if c.Rx.RemainingBody > 0 && len(c.input) > 0 {
			n := int64(len(c.input))
			if n > c.Rx.RemainingBody {
				n = c.Rx.RemainingBody
			}
			body := c.input[:n]
			c.input = c.input[n:]
			c.Rx.RemainingBody -= n
			pipe := c.Pipe
			c.mu.Unlock()
			if pipe != nil {
				_ = pipe.RxHead.PutPacket(packet.NewData(body))
			}
			c.mu.Lock()
		}
		if c.Rx.RemainingBody <= 0 {
			pipe := c.Pipe
			c.mu.Unlock()
			if pipe != nil {
				_ = pipe.RxHead.PutPacket(packet.NewEnd())
			}
			c.mu.Lock()
			c.setState(Ready)
			return true, nil
		}
		return false, nil

	case Ready:
		c.setState(Running)
		return true, nil

	case Running:
		// Handler/service progress is driven externally via the
		// pipeline's queues; Advance has nothing further to do until
		// the connector marks the response finalized.
		if c.Tx != nil && c.Tx.Flags.Finalized {
			c.setState(Complete)
			return true, nil
		}
		return false, nil

	case Error:
		c.setState(Complete)
		return true, nil

	case Complete:
		c.removeAutoDeleteFiles()
		if c.onComplete != nil {
			c.mu.Unlock()
			c.onComplete(c)
			c.mu.Lock()
		}
		return false, nil

	default:
		return false, nil
	}
}

// Fail sets the connection into the Error path with the given status
// and message, matching original_source/src/error.c's httpError: if
// headers have not yet been sent it synthesizes an alt-body response,
// otherwise it forces disconnect.
func (c *Conn) Fail(status int, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLocked(status, message)
}

func (c *Conn) failLocked(status int, message string) {
	c.connErr = true
	c.errorMsg = message
	if c.log != nil {
		c.log.Warning(message, status)
	}
	if c.Tx == nil {
		c.Tx = tx.New()
	}
	if c.Tx.Flags.HeadersCreated {
		c.flags.Abort = true
		c.keepAliveCount = -1
	} else {
		c.Tx.SetError(status, message, passhandler.RenderBody(status, message))
	}
	c.setState(Error)
}

// removeAutoDeleteFiles unlinks every temp file this request's upload
// decoder created, when the matched route flagged AutoDelete, mirroring
// original_source/src/env.c's httpRemoveAllUploadedFiles (invoked from
// uploadFilter.c's close handler when rx->autoDelete is set). Errors are
// ignored, matching mprDeletePath's fire-and-forget cleanup.
func (c *Conn) removeAutoDeleteFiles() {
	if c.Rx == nil || !c.Rx.Flags.AutoDelete {
		return
	}
	for _, f := range c.Rx.Files {
		if f.TempFilename == "" {
			continue
		}
		_ = os.Remove(f.TempFilename)
	}
}

// Disconnect is the edge-triggered cancellation primitive.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connErr = true
	c.keepAliveCount = -1
	if c.sock != nil {
		_ = c.sock.Close()
	}
}

// Timeout fails the connection with 408, mirroring
// original_source/src/conn.c's httpConnTimeout.
func (c *Conn) Timeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state < Parsed {
		c.connErr = true
		if c.sock != nil {
			_ = c.sock.Close()
		}
		return
	}
	c.failLocked(408, "Request timeout")
}

// IdleFor and RunningFor report elapsed durations the service timer
// compares against InactivityTimeout/RequestTimeout.
func (c *Conn) IdleFor() time.Duration    { c.mu.Lock(); defer c.mu.Unlock(); return time.Since(c.lastActivity) }
func (c *Conn) RunningFor() time.Duration { c.mu.Lock(); defer c.mu.Unlock(); return time.Since(c.started) }

// HostHeader returns the Host request header with any port suffix
// stripped, for the endpoint's named-virtual-host lookup.
func (c *Conn) HostHeader() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Rx == nil {
		return ""
	}
	h := c.Rx.Header.Get("host")
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	return h
}

// Schedule implements queue.Scheduler: since one Conn is only ever
// driven by one goroutine at a time, a disabled queue asking
// to be re-serviced can run its Service callback inline instead of
// posting to a cooperative list. A write failure aborts the connection,
// matching original_source/src/net.c's "on fatal error, abort the
// connection".
func (c *Conn) Schedule(q *queue.Queue) {
	if err := q.RunService(); err != nil {
		c.Fail(502, "connector write failed")
	}
}

// AttachPipeline installs the per-request pipeline built by the routing
// layer once a route has matched.
func (c *Conn) AttachPipeline(p *pipeline.Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Pipe = p
}

// MarkTxFinalized records that the response has been fully written to the
// wire, letting the Running state advance to Complete on the next Advance
// call. The connector calls this through its Config.OnComplete hook the
// moment it drains the Tx chain's terminating KindEnd marker.
func (c *Conn) MarkTxFinalized() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Tx != nil {
		c.Tx.Flags.Finalized = true
	}
}

// RxQueueHead and TxQueueHead expose the pipeline entry points the
// connector drives directly from socket I/O.
func (c *Conn) RxQueueHead() *queue.Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Pipe == nil {
		return nil
	}
	return c.Pipe.RxHead
}

func (c *Conn) TxQueueHead() *queue.Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Pipe == nil {
		return nil
	}
	return c.Pipe.TxHead
}

// ErrorMessage returns the message set by the most recent Fail call, if
// any, for access-log rendering.
func (c *Conn) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorMsg
}

// RenderedError returns the status line, headers and HTML alt-body Fail
// synthesized, for a caller with no pipeline attached to write directly
// to the socket. ok is false once headers were
// already sent for this response, or no error is pending.
func (c *Conn) RenderedError() (out []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Tx == nil || !c.connErr || c.Tx.Flags.HeadersCreated {
		return nil, false
	}
	version := wire.Version11
	if c.Rx != nil {
		version = c.Rx.Version
	}
	out = c.Tx.BuildHeaderBlock(version, c.keepAliveCount >= 0)
	out = append(out, c.Tx.AltBody...)
	return out, true
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func parseContentLength(s string) (int64, bool) {
	var n int64
	if s == "" {
		return 0, false
	}
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}


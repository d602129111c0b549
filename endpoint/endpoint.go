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

// Package endpoint implements the listener bound to one (ip, port): it
// accepts sockets, selects a named virtual host from the parsed Host
// header, and drives each accepted connection's state machine to
// completion. Grounded on original_source/src/endpoint.c and
// httpService.c's listener bookkeeping, re-expressed as a
// goroutine-per-connection accept loop in place of the source's
// dispatcher-driven accept handler: Start launches one goroutine that
// blocks in Accept, and one further goroutine per accepted connection,
// rather than registering a readable-event callback with a shared
// dispatcher.
package endpoint

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync"

	"github.com/nabbar/httpcore/certificates"
	"github.com/nabbar/httpcore/conn"
	"github.com/nabbar/httpcore/connector"
	"github.com/nabbar/httpcore/logger"
	"github.com/nabbar/httpcore/pipeline"
	"github.com/nabbar/httpcore/rx"
	"github.com/nabbar/httpcore/semaphore"
	"github.com/nabbar/httpcore/service"
)

// HostRouter resolves the pipeline to run for a parsed request once a
// virtual host has been selected. A false second return means no route
// matched and the caller should emit a 404/500 response.
type HostRouter interface {
	Route(r *rx.Rx) (pipeline.Config, bool)
}

// Host is one named virtual host an Endpoint serves. Name "" or "*"
// matches any Host header. Hosts are tried in configuration order and
// the first match wins, so a catch-all listed before a named host is
// chosen over it.
type Host struct {
	Name   string
	Router HostRouter
}

// matches reports whether host equals Name exactly, or Name is a
// "*suffix" wildcard host is a suffix of.
func (h Host) matches(host string) bool {
	if h.Name == "" || h.Name == "*" {
		return true
	}
	if strings.HasPrefix(h.Name, "*") {
		return strings.HasSuffix(host, h.Name[1:])
	}
	return strings.EqualFold(h.Name, host)
}

// Config describes one Endpoint's binding and virtual-host table.
type Config struct {
	Name   string
	Listen string // host:port, passed to net.Listen("tcp", ...)
	TLS    certificates.TLSConfig
	Hosts  []Host
	Limits conn.Limits

	// BufferSize sizes every queue pipeline.Build creates for a request
	// on this endpoint.
	BufferSize int

	// MaxConnections caps how many accepted sockets this endpoint serves
	// at once; the accept loop blocks once the cap is reached instead of
	// spawning unbounded goroutines. 0 means unlimited.
	MaxConnections int
}

// Endpoint owns one listen socket and the accept loop feeding it.
type Endpoint struct {
	cfg Config
	svc *service.Service
	log logger.FuncLog

	mu       sync.Mutex
	listener net.Listener
	started  bool
	sem      semaphore.Semaphore

	wg sync.WaitGroup
}

// New returns an Endpoint bound to cfg, not yet listening.
func New(cfg Config, svc *service.Service, log logger.FuncLog) *Endpoint {
	return &Endpoint{cfg: cfg, svc: svc, log: log}
}

// Addr returns the listener's bound address, or nil before Start or
// after Stop. Useful when cfg.Listen names an ephemeral port (":0").
func (e *Endpoint) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Start opens the listen socket (TLS-wrapped when cfg.TLS is set) and
// launches the accept loop.
func (e *Endpoint) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	if len(e.cfg.Hosts) == 0 {
		return ErrNoHostConfigured
	}

	ln, err := net.Listen("tcp", e.cfg.Listen)
	if err != nil {
		return ErrorListenFailed.Error(err)
	}
	if e.cfg.TLS != nil {
		ln = tls.NewListener(ln, e.cfg.TLS.TlsConfig(e.cfg.Name))
	}

	e.listener = ln
	e.started = true
	if e.cfg.MaxConnections > 0 {
		e.sem = semaphore.New(context.Background(), e.cfg.MaxConnections)
	}

	e.wg.Add(1)
	go e.acceptLoop(ln)

	return nil
}

// Stop closes the listen socket, ending the accept loop, and waits for
// it to return.
func (e *Endpoint) Stop() error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	ln := e.listener
	sem := e.sem
	e.started = false
	e.mu.Unlock()

	if sem != nil {
		sem.DeferMain()
	}

	err := ln.Close()
	e.wg.Wait()
	return err
}

func (e *Endpoint) acceptLoop(ln net.Listener) {
	defer e.wg.Done()
	for {
		if e.sem != nil {
			if err := e.sem.NewWorker(); err != nil {
				return
			}
		}
		sock, err := ln.Accept()
		if err != nil {
			if e.sem != nil {
				e.sem.DeferWorker()
			}
			return
		}
		go e.serve(sock)
	}
}

// serve drives one accepted socket through as many keep-alive requests
// as the connection allows.
func (e *Endpoint) serve(sock net.Conn) {
	defer sock.Close()
	if e.sem != nil {
		defer e.sem.DeferWorker()
	}

	_, secure := sock.(*tls.Conn)
	var serverHost, serverPort string
	if a := e.Addr(); a != nil {
		serverHost, serverPort = splitHostPort(a.String())
	} else {
		serverHost, serverPort = splitHostPort(e.cfg.Listen)
	}

	var lg logger.Logger
	if e.log != nil {
		lg = e.log()
	}

	var hook conn.CompleteHook
	if e.svc != nil {
		hook = e.svc.AccessLogHook()
	}

	c := conn.New(lg, e.cfg.Limits, hook)
	c.Bind(sock, serverHost, serverPort, secure)

	var id string
	if e.svc != nil {
		id = e.svc.RegisterConnection(c)
		defer e.svc.UnregisterConnection(id)
	}

	buf := make([]byte, 8*1024)
	for {
		n, rerr := sock.Read(buf)
		if n > 0 {
			if aerr := c.Advance(buf[:n]); aerr != nil {
				return
			}
		}

		if c.State() == conn.Parsed {
			e.route(c, sock)
			if aerr := c.Advance(nil); aerr != nil {
				return
			}
		}

		if c.State() == conn.Complete {
			if body, ok := c.RenderedError(); ok {
				if _, werr := sock.Write(body); werr != nil {
					return
				}
			}
			if !c.KeepAlive() {
				return
			}
			c.PrepServerConn()
		}

		if rerr != nil {
			return
		}
	}
}

// route selects a virtual host by the request's Host header and attaches
// the pipeline its router resolves, or fails the connection with 404 when
// no host's router recognizes the request.
func (e *Endpoint) route(c *conn.Conn, sock net.Conn) {
	host := c.HostHeader()

	h, ok := e.selectHost(host)
	if !ok {
		c.Fail(404, "No matching virtual host")
		return
	}
	if h.Router == nil {
		c.Fail(500, "Virtual host has no router configured")
		return
	}

	cfg, ok := h.Router.Route(c.Rx)
	if !ok {
		c.Fail(500, "No route matched the request")
		return
	}

	// The connector stage writes straight to this connection's live
	// socket, so it is always built here rather than left to the
	// router: a route.Host's configured Connector is shared across every
	// virtual host request and cannot know which of many concurrently
	// accepted sockets a given request belongs to.
	cfg.Connector = connector.New("connector", sock, connector.Config{OnComplete: c.MarkTxFinalized})

	p := pipeline.Build(cfg, c, e.cfg.BufferSize)
	c.AttachPipeline(p)
}

// selectHost applies the exact-name / *suffix-wildcard rule. It reports
// ok=false when no configured host matches, which the caller turns into a
// 404 rather than silently falling back to the first host.
func (e *Endpoint) selectHost(host string) (Host, bool) {
	for _, h := range e.cfg.Hosts {
		if h.matches(host) {
			return h, true
		}
	}
	return Host{}, false
}

func splitHostPort(addr string) (host, port string) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, ""
	}
	return h, p
}

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

// scenario_test.go drives Conn end to end through a real net.Pipe socket,
// a real pipeline.Pipeline and a real connector.Stage, with no test-only
// shortcut into the queue machinery: every byte a scenario asserts on left
// the handler through the same Incoming/flush/drain path a production
// route would use. Scenario numbering below matches the six walkthroughs
// this package's request/response contract is measured against.
package conn_test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/nabbar/httpcore/auth"
	. "github.com/nabbar/httpcore/conn"
	"github.com/nabbar/httpcore/connector"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/password"
	"github.com/nabbar/httpcore/pipeline"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/wire/byterange"
	"github.com/nabbar/httpcore/wire/chunked"
	"github.com/nabbar/httpcore/wire/multipart"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// flushTail pushes packets directly onto the tail of a Tx chain and runs
// its service, the same bypass-the-filters pattern stage/passhandler and
// route's redirect/close handlers each carry their own copy of: a fully
// pre-rendered response needs no further transformation on its way to the
// connector.
func flushTail(head *queue.Queue, packets ...*packet.Packet) error {
	tail := head
	for tail.Next != nil {
		tail = tail.Next
	}
	for _, p := range packets {
		tail.Push(p)
	}
	return tail.RunService()
}

// driveRequest feeds the request bytes once pipeline construction is
// ready to observe the parsed Rx (buildCfg runs exactly when state
// reaches Parsed, the same point endpoint.route fires at), attaches the
// resulting pipeline, and drives the connection the rest of the way. It
// is meant to run on its own goroutine: the connector writes straight to
// the net.Pipe socket, which rendezvous-blocks until the scenario's
// assertions read the other end.
func driveRequest(c *Conn, feed []byte, buildCfg func() pipeline.Config) error {
	if err := c.Advance(feed); err != nil {
		return err
	}
	if c.State() == Parsed {
		p := pipeline.Build(buildCfg(), c, 4096)
		c.AttachPipeline(p)
		return c.Advance(nil)
	}
	return nil
}

// newScenarioConn wires a Conn to one half of a net.Pipe, returning that
// half (for the scenario's connector stage to write to) and the other
// half for the scenario to read/write against.
func newScenarioConn(limits Limits) (c *Conn, server, client net.Conn) {
	server, client = net.Pipe()
	c = New(nil, limits, nil)
	c.Bind(server, "example.test", "80", false)
	return c, server, client
}

func defaultLimits() Limits {
	return Limits{HeaderSize: 16 << 10, ReceiveBodySize: 1 << 20, KeepAliveCount: 100}
}

// echoHandler answers every request with a fixed status/body once the
// end-of-body marker arrives, matching the terminal-handler shape every
// production handler in this repository uses.
func echoHandler(name string, status int, reason string, headers map[string]string, body []byte) *stage.Stage {
	st := stage.New(name, stage.KindHandler)
	st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
		if !p.IsEnd() {
			return nil
		}
		var b strings.Builder
		b.WriteString("HTTP/1.1 " + strconv.Itoa(status) + " " + reason + "\r\n")
		for k, v := range headers {
			b.WriteString(k + ": " + v + "\r\n")
		}
		b.WriteString("\r\n")
		return flushTail(q.Pair, packet.NewHeader([]byte(b.String())), packet.NewData(body), packet.NewEnd())
	}
	return st
}

// rangeHandler answers a request against a fixed in-memory entity,
// rendering a single 206/Content-Range response for one satisfiable range
// and a multipart/byteranges envelope (spec §4.3.4) once more than one
// range resolves, mirroring original_source/src/rangeFilter.c's
// single-part/multi-part split.
func rangeHandler(c *Conn, entity []byte, boundary string) *stage.Stage {
	st := stage.New("ranged", stage.KindHandler)
	st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
		if !p.IsEnd() {
			return nil
		}
		header := c.Rx.Header.Get("range")
		ranges, perr := byterange.Parse(header)
		if perr != nil {
			return flushTail(q.Pair, packet.NewHeader([]byte("HTTP/1.1 416 Range Not Satisfiable\r\n\r\n")), packet.NewEnd())
		}
		resolved, rerr := byterange.Resolve(ranges, int64(len(entity)))
		if rerr != nil {
			return flushTail(q.Pair, packet.NewHeader([]byte("HTTP/1.1 416 Range Not Satisfiable\r\n\r\n")), packet.NewEnd())
		}

		if len(resolved) == 1 {
			r := resolved[0]
			slice := entity[r.Start:r.End]
			head := "HTTP/1.1 206 Partial Content\r\n" +
				"Content-Range: " + byterange.ContentRange(r, int64(len(entity))) + "\r\n" +
				"Content-Length: " + strconv.Itoa(len(slice)) + "\r\n\r\n"
			return flushTail(q.Pair, packet.NewHeader([]byte(head)), packet.NewData(slice), packet.NewEnd())
		}

		var body strings.Builder
		for _, r := range resolved {
			body.WriteString(byterange.MultipartHeader(boundary, "text/plain", r, int64(len(entity))))
			body.Write(entity[r.Start:r.End])
			body.WriteString("\r\n")
		}
		body.WriteString(byterange.MultipartTrailer(boundary))

		head := "HTTP/1.1 206 Partial Content\r\n" +
			"Content-Type: " + byterange.ContentType(resolved, boundary, "text/plain") + "\r\n" +
			"Content-Length: " + strconv.Itoa(body.Len()) + "\r\n\r\n"
		return flushTail(q.Pair, packet.NewHeader([]byte(head)), packet.NewData([]byte(body.String())), packet.NewEnd())
	}
	return st
}

var _ = Describe("[TC-SCN] End-to-end wire scenarios", func() {
	var server, client net.Conn

	AfterEach(func() {
		if client != nil {
			_ = client.Close()
		}
	})

	// ------------------------------------------------------------------
	// Scenario 1: simple GET, keep-alive
	// ------------------------------------------------------------------
	It("[TC-SCN-001] simple GET is answered and the connection stays keep-alive", func() {
		var c *Conn
		c, server, client = newScenarioConn(defaultLimits())

		driven := make(chan error, 1)
		go func() {
			driven <- driveRequest(c, []byte("GET / HTTP/1.1\r\nHost: example.test\r\n\r\n"), func() pipeline.Config {
				return pipeline.Config{
					Handler:   echoHandler("home", 200, "OK", map[string]string{"Content-Length": "5", "Connection": "keep-alive"}, []byte("hello")),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		r := bufio.NewReader(client)
		status, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal("HTTP/1.1 200 OK\r\n"))

		header, err := readHeaders(r)
		Expect(err).ToNot(HaveOccurred())
		Expect(header).To(HaveKeyWithValue("connection", "keep-alive"))

		body := make([]byte, 5)
		_, err = io.ReadFull(r, body)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("hello"))

		Eventually(driven, "1s").Should(Receive(BeNil()))
		Expect(c.State()).To(Equal(Complete))
		Expect(c.KeepAlive()).To(BeTrue())
	})

	// ------------------------------------------------------------------
	// Scenario 2: chunked response
	// ------------------------------------------------------------------
	It("[TC-SCN-002] a handler may answer with a chunked-encoded body", func() {
		var c *Conn
		c, server, client = newScenarioConn(defaultLimits())

		chunkedHandler := func() *stage.Stage {
			st := stage.New("chunked-echo", stage.KindHandler)
			st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
				if !p.IsEnd() {
					return nil
				}
				enc := chunked.NewEncoder()
				header := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"
				pkts := []*packet.Packet{packet.NewHeader([]byte(header))}
				pkts = append(pkts, packet.NewData(enc.EncodeChunk([]byte("abc"))))
				pkts = append(pkts, packet.NewData(enc.EncodeChunk([]byte("defgh"))))
				pkts = append(pkts, packet.NewData(enc.Terminator()))
				pkts = append(pkts, packet.NewEnd())
				return flushTail(q.Pair, pkts...)
			}
			return st
		}

		driven := make(chan error, 1)
		go func() {
			driven <- driveRequest(c, []byte("GET /stream HTTP/1.1\r\nHost: example.test\r\n\r\n"), func() pipeline.Config {
				return pipeline.Config{
					Handler:   chunkedHandler(),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		r := bufio.NewReader(client)
		status, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal("HTTP/1.1 200 OK\r\n"))
		_, err = readHeaders(r)
		Expect(err).ToNot(HaveOccurred())

		dec := chunked.NewDecoder()
		var got []byte
		buf := make([]byte, 64)
		for {
			n, rerr := r.Read(buf)
			if n > 0 {
				body, done, derr := dec.Feed(buf[:n])
				Expect(derr).ToNot(HaveOccurred())
				got = append(got, body...)
				if done {
					break
				}
			}
			if rerr != nil {
				break
			}
		}
		Expect(string(got)).To(Equal("abcdefgh"))

		Eventually(driven, "1s").Should(Receive(BeNil()))
		Expect(c.State()).To(Equal(Complete))
	})

	// ------------------------------------------------------------------
	// Scenario 3: range request
	// ------------------------------------------------------------------
	It("[TC-SCN-003] a Range header selects a byte window of the resource", func() {
		var c *Conn
		c, server, client = newScenarioConn(defaultLimits())

		entity := []byte("0123456789ABCDEF")

		driven := make(chan error, 1)
		go func() {
			driven <- driveRequest(c, []byte("GET /file HTTP/1.1\r\nHost: example.test\r\nRange: bytes=4-9\r\n\r\n"), func() pipeline.Config {
				return pipeline.Config{
					Handler:   rangeHandler(c, entity, "range-boundary"),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		r := bufio.NewReader(client)
		status, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal("HTTP/1.1 206 Partial Content\r\n"))
		hdr, err := readHeaders(r)
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr).To(HaveKeyWithValue("content-range", "bytes 4-9/16"))

		body := make([]byte, 6)
		_, err = io.ReadFull(r, body)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("456789"))

		Eventually(driven, "1s").Should(Receive(BeNil()))
	})

	It("[TC-SCN-003] a multi-range request produces a multipart/byteranges envelope", func() {
		var c *Conn
		c, server, client = newScenarioConn(defaultLimits())

		entity := []byte("0123456789")
		const boundary = "range-boundary"

		driven := make(chan error, 1)
		go func() {
			driven <- driveRequest(c, []byte("GET /file HTTP/1.1\r\nHost: example.test\r\nRange: bytes=0-3,6-9\r\n\r\n"), func() pipeline.Config {
				return pipeline.Config{
					Handler:   rangeHandler(c, entity, boundary),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		r := bufio.NewReader(client)
		status, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal("HTTP/1.1 206 Partial Content\r\n"))

		hdr, err := readHeaders(r)
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr).To(HaveKeyWithValue("content-type", "multipart/byteranges; boundary="+boundary))

		length, lerr := strconv.Atoi(hdr["content-length"])
		Expect(lerr).ToNot(HaveOccurred())
		rest := make([]byte, length)
		_, err = io.ReadFull(r, rest)
		Expect(err).ToNot(HaveOccurred())

		envelope := string(rest)
		Expect(envelope).To(ContainSubstring("--" + boundary + "\r\n"))
		Expect(envelope).To(ContainSubstring("Content-Range: bytes 0-3/10"))
		Expect(envelope).To(ContainSubstring("0123"))
		Expect(envelope).To(ContainSubstring("Content-Range: bytes 6-9/10"))
		Expect(envelope).To(ContainSubstring("6789"))
		Expect(envelope).To(ContainSubstring("--" + boundary + "--\r\n"))

		Eventually(driven, "1s").Should(Receive(BeNil()))
	})

	// ------------------------------------------------------------------
	// Scenario 4: Digest auth round-trip, then scenario 1's keep-alive
	// carries the same socket into a second, authenticated request.
	// ------------------------------------------------------------------
	It("[TC-SCN-004] a Digest challenge is answered, then the retried request succeeds on the same connection", func() {
		var c *Conn
		c, server, client = newScenarioConn(defaultLimits())

		ha1 := password.HA1("alice", "files", "secret")
		backend := memBackend{ha1: ha1}
		authn := auth.New(auth.Digest, "files", "seed-value-not-rotated", backend)

		challengeHandler := func(ch auth.Challenge) *stage.Stage {
			st := stage.New("challenge", stage.KindHandler)
			st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
				if !p.IsEnd() {
					return nil
				}
				wwwAuth := fmt.Sprintf(`Digest realm="%s", nonce="%s", qop=%s`, ch.Realm, ch.Nonce, ch.Qop)
				head := "HTTP/1.1 401 Unauthorized\r\n" +
					"WWW-Authenticate: " + wwwAuth + "\r\n" +
					"Content-Length: 0\r\nConnection: keep-alive\r\n\r\n"
				return flushTail(q.Pair, packet.NewHeader([]byte(head)), packet.NewEnd())
			}
			return st
		}

		grantedHandler := func() *stage.Stage {
			return echoHandler("vault", 200, "OK", map[string]string{"Content-Length": "6", "Connection": "keep-alive"}, []byte("secret"))
		}

		// Leg 1: no Authorization header, answered with a 401 challenge.
		challenge := authn.Challenge(false)
		driven := make(chan error, 1)
		go func() {
			driven <- driveRequest(c, []byte("GET /vault HTTP/1.1\r\nHost: example.test\r\n\r\n"), func() pipeline.Config {
				return pipeline.Config{
					Handler:   challengeHandler(challenge),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		r := bufio.NewReader(client)
		status, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal("HTTP/1.1 401 Unauthorized\r\n"))
		hdr, err := readHeaders(r)
		Expect(err).ToNot(HaveOccurred())
		Expect(hdr).To(HaveKey("www-authenticate"))

		Eventually(driven, "1s").Should(Receive(BeNil()))
		Expect(c.KeepAlive()).To(BeTrue())
		c.PrepServerConn()

		// Leg 2: client recomputes the digest response from the minted
		// nonce and retries on the same socket.
		ha2 := password.HA2("GET", "/vault")
		resp := password.DigestResponseQop(ha1, challenge.Nonce, "00000001", "cnonce-1", "auth", ha2)
		authz := fmt.Sprintf(
			`Digest username="alice", realm="files", nonce="%s", uri="/vault", qop=auth, nc=00000001, cnonce="cnonce-1", response="%s"`,
			challenge.Nonce, resp)

		// Verification runs up front, the same way a real router decides
		// the outcome before a handler stage is ever constructed: the
		// handler closure below never reads live Rx state itself.
		creds, perr := authn.ParseAuthorization(authz)
		Expect(perr).ToNot(HaveOccurred())
		ok, stale, verr := authn.VerifyDigest(creds, "GET")
		Expect(verr).ToNot(HaveOccurred())
		Expect(stale).To(BeFalse())
		Expect(ok).To(BeTrue())

		driven2 := make(chan error, 1)
		go func() {
			driven2 <- driveRequest(c, []byte("GET /vault HTTP/1.1\r\nHost: example.test\r\nAuthorization: "+authz+"\r\n\r\n"), func() pipeline.Config {
				return pipeline.Config{
					Handler:   grantedHandler(),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		status2, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status2).To(Equal("HTTP/1.1 200 OK\r\n"))
		_, err = readHeaders(r)
		Expect(err).ToNot(HaveOccurred())
		body := make([]byte, 6)
		_, err = io.ReadFull(r, body)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("secret"))

		Eventually(driven2, "1s").Should(Receive(BeNil()))
	})

	// ------------------------------------------------------------------
	// Scenario 5: pipelined requests
	// ------------------------------------------------------------------
	It("[TC-SCN-005] two pipelined requests in one read are both served without a second socket read", func() {
		var c *Conn
		c, server, client = newScenarioConn(defaultLimits())

		req1 := "GET /one HTTP/1.1\r\nHost: example.test\r\n\r\n"
		req2 := "GET /two HTTP/1.1\r\nHost: example.test\r\n\r\n"

		driven := make(chan error, 1)
		go func() {
			err := driveRequest(c, []byte(req1+req2), func() pipeline.Config {
				return pipeline.Config{
					Handler:   echoHandler("one", 200, "OK", map[string]string{"Content-Length": "3", "Connection": "keep-alive"}, []byte("one")),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
			driven <- err
		}()

		r := bufio.NewReader(client)
		status, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal("HTTP/1.1 200 OK\r\n"))
		_, err = readHeaders(r)
		Expect(err).ToNot(HaveOccurred())
		body := make([]byte, 3)
		_, err = io.ReadFull(r, body)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("one"))
		Eventually(driven, "1s").Should(Receive(BeNil()))

		// The second request's bytes were already handed to Advance as
		// part of req1+req2; PrepServerConn resets Rx/Tx/state but never
		// touches the stashed input buffer, so the second request parses
		// from it with no further socket I/O.
		c.PrepServerConn()
		driven2 := make(chan error, 1)
		go func() {
			driven2 <- driveRequest(c, nil, func() pipeline.Config {
				return pipeline.Config{
					Handler:   echoHandler("two", 200, "OK", map[string]string{"Content-Length": "3", "Connection": "keep-alive"}, []byte("two")),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		status2, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status2).To(Equal("HTTP/1.1 200 OK\r\n"))
		_, err = readHeaders(r)
		Expect(err).ToNot(HaveOccurred())
		body2 := make([]byte, 3)
		_, err = io.ReadFull(r, body2)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body2)).To(Equal("two"))
		Eventually(driven2, "1s").Should(Receive(BeNil()))
	})

	// ------------------------------------------------------------------
	// Scenario 6: upload of two files via multipart/form-data
	// ------------------------------------------------------------------
	It("[TC-SCN-006] a multipart/form-data body with two files decodes both parts", func() {
		var c *Conn
		c, server, client = newScenarioConn(defaultLimits())

		const boundary = "X-Boundary-17"
		var bodyBuf strings.Builder
		bodyBuf.WriteString("--" + boundary + "\r\n")
		bodyBuf.WriteString(`Content-Disposition: form-data; name="file1"; filename="a.txt"` + "\r\n")
		bodyBuf.WriteString("Content-Type: text/plain\r\n\r\n")
		bodyBuf.WriteString("first file contents")
		bodyBuf.WriteString("\r\n--" + boundary + "\r\n")
		bodyBuf.WriteString(`Content-Disposition: form-data; name="file2"; filename="b.txt"` + "\r\n")
		bodyBuf.WriteString("Content-Type: text/plain\r\n\r\n")
		bodyBuf.WriteString("second file, a bit longer")
		bodyBuf.WriteString("\r\n--" + boundary + "--\r\n")
		body := bodyBuf.String()

		req := "POST /upload HTTP/1.1\r\nHost: example.test\r\n" +
			"Content-Type: multipart/form-data; boundary=" + boundary + "\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

		sink := &memSink{files: map[string]*strings.Builder{}}

		uploadHandler := func() *stage.Stage {
			dec := multipart.NewDecoder(boundary, 1<<20, sink)
			st := stage.New("upload", stage.KindHandler)
			st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
				if p.Kind == packet.KindData {
					if err := dec.Feed(p.Content); err != nil {
						return err
					}
					return nil
				}
				if !p.IsEnd() {
					return nil
				}
				summary := fmt.Sprintf("files=%d", len(dec.Files))
				head := "HTTP/1.1 200 OK\r\nContent-Length: " + strconv.Itoa(len(summary)) + "\r\n\r\n"
				return flushTail(q.Pair, packet.NewHeader([]byte(head)), packet.NewData([]byte(summary)), packet.NewEnd())
			}
			return st
		}

		driven := make(chan error, 1)
		go func() {
			driven <- driveRequest(c, []byte(req), func() pipeline.Config {
				return pipeline.Config{
					Handler:   uploadHandler(),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		r := bufio.NewReader(client)
		status, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal("HTTP/1.1 200 OK\r\n"))
		_, err = readHeaders(r)
		Expect(err).ToNot(HaveOccurred())
		rest := make([]byte, len("files=2"))
		_, err = io.ReadFull(r, rest)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(rest)).To(Equal("files=2"))

		Eventually(driven, "1s").Should(Receive(BeNil()))

		sink.mu.Lock()
		defer sink.mu.Unlock()
		Expect(sink.files).To(HaveLen(2))
		Expect(sink.files["a.txt"].String()).To(Equal("first file contents"))
		Expect(sink.files["b.txt"].String()).To(Equal("second file, a bit longer"))
	})

	// Scenario 7: AutoDelete unlinks an uploaded temp file once the
	// request completes (spec §4.3.5).
	// ------------------------------------------------------------------
	It("[TC-SCN-007] a route flagged AutoDelete unlinks its upload's temp file at completion", func() {
		var c *Conn
		c, server, client = newScenarioConn(defaultLimits())

		dir, err := os.MkdirTemp("", "httpcore-autodelete-*")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)

		const boundary = "X-Boundary-AD"
		var bodyBuf strings.Builder
		bodyBuf.WriteString("--" + boundary + "\r\n")
		bodyBuf.WriteString(`Content-Disposition: form-data; name="file1"; filename="a.txt"` + "\r\n")
		bodyBuf.WriteString("Content-Type: text/plain\r\n\r\n")
		bodyBuf.WriteString("temporary contents")
		bodyBuf.WriteString("\r\n--" + boundary + "--\r\n")
		body := bodyBuf.String()

		req := "POST /upload HTTP/1.1\r\nHost: example.test\r\n" +
			"Content-Type: multipart/form-data; boundary=" + boundary + "\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

		sink := &diskSink{dir: dir}
		var tempPath string

		uploadHandler := func() *stage.Stage {
			dec := multipart.NewDecoder(boundary, 1<<20, sink)
			st := stage.New("upload", stage.KindHandler)
			st.Incoming = func(q *queue.Queue, p *packet.Packet) error {
				if p.Kind == packet.KindData {
					return dec.Feed(p.Content)
				}
				if !p.IsEnd() {
					return nil
				}
				c.Rx.Files = dec.Files
				c.Rx.Flags.AutoDelete = true
				if len(dec.Files) > 0 {
					tempPath = dec.Files[0].TempFilename
				}
				head := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\n"
				return flushTail(q.Pair, packet.NewHeader([]byte(head)), packet.NewData([]byte("ok")), packet.NewEnd())
			}
			return st
		}

		driven := make(chan error, 1)
		go func() {
			driven <- driveRequest(c, []byte(req), func() pipeline.Config {
				return pipeline.Config{
					Handler:   uploadHandler(),
					Connector: connector.New("connector", server, connector.Config{OnComplete: c.MarkTxFinalized}),
				}
			})
		}()

		r := bufio.NewReader(client)
		status, rerr := r.ReadString('\n')
		Expect(rerr).ToNot(HaveOccurred())
		Expect(status).To(Equal("HTTP/1.1 200 OK\r\n"))
		_, rerr = readHeaders(r)
		Expect(rerr).ToNot(HaveOccurred())
		_, rerr = io.ReadFull(r, make([]byte, 2))
		Expect(rerr).ToNot(HaveOccurred())

		Eventually(driven, "1s").Should(Receive(BeNil()))

		Expect(tempPath).ToNot(BeEmpty())
		_, statErr := os.Stat(tempPath)
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})
})

// readHeaders reads CRLF-terminated header lines up to the blank line
// terminator and returns them lower-cased for case-insensitive assertions.
func readHeaders(r *bufio.Reader) (map[string]string, error) {
	out := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return out, nil
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		out[strings.ToLower(line[:i])] = strings.TrimSpace(line[i+1:])
	}
}

// memBackend is the same minimal auth.Backend the auth package's own
// tests use: a single pre-hashed HA1 credential, no real user store.
type memBackend struct{ ha1 string }

func (m memBackend) Lookup(realm, user string) (string, bool) { return m.ha1, m.ha1 != "" }
func (m memBackend) ValidateBasic(realm, user, pass string) bool {
	return m.ha1 != "" && password.HA1(user, realm, pass) == m.ha1
}

// memSink buffers uploaded file bytes in memory, keyed by client filename,
// standing in for a production Sink that would write under a configured
// upload directory.
type memSink struct {
	mu    sync.Mutex
	files map[string]*strings.Builder
}

func (s *memSink) Open(fieldName, clientFilename, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[clientFilename] = &strings.Builder{}
	return clientFilename, nil
}

func (s *memSink) Write(tempFilename string, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[tempFilename].Write(p)
	return nil
}

func (s *memSink) Close(tempFilename string) error { return nil }

// diskSink writes uploaded file parts to real temp files under dir,
// exercising AutoDelete's actual unlink path end to end (a production
// Sink, unlike memSink, always owns a real path on disk).
type diskSink struct {
	dir string
	mu  sync.Mutex
	fh  map[string]*os.File
}

func (s *diskSink) Open(fieldName, clientFilename, contentType string) (string, error) {
	f, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.fh == nil {
		s.fh = map[string]*os.File{}
	}
	s.fh[f.Name()] = f
	s.mu.Unlock()
	return f.Name(), nil
}

func (s *diskSink) Write(tempFilename string, p []byte) error {
	s.mu.Lock()
	f := s.fh[tempFilename]
	s.mu.Unlock()
	_, err := f.Write(p)
	return err
}

func (s *diskSink) Close(tempFilename string) error {
	s.mu.Lock()
	f := s.fh[tempFilename]
	s.mu.Unlock()
	return f.Close()
}

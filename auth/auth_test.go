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

package auth_test

import (
	"encoding/base64"
	"os"

	. "github.com/nabbar/httpcore/auth"
	"github.com/nabbar/httpcore/password"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type memBackend struct {
	ha1 string
}

func (m memBackend) Lookup(realm, user string) (string, bool) { return m.ha1, m.ha1 != "" }
func (m memBackend) ValidateBasic(realm, user, pass string) bool {
	return pass == "secret"
}

var _ = Describe("[TC-AU] Authentication", func() {
	It("[TC-AU-001] parses a Basic Authorization header", func() {
		raw := base64.StdEncoding.EncodeToString([]byte("alice:secret"))
		a := New(Basic, "realm", "s3cret-seed", memBackend{})
		c, err := a.ParseAuthorization("Basic " + raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(c.User).To(Equal("alice"))
		Expect(a.VerifyBasic(c)).To(BeTrue())
	})

	It("[TC-AU-002] rejects a wrong Basic password", func() {
		raw := base64.StdEncoding.EncodeToString([]byte("alice:wrong"))
		a := New(Basic, "realm", "s3cret-seed", memBackend{})
		c, _ := a.ParseAuthorization("Basic " + raw)
		Expect(a.VerifyBasic(c)).To(BeFalse())
	})

	It("[TC-AU-003] mints a verifiable Digest nonce and round-trips a response", func() {
		ha1 := password.HA1("alice", "realm", "secret")
		a := New(Digest, "realm", "s3cret-seed", memBackend{ha1: ha1})
		ch := a.Challenge(false)
		Expect(ch.Nonce).ToNot(BeEmpty())

		ha2 := password.HA2("GET", "/x")
		resp := password.DigestResponseQop(ha1, ch.Nonce, "00000001", "cnonce1", "auth", ha2)
		header := `Digest username="alice", realm="realm", nonce="` + ch.Nonce + `", uri="/x", ` +
			`qop=auth, nc=00000001, cnonce="cnonce1", response="` + resp + `"`

		c, err := a.ParseAuthorization(header)
		Expect(err).ToNot(HaveOccurred())
		ok, stale, verr := a.VerifyDigest(c, "GET")
		Expect(verr).ToNot(HaveOccurred())
		Expect(stale).To(BeFalse())
		Expect(ok).To(BeTrue())
	})

	It("[TC-AU-004] rejects a digest response that does not match the expected hash", func() {
		ha1 := password.HA1("alice", "realm", "secret")
		a := New(Digest, "realm", "s3cret-seed", memBackend{ha1: ha1})
		ch := a.Challenge(false)

		header := `Digest username="alice", realm="realm", nonce="` + ch.Nonce + `", uri="/x", ` +
			`qop=auth, nc=00000001, cnonce="cnonce1", response="deadbeef"`
		c, err := a.ParseAuthorization(header)
		Expect(err).ToNot(HaveOccurred())
		ok, _, verr := a.VerifyDigest(c, "GET")
		Expect(verr).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("[TC-AU-005] flags a tampered nonce as bad", func() {
		a := New(Digest, "realm", "s3cret-seed", memBackend{})
		header := `Digest username="alice", realm="realm", nonce="bm90LXZhbGlk", uri="/x", response="x"`
		c, err := a.ParseAuthorization(header)
		Expect(err).ToNot(HaveOccurred())
		_, _, verr := a.VerifyDigest(c, "GET")
		Expect(verr).To(HaveOccurred())
	})

	It("[TC-AU-006] loads a file-backed credential store", func() {
		f, err := os.CreateTemp("", "httpcore-auth-*.txt")
		Expect(err).ToNot(HaveOccurred())
		defer os.Remove(f.Name())

		_, _ = f.WriteString("# comment\n\n1:realm:bob:secret\n0:realm:eve:secret\n")
		Expect(f.Close()).ToNot(HaveOccurred())

		b, err := LoadFile(f.Name())
		Expect(err).ToNot(HaveOccurred())
		Expect(b.ValidateBasic("realm", "bob", "secret")).To(BeTrue())
		Expect(b.ValidateBasic("realm", "eve", "secret")).To(BeFalse())
		Expect(b.ValidateBasic("realm", "bob", "wrong")).To(BeFalse())
	})
})

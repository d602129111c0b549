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

// Package auth implements HTTP Basic and Digest authentication (RFC
// 2617), including the server-minted nonce lifecycle and a pluggable
// credential-backend interface. Grounded on
// original_source/src/auth.c, authCheck.c and basic.c/digest.c; the
// authFilter.c etag-aware variant is not reproduced, since authCheck.c
// is the canonical entry point.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/nabbar/httpcore/password"
)

// Type selects the challenge scheme a route requires.
type Type uint8

const (
	None Type = iota
	Basic
	Digest
)

// NonceLifetime is the staleness window RFC 2617 §3.2.1 recommends;
// fixed at five minutes here.
const NonceLifetime = 5 * time.Minute

// Backend resolves credentials for a (realm, user) pair and validates a
// client-supplied value against the stored one.
type Backend interface {
	Lookup(realm, user string) (stored string, ok bool)
	// ValidateBasic compares a cleartext password against the backend's
	// stored form (a plaintext password, an HA1, or a remote directory
	// bind, depending on the backend).
	ValidateBasic(realm, user, password string) bool
}

// Challenge is what the caller should render as the WWW-Authenticate
// header value on a 401 response.
type Challenge struct {
	Type  Type
	Realm string
	// Digest-only fields
	Nonce string
	Stale bool
	Qop   string
}

// Credentials is the decoded Authorization header content.
type Credentials struct {
	Type     Type
	User     string
	Password string // Basic only

	// Digest fields
	Realm, Nonce, URI, Response string
	Qop, Cnonce, NC, Opaque     string
}

// Authenticator drives the challenge/verify cycle for one realm+type
// combination and owns the nonce-minting secret.
type Authenticator struct {
	typ     Type
	realm   string
	secret  string
	backend Backend
	qop     string

	counter int64
}

// New returns an Authenticator for the given scheme, realm and backend.
// secret should be a long random value generated once per process (see
// package password's Generate) and kept stable for the process lifetime
// so nonces it minted remain verifiable.
func New(typ Type, realm, secret string, backend Backend) *Authenticator {
	return &Authenticator{typ: typ, realm: realm, secret: secret, backend: backend, qop: "auth"}
}

// Challenge mints a fresh WWW-Authenticate challenge.
func (a *Authenticator) Challenge(stale bool) Challenge {
	if a.typ == Basic {
		return Challenge{Type: Basic, Realm: a.realm}
	}
	a.counter++
	return Challenge{
		Type:  Digest,
		Realm: a.realm,
		Nonce: a.mintNonce(time.Now()),
		Stale: stale,
		Qop:   a.qop,
	}
}

// mintNonce renders base64(secret:realm:creation-time:counter).
func (a *Authenticator) mintNonce(now time.Time) string {
	raw := a.secret + ":" + a.realm + ":" + strconv.FormatInt(now.Unix(), 10) + ":" + strconv.FormatInt(a.counter, 10)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// verifyNonce base64-decodes and checks secret equality, realm equality
// and age <= NonceLifetime.
func (a *Authenticator) verifyNonce(nonce string) (stale bool, err error) {
	raw, derr := base64.StdEncoding.DecodeString(nonce)
	if derr != nil {
		return false, ErrBadNonce
	}
	parts := strings.SplitN(string(raw), ":", 4)
	if len(parts) != 4 {
		return false, ErrBadNonce
	}
	secret, realm, createdStr := parts[0], parts[1], parts[2]
	if subtle.ConstantTimeCompare([]byte(secret), []byte(a.secret)) != 1 {
		return false, ErrBadNonce
	}
	if realm != a.realm {
		return false, ErrBadNonce
	}
	created, perr := strconv.ParseInt(createdStr, 10, 64)
	if perr != nil {
		return false, ErrBadNonce
	}
	if time.Since(time.Unix(created, 0)) > NonceLifetime {
		return true, ErrStaleNonce
	}
	return false, nil
}

// ParseAuthorization decodes the Authorization header value into
// Credentials according to a's configured scheme.
func (a *Authenticator) ParseAuthorization(header string) (Credentials, error) {
	switch a.typ {
	case Basic:
		return parseBasic(header)
	case Digest:
		return parseDigest(header)
	default:
		return Credentials{}, ErrMalformedAuthHeader
	}
}

func parseBasic(header string) (Credentials, error) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return Credentials{}, ErrMalformedAuthHeader
	}
	raw, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return Credentials{}, ErrMalformedAuthHeader
	}
	i := strings.IndexByte(string(raw), ':')
	if i < 0 {
		return Credentials{}, ErrMalformedAuthHeader
	}
	return Credentials{Type: Basic, User: string(raw[:i]), Password: string(raw[i+1:])}, nil
}

// parseDigest splits the comma-separated key=value pairs following
// "Digest ", handling quoted values and backslash-escapes.
func parseDigest(header string) (Credentials, error) {
	const prefix = "Digest "
	if !strings.HasPrefix(header, prefix) {
		return Credentials{}, ErrMalformedAuthHeader
	}
	fields := splitDigestFields(header[len(prefix):])

	c := Credentials{Type: Digest}
	c.User = fields["username"]
	c.Realm = fields["realm"]
	c.Nonce = fields["nonce"]
	c.URI = fields["uri"]
	c.Response = fields["response"]
	c.Qop = fields["qop"]
	c.Cnonce = fields["cnonce"]
	c.NC = fields["nc"]
	c.Opaque = fields["opaque"]

	if c.User == "" || c.Realm == "" || c.Nonce == "" || c.URI == "" || c.Response == "" {
		return Credentials{}, ErrMissingCredentialField
	}
	if c.Qop != "" && (c.Cnonce == "" || c.NC == "") {
		return Credentials{}, ErrMissingCredentialField
	}
	return c, nil
}

// splitDigestFields parses `key=value, key="quoted, value"` pairs,
// unescaping backslash-escapes inside quoted values.
func splitDigestFields(s string) map[string]string {
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
		key := strings.TrimSpace(s[start:i])
		i++ // skip '='
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
		out[strings.ToLower(key)] = val.String()
	}
	return out
}

// VerifyBasic checks a decoded Basic credential against the backend.
func (a *Authenticator) VerifyBasic(c Credentials) bool {
	if a.backend == nil {
		return false
	}
	return a.backend.ValidateBasic(a.realm, c.User, c.Password)
}

// VerifyDigest recomputes the expected response hash and compares it in
// constant time to the client-supplied one. method is the request method;
// the backend's Lookup value is used as HA1 as-is.
func (a *Authenticator) VerifyDigest(c Credentials, method string) (ok bool, stale bool, err error) {
	if stale, err = a.verifyNonce(c.Nonce); err != nil {
		return false, stale, err
	}
	if a.backend == nil {
		return false, false, ErrUnknownRealm
	}
	stored, found := a.backend.Lookup(a.realm, c.User)
	if !found {
		return false, false, ErrCredentialMismatch
	}
	ha1 := stored // backend.Lookup is documented to return an HA1-ready value for Digest realms
	ha2 := password.HA2(method, c.URI)

	var expected string
	if c.Qop != "" {
		expected = password.DigestResponseQop(ha1, c.Nonce, c.NC, c.Cnonce, c.Qop, ha2)
	} else {
		expected = password.DigestResponseLegacy(ha1, c.Nonce, ha2)
	}
	match := subtle.ConstantTimeCompare([]byte(expected), []byte(c.Response)) == 1
	return match, false, nil
}

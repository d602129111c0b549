/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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
 */

// Package password generates random secrets (used for session ids and
// digest-auth server nonces) and computes the MD5 digest-auth hash
// primitives consumed by package auth.
package password

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// LetterBytes is the alphabet Generate draws from: upper/lower letters,
// digits and a broad set of punctuation, so generated secrets carry
// enough entropy per character to keep output short.
const LetterBytes = `abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789,;:!?./*%^$&"'(-_)=+~#{[|` + "`" + `\^@]}`

// Generate returns a random string of length n drawn from LetterBytes,
// using crypto/rand so it is safe for session ids and nonce secrets.
func Generate(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = LetterBytes[randIdx()]
	}
	return string(out)
}

// randIdx returns a cryptographically random index into LetterBytes.
func randIdx() int {
	max := big.NewInt(int64(len(LetterBytes)))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failure means the platform RNG is broken; there is
		// no sane fallback for secret generation.
		panic(err)
	}
	return int(n.Int64())
}

// HA1 computes MD5(user:realm:password) hex-encoded, the digest-auth A1
// hash stored in the credential file in place of the plaintext password.
func HA1(user, realm, pass string) string {
	sum := md5.Sum([]byte(user + ":" + realm + ":" + pass))
	return hex.EncodeToString(sum[:])
}

// HA2 computes MD5(method:uri), the digest-auth A2 hash.
func HA2(method, uri string) string {
	sum := md5.Sum([]byte(method + ":" + uri))
	return hex.EncodeToString(sum[:])
}

// DigestResponseQop computes the expected response hash when a qop value
// is present: MD5(HA1:nonce:nc:cnonce:qop:HA2).
func DigestResponseQop(ha1, nonce, nc, cnonce, qop, ha2 string) string {
	sum := md5.Sum([]byte(ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":" + qop + ":" + ha2))
	return hex.EncodeToString(sum[:])
}

// DigestResponseLegacy computes the expected response hash when no qop
// is present: MD5(HA1:nonce:HA2), the RFC 2069 compatibility form RFC
// 2617 still allows.
func DigestResponseLegacy(ha1, nonce, ha2 string) string {
	sum := md5.Sum([]byte(ha1 + ":" + nonce + ":" + ha2))
	return hex.EncodeToString(sum[:])
}

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

// Package wire implements the HTTP/1.x request/status line parser and
// header folding rules. Grounded on
// original_source/src/receiver.c and original_source/src/uri.c.
package wire

import (
	"strings"
)

// Header is a case-insensitive header table. Keys are stored lowercased;
// duplicate insertions of the same key are joined with ", " per RFC 2616
// §4.2, matching original_source/src/receiver.c's header folding.
type Header map[string][]string

// NewHeader returns an empty header table.
func NewHeader() Header {
	return make(Header)
}

func normKey(key string) string {
	return strings.ToLower(key)
}

// Add appends value to key, folding into the existing entry.
func (h Header) Add(key, value string) {
	k := normKey(key)
	h[k] = append(h[k], value)
}

// Set replaces any existing values for key with value.
func (h Header) Set(key, value string) {
	h[normKey(key)] = []string{value}
}

// Get returns the folded (", "-joined) value for key, or "" if absent.
func (h Header) Get(key string) string {
	v, ok := h[normKey(key)]
	if !ok || len(v) == 0 {
		return ""
	}
	return strings.Join(v, ", ")
}

// Values returns the raw, unfolded list of values received for key.
func (h Header) Values(key string) []string {
	return h[normKey(key)]
}

// Has reports whether key was set at all.
func (h Header) Has(key string) bool {
	_, ok := h[normKey(key)]
	return ok
}

// Del removes key.
func (h Header) Del(key string) {
	delete(h, normKey(key))
}

// Count returns the number of distinct header names, used against the
// per-connection header-count limit.
func (h Header) Count() int {
	return len(h)
}

// validKeyChars rejects the characters original_source/src/receiver.c's
// header-key scanner refuses: '%', '<', '>', '/', '\\'.
func validKeyChars(key string) bool {
	for _, r := range key {
		switch r {
		case '%', '<', '>', '/', '\\':
			return false
		}
	}
	return true
}

// AddLine parses one already-unfolded "Key: Value" header line (leading/
// trailing whitespace on value trimmed) and adds it, rejecting invalid key
// characters and a duplicate Content-Length.
func (h Header) AddLine(key, value string) error {
	if !validKeyChars(key) {
		return ErrInvalidHeaderKey
	}
	k := normKey(key)
	if k == "content-length" && h.Has(k) {
		return ErrDuplicateContentLength
	}
	h.Add(k, strings.TrimSpace(value))
	return nil
}

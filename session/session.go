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

// Package session implements the cookie-keyed session store, backed by package cache's generic TTL cache. Values are
// opaque to the core: handlers read/write namespaced keys inside one
// session's own map.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nabbar/httpcore/cache"
)

// CookieName is the literal session-cookie name.
const CookieName = "-http-session-"

// SetCookieHeader renders the Set-Cookie header value that issues id to
// the client: path "/", HttpOnly always, Secure when the request arrived
// over TLS (spec §6).
func SetCookieHeader(id string, secure bool) string {
	v := CookieName + "=" + id + "; Path=/; HttpOnly"
	if secure {
		v += "; Secure"
	}
	return v
}

// Store owns one cache of session id -> namespaced key/value map.
type Store struct {
	c   cache.Cache[string, map[string]string]
	ttl time.Duration
}

// New returns a Store whose entries expire ttl after their last Touch.
func New(ctx context.Context, ttl time.Duration) *Store {
	return &Store{c: cache.New[string, map[string]string](ctx, ttl), ttl: ttl}
}

// Create mints a new session id and an empty backing map.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.c.Store(id, map[string]string{})
	return id
}

// Get returns the key/value map for id, and whether it was found
// (sessions past their TTL report false, same as a cache miss).
func (s *Store) Get(id string) (map[string]string, bool) {
	m, _, ok := s.c.Load(id)
	return m, ok
}

// Set stores value under key inside session id's namespace, creating the
// session if it does not already exist.
func (s *Store) Set(id, key, value string) {
	m, _, ok := s.c.Load(id)
	if !ok {
		m = map[string]string{}
	}
	m[key] = value
	s.c.Store(id, m)
}

// Delete removes one key from a session's namespace.
func (s *Store) Delete(id, key string) {
	m, _, ok := s.c.Load(id)
	if !ok {
		return
	}
	delete(m, key)
	s.c.Store(id, m)
}

// Touch refreshes id's TTL without altering its contents, by re-storing
// the unchanged value.
func (s *Store) Touch(id string) bool {
	m, _, ok := s.c.Load(id)
	if !ok {
		return false
	}
	s.c.Store(id, m)
	return true
}

// Destroy removes a session entirely (logout).
func (s *Store) Destroy(id string) {
	s.c.Delete(id)
}

// Close releases the underlying cache's expiry goroutine.
func (s *Store) Close() error {
	return s.c.Close()
}

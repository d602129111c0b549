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

package auth

import (
	"bufio"
	"crypto/subtle"
	"os"
	"strings"
	"sync"

	"github.com/nabbar/httpcore/password"
)

// fileEntry is one parsed credential line.
type fileEntry struct {
	enabled bool
	ha1     string
}

// FileBackend implements Backend by parsing a credential file in the
// "enabled:realm:user:password-or-HA1" format. It stores only
// HA1 values internally, computing HA1 from a plaintext password column
// on load if the value does not already look like a 32-character hex
// digest.
type FileBackend struct {
	mu      sync.RWMutex
	entries map[string]map[string]fileEntry // realm -> user -> entry
}

// LoadFile parses path and returns a ready FileBackend. Lines starting
// with '#' and blank lines are ignored.
func LoadFile(path string) (*FileBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b := &FileBackend{entries: make(map[string]map[string]fileEntry)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 4)
		if len(parts) != 4 {
			return nil, ErrBadCredentialFile
		}
		enabled, realm, user, secret := parts[0], parts[1], parts[2], parts[3]
		ha1 := secret
		if !looksLikeHA1(secret) {
			ha1 = password.HA1(user, realm, secret)
		}
		if b.entries[realm] == nil {
			b.entries[realm] = make(map[string]fileEntry)
		}
		b.entries[realm][user] = fileEntry{enabled: enabled == "1" || strings.EqualFold(enabled, "true"), ha1: ha1}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func looksLikeHA1(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') && !(c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// Lookup returns the stored HA1 for (realm, user) if enabled.
func (b *FileBackend) Lookup(realm, user string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[realm][user]
	if !ok || !e.enabled {
		return "", false
	}
	return e.ha1, true
}

// ValidateBasic recomputes HA1 from the supplied plaintext password and
// compares it to the stored one.
func (b *FileBackend) ValidateBasic(realm, user, pass string) bool {
	stored, ok := b.Lookup(realm, user)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password.HA1(user, realm, pass))) == 1
}

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
	"github.com/nabbar/httpcore/ldap"
)

// LDAPBackend adapts package ldap's HelperLDAP into a Backend, delegating
// Basic credential checks to an LDAP bind.
//
// LDAPBackend only supports Basic: a directory bind consumes the
// cleartext password, so it cannot answer Lookup with an HA1 suitable
// for Digest's challenge-response math.
type LDAPBackend struct {
	helper *ldap.HelperLDAP
}

// NewLDAPBackend wraps an already-configured HelperLDAP.
func NewLDAPBackend(h *ldap.HelperLDAP) *LDAPBackend {
	return &LDAPBackend{helper: h}
}

// Lookup always reports not-found: LDAPBackend never surfaces a stored
// secret, only a bind outcome.
func (l *LDAPBackend) Lookup(realm, user string) (string, bool) { return "", false }

// ValidateBasic binds to the directory as user with pass.
func (l *LDAPBackend) ValidateBasic(realm, user, pass string) bool {
	if l.helper == nil {
		return false
	}
	return l.helper.AuthUser(user, pass) == nil
}

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
	"github.com/msteinert/pam"
)

// PAMBackend delegates Basic credential checks to the host OS's PAM stack,
// grounded on original_source/src/pam.c's httpPamVerifyUser: a conversation
// handler that answers the echo-on prompt with the username and the
// echo-off prompt with the password, then calls pam_authenticate.
//
// PAMBackend only supports Basic, the same limitation LDAPBackend carries:
// PAM consumes the cleartext password directly and never yields a stored
// secret Digest's challenge-response math could use.
type PAMBackend struct {
	// Service names the PAM service configuration under /etc/pam.d to
	// authenticate against, mirroring pam.c's hard-coded "login" service.
	Service string
}

// NewPAMBackend returns a PAMBackend authenticating against the named PAM
// service. An empty service defaults to "login", matching pam.c.
func NewPAMBackend(service string) *PAMBackend {
	if service == "" {
		service = "login"
	}
	return &PAMBackend{Service: service}
}

// Lookup always reports not-found: like LDAPBackend, PAM never surfaces a
// stored secret, only an authenticate outcome.
func (p *PAMBackend) Lookup(realm, user string) (string, bool) { return "", false }

// ValidateBasic runs a PAM conversation against the host auth stack,
// answering every echo-on prompt with user and every echo-off prompt with
// pass, exactly as pam.c's pamChat callback does.
func (p *PAMBackend) ValidateBasic(realm, user, pass string) bool {
	t, err := pam.StartFunc(p.Service, user, func(s pam.Style, msg string) (string, error) {
		switch s {
		case pam.PromptEchoOn:
			return user, nil
		case pam.PromptEchoOff:
			return pass, nil
		default:
			return "", nil
		}
	})
	if err != nil {
		return false
	}
	defer t.End()
	return t.Authenticate(0) == nil
}

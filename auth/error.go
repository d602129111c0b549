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
	"github.com/nabbar/httpcore/errors"
)

const (
	ErrorMissingCredentialField errors.CodeError = iota + errors.MinPkgAuth
	ErrorMalformedAuthHeader
	ErrorStaleNonce
	ErrorBadNonce
	ErrorCredentialMismatch
	ErrorUnknownRealm
	ErrorBadCredentialFile
)

func init() {
	errors.RegisterIdFctMessage(ErrorMissingCredentialField, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case ErrorMissingCredentialField:
		return "digest credentials missing a required field"
	case ErrorMalformedAuthHeader:
		return "malformed Authorization header"
	case ErrorStaleNonce:
		return "nonce exceeded its staleness window"
	case ErrorBadNonce:
		return "nonce failed secret or realm verification"
	case ErrorCredentialMismatch:
		return "credential verification failed"
	case ErrorUnknownRealm:
		return "no backend configured for the given realm"
	case ErrorBadCredentialFile:
		return "malformed credential file line"
	}
	return ""
}

func isCodeError(err error, code errors.CodeError) bool {
	if e, ok := err.(errors.Error); ok {
		return e.HasCode(code)
	}
	return false
}

func IsCodeError(err error, code errors.CodeError) bool { return isCodeError(err, code) }

var (
	ErrMissingCredentialField = ErrorMissingCredentialField.Error()
	ErrMalformedAuthHeader    = ErrorMalformedAuthHeader.Error()
	ErrStaleNonce             = ErrorStaleNonce.Error()
	ErrBadNonce               = ErrorBadNonce.Error()
	ErrCredentialMismatch     = ErrorCredentialMismatch.Error()
	ErrUnknownRealm           = ErrorUnknownRealm.Error()
	ErrBadCredentialFile      = ErrorBadCredentialFile.Error()
)

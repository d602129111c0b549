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

package client

import (
	"github.com/nabbar/httpcore/errors"
)

const (
	ErrorInvalidURL errors.CodeError = iota + errors.MinPkgClient
	ErrorDialFailed
	ErrorWriteFailed
	ErrorReadFailed
	ErrorMalformedResponse
	ErrorTooManyRetries
	ErrorInvalidRedirect
)

func init() {
	errors.RegisterIdFctMessage(ErrorInvalidURL, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case ErrorInvalidURL:
		return "request target could not be parsed as a URL"
	case ErrorDialFailed:
		return "could not open a connection to the target host"
	case ErrorWriteFailed:
		return "failed writing the request onto the socket"
	case ErrorReadFailed:
		return "failed reading the response from the socket"
	case ErrorMalformedResponse:
		return "response status line or headers could not be parsed"
	case ErrorTooManyRetries:
		return "redirect and auth retries exceeded the combined cap"
	case ErrorInvalidRedirect:
		return "Location header could not be resolved against the request URL"
	}
	return ""
}

func IsCodeError(err error, code errors.CodeError) bool {
	return isCodeError(err, code)
}

func isCodeError(err error, code errors.CodeError) bool {
	if e, ok := err.(errors.Error); ok {
		return e.HasCode(code)
	}
	return false
}

var (
	ErrInvalidURL        = ErrorInvalidURL.Error()
	ErrDialFailed        = ErrorDialFailed.Error()
	ErrWriteFailed       = ErrorWriteFailed.Error()
	ErrReadFailed        = ErrorReadFailed.Error()
	ErrMalformedResponse = ErrorMalformedResponse.Error()
	ErrTooManyRetries    = ErrorTooManyRetries.Error()
	ErrInvalidRedirect   = ErrorInvalidRedirect.Error()
)

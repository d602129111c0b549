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

package wire

import "github.com/nabbar/httpcore/errors"

const (
	ErrorInvalidHeaderKey errors.CodeError = iota + errors.MinPkgWire
	ErrorDuplicateContentLength
	ErrorHeaderTooLarge
	ErrorMalformedRequestLine
	ErrorMalformedStatusLine
	ErrorUnsupportedVersion
)

// ErrInvalidHeaderKey, ErrDuplicateContentLength, ErrHeaderTooLarge,
// ErrMalformedRequestLine, ErrMalformedStatusLine and ErrUnsupportedVersion
// are the sentinel values returned by this package's parsers; wrap them
// with errors.CodeError.Error(parent) to attach context.
var (
	ErrInvalidHeaderKey       = ErrorInvalidHeaderKey.Error()
	ErrDuplicateContentLength = ErrorDuplicateContentLength.Error()
	ErrHeaderTooLarge         = ErrorHeaderTooLarge.Error()
	ErrMalformedRequestLine   = ErrorMalformedRequestLine.Error()
	ErrMalformedStatusLine    = ErrorMalformedStatusLine.Error()
	ErrUnsupportedVersion     = ErrorUnsupportedVersion.Error()
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorInvalidHeaderKey)
	errors.RegisterIdFctMessage(ErrorInvalidHeaderKey, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorInvalidHeaderKey:
		return "header key contains a disallowed character"
	case ErrorDuplicateContentLength:
		return "duplicate Content-Length header"
	case ErrorHeaderTooLarge:
		return "header block exceeds configured limit"
	case ErrorMalformedRequestLine:
		return "malformed request line"
	case ErrorMalformedStatusLine:
		return "malformed status line"
	case ErrorUnsupportedVersion:
		return "unsupported HTTP version"
	}

	return ""
}

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

// Package byterange parses and validates Range: bytes=... headers and
// renders Content-Range / multipart boundary framing for ranged responses
//. Grounded on original_source/src/rangeFilter.c.
package byterange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nabbar/httpcore/errors"
)

const (
	ErrorMalformedRange errors.CodeError = iota + errors.MinPkgWire + 200
	ErrorInvalidRangeSet
)

func init() {
	errors.RegisterIdFctMessage(ErrorMalformedRange, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case ErrorMalformedRange:
		return "malformed Range header"
	case ErrorInvalidRangeSet:
		return "range set fails ordering/overlap validation"
	}
	return ""
}

// ErrMalformedRange and ErrInvalidRangeSet are the sentinel parse/validate
// failures; both map to a 416 response at the caller.
var (
	ErrMalformedRange  = ErrorMalformedRange.Error()
	ErrInvalidRangeSet = ErrorInvalidRangeSet.Error()
)

// Range is one half-open [Start, End) byte interval, End exclusive.
// As Parse returns it, an open-ended "N-" range has End -1 and a "-N"
// suffix range carries only its length; Resolve fills in Start/End
// against a known entity length.
type Range struct {
	Start, End int64
	suffix     int64 // -N form: number of trailing bytes, resolved by Resolve
	isSuffix   bool
}

// Len returns End-Start once resolved.
func (r Range) Len() int64 { return r.End - r.Start }

// Parse parses a "bytes=spec[,spec...]" header value into an unresolved
// range list (suffix ranges still need Resolve against entity length).
func Parse(header string) ([]Range, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrMalformedRange
	}
	specs := strings.Split(header[len(prefix):], ",")
	out := make([]Range, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		dash := strings.IndexByte(s, '-')
		if dash < 0 {
			return nil, ErrMalformedRange
		}
		startTok, endTok := s[:dash], s[dash+1:]
		switch {
		case startTok == "" && endTok != "":
			n, err := strconv.ParseInt(endTok, 10, 64)
			if err != nil || n < 0 {
				return nil, ErrMalformedRange
			}
			out = append(out, Range{isSuffix: true, suffix: n})
		case startTok != "" && endTok == "":
			n, err := strconv.ParseInt(startTok, 10, 64)
			if err != nil || n < 0 {
				return nil, ErrMalformedRange
			}
			out = append(out, Range{Start: n, End: -1})
		case startTok != "" && endTok != "":
			start, err1 := strconv.ParseInt(startTok, 10, 64)
			end, err2 := strconv.ParseInt(endTok, 10, 64)
			if err1 != nil || err2 != nil || start > end {
				return nil, ErrMalformedRange
			}
			out = append(out, Range{Start: start, End: end + 1})
		default:
			return nil, ErrMalformedRange
		}
	}
	return out, nil
}

// Resolve fills in open-ended (End == -1) and suffix ranges against
// entityLength, then validates ordering: ranges must not overlap or
// precede an earlier range, and an open-ended range must be last.
func Resolve(ranges []Range, entityLength int64) ([]Range, error) {
	out := make([]Range, len(ranges))
	for i, r := range ranges {
		switch {
		case r.isSuffix:
			start := entityLength - r.suffix
			if start < 0 {
				start = 0
			}
			r.Start, r.End = start, entityLength
		case r.End == -1:
			r.End = entityLength
		}
		if r.Start > r.End || r.End > entityLength {
			return nil, ErrInvalidRangeSet
		}
		out[i] = r
	}
	for i := 1; i < len(out); i++ {
		if out[i].Start < out[i-1].End {
			return nil, ErrInvalidRangeSet
		}
	}
	for i := 0; i < len(out)-1; i++ {
		if out[i].End == entityLength {
			// a range reaching the end of the entity must be the last
			// range in the set.
			return nil, ErrInvalidRangeSet
		}
	}
	return out, nil
}

// ContentRange renders the Content-Range header value for a single range
// against an entity of the given total length.
func ContentRange(r Range, entityLength int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End-1, entityLength)
}

// MultipartHeader renders the boundary-delimited part header used when
// more than one range is requested.
func MultipartHeader(boundary, contentType string, r Range, entityLength int64) string {
	return fmt.Sprintf("--%s\r\nContent-Type: %s\r\nContent-Range: %s\r\n\r\n",
		boundary, contentType, ContentRange(r, entityLength))
}

// MultipartTrailer renders the closing boundary of a multipart/byteranges
// body.
func MultipartTrailer(boundary string) string {
	return fmt.Sprintf("--%s--\r\n", boundary)
}

// ContentType renders the Content-Type header value for a ranged response:
// a plain "bytes */N"-less passthrough type for single ranges, or the
// multipart/byteranges envelope type when len(ranges) > 1.
func ContentType(ranges []Range, boundary, originalType string) string {
	if len(ranges) <= 1 {
		return originalType
	}
	return fmt.Sprintf("multipart/byteranges; boundary=%s", boundary)
}

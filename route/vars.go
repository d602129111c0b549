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

package route

import (
	"strings"

	"github.com/nabbar/httpcore/rx"
)

// ExpandVars substitutes "${header:Name}" and "${field:Name}" tokens in
// template with the request's current header/form-variable values, and
// a bare "${name}" with the matching pattern token already captured into
// r.Form, grounded on original_source/src/route.c's expandTargetTokens.
func ExpandVars(template string, r *rx.Rx) string {
	var buf strings.Builder
	rest := template

	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			buf.WriteString(rest)
			break
		}
		buf.WriteString(rest[:start])

		end := strings.IndexByte(rest[start+2:], '}')
		if end < 0 {
			buf.WriteString(rest[start:])
			break
		}
		token := rest[start+2 : start+2+end]
		buf.WriteString(resolveToken(token, r))
		rest = rest[start+2+end+1:]
	}
	return buf.String()
}

func resolveToken(token string, r *rx.Rx) string {
	if key, value, ok := strings.Cut(token, ":"); ok {
		switch strings.ToLower(key) {
		case "header":
			return r.Header.Get(value)
		case "field":
			return r.Form[value]
		}
	}
	return r.Form[token]
}

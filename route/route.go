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

// Package route implements per-host request routing: an ordered list of
// URI-pattern/method/header/field-constrained routes, each ending in a
// target that selects a handler, issues a redirect, or rewrites the
// request path and restarts matching. Grounded on
// original_source/src/route.c and src/match.c, re-expressed with Go's
// regexp (RE2) in place of PCRE: named capture groups stand in for the
// source's numbered "{token}" substitutions, and regexp.ReplaceAllString
// stands in for the source's hand-rolled "$N"/"$name" replace().
package route

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nabbar/httpcore/rx"
)

// Result mirrors httpMatchRoute's three outcomes.
type Result uint8

const (
	// Reject means this route does not apply; the caller tries the next
	// one in the host's list.
	Reject Result = iota
	// OK means the route matched and its target has been applied.
	OK
	// Reroute means the target rewrote the request path and routing
	// must restart from the first route.
	Reroute
)

// MaxRewrites caps the number of REROUTE restarts a single request may
// trigger, matching original_source's HTTP_MAX_REWRITE guard against
// rewrite loops.
const MaxRewrites = 20

// Condition is a named boolean test a route can require before its
// target runs, looked up in a per-process registry the way
// httpDefineRouteCondition registers "missing"/"directory".
type Condition func(r *rx.Rx) bool

var conditions = map[string]Condition{}

// DefineCondition registers a named condition usable by any Route via
// AddCondition.
func DefineCondition(name string, fn Condition) { conditions[name] = fn }

type fieldConstraint struct {
	name    string
	pattern *regexp.Regexp
	not     bool
}

type conditionRef struct {
	name string
	not  bool
}

// Route is one entry in a Host's ordered route table.
type Route struct {
	Name string

	methods map[string]bool // nil/empty == any method

	pattern *regexp.Regexp
	tokens  []string

	headers []fieldConstraint
	fields  []fieldConstraint

	conds []conditionRef

	// HandlerName names the stage.Stage a Host looks up when this
	// route's target selects OK.
	HandlerName string

	// redirect target state, set by SetRedirect.
	redirectStatus int
	redirectDest   string

	// reroute target state, set by SetReroute.
	rerouteDest string

	// autoDelete marks uploads under this route for unlink at request
	// completion, mirroring original_source/src/location.c's
	// HttpLocation.autoDelete (set via httpSetLocationAutoDelete and
	// inherited by child locations).
	autoDelete bool
}

// New returns a named, unconstrained Route: matches any method, any
// path, and selects HandlerName "" (the caller must set one, or use
// SetRedirect/SetReroute instead).
func New(name string) *Route {
	return &Route{Name: name}
}

// SetMethods restricts the route to the given request methods
// (case-insensitive). An empty call leaves the route open to any
// method, mirroring httpSetRouteMethods' "*"/"ALL" sentinel.
func (rt *Route) SetMethods(methods ...string) {
	if len(methods) == 0 {
		rt.methods = nil
		return
	}
	rt.methods = make(map[string]bool, len(methods))
	for _, m := range methods {
		rt.methods[strings.ToUpper(m)] = true
	}
}

// SetPattern compiles pattern into an anchored regular expression.
// "{name}" extracts a named token into the request's form-variable map
// on a match; "(text)" marks text as optional, mirroring
// httpFinalizeRoute's "(" -> "(?:" / ")" -> ")?" rewrite.
func (rt *Route) SetPattern(pattern string) error {
	re, tokens, err := compilePattern(pattern)
	if err != nil {
		return ErrorBadPattern.Error(err)
	}
	rt.pattern = re
	rt.tokens = tokens
	return nil
}

// AddHeaderMatch requires header to match pattern (or, if not is true,
// requires it NOT to match) for the route to apply.
func (rt *Route) AddHeaderMatch(header, pattern string, not bool) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ErrorBadFieldPattern.Error(err)
	}
	rt.headers = append(rt.headers, fieldConstraint{name: strings.ToLower(header), pattern: re, not: not})
	return nil
}

// AddFieldMatch requires form field to match pattern (or, if not is
// true, requires it NOT to match) for the route to apply.
func (rt *Route) AddFieldMatch(field, pattern string, not bool) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ErrorBadFieldPattern.Error(err)
	}
	rt.fields = append(rt.fields, fieldConstraint{name: field, pattern: re, not: not})
	return nil
}

// AddCondition requires the named, previously-registered Condition to
// hold (or not hold, if not is true) for the route to apply.
func (rt *Route) AddCondition(name string, not bool) {
	rt.conds = append(rt.conds, conditionRef{name: name, not: not})
}

// SetRedirect configures a "redirect" target: status 0 rewrites the
// request path to dest and returns Reroute; a nonzero status is an
// external HTTP redirect the caller applies to its response (see
// NewRedirectHandler), returned as OK.
func (rt *Route) SetRedirect(status int, dest string) {
	rt.redirectStatus = status
	rt.redirectDest = dest
	if status != 0 {
		rt.HandlerName = redirectHandlerName(status, dest)
	}
}

// SetAutoDelete marks uploaded files under this route for unlink as soon
// as the request completes, instead of surviving for the handler to
// clean up or leak.
func (rt *Route) SetAutoDelete(enable bool) {
	rt.autoDelete = enable
}

// SetReroute configures a "route" target: unconditionally rewrites the
// request path to dest and restarts matching, mirroring routeTarget's
// rx->targetKey assignment without an external handler.
func (rt *Route) SetReroute(dest string) {
	rt.rerouteDest = dest
}

// match runs the full httpMatchRoute predicate chain against r: pattern,
// method, header constraints, field constraints, then conditions. A
// successful pattern match writes its named tokens into r.Form before
// any constraint can reject the route, matching the source's evaluation
// order (pattern captures are computed once, up front).
func (rt *Route) match(r *rx.Rx) (Result, string) {
	if rt.pattern != nil {
		m := rt.pattern.FindStringSubmatch(r.Path)
		if m == nil {
			return Reject, ""
		}
		for i, name := range rt.pattern.SubexpNames() {
			if name != "" && i < len(m) {
				r.Form[name] = m[i]
			}
		}
	}
	if len(rt.methods) > 0 && !rt.methods[strings.ToUpper(r.MethodRaw)] {
		return Reject, ""
	}
	for _, c := range rt.headers {
		if !matchConstraint(c, r.Header.Get(c.name)) {
			return Reject, ""
		}
	}
	for _, c := range rt.fields {
		if !matchConstraint(c, r.Form[c.name]) {
			return Reject, ""
		}
	}
	for _, c := range rt.conds {
		fn, ok := conditions[c.name]
		if !ok {
			return Reject, ""
		}
		rc := fn(r)
		if c.not {
			rc = !rc
		}
		if !rc {
			return Reject, ""
		}
	}

	if rt.rerouteDest != "" {
		return Reroute, ExpandVars(rt.rerouteDest, r)
	}
	if rt.redirectStatus == 0 && rt.redirectDest != "" {
		return Reroute, ExpandVars(rt.redirectDest, r)
	}
	return OK, ""
}

func matchConstraint(c fieldConstraint, value string) bool {
	rc := c.pattern.MatchString(value)
	if c.not {
		rc = !rc
	}
	return rc
}

// compilePattern converts a route pattern with "{name}" tokens and
// "(optional)" groups into an anchored Go regexp plus the ordered token
// names it captures.
func compilePattern(pattern string) (*regexp.Regexp, []string, error) {
	var buf strings.Builder
	var tokens []string

	buf.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '(':
			buf.WriteString("(?:")
		case ')':
			buf.WriteString(")?")
		case '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				buf.WriteByte(c)
				continue
			}
			token := pattern[i+1 : i+end]
			tokens = append(tokens, token)
			buf.WriteString("(?P<")
			buf.WriteString(sanitizeGroupName(token, len(tokens)))
			buf.WriteString(">[^/]*)")
			i += end
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('$')

	re, err := regexp.Compile(buf.String())
	if err != nil {
		return nil, nil, err
	}
	return re, tokens, nil
}

// sanitizeGroupName maps a route token to a valid, unique Go regexp
// capture-group name: token text when it is already a plain identifier,
// otherwise a positional fallback.
func sanitizeGroupName(token string, ord int) string {
	for _, c := range token {
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return "tok" + strconv.Itoa(ord)
		}
	}
	if token == "" {
		return "tok" + strconv.Itoa(ord)
	}
	return token
}

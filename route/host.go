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
	"github.com/nabbar/httpcore/pipeline"
	"github.com/nabbar/httpcore/rx"
	"github.com/nabbar/httpcore/stage"
)

// Host holds one virtual host's ordered route table plus the shared
// filter chain and connector every selected handler runs behind.
// Implements endpoint.HostRouter by structural typing: any Host can be
// assigned to an endpoint.Config's Hosts[i].Router field without this
// package importing endpoint.
type Host struct {
	Filters   []*stage.Stage
	Connector *stage.Stage

	routes   []*Route
	handlers map[string]*stage.Stage
}

// NewHost returns an empty Host ready for AddRoute/AddHandler calls.
func NewHost(connector *stage.Stage, filters ...*stage.Stage) *Host {
	return &Host{
		Connector: connector,
		Filters:   filters,
		handlers:  map[string]*stage.Stage{},
	}
}

// AddHandler registers a named handler stage routes can select via
// Route.HandlerName.
func (h *Host) AddHandler(st *stage.Stage) {
	h.handlers[st.Name] = st
}

// AddRoute appends rt to the host's route table, trying routes in the
// order added (httpRouteRequest walks conn->host->routes in list
// order). A route configured with SetRedirect(status, dest) for status
// != 0 has its generated redirect handler auto-registered here.
func (h *Host) AddRoute(rt *Route) {
	h.routes = append(h.routes, rt)
	if rt.redirectStatus != 0 {
		name := rt.HandlerName
		if _, ok := h.handlers[name]; !ok {
			h.handlers[name] = NewRedirectHandler(name, rt.redirectStatus, rt.redirectDest)
		}
	}
}

// Route implements the matching/rewrite loop httpRouteRequest drives:
// walk the route table from the top, apply each route's target on OK,
// restart from the top on Reroute (up to MaxRewrites), and reject the
// request with a false return when no route ever matches or matches a
// handler name nothing registered.
func (h *Host) Route(r *rx.Rx) (pipeline.Config, bool) {
	rewrites := 0
	for {
		var matched *Route
		rerouted := false
		for _, rt := range h.routes {
			result, rewritten := rt.match(r)
			switch result {
			case OK:
				matched = rt
			case Reroute:
				rewrites++
				if rewrites > MaxRewrites {
					return pipeline.Config{}, false
				}
				r.OriginalURI = rewritten
				r.Path = rewritten
				rerouted = true
			case Reject:
				continue
			}
			if result != Reject {
				break
			}
		}
		if rerouted {
			continue
		}
		if matched == nil {
			return pipeline.Config{}, false
		}
		st, ok := h.handlers[matched.HandlerName]
		if !ok {
			return pipeline.Config{}, false
		}
		r.Flags.AutoDelete = matched.autoDelete
		return pipeline.Config{Handler: st, Filters: h.Filters, Connector: h.Connector}, true
	}
}

package router

import (
	"strings"

	"github.com/hearthlabs/hearth/route"
)

// Endpoint binds a handler to a path pattern, a method set and the media
// types it consumes and produces.
type Endpoint struct {
	Pattern  *route.Pattern
	Methods  []string // empty matches any method
	Consumes []string // media types accepted; empty accepts anything
	Produces []string // media types offered; empty offers anything
	Handler  Handler
}

// MatchesMethod reports whether the endpoint serves the given method.
func (e *Endpoint) MatchesMethod(method string) bool {
	if len(e.Methods) == 0 {
		return true
	}
	for _, m := range e.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// MatchesConsumes reports whether the endpoint accepts the request media
// type. A request without a Content-Type matches any endpoint.
func (e *Endpoint) MatchesConsumes(contentType string) bool {
	if len(e.Consumes) == 0 || contentType == "" {
		return true
	}
	for _, c := range e.Consumes {
		if strings.EqualFold(c, contentType) {
			return true
		}
	}
	return false
}

// AcceptScore scores the endpoint against the request's Accept ranges. The
// boolean is false when nothing the endpoint produces is acceptable.
func (e *Endpoint) AcceptScore(ranges []route.MediaRange) (q float64, specificity int, ok bool) {
	if len(e.Produces) == 0 {
		// An unconstrained endpoint is acceptable to any client, at
		// minimal specificity.
		return 1, -1, true
	}
	specificity = -1
	for _, produced := range e.Produces {
		pq, ps, pok := route.NegotiateScore(produced, ranges)
		if !pok {
			continue
		}
		if pq > q || (pq == q && ps > specificity) {
			q, specificity, ok = pq, ps, true
		}
	}
	return q, specificity, ok
}

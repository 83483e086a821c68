package router

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthlabs/hearth/header"
	"github.com/hearthlabs/hearth/httperr"
	"github.com/hearthlabs/hearth/logger"
	"github.com/hearthlabs/hearth/message"
	"github.com/hearthlabs/hearth/route"
)

// Router is one ordered unit of the dispatch chain: a claim predicate, the
// endpoints it serves and the filters and handlers wrapped around them.
// Routers are immutable once the server is built and shared read-only
// across connections.
type Router struct {
	name      string
	predicate Predicate

	endpoints   []*Endpoint
	preFilters  []RequestFilter
	postFilters []RequestFilter
	respFilters []ResponseFilter

	notFound   NotFoundHandler
	errHandler ErrorHandler
}

// NewRouter builds an empty router claiming every request, with the
// default not-found and error handlers.
func NewRouter(name string) *Router {
	return &Router{
		name:       name,
		predicate:  ClaimAll,
		notFound:   defaultNotFound,
		errHandler: defaultErrorHandler,
	}
}

// Name identifies the router in logs.
func (r *Router) Name() string { return r.name }

// SetPredicate installs the claim predicate.
func (r *Router) SetPredicate(p Predicate) {
	if p != nil {
		r.predicate = p
	}
}

// SetNotFoundHandler replaces the not-found handler.
func (r *Router) SetNotFoundHandler(h NotFoundHandler) {
	if h != nil {
		r.notFound = h
	}
}

// SetErrorHandler replaces the error handler.
func (r *Router) SetErrorHandler(h ErrorHandler) {
	if h != nil {
		r.errHandler = h
	}
}

// AddEndpoint appends an endpoint. Insertion order breaks selection ties.
func (r *Router) AddEndpoint(e *Endpoint) {
	r.endpoints = append(r.endpoints, e)
}

// AddPreRoutingFilter appends a filter run before endpoint selection.
func (r *Router) AddPreRoutingFilter(f RequestFilter) {
	r.preFilters = append(r.preFilters, f)
}

// AddPostRoutingFilter appends a filter run after endpoint selection.
func (r *Router) AddPostRoutingFilter(f RequestFilter) {
	r.postFilters = append(r.postFilters, f)
}

// AddResponseFilter appends a filter run on the working response.
func (r *Router) AddResponseFilter(f ResponseFilter) {
	r.respFilters = append(r.respFilters, f)
}

// Claims consults the router's predicate.
func (r *Router) Claims(head *message.RequestHead) bool {
	return r.predicate.Claims(head)
}

// Serve runs the full filter pipeline for a claimed request and returns the
// final response, or a fatal error that closes the connection.
func (r *Router) Serve(c *Context) (*message.Response, error) {
	resp, err := r.produceResponse(c)
	return r.applyResponseFilters(c, resp, err)
}

// produceResponse runs pre-routing filters, endpoint selection, post-
// routing filters and the endpoint itself, yielding the working response.
func (r *Router) produceResponse(c *Context) (*message.Response, error) {
	for _, f := range r.preFilters {
		resp, err := f.Filter(c)
		if err != nil {
			return nil, wrapUserError(err)
		}
		if resp != nil {
			return resp, nil
		}
	}

	ep, match, err := r.selectEndpoint(c)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		resp, nfErr := r.notFound.HandleNotFound(c)
		if nfErr != nil {
			return nil, wrapUserError(nfErr)
		}
		if resp == nil {
			resp = message.NewResponse(message.StatusNotFound)
		}
		return resp, nil
	}

	c.PathParams = match.Params
	c.Wildcard = match.Wildcard

	for _, f := range r.postFilters {
		resp, ferr := f.Filter(c)
		if ferr != nil {
			return nil, wrapUserError(ferr)
		}
		if resp != nil {
			return resp, nil
		}
	}

	resp, err := ep.Handler.Handle(c)
	if err != nil {
		return nil, wrapUserError(err)
	}
	if resp == nil {
		return nil, httperr.Newf(httperr.KindUser, "endpoint for %s returned neither response nor error", c.Head.Path)
	}
	return resp, nil
}

// selectEndpoint narrows the endpoint set by path, method, consumes and
// produces. A nil endpoint with nil error means no path matched, leaving
// the decision to the not-found handler. Later-stage failures surface as
// kinded errors rendered from the standard response table.
func (r *Router) selectEndpoint(c *Context) (*Endpoint, *route.PathMatch, error) {
	var byPath []candidate
	for _, ep := range r.endpoints {
		if m, ok := ep.Pattern.Match(c.Head.Path); ok {
			byPath = append(byPath, candidate{ep, m})
		}
	}
	if len(byPath) == 0 {
		return nil, nil, nil
	}

	var byMethod []candidate
	for _, cand := range byPath {
		if cand.ep.MatchesMethod(c.Head.Method) {
			byMethod = append(byMethod, cand)
		}
	}
	if len(byMethod) == 0 {
		return nil, nil, &MethodNotAllowedError{Allow: allowedMethods(byPath)}
	}

	var byConsumes []candidate
	contentType := c.Head.ContentType()
	for _, cand := range byMethod {
		if cand.ep.MatchesConsumes(contentType) {
			byConsumes = append(byConsumes, cand)
		}
	}
	if len(byConsumes) == 0 {
		return nil, nil, httperr.Newf(httperr.KindUnsupportedMediaType, "no endpoint consumes %q", contentType)
	}

	ranges := route.ParseAccept(c.Head.Accept())
	var best *candidate
	bestQ, bestSpec := 0.0, -2
	for i := range byConsumes {
		cand := &byConsumes[i]
		q, spec, ok := cand.ep.AcceptScore(ranges)
		if !ok {
			continue
		}
		// Strictly-better wins, so insertion order keeps ties.
		if best == nil || q > bestQ || (q == bestQ && spec > bestSpec) {
			best, bestQ, bestSpec = cand, q, spec
		}
	}
	if best == nil {
		return nil, nil, httperr.Newf(httperr.KindNotAcceptable, "no endpoint produces an acceptable type for %q", c.Head.Accept())
	}
	return best.ep, best.match, nil
}

type candidate struct {
	ep    *Endpoint
	match *route.PathMatch
}

func allowedMethods(cands []candidate) []string {
	seen := map[string]bool{}
	var methods []string
	for _, cand := range cands {
		for _, m := range cand.ep.Methods {
			if !seen[m] {
				seen[m] = true
				methods = append(methods, m)
			}
		}
	}
	return methods
}

// MethodNotAllowedError carries the Allow set for the 405 response.
type MethodNotAllowedError struct {
	Allow []string
}

func (e *MethodNotAllowedError) Error() string {
	return "method not allowed; allowed: " + strings.Join(e.Allow, ", ")
}

func (e *MethodNotAllowedError) Unwrap() error {
	return httperr.New(httperr.KindMethodNotAllowed, nil)
}

// applyResponseFilters runs the response filter chain with error-handler
// recovery. invoked grows monotonically, so a filter runs at most once per
// request and the error handler cannot loop.
func (r *Router) applyResponseFilters(c *Context, resp *message.Response, err error) (*message.Response, error) {
	invoked := 0
	for {
		if err != nil {
			if kind := httperr.KindOf(err); kind.Fatal() {
				return nil, err
			}
			if selResp := selectionResponse(err); selResp != nil {
				resp, err = selResp, nil
			} else {
				recovered, herr := r.errHandler.HandleError(c, err)
				if herr != nil {
					return nil, wrapUserError(herr)
				}
				if recovered == nil {
					return nil, httperr.Newf(httperr.KindUser, "error handler returned neither response nor error")
				}
				resp, err = recovered, nil
			}
		}

		for err == nil && invoked < len(r.respFilters) {
			f := r.respFilters[invoked]
			invoked++
			newResp, ferr := f.Filter(c, resp)
			if ferr != nil {
				err = wrapUserError(ferr)
				break
			}
			if newResp != nil {
				resp = newResp
			}
		}
		if err == nil {
			return resp, nil
		}
	}
}

// selectionResponse renders the selection-stage failures (405, 415, 406)
// from the standard table; every other error goes to the error handler.
func selectionResponse(err error) *message.Response {
	var mna *MethodNotAllowedError
	if errors.As(err, &mna) {
		resp := message.NewResponse(message.StatusMethodNotAllowed)
		resp.Headers.Set(header.Allow, strings.Join(mna.Allow, ", "))
		return resp
	}
	switch httperr.KindOf(err) {
	case httperr.KindUnsupportedMediaType:
		return message.NewResponse(message.StatusUnsupportedMediaType)
	case httperr.KindNotAcceptable:
		return message.NewResponse(message.StatusNotAcceptable)
	}
	return nil
}

func wrapUserError(err error) error {
	var he *httperr.Error
	if errors.As(err, &he) {
		return err
	}
	var mna *MethodNotAllowedError
	if errors.As(err, &mna) {
		return err
	}
	return httperr.User(err)
}

var defaultNotFound = NotFoundHandlerFunc(func(c *Context) (*message.Response, error) {
	return message.NewResponse(message.StatusNotFound), nil
})

var defaultErrorHandler = ErrorHandlerFunc(func(c *Context, err error) (*message.Response, error) {
	c.Logger.Error("request-failed", zap.Error(err))
	return message.NewResponse(message.StatusInternalServerError), nil
})

// Chain is the ordered router list the driver dispatches through. The
// first router whose predicate claims the request serves it; when none
// claims, the fallback emits a bare 404.
type Chain struct {
	routers []*Router
	logger  logger.Logger
}

// NewChain builds a chain over routers.
func NewChain(routers []*Router, lg logger.Logger) *Chain {
	if lg == nil {
		lg = logger.NewNopLogger()
	}
	return &Chain{routers: routers, logger: lg}
}

// Dispatch walks the chain and runs the claiming router's pipeline.
func (ch *Chain) Dispatch(c *Context) (*message.Response, error) {
	for _, r := range ch.routers {
		if !r.Claims(c.Head) {
			continue
		}
		return r.Serve(c)
	}
	ch.logger.Debug("no-router-claimed", zap.String("path", c.Head.Path))
	return message.NewResponse(message.StatusNotFound), nil
}

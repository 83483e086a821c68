package router

import (
	"context"

	"github.com/hearthlabs/hearth/logger"
	"github.com/hearthlabs/hearth/message"
)

// Context is the per-request state handed to filters, endpoints and
// handlers. It is owned by the connection driver and borrowed for one
// request cycle; nothing in it survives the cycle.
type Context struct {
	// Head is the parsed request head. Path may be rewritten by
	// pre-routing filters.
	Head *message.RequestHead
	// Body is the read-once request body handle.
	Body *message.Body
	// Logger is a session logger scoped to this connection.
	Logger logger.Logger

	// PathParams holds the captures of the matched endpoint pattern.
	PathParams map[string]string
	// Wildcard holds the suffix a trailing "*" captured.
	Wildcard string

	ctx    context.Context
	values map[string]interface{}
}

// NewContext builds a request context. ctx carries the host's shutdown
// signal; endpoints observe it through Context().Done().
func NewContext(ctx context.Context, head *message.RequestHead, body *message.Body, lg logger.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if lg == nil {
		lg = logger.NewNopLogger()
	}
	return &Context{Head: head, Body: body, Logger: lg, ctx: ctx}
}

// Context returns the host-provided signal context.
func (c *Context) Context() context.Context { return c.ctx }

// Set stores a per-request value shared between filters and the endpoint.
func (c *Context) Set(key string, value interface{}) {
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	c.values[key] = value
}

// Value retrieves a per-request value, or nil.
func (c *Context) Value(key string) interface{} {
	return c.values[key]
}

// Param returns one path parameter capture, or "".
func (c *Context) Param(name string) string {
	return c.PathParams[name]
}

// Predicate decides whether a router claims a request.
type Predicate interface {
	Claims(head *message.RequestHead) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(head *message.RequestHead) bool

func (f PredicateFunc) Claims(head *message.RequestHead) bool { return f(head) }

// ClaimAll claims every request. It is the default predicate.
var ClaimAll = PredicateFunc(func(*message.RequestHead) bool { return true })

// ClaimHost claims requests whose Host (without port) equals host.
func ClaimHost(host string) Predicate {
	return PredicateFunc(func(head *message.RequestHead) bool {
		h := head.Host
		for i := 0; i < len(h); i++ {
			if h[i] == ':' {
				h = h[:i]
				break
			}
		}
		return h == host
	})
}

// ClaimPathPrefix claims requests whose path starts with prefix.
func ClaimPathPrefix(prefix string) Predicate {
	return PredicateFunc(func(head *message.RequestHead) bool {
		return len(head.Path) >= len(prefix) && head.Path[:len(prefix)] == prefix
	})
}

// Handler is an endpoint implementation.
type Handler interface {
	Handle(c *Context) (*message.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(c *Context) (*message.Response, error)

func (f HandlerFunc) Handle(c *Context) (*message.Response, error) { return f(c) }

// RequestFilter runs before (pre-routing) or after (post-routing) endpoint
// selection. Returning a non-nil Response aborts the pipeline with it;
// returning (nil, nil) continues.
type RequestFilter interface {
	Filter(c *Context) (*message.Response, error)
}

// RequestFilterFunc adapts a function to RequestFilter.
type RequestFilterFunc func(c *Context) (*message.Response, error)

func (f RequestFilterFunc) Filter(c *Context) (*message.Response, error) { return f(c) }

// ResponseFilter runs after the working response exists and may rewrite it.
// Returning nil keeps the current response. Each response filter runs at
// most once per request, even across error-handler re-entries.
type ResponseFilter interface {
	Filter(c *Context, resp *message.Response) (*message.Response, error)
}

// ResponseFilterFunc adapts a function to ResponseFilter.
type ResponseFilterFunc func(c *Context, resp *message.Response) (*message.Response, error)

func (f ResponseFilterFunc) Filter(c *Context, resp *message.Response) (*message.Response, error) {
	return f(c, resp)
}

// ErrorHandler recovers a failed request into a response. Returning an
// error instead is fatal for the connection: nothing is written and the
// error propagates out of HandleConnection.
type ErrorHandler interface {
	HandleError(c *Context, err error) (*message.Response, error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(c *Context, err error) (*message.Response, error)

func (f ErrorHandlerFunc) HandleError(c *Context, err error) (*message.Response, error) {
	return f(c, err)
}

// NotFoundHandler produces the response when no endpoint's path pattern
// matches the request path. Method, Content-Type and Accept mismatches on a
// matched path are answered with 405, 415 and 406 instead.
type NotFoundHandler interface {
	HandleNotFound(c *Context) (*message.Response, error)
}

// NotFoundHandlerFunc adapts a function to NotFoundHandler.
type NotFoundHandlerFunc func(c *Context) (*message.Response, error)

func (f NotFoundHandlerFunc) HandleNotFound(c *Context) (*message.Response, error) {
	return f(c)
}

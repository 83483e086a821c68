package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hearthlabs/hearth/config"
	"github.com/hearthlabs/hearth/errorwriter"
	"github.com/hearthlabs/hearth/logger"
	"github.com/hearthlabs/hearth/metrics"
	"github.com/hearthlabs/hearth/route"
	"github.com/hearthlabs/hearth/router"
)

// Builder assembles a Server. All configuration happens here; Build
// freezes the result into an immutable Server shared across connections.
// Builders are not safe for concurrent use.
type Builder struct {
	cfg       *config.Config
	lg        logger.Logger
	reporter  metrics.Reporter
	errWriter errorwriter.ErrorWriter
	baseCtx   context.Context

	routers       []*router.Router
	defaultRouter *router.Router

	err error
}

// NewBuilder starts from the default configuration.
func NewBuilder() *Builder {
	return NewBuilderWithConfig(config.DefaultConfig())
}

// NewBuilderWithConfig starts from cfg, which the builder owns from here.
func NewBuilderWithConfig(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Logger sets the component logger.
func (b *Builder) Logger(lg logger.Logger) *Builder {
	b.lg = lg
	return b
}

// Reporter sets the metrics reporter.
func (b *Builder) Reporter(r metrics.Reporter) *Builder {
	b.reporter = r
	return b
}

// ErrorWriter sets the renderer for framing-level 4xx replies.
func (b *Builder) ErrorWriter(ew errorwriter.ErrorWriter) *Builder {
	b.errWriter = ew
	return b
}

// BaseContext installs the host's shutdown signal; endpoints observe it via
// Context().Done().
func (b *Builder) BaseContext(ctx context.Context) *Builder {
	b.baseCtx = ctx
	return b
}

// AddRouter appends a configured router to the dispatch chain. Routers are
// consulted in insertion order.
func (b *Builder) AddRouter(r *router.Router) *Builder {
	b.routers = append(b.routers, r)
	return b
}

// Router returns the builder's default router, creating and appending it on
// first use. The Route helpers below register against it.
func (b *Builder) Router() *router.Router {
	if b.defaultRouter == nil {
		b.defaultRouter = router.NewRouter("default")
		b.routers = append(b.routers, b.defaultRouter)
	}
	return b.defaultRouter
}

// RouteOption refines an endpoint registration.
type RouteOption func(*router.Endpoint)

// Produces constrains the media types the endpoint offers.
func Produces(types ...string) RouteOption {
	return func(e *router.Endpoint) { e.Produces = types }
}

// Consumes constrains the request media types the endpoint accepts.
func Consumes(types ...string) RouteOption {
	return func(e *router.Endpoint) { e.Consumes = types }
}

// Route registers a handler for method and pattern on the default router.
func (b *Builder) Route(method, pattern string, h router.Handler, opts ...RouteOption) *Builder {
	p, err := route.ParsePattern(pattern)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	ep := &router.Endpoint{
		Pattern: p,
		Methods: []string{strings.ToUpper(method)},
		Handler: h,
	}
	for _, opt := range opts {
		opt(ep)
	}
	b.Router().AddEndpoint(ep)
	return b
}

// RouteAny registers a handler for every method.
func (b *Builder) RouteAny(pattern string, h router.Handler, opts ...RouteOption) *Builder {
	p, err := route.ParsePattern(pattern)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	ep := &router.Endpoint{Pattern: p, Handler: h}
	for _, opt := range opts {
		opt(ep)
	}
	b.Router().AddEndpoint(ep)
	return b
}

// RouteGET registers a GET handler on the default router.
func (b *Builder) RouteGET(pattern string, h router.Handler, opts ...RouteOption) *Builder {
	return b.Route("GET", pattern, h, opts...)
}

// RoutePOST registers a POST handler on the default router.
func (b *Builder) RoutePOST(pattern string, h router.Handler, opts ...RouteOption) *Builder {
	return b.Route("POST", pattern, h, opts...)
}

// RoutePUT registers a PUT handler on the default router.
func (b *Builder) RoutePUT(pattern string, h router.Handler, opts ...RouteOption) *Builder {
	return b.Route("PUT", pattern, h, opts...)
}

// RouteDELETE registers a DELETE handler on the default router.
func (b *Builder) RouteDELETE(pattern string, h router.Handler, opts ...RouteOption) *Builder {
	return b.Route("DELETE", pattern, h, opts...)
}

// PreRoutingFilter appends a pre-routing filter to the default router.
func (b *Builder) PreRoutingFilter(f router.RequestFilter) *Builder {
	b.Router().AddPreRoutingFilter(f)
	return b
}

// PostRoutingFilter appends a post-routing filter to the default router.
func (b *Builder) PostRoutingFilter(f router.RequestFilter) *Builder {
	b.Router().AddPostRoutingFilter(f)
	return b
}

// ResponseFilter appends a response filter to the default router.
func (b *Builder) ResponseFilter(f router.ResponseFilter) *Builder {
	b.Router().AddResponseFilter(f)
	return b
}

// NotFoundHandler replaces the default router's not-found handler.
func (b *Builder) NotFoundHandler(h router.NotFoundHandler) *Builder {
	b.Router().SetNotFoundHandler(h)
	return b
}

// ErrorHandler replaces the default router's error handler.
func (b *Builder) ErrorHandler(h router.ErrorHandler) *Builder {
	b.Router().SetErrorHandler(h)
	return b
}

// KeepAliveTimeout sets the idle deadline between requests; zero disables
// keep-alive.
func (b *Builder) KeepAliveTimeout(d time.Duration) *Builder {
	b.cfg.KeepAliveTimeout = d
	return b
}

// ReadTimeout sets the per-read deadline during a request.
func (b *Builder) ReadTimeout(d time.Duration) *Builder {
	b.cfg.ReadTimeout = d
	return b
}

// WriteTimeout sets the per-write deadline.
func (b *Builder) WriteTimeout(d time.Duration) *Builder {
	b.cfg.WriteTimeout = d
	return b
}

// MaxHeadSize bounds the request line plus headers.
func (b *Builder) MaxHeadSize(bytes int) *Builder {
	b.cfg.MaxHeadBytes = bytes
	return b
}

// MaxHeaderCount bounds the number of request header fields.
func (b *Builder) MaxHeaderCount(n int) *Builder {
	b.cfg.MaxHeaderCount = n
	return b
}

// MaxRequestsPerConn caps requests served per connection; zero is
// unlimited.
func (b *Builder) MaxRequestsPerConn(n int) *Builder {
	b.cfg.MaxRequestsPerConn = n
	return b
}

// Compression enables gzip/deflate wrapping for responses that opt in.
func (b *Builder) Compression(enabled bool) *Builder {
	b.cfg.EnableCompression = enabled
	return b
}

// EnableHTTP10 accepts HTTP/1.0 request lines.
func (b *Builder) EnableHTTP10(enabled bool) *Builder {
	b.cfg.EnableHTTP10 = enabled
	return b
}

// Build validates the configuration and freezes the Server.
func (b *Builder) Build() (*Server, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.cfg.Process(); err != nil {
		return nil, err
	}
	if len(b.routers) == 0 {
		return nil, fmt.Errorf("server: no routers configured")
	}

	lg := b.lg
	if lg == nil {
		lg = logger.NewNopLogger()
	}
	reporter := b.reporter
	if reporter == nil {
		reporter = metrics.NullReporter{}
	}
	ew := b.errWriter
	if ew == nil {
		ew = errorwriter.NewPlaintextErrorWriter()
	}
	baseCtx := b.baseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	return &Server{
		cfg:       b.cfg,
		chain:     router.NewChain(b.routers, lg),
		logger:    lg,
		reporter:  reporter,
		errWriter: ew,
		baseCtx:   baseCtx,
	}, nil
}

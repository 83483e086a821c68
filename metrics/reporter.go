package metrics

import "time"

// Reporter receives the driver's traffic events. Implementations must be
// safe for concurrent use; one Reporter is shared across connections.
type Reporter interface {
	CaptureRequest()
	CaptureResponse(statusCode int, d time.Duration)
	CaptureBadRequest()
	CaptureWebSocketUpgrade()
	CaptureConnectionReuse()
}

// NullReporter drops every event.
type NullReporter struct{}

func (NullReporter) CaptureRequest()                    {}
func (NullReporter) CaptureResponse(int, time.Duration) {}
func (NullReporter) CaptureBadRequest()                 {}
func (NullReporter) CaptureWebSocketUpgrade()           {}
func (NullReporter) CaptureConnectionReuse()            {}

// CompositeReporter fans events out to several reporters.
type CompositeReporter struct {
	reporters []Reporter
}

func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) CaptureRequest() {
	for _, r := range c.reporters {
		r.CaptureRequest()
	}
}

func (c *CompositeReporter) CaptureResponse(statusCode int, d time.Duration) {
	for _, r := range c.reporters {
		r.CaptureResponse(statusCode, d)
	}
}

func (c *CompositeReporter) CaptureBadRequest() {
	for _, r := range c.reporters {
		r.CaptureBadRequest()
	}
}

func (c *CompositeReporter) CaptureWebSocketUpgrade() {
	for _, r := range c.reporters {
		r.CaptureWebSocketUpgrade()
	}
}

func (c *CompositeReporter) CaptureConnectionReuse() {
	for _, r := range c.reporters {
		r.CaptureConnectionReuse()
	}
}

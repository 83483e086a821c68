package metrics

import (
	"fmt"
	"time"

	mr "code.cloudfoundry.org/go-metric-registry"
)

// Metrics is the prometheus-backed Reporter.
type Metrics struct {
	Requests          mr.Counter
	Responses         mr.CounterVec
	BadRequests       mr.Counter
	WebsocketUpgrades mr.Counter
	ConnectionReuse   mr.Counter
	ResponseLatency   mr.Histogram
}

var _ Reporter = &Metrics{}

// NewMetrics registers the library's meters on registry.
func NewMetrics(registry *mr.Registry, latencyBuckets []float64) *Metrics {
	if len(latencyBuckets) == 0 {
		latencyBuckets = []float64{1, 5, 10, 50, 100, 500, 1000, 5000}
	}
	return &Metrics{
		Requests:          registry.NewCounter("total_requests", "number of requests processed"),
		Responses:         registry.NewCounterVec("responses", "number of responses", []string{"status_group"}),
		BadRequests:       registry.NewCounter("rejected_requests", "number of rejected requests"),
		WebsocketUpgrades: registry.NewCounter("websocket_upgrades", "number of websocket upgrades"),
		ConnectionReuse:   registry.NewCounter("keepalive_reuses", "number of keep-alive connection reuses"),
		ResponseLatency:   registry.NewHistogram("response_latency", "response latency in ms", latencyBuckets),
	}
}

func (m *Metrics) CaptureRequest() {
	m.Requests.Add(1)
}

func (m *Metrics) CaptureResponse(statusCode int, d time.Duration) {
	m.Responses.Add(1, []string{statusGroupName(statusCode)})
	m.ResponseLatency.Observe(float64(d) / float64(time.Millisecond))
}

func (m *Metrics) CaptureBadRequest() {
	m.BadRequests.Add(1)
}

func (m *Metrics) CaptureWebSocketUpgrade() {
	m.WebsocketUpgrades.Add(1)
}

func (m *Metrics) CaptureConnectionReuse() {
	m.ConnectionReuse.Add(1)
}

func statusGroupName(statusCode int) string {
	group := statusCode / 100
	if group >= 1 && group <= 5 {
		return fmt.Sprintf("%dxx", group)
	}
	return "other"
}

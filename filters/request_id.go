package filters

import (
	"go.uber.org/zap"

	"github.com/hearthlabs/hearth/message"
	"github.com/hearthlabs/hearth/router"
	"github.com/hearthlabs/hearth/uuid"
)

const (
	// RequestIdHeader carries the per-request correlation id.
	RequestIdHeader = "X-Request-Id"
)

type setRequestIdHeader struct{}

// NewRequestId returns a pre-routing filter that stamps each request with
// a generated id, unless the client already sent one.
func NewRequestId() router.RequestFilter {
	return &setRequestIdHeader{}
}

func (s *setRequestIdHeader) Filter(c *router.Context) (*message.Response, error) {
	if c.Head.Headers.Get(RequestIdHeader) != "" {
		return nil, nil
	}
	guid, err := uuid.GenerateUUID()
	if err != nil {
		c.Logger.Error("failed-to-generate-request-id", zap.Error(err))
		return nil, nil
	}
	c.Head.Headers.Set(RequestIdHeader, guid)
	c.Logger.Debug("request-id-header-set", zap.String(RequestIdHeader, guid))
	return nil, nil
}

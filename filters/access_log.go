package filters

import (
	"go.uber.org/zap"

	"github.com/hearthlabs/hearth/message"
	"github.com/hearthlabs/hearth/router"
)

type accessLog struct{}

// NewAccessLog returns a response filter that logs one structured entry per
// request once the working response is known.
func NewAccessLog() router.ResponseFilter {
	return &accessLog{}
}

func (a *accessLog) Filter(c *router.Context, resp *message.Response) (*message.Response, error) {
	c.Logger.Info("access",
		zap.String("method", c.Head.Method),
		zap.String("path", c.Head.Path),
		zap.String("host", c.Head.Host),
		zap.Int("status", resp.Status),
		zap.String("request_id", c.Head.Headers.Get(RequestIdHeader)),
	)
	return nil, nil
}

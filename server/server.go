package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hearthlabs/hearth/config"
	"github.com/hearthlabs/hearth/conn"
	"github.com/hearthlabs/hearth/errorwriter"
	"github.com/hearthlabs/hearth/framing"
	"github.com/hearthlabs/hearth/header"
	"github.com/hearthlabs/hearth/httperr"
	"github.com/hearthlabs/hearth/logger"
	"github.com/hearthlabs/hearth/message"
	"github.com/hearthlabs/hearth/metrics"
	"github.com/hearthlabs/hearth/router"
)

// Server is the immutable connection processor produced by a Builder. It
// owns no sockets and spawns no goroutines; the host hands it established
// streams and picks the concurrency. HandleConnection is safe to call from
// many goroutines at once.
type Server struct {
	cfg       *config.Config
	chain     *router.Chain
	logger    logger.Logger
	reporter  metrics.Reporter
	errWriter errorwriter.ErrorWriter
	baseCtx   context.Context
}

// HandleConnection processes HTTP/1.1 exchanges on raw until the peer
// closes, keep-alive ends, or a fatal error occurs. The connection is
// always closed on return.
func (s *Server) HandleConnection(raw conn.RawConn) error {
	c := conn.New(raw, s.cfg)
	defer c.Shutdown()

	lg := s.logger.Session("conn")
	served := 0

	for {
		head, err := framing.ParseRequestHead(c, s.cfg, s.idleTimeout())
		if err == framing.ErrCleanClose {
			return nil
		}
		if err != nil {
			return s.rejectRequest(c, err, lg)
		}

		body := framing.NewRequestBody(c, head, s.cfg)
		ctx := router.NewContext(s.baseCtx, head, body, lg)

		s.reporter.CaptureRequest()
		started := time.Now()
		resp, err := s.chain.Dispatch(ctx)
		if err != nil {
			c.Taint(err)
			lg.Error("pipeline-failed", zap.Error(err))
			return err
		}
		if ferr := body.Failed(); ferr != nil {
			c.Taint(ferr)
			lg.Error("request-body-failed", zap.Error(ferr))
			return ferr
		}

		if resp.IsUpgrade() {
			return s.switchProtocols(c, head, resp, lg)
		}

		served++
		closing := s.decideClose(head, body, resp, served)

		if err := framing.WriteResponse(c, head, resp, s.cfg, closing); err != nil {
			c.Taint(err)
			lg.Error("response-write-failed", zap.Error(err))
			return err
		}
		s.reporter.CaptureResponse(resp.Status, time.Since(started))

		if !body.FullyRead() {
			if head.ExpectContinue && body.FirstReadHookPending() {
				// The interim response never went out, so the client may
				// not have sent the body yet. The stream position is
				// unknowable; give the connection up.
				return nil
			}
			drained, derr := body.Drain(s.cfg.MaxDrainBytes)
			if derr != nil {
				c.Taint(derr)
				lg.Error("request-body-drain-failed", zap.Error(derr))
				return derr
			}
			if !drained {
				lg.Debug("drain-cap-reached")
				return nil
			}
		}

		if closing {
			return nil
		}
		s.reporter.CaptureConnectionReuse()
	}
}

// idleTimeout picks the first-byte deadline: the keep-alive timeout governs
// the wait between requests, falling back to the read timeout.
func (s *Server) idleTimeout() time.Duration {
	if s.cfg.KeepAliveTimeout > 0 {
		return s.cfg.KeepAliveTimeout
	}
	return s.cfg.ReadTimeout
}

// rejectRequest answers a parse failure with its 4xx when the connection is
// still writable, then reports the failure to the caller.
func (s *Server) rejectRequest(c *conn.Conn, err error, lg logger.Logger) error {
	kind := httperr.KindOf(err)
	s.reporter.CaptureBadRequest()

	if code := kind.StatusCode(); code != 0 && !c.Tainted() {
		resp := s.errWriter.WriteError(code, err.Error(), lg)
		synthetic := &message.RequestHead{Method: "GET", Headers: &header.Header{}}
		if werr := framing.WriteResponse(c, synthetic, resp, s.cfg, true); werr != nil {
			lg.Debug("reject-write-failed", zap.Error(werr))
		}
	} else {
		lg.Debug("request-rejected-silently", zap.String("kind", kind.String()), zap.Error(err))
	}
	return err
}

// decideClose applies the keep-alive rules for the exchange about to be
// written.
func (s *Server) decideClose(head *message.RequestHead, body *message.Body, resp *message.Response, served int) bool {
	if s.cfg.KeepAliveTimeout == 0 {
		return true
	}
	if !head.ProtoAtLeast11() && !head.WantsKeepAlive() {
		return true
	}
	if head.WantsClose() {
		return true
	}
	if header.HasToken(resp.Headers.Get(header.Connection), header.TokenClose) {
		return true
	}
	if s.cfg.MaxRequestsPerConn > 0 && served >= s.cfg.MaxRequestsPerConn {
		return true
	}
	// An expect-100 body that was never requested leaves the stream in an
	// unknown state once the final response goes out.
	if head.ExpectContinue && body.FirstReadHookPending() && !body.FullyRead() {
		return true
	}
	return false
}

// switchProtocols finishes a 101 upgrade: complete the websocket accept
// key when the endpoint left it out, flush the head and hand the raw
// stream to the upgrade callback.
func (s *Server) switchProtocols(c *conn.Conn, head *message.RequestHead, resp *message.Response, lg logger.Logger) error {
	if key := head.Headers.Get(header.SecWebSocketKey); key != "" && !resp.Headers.Has(header.SecWebSocketAccept) {
		resp.Headers.Set(header.SecWebSocketAccept, framing.WebSocketAcceptKey(key))
	}

	if err := framing.WriteResponse(c, head, resp, s.cfg, false); err != nil {
		c.Taint(err)
		lg.Error("upgrade-write-failed", zap.Error(err))
		return err
	}
	s.reporter.CaptureWebSocketUpgrade()
	lg.Info("protocol-switched", zap.String("upgrade", resp.Headers.Get(header.Upgrade)))
	return resp.Upgrade(c.Raw())
}

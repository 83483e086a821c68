package framing

import (
	"io"

	"github.com/hearthlabs/hearth/config"
	"github.com/hearthlabs/hearth/conn"
	"github.com/hearthlabs/hearth/header"
	"github.com/hearthlabs/hearth/httperr"
	"github.com/hearthlabs/hearth/message"
)

// NewRequestBody builds the read-once body handle for head over c, wiring
// the framing chosen by interpretHeaders and, when requested, the deferred
// 100 Continue emission.
func NewRequestBody(c *conn.Conn, head *message.RequestHead, cfg *config.Config) *message.Body {
	var body *message.Body

	switch {
	case head.Chunked:
		cr := newChunkedReader(c.Reader(), c.PrepareDefaultRead, func(trailers *header.Header) {
			head.Trailers = trailers
		})
		body = message.NewBody(cr)
	case head.ContentLength > 0:
		body = message.NewBody(&fixedBody{
			c:       c,
			remain:  head.ContentLength,
			prepare: c.PrepareDefaultRead,
		})
	default:
		body = message.NewBody(nil)
	}

	if head.ExpectContinue {
		body.OnFirstRead(func() error {
			return WriteContinue(c)
		})
	}
	return body
}

// WriteContinue emits the interim 100 status line and flushes it.
func WriteContinue(c *conn.Conn) error {
	if err := c.WriteAll([]byte("HTTP/1.1 100 Continue\r\n\r\n")); err != nil {
		return err
	}
	return c.Flush()
}

// fixedBody reads exactly remain bytes; EOF any earlier is unexpected.
type fixedBody struct {
	c       *conn.Conn
	remain  int64
	prepare func() error
}

func (f *fixedBody) Read(p []byte) (int, error) {
	if f.remain <= 0 {
		return 0, io.EOF
	}
	if err := f.prepare(); err != nil {
		return 0, httperr.New(httperr.KindIO, err)
	}
	if int64(len(p)) > f.remain {
		p = p[:f.remain]
	}
	n, err := f.c.Reader().Read(p)
	f.remain -= int64(n)
	if err != nil {
		if err == io.EOF {
			return n, httperr.New(httperr.KindUnexpectedEOF, io.ErrUnexpectedEOF)
		}
		return n, conn.ClassifyReadError(err)
	}
	if f.remain == 0 {
		return n, io.EOF
	}
	return n, nil
}

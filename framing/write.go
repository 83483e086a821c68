package framing

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hearthlabs/hearth/config"
	"github.com/hearthlabs/hearth/conn"
	"github.com/hearthlabs/hearth/header"
	"github.com/hearthlabs/hearth/httperr"
	"github.com/hearthlabs/hearth/message"
)

// WriteResponse serializes resp onto c for the request described by req.
// closing makes the head advertise Connection: close. On return the response
// is fully written and flushed, or the error explains why the connection is
// no longer usable.
func WriteResponse(c *conn.Conn, req *message.RequestHead, resp *message.Response, cfg *config.Config, closing bool) error {
	if err := resp.Validate(); err != nil {
		return httperr.New(httperr.KindIO, err)
	}

	if resp.IsUpgrade() {
		return writeHead(c, resp, cfg, false, false, -1)
	}

	encoding := ""
	if resp.Compress && cfg.EnableCompression && resp.BodyKind() != message.BodyNone {
		encoding = chooseEncoding(req.Headers.Get(header.AcceptEncoding))
	}

	chunked := resp.BodyKind() == message.BodyStream || encoding != ""
	var contentLength int64
	switch resp.BodyKind() {
	case message.BodyNone:
		contentLength = 0
	case message.BodyBytes:
		contentLength = int64(len(resp.BodyBytes()))
	case message.BodyReader:
		_, contentLength = resp.BodyReader()
	case message.BodyStream:
		contentLength = -1
	}
	if chunked {
		contentLength = -1
	}

	if chunked {
		// A stale length header would corrupt chunked framing.
		resp.Headers.Del(header.ContentLength)
	}
	if encoding != "" {
		resp.Headers.Set(header.ContentEncoding, encoding)
	}

	if err := writeHead(c, resp, cfg, closing, chunked, contentLength); err != nil {
		return err
	}

	// HEAD responses carry the framing headers but no payload.
	if req.Method == "HEAD" {
		return c.Flush()
	}

	if err := writeBody(c, resp, chunked, encoding, contentLength); err != nil {
		c.Taint(err)
		return err
	}
	return c.Flush()
}

// writeHead emits the status line and header block. Date, Server and the
// body framing headers are added when absent; everything the response
// already carries goes out verbatim in insertion order.
func writeHead(c *conn.Conn, resp *message.Response, cfg *config.Config, closing, chunked bool, contentLength int64) error {
	if err := c.CheckWritable(); err != nil {
		return err
	}
	w := c.Writer()

	write := func(s string) error {
		_, err := w.WriteString(s)
		if err != nil {
			c.Taint(httperr.New(httperr.KindIO, err))
		}
		return err
	}

	if err := write(message.StatusLine(resp.Status)); err != nil {
		return err
	}
	if err := resp.Headers.Write(w); err != nil {
		c.Taint(httperr.New(httperr.KindIO, err))
		return err
	}

	if !resp.Headers.Has(header.Date) {
		if err := write(header.Date + ": " + time.Now().UTC().Format(header.TimeFormat) + "\r\n"); err != nil {
			return err
		}
	}
	if cfg.ServerHeader != "" && !resp.Headers.Has(header.Server) {
		if err := write(header.Server + ": " + cfg.ServerHeader + "\r\n"); err != nil {
			return err
		}
	}

	if resp.IsUpgrade() {
		// 101 heads carry neither body framing nor Connection: close; the
		// connection belongs to the upgrade callback next.
		if err := write("\r\n"); err != nil {
			return err
		}
		return c.Flush()
	}

	if chunked {
		if !resp.Headers.Has(header.TransferEncoding) {
			if err := write(header.TransferEncoding + ": " + header.TokenChunked + "\r\n"); err != nil {
				return err
			}
		}
	} else if !resp.Headers.Has(header.ContentLength) {
		if err := write(header.ContentLength + ": " + strconv.FormatInt(contentLength, 10) + "\r\n"); err != nil {
			return err
		}
	}

	if closing && !header.HasToken(resp.Headers.Get(header.Connection), header.TokenClose) {
		if err := write(header.Connection + ": " + header.TokenClose + "\r\n"); err != nil {
			return err
		}
	}

	return write("\r\n")
}

func writeBody(c *conn.Conn, resp *message.Response, chunked bool, encoding string, contentLength int64) error {
	if resp.BodyKind() == message.BodyNone {
		return nil
	}

	var dst io.Writer = c.Writer()
	var chunker *ChunkedWriter
	if chunked {
		chunker = NewChunkedWriter(c.Writer(), resp.Trailers)
		dst = chunker
	}

	var closeEncoder func() error
	switch encoding {
	case header.TokenGzip:
		gz := gzip.NewWriter(dst)
		dst = gz
		closeEncoder = gz.Close
	case header.TokenDeflate:
		fw, err := flate.NewWriter(dst, flate.DefaultCompression)
		if err != nil {
			return httperr.New(httperr.KindIO, err)
		}
		dst = fw
		closeEncoder = fw.Close
	}

	switch resp.BodyKind() {
	case message.BodyBytes:
		if _, err := dst.Write(resp.BodyBytes()); err != nil {
			return wrapBodyWriteError(err)
		}
	case message.BodyReader:
		rd, _ := resp.BodyReader()
		n, err := io.CopyN(dst, rd, contentLengthOr(resp, contentLength))
		if err != nil {
			if err == io.EOF {
				return httperr.Newf(httperr.KindIO, "response body ended after %d bytes, promised %d", n, contentLengthOr(resp, contentLength))
			}
			return wrapBodyWriteError(err)
		}
	case message.BodyStream:
		rd, _ := resp.BodyReader()
		if _, err := io.Copy(dst, rd); err != nil {
			return wrapBodyWriteError(err)
		}
	}

	if closeEncoder != nil {
		if err := closeEncoder(); err != nil {
			return wrapBodyWriteError(err)
		}
	}
	if chunker != nil {
		if err := chunker.Close(); err != nil {
			return wrapBodyWriteError(err)
		}
	}
	return nil
}

// contentLengthOr resolves the byte count to copy for BodyReader producers;
// compression discards the declared length, so fall back to the producer's.
func contentLengthOr(resp *message.Response, contentLength int64) int64 {
	if contentLength >= 0 {
		return contentLength
	}
	_, n := resp.BodyReader()
	return n
}

func wrapBodyWriteError(err error) error {
	var he *httperr.Error
	if errors.As(err, &he) {
		return err
	}
	return httperr.New(httperr.KindIO, err)
}

// chooseEncoding picks gzip or deflate from an Accept-Encoding value,
// honoring q-values and preferring gzip on ties. Empty means no encoding.
func chooseEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}
	best, bestQ := "", 0.0
	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, q := part, 1.0
		if semi := strings.IndexByte(part, ';'); semi >= 0 {
			name = strings.TrimSpace(part[:semi])
			q = parseQValue(part[semi+1:])
		}
		name = strings.ToLower(name)
		if name != header.TokenGzip && name != header.TokenDeflate {
			continue
		}
		if q > bestQ || (q == bestQ && name == header.TokenGzip && best == header.TokenDeflate) {
			best, bestQ = name, q
		}
	}
	if bestQ <= 0 {
		return ""
	}
	return best
}

// parseQValue reads a "q=0.8" parameter; malformed values count as q=0.
func parseQValue(params string) float64 {
	for _, p := range strings.Split(params, ";") {
		p = strings.TrimSpace(p)
		if !strings.HasPrefix(p, "q=") && !strings.HasPrefix(p, "Q=") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(p[2:]), 64)
		if err != nil || q < 0 || q > 1 {
			return 0
		}
		return q
	}
	return 1
}

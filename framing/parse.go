package framing

import (
	"bufio"
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

const maxSingleHeaderBytes = 8 * 1024

// ErrCleanClose marks a connection that reached EOF between requests; the
// driver translates it into a normal return.
var ErrCleanClose = errors.New("framing: connection closed between requests")

// ParseRequestHead reads one request head off the connection. The first
// line is awaited under firstByteTimeout (the idle deadline between
// keep-alive requests); every subsequent read uses the configured read
// timeout. EOF before any byte yields ErrCleanClose.
func ParseRequestHead(c *conn.Conn, cfg *config.Config, firstByteTimeout time.Duration) (*message.RequestHead, error) {
	budget := cfg.MaxHeadBytes

	line, err := readHeadLine(c, firstByteTimeout, &budget)
	if err != nil {
		if err == io.EOF {
			return nil, ErrCleanClose
		}
		return nil, err
	}

	// RFC 7230 3.5: tolerate CRLFs ahead of the request line. After the
	// first byte arrived we are mid-request, so EOF is no longer clean.
	for len(line) == 0 {
		line, err = readHeadLine(c, cfg.ReadTimeout, &budget)
		if err != nil {
			if err == io.EOF {
				return nil, httperr.New(httperr.KindUnexpectedEOF, io.ErrUnexpectedEOF)
			}
			return nil, err
		}
	}

	head, err := parseRequestLine(line, cfg)
	if err != nil {
		return nil, err
	}

	if err := parseHeaders(c, cfg, &budget, head.Headers); err != nil {
		return nil, err
	}

	if err := interpretHeaders(head); err != nil {
		return nil, err
	}
	return head, nil
}

// readHeadLine reads one CRLF-terminated line, charging it against the head
// budget. The returned line excludes the terminator.
func readHeadLine(c *conn.Conn, timeout time.Duration, budget *int) ([]byte, error) {
	if err := c.PrepareRead(timeout); err != nil {
		return nil, httperr.New(httperr.KindIO, err)
	}
	line, err := c.Reader().ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			return nil, httperr.Newf(httperr.KindHeaderTooLarge, "head line exceeds buffer")
		}
		if err == io.EOF {
			if len(line) > 0 {
				return nil, httperr.New(httperr.KindUnexpectedEOF, io.ErrUnexpectedEOF)
			}
			return nil, io.EOF
		}
		return nil, conn.ClassifyReadError(err)
	}
	*budget -= len(line)
	if *budget < 0 {
		return nil, httperr.Newf(httperr.KindHeaderTooLarge, "request head exceeds %d bytes", c.Reader().Size())
	}
	if len(line) > maxSingleHeaderBytes {
		return nil, httperr.Newf(httperr.KindHeaderTooLarge, "header line exceeds %d bytes", maxSingleHeaderBytes)
	}
	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, nil
}

func parseRequestLine(line []byte, cfg *config.Config) (*message.RequestHead, error) {
	s := string(line)

	sp1 := strings.IndexByte(s, ' ')
	if sp1 < 0 {
		return nil, httperr.Newf(httperr.KindMalformedRequest, "malformed request line %q", s)
	}
	sp2 := strings.IndexByte(s[sp1+1:], ' ')
	if sp2 < 0 {
		return nil, httperr.Newf(httperr.KindMalformedRequest, "malformed request line %q", s)
	}
	sp2 += sp1 + 1

	method, target, version := s[:sp1], s[sp1+1:sp2], s[sp2+1:]

	if !header.IsToken(method) {
		return nil, httperr.Newf(httperr.KindMalformedRequest, "invalid method %q", method)
	}
	if target == "" || strings.ContainsAny(target, " \t") {
		return nil, httperr.Newf(httperr.KindMalformedRequest, "invalid request target %q", target)
	}

	switch version {
	case "HTTP/1.1":
	case "HTTP/1.0":
		if !cfg.EnableHTTP10 {
			return nil, httperr.Newf(httperr.KindMalformedRequest, "HTTP/1.0 not enabled")
		}
	default:
		return nil, httperr.Newf(httperr.KindMalformedRequest, "unsupported protocol version %q", version)
	}

	head := &message.RequestHead{
		Method:        method,
		Target:        target,
		Version:       version,
		Headers:       &header.Header{},
		ContentLength: -1,
	}
	if q := strings.IndexByte(target, '?'); q >= 0 {
		head.Path = target[:q]
		head.Query = target[q+1:]
	} else {
		head.Path = target
	}
	return head, nil
}

func parseHeaders(c *conn.Conn, cfg *config.Config, budget *int, h *header.Header) error {
	count := 0
	for {
		line, err := readHeadLine(c, cfg.ReadTimeout, budget)
		if err != nil {
			if err == io.EOF {
				return httperr.New(httperr.KindUnexpectedEOF, io.ErrUnexpectedEOF)
			}
			return err
		}
		if len(line) == 0 {
			return nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			return httperr.Newf(httperr.KindMalformedRequest, "obsolete header folding")
		}
		count++
		if count > cfg.MaxHeaderCount {
			return httperr.Newf(httperr.KindHeaderTooLarge, "more than %d header fields", cfg.MaxHeaderCount)
		}

		colon := strings.IndexByte(string(line), ':')
		if colon <= 0 {
			return httperr.Newf(httperr.KindMalformedRequest, "malformed header field %q", line)
		}
		name := string(line[:colon])
		if !header.IsToken(name) {
			return httperr.Newf(httperr.KindMalformedRequest, "invalid header field name %q", name)
		}
		value := strings.Trim(string(line[colon+1:]), " \t")
		h.Add(name, value)
	}
}

// interpretHeaders derives the framing-relevant fields once the full header
// block is in.
func interpretHeaders(head *message.RequestHead) error {
	h := head.Headers

	head.Host = h.Get(header.Host)
	if head.ProtoAtLeast11() && !h.Has(header.Host) {
		return httperr.Newf(httperr.KindMalformedRequest, "missing Host header")
	}

	// Transfer-Encoding wins over Content-Length. The last token must be
	// chunked; anything else is undecodable.
	if te := h.Values(header.TransferEncoding); len(te) > 0 {
		var tokens []string
		for _, v := range te {
			header.ForeachToken(v, func(t string) { tokens = append(tokens, t) })
		}
		if len(tokens) == 0 || !strings.EqualFold(tokens[len(tokens)-1], header.TokenChunked) {
			return httperr.Newf(httperr.KindMalformedRequest, "unsupported transfer encoding %q", strings.Join(tokens, ","))
		}
		head.Chunked = true
		head.ContentLength = -1
	} else if cls := h.Values(header.ContentLength); len(cls) > 0 {
		val := strings.TrimSpace(cls[0])
		for _, other := range cls[1:] {
			if strings.TrimSpace(other) != val {
				return httperr.Newf(httperr.KindMalformedRequest, "conflicting Content-Length values")
			}
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil || n < 0 {
			return httperr.Newf(httperr.KindMalformedRequest, "invalid Content-Length %q", val)
		}
		head.ContentLength = n
	}

	if expect := h.Get(header.Expect); expect != "" {
		if !strings.EqualFold(expect, header.TokenContinue) {
			return httperr.Newf(httperr.KindMalformedRequest, "unsupported Expect %q", expect)
		}
		head.ExpectContinue = true
	}

	head.Upgrade = h.Has(header.Upgrade) &&
		header.HasToken(h.Get(header.Connection), header.TokenUpgrade)

	return nil
}

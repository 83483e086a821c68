package framing

import (
	"bufio"
	"fmt"
	"io"

	"github.com/hearthlabs/hearth/conn"
	"github.com/hearthlabs/hearth/header"
	"github.com/hearthlabs/hearth/httperr"
)

const maxChunkLineBytes = 4096

// chunkedReader decodes "hex-size[;ext] CRLF data CRLF" units off r. A
// zero-size chunk terminates the body; trailers, if any, are handed to
// onTrailers once the trailer block and the final CRLF have been consumed.
type chunkedReader struct {
	r          *bufio.Reader
	n          uint64 // unread bytes in current chunk
	err        error
	sawFirst   bool
	onTrailers func(*header.Header)

	// prepare is armed before every wire read; the connection layer uses it
	// to refresh the read deadline.
	prepare func() error
}

func newChunkedReader(r *bufio.Reader, prepare func() error, onTrailers func(*header.Header)) *chunkedReader {
	if prepare == nil {
		prepare = func() error { return nil }
	}
	return &chunkedReader{r: r, prepare: prepare, onTrailers: onTrailers}
}

func (cr *chunkedReader) Read(p []byte) (int, error) {
	if cr.err != nil {
		return 0, cr.err
	}
	if err := cr.prepare(); err != nil {
		cr.err = httperr.New(httperr.KindIO, err)
		return 0, cr.err
	}
	for cr.n == 0 {
		if cr.sawFirst {
			// Consume the CRLF closing the previous chunk.
			if err := cr.expectCRLF(); err != nil {
				cr.err = err
				return 0, cr.err
			}
		}
		size, err := cr.readChunkSize()
		if err != nil {
			cr.err = err
			return 0, cr.err
		}
		cr.sawFirst = true
		if size == 0 {
			if err := cr.readTrailers(); err != nil {
				cr.err = err
				return 0, cr.err
			}
			cr.err = io.EOF
			return 0, cr.err
		}
		cr.n = size
	}

	if uint64(len(p)) > cr.n {
		p = p[:cr.n]
	}
	n, err := io.ReadFull(cr.r, p)
	cr.n -= uint64(n)
	if err != nil {
		cr.err = mapBodyReadError(err)
		return n, cr.err
	}
	return n, nil
}

func (cr *chunkedReader) readChunkSize() (uint64, error) {
	line, err := readChunkLine(cr.r)
	if err != nil {
		return 0, err
	}
	// Strip any chunk extension; its syntax is not validated.
	if semi := indexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = trimOWS(line)
	if len(line) == 0 {
		return 0, httperr.Newf(httperr.KindMalformedRequest, "empty chunk size line")
	}
	var n uint64
	for i, b := range line {
		var v byte
		switch {
		case '0' <= b && b <= '9':
			v = b - '0'
		case 'a' <= b && b <= 'f':
			v = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			v = b - 'A' + 10
		default:
			return 0, httperr.Newf(httperr.KindMalformedRequest, "invalid byte %q in chunk size", b)
		}
		if i == 16 {
			return 0, httperr.Newf(httperr.KindMalformedRequest, "chunk size too large")
		}
		n = n<<4 | uint64(v)
	}
	return n, nil
}

func (cr *chunkedReader) expectCRLF() error {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(cr.r, buf); err != nil {
		return mapBodyReadError(err)
	}
	if buf[0] != '\r' || buf[1] != '\n' {
		return httperr.Newf(httperr.KindMalformedRequest, "malformed chunk terminator %q", buf)
	}
	return nil
}

// readTrailers consumes the optional trailer block and the final CRLF.
func (cr *chunkedReader) readTrailers() error {
	var trailers *header.Header
	for {
		line, err := readChunkLine(cr.r)
		if err != nil {
			return err
		}
		line = trimCRLF(line)
		if len(line) == 0 {
			break
		}
		colon := indexByte(line, ':')
		if colon <= 0 {
			return httperr.Newf(httperr.KindMalformedRequest, "malformed trailer field %q", line)
		}
		name := string(line[:colon])
		if !header.IsToken(name) {
			return httperr.Newf(httperr.KindMalformedRequest, "invalid trailer field name %q", name)
		}
		if trailers == nil {
			trailers = &header.Header{}
		}
		trailers.Add(name, string(trimOWS(line[colon+1:])))
	}
	if trailers != nil && cr.onTrailers != nil {
		cr.onTrailers(trailers)
	}
	return nil
}

func readChunkLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			return nil, httperr.Newf(httperr.KindMalformedRequest, "chunk line too long")
		}
		return nil, mapBodyReadError(err)
	}
	if len(line) > maxChunkLineBytes {
		return nil, httperr.Newf(httperr.KindMalformedRequest, "chunk line too long")
	}
	return trimCRLF(line), nil
}

func trimCRLF(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	if len(b) > 0 && b[len(b)-1] == '\r' {
		b = b[:len(b)-1]
	}
	return b
}

func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// ChunkedWriter frames writes as chunked transfer coding onto w. Close
// emits the terminating zero chunk plus optional trailers.
type ChunkedWriter struct {
	w        *bufio.Writer
	trailers *header.Header
	closed   bool
}

// NewChunkedWriter wraps w. trailers may be nil.
func NewChunkedWriter(w *bufio.Writer, trailers *header.Header) *ChunkedWriter {
	return &ChunkedWriter{w: w, trailers: trailers}
}

// Write emits one chunk for p. An empty p writes nothing, since a zero-size
// chunk would terminate the body.
func (cw *ChunkedWriter) Write(p []byte) (int, error) {
	if cw.closed {
		return 0, fmt.Errorf("write on closed chunked body")
	}
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := fmt.Fprintf(cw.w, "%x\r\n", len(p)); err != nil {
		return 0, err
	}
	n, err := cw.w.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := cw.w.WriteString("\r\n"); err != nil {
		return n, err
	}
	return n, nil
}

// Close terminates the body: zero chunk, trailer block, final CRLF.
func (cw *ChunkedWriter) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true
	if _, err := cw.w.WriteString("0\r\n"); err != nil {
		return err
	}
	if cw.trailers != nil {
		if err := cw.trailers.Write(cw.w); err != nil {
			return err
		}
	}
	_, err := cw.w.WriteString("\r\n")
	return err
}

// mapBodyReadError turns low-level read failures into httperr kinds; a bare
// EOF mid-body is an unexpected EOF.
func mapBodyReadError(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return httperr.New(httperr.KindUnexpectedEOF, io.ErrUnexpectedEOF)
	}
	return conn.ClassifyReadError(err)
}

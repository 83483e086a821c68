package message

import (
	"bufio"
	"io"
	"strings"

	"github.com/hearthlabs/hearth/header"
)

// RequestHead is the parsed request line and headers. After parse, Path may
// be rewritten by pre-routing filters, filters may add header fields, and
// Trailers is filled in by the chunked body reader; the other fields keep
// their parsed values.
type RequestHead struct {
	Method  string
	Target  string // origin-form target as received
	Path    string // target up to any '?', not percent-decoded; rewritable
	Query   string // raw query without the '?'
	Version string // "HTTP/1.1", or "HTTP/1.0" when enabled

	Headers *header.Header

	Host           string
	ContentLength  int64 // -1 when absent
	Chunked        bool
	ExpectContinue bool
	Upgrade        bool // Upgrade present with Connection: Upgrade

	// Trailers is filled after a chunked body reaches EOF.
	Trailers *header.Header
}

// ProtoAtLeast11 reports whether the request is HTTP/1.1.
func (h *RequestHead) ProtoAtLeast11() bool {
	return h.Version == "HTTP/1.1"
}

// WantsClose reports whether the client asked to drop the connection.
func (h *RequestHead) WantsClose() bool {
	return header.HasToken(h.Headers.Get(header.Connection), header.TokenClose)
}

// WantsKeepAlive reports an explicit keep-alive request, which HTTP/1.0
// clients must send to reuse the connection.
func (h *RequestHead) WantsKeepAlive() bool {
	return header.HasToken(h.Headers.Get(header.Connection), header.TokenKeepAlive)
}

// Accept returns the raw Accept field value.
func (h *RequestHead) Accept() string {
	return h.Headers.Get(header.Accept)
}

// ContentType returns the media type of the request body without parameters.
func (h *RequestHead) ContentType() string {
	ct := h.Headers.Get(header.ContentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// Write re-serializes the head in wire format, request line first. The body
// framing fields are emitted exactly as they arrived.
func (h *RequestHead) Write(w *bufio.Writer) error {
	if _, err := w.WriteString(h.Method + " " + h.Target + " " + h.Version + "\r\n"); err != nil {
		return err
	}
	if err := h.Headers.Write(w); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

// Body is the read-once request body handle. The framing layer supplies the
// underlying reader; the driver owns draining and taint accounting.
type Body struct {
	reader io.Reader

	consumed bool
	sawEOF   bool
	readErr  error

	// onFirstRead fires before the first byte is pulled; the framing layer
	// uses it to emit 100 Continue.
	onFirstRead func() error
}

// NewBody wraps reader. A nil reader denotes an empty body.
func NewBody(reader io.Reader) *Body {
	b := &Body{reader: reader}
	if reader == nil {
		b.sawEOF = true
	}
	return b
}

// OnFirstRead registers fn to run before the first read.
func (b *Body) OnFirstRead(fn func() error) { b.onFirstRead = fn }

// FirstReadHookPending reports whether the registered first-read hook has
// not fired yet. The driver uses it to decide if an expect-100 body may be
// waiting on an interim response that was never sent.
func (b *Body) FirstReadHookPending() bool { return b.onFirstRead != nil }

func (b *Body) Read(p []byte) (int, error) {
	if b.readErr != nil {
		return 0, b.readErr
	}
	if b.sawEOF {
		return 0, io.EOF
	}
	if fn := b.onFirstRead; fn != nil {
		b.onFirstRead = nil
		if err := fn(); err != nil {
			b.readErr = err
			return 0, err
		}
	}
	n, err := b.reader.Read(p)
	if n > 0 {
		b.consumed = true
	}
	if err == io.EOF {
		b.sawEOF = true
	} else if err != nil {
		b.readErr = err
	}
	return n, err
}

// Consumed reports whether any byte has been read.
func (b *Body) Consumed() bool { return b.consumed }

// FullyRead reports whether the framing layer saw the end of the body.
func (b *Body) FullyRead() bool { return b.sawEOF }

// Failed returns the sticky read error, if any.
func (b *Body) Failed() error { return b.readErr }

// Drain discards the unread remainder, up to max bytes. It reports whether
// the body reached EOF; a false return with nil error means the cap was hit.
func (b *Body) Drain(max int64) (bool, error) {
	if b.sawEOF {
		return true, nil
	}
	if b.readErr != nil {
		return false, b.readErr
	}
	// Draining is a framing concern, not a user read: skip the 100-continue
	// hook. A client still waiting for the interim response will not send a
	// body, so the drain below sees immediate EOF only if framing agrees.
	b.onFirstRead = nil
	n, err := io.CopyN(io.Discard, readerFunc(b.read), max+1)
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if n == max+1 {
		return false, nil
	}
	return true, nil
}

// read is Read without the sticky-error short circuit duplication; it keeps
// Drain and user reads on the same accounting.
func (b *Body) read(p []byte) (int, error) { return b.Read(p) }

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

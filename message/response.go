package message

import (
	"fmt"
	"io"

	"github.com/hearthlabs/hearth/conn"
	"github.com/hearthlabs/hearth/header"
)

// BodyKind identifies which producer a Response carries.
type BodyKind int

const (
	// BodyNone is an empty body.
	BodyNone BodyKind = iota
	// BodyBytes is a fixed in-memory buffer.
	BodyBytes
	// BodyReader is a stream of known length.
	BodyReader
	// BodyStream is a stream of unknown length, sent chunked.
	BodyStream
)

// UpgradeFunc takes over the raw connection after a 101 response head has
// been flushed. HandleConnection returns when the callback does.
type UpgradeFunc func(raw conn.RawConn) error

// Response is the mutable working response of one request cycle. Exactly one
// body producer is set at write time.
type Response struct {
	Status   int
	Headers  *header.Header
	Trailers *header.Header // emitted only with chunked framing

	// Compress opts this response into content-encoding negotiation.
	Compress bool

	// Upgrade, with a 101 status, hands the connection over after the head.
	Upgrade UpgradeFunc

	kind      BodyKind
	bodyBytes []byte
	bodyRdr   io.Reader
	bodyLen   int64
}

// NewResponse returns an empty response with the given status.
func NewResponse(status int) *Response {
	return &Response{
		Status:  status,
		Headers: &header.Header{},
	}
}

// SetBodyBytes installs a fixed buffer producer.
func (r *Response) SetBodyBytes(b []byte) *Response {
	r.kind = BodyBytes
	r.bodyBytes = b
	r.bodyRdr = nil
	r.bodyLen = int64(len(b))
	return r
}

// SetBodyString installs a fixed buffer producer from s.
func (r *Response) SetBodyString(s string) *Response {
	return r.SetBodyBytes([]byte(s))
}

// SetBodyReader installs a stream producer of known length.
func (r *Response) SetBodyReader(rd io.Reader, length int64) *Response {
	r.kind = BodyReader
	r.bodyBytes = nil
	r.bodyRdr = rd
	r.bodyLen = length
	return r
}

// SetBodyStream installs a stream producer of unknown length.
func (r *Response) SetBodyStream(rd io.Reader) *Response {
	r.kind = BodyStream
	r.bodyBytes = nil
	r.bodyRdr = rd
	r.bodyLen = -1
	return r
}

// ClearBody resets the response to an empty body.
func (r *Response) ClearBody() *Response {
	r.kind = BodyNone
	r.bodyBytes = nil
	r.bodyRdr = nil
	r.bodyLen = 0
	return r
}

// BodyKind returns the active producer kind.
func (r *Response) BodyKind() BodyKind { return r.kind }

// BodyBytes returns the fixed buffer, valid for BodyBytes.
func (r *Response) BodyBytes() []byte { return r.bodyBytes }

// BodyReader returns the stream and its length (-1 when unknown), valid for
// BodyReader and BodyStream.
func (r *Response) BodyReader() (io.Reader, int64) { return r.bodyRdr, r.bodyLen }

// IsUpgrade reports a 101 switching-protocols response with a callback.
func (r *Response) IsUpgrade() bool {
	return r.Status == StatusSwitchingProtocols && r.Upgrade != nil
}

// Validate enforces the final-response status rules: 100-999, with the
// 100-class forbidden except 101 on upgrade.
func (r *Response) Validate() error {
	if r.Status < 100 || r.Status > 999 {
		return fmt.Errorf("response status %d out of range", r.Status)
	}
	if r.Status < 200 && !r.IsUpgrade() {
		return fmt.Errorf("informational status %d is not a final response", r.Status)
	}
	return nil
}

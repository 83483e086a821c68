package test_util

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// FakeConn is a scripted RawConn: reads serve the prepared input and then
// EOF, writes accumulate into a buffer. Optionally an error can be injected
// once the input runs dry.
type FakeConn struct {
	mu sync.Mutex

	input  *bytes.Reader
	output bytes.Buffer

	// ErrAfterInput, when set, replaces the EOF after the scripted input.
	ErrAfterInput error

	closed        bool
	readDeadline  time.Time
	writeDeadline time.Time
}

// NewFakeConn scripts the connection's inbound bytes.
func NewFakeConn(input string) *FakeConn {
	return &FakeConn{input: bytes.NewReader([]byte(input))}
}

func (f *FakeConn) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, io.EOF
	}
	n, err := f.input.Read(p)
	if err == io.EOF && f.ErrAfterInput != nil {
		return n, f.ErrAfterInput
	}
	return n, err
}

func (f *FakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output.Write(p)
}

func (f *FakeConn) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readDeadline = t
	return nil
}

func (f *FakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeDeadline = t
	return nil
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Written returns everything the server wrote so far.
func (f *FakeConn) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output.String()
}

// Closed reports whether Close was called.
func (f *FakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

package conn

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"

	"github.com/hearthlabs/hearth/config"
	"github.com/hearthlabs/hearth/httperr"
)

// RawConn is the full-duplex byte stream capability the processor consumes.
// net.Conn satisfies it; so do Unix and TLS connections.
type RawConn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const writeBufferSize = 8 * 1024

// Conn wraps a RawConn with buffered I/O, per-operation deadlines and the
// taint flag. Once tainted no further bytes may be written.
type Conn struct {
	raw RawConn

	reader *bufio.Reader
	writer *bufio.Writer

	readTimeout  time.Duration
	writeTimeout time.Duration

	taintErr error
}

func New(raw RawConn, cfg *config.Config) *Conn {
	readBuf := cfg.MaxHeadBytes
	if readBuf < 16 {
		readBuf = config.DefaultMaxHeadBytes
	}
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, readBuf),
		writer:       bufio.NewWriterSize(raw, writeBufferSize),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
}

// Reader exposes the buffered read side. Callers must arm a deadline with
// PrepareRead before blocking on it.
func (c *Conn) Reader() *bufio.Reader { return c.reader }

// Raw returns the underlying stream, for protocol upgrade handoff.
func (c *Conn) Raw() RawConn { return c.raw }

// PrepareRead arms the read deadline. A zero timeout clears it.
func (c *Conn) PrepareRead(timeout time.Duration) error {
	if timeout <= 0 {
		return c.raw.SetReadDeadline(time.Time{})
	}
	return c.raw.SetReadDeadline(time.Now().Add(timeout))
}

// PrepareDefaultRead arms the configured per-read deadline.
func (c *Conn) PrepareDefaultRead() error {
	return c.PrepareRead(c.readTimeout)
}

// ReadTimed fills p with up to len(p) bytes under the given timeout,
// classifying failures into httperr kinds. A clean EOF is returned as io.EOF.
func (c *Conn) ReadTimed(p []byte, timeout time.Duration) (int, error) {
	if err := c.PrepareRead(timeout); err != nil {
		return 0, httperr.New(httperr.KindIO, err)
	}
	n, err := c.reader.Read(p)
	if err != nil && err != io.EOF {
		err = ClassifyReadError(err)
	}
	return n, err
}

// WriteAll buffers p in full. The write deadline is armed so a stalled peer
// fails the eventual flush.
func (c *Conn) WriteAll(p []byte) error {
	if c.taintErr != nil {
		return c.taintErr
	}
	if err := c.prepareWrite(); err != nil {
		return c.fatal(err)
	}
	if _, err := c.writer.Write(p); err != nil {
		return c.fatal(err)
	}
	return nil
}

// Writer exposes the buffered write side for the framing layer. The taint
// check still applies: callers go through CheckWritable first.
func (c *Conn) Writer() *bufio.Writer { return c.writer }

// CheckWritable arms the write deadline and reports the taint error, if any.
func (c *Conn) CheckWritable() error {
	if c.taintErr != nil {
		return c.taintErr
	}
	return c.prepareWrite()
}

func (c *Conn) prepareWrite() error {
	if c.writeTimeout <= 0 {
		return c.raw.SetWriteDeadline(time.Time{})
	}
	return c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
}

// Flush pushes buffered output to the stream.
func (c *Conn) Flush() error {
	if c.taintErr != nil {
		return c.taintErr
	}
	if err := c.prepareWrite(); err != nil {
		return c.fatal(err)
	}
	if err := c.writer.Flush(); err != nil {
		return c.fatal(classifyWriteError(err))
	}
	return nil
}

// Shutdown closes the underlying stream.
func (c *Conn) Shutdown() error {
	return c.raw.Close()
}

// Taint marks the connection fatally broken. The first cause wins.
func (c *Conn) Taint(err error) {
	if c.taintErr == nil {
		if err == nil {
			err = httperr.New(httperr.KindIO, errors.New("connection tainted"))
		}
		c.taintErr = err
	}
}

// Tainted reports whether the connection may still be written.
func (c *Conn) Tainted() bool { return c.taintErr != nil }

// TaintErr returns the cause recorded by Taint, or nil.
func (c *Conn) TaintErr() error { return c.taintErr }

func (c *Conn) fatal(err error) error {
	c.Taint(err)
	return c.taintErr
}

// ClassifyReadError maps a non-EOF read failure onto an httperr kind.
func ClassifyReadError(err error) error {
	var he *httperr.Error
	if errors.As(err, &he) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return httperr.New(httperr.KindTimeout, err)
	}
	if err == io.ErrUnexpectedEOF {
		return httperr.New(httperr.KindUnexpectedEOF, err)
	}
	return httperr.New(httperr.KindIO, err)
}

func classifyWriteError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return httperr.New(httperr.KindTimeout, err)
	}
	return httperr.New(httperr.KindIO, err)
}

package framing_test

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hearthlabs/hearth/config"
	"github.com/hearthlabs/hearth/conn"
	. "github.com/hearthlabs/hearth/framing"
	"github.com/hearthlabs/hearth/httperr"
	"github.com/hearthlabs/hearth/message"
	"github.com/hearthlabs/hearth/test_util"
)

func newTestConn(input string, cfg *config.Config) (*conn.Conn, *test_util.FakeConn) {
	fake := test_util.NewFakeConn(input)
	return conn.New(fake, cfg), fake
}

func parseHead(input string, cfg *config.Config) (*message.RequestHead, error) {
	c, _ := newTestConn(input, cfg)
	return ParseRequestHead(c, cfg, time.Second)
}

func expectKind(err error, kind httperr.Kind) {
	GinkgoHelper()
	Expect(err).To(HaveOccurred())
	Expect(httperr.KindOf(err)).To(Equal(kind))
}

var _ = Describe("ParseRequestHead", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.DefaultConfig()
	})

	It("parses a simple GET head", func() {
		head, err := parseHead("GET /hello?a=b HTTP/1.1\r\nHost: x\r\nAccept: text/plain\r\n\r\n", cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(head.Method).To(Equal("GET"))
		Expect(head.Target).To(Equal("/hello?a=b"))
		Expect(head.Path).To(Equal("/hello"))
		Expect(head.Query).To(Equal("a=b"))
		Expect(head.Version).To(Equal("HTTP/1.1"))
		Expect(head.Host).To(Equal("x"))
		Expect(head.ContentLength).To(Equal(int64(-1)))
		Expect(head.Chunked).To(BeFalse())
	})

	It("tolerates leading CRLFs ahead of the request line", func() {
		head, err := parseHead("\r\n\r\nGET / HTTP/1.1\r\nHost: x\r\n\r\n", cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(head.Method).To(Equal("GET"))
	})

	It("round-trips the head through re-serialization", func() {
		wire := "POST /u HTTP/1.1\r\nHost: x\r\nX-One: 1\r\nx-two: 2\r\n\r\n"
		head, err := parseHead(wire, cfg)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		Expect(head.Write(w)).To(Succeed())
		Expect(w.Flush()).To(Succeed())
		Expect(buf.String()).To(Equal(wire))
	})

	It("reports clean EOF on an empty connection", func() {
		_, err := parseHead("", cfg)
		Expect(err).To(Equal(ErrCleanClose))
	})

	It("reports an unexpected EOF mid-head", func() {
		_, err := parseHead("GET / HTTP/1.1\r\nHost: x\r\n", cfg)
		expectKind(err, httperr.KindUnexpectedEOF)
	})

	Describe("request line validation", func() {
		It("rejects a method with separators", func() {
			_, err := parseHead("GE T / HTTP/1.1\r\nHost: x\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("rejects missing parts", func() {
			_, err := parseHead("GET /\r\nHost: x\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("rejects unsupported versions", func() {
			_, err := parseHead("GET / HTTP/2.0\r\nHost: x\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("rejects HTTP/1.0 unless enabled", func() {
			_, err := parseHead("GET / HTTP/1.0\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)

			cfg.EnableHTTP10 = true
			head, err := parseHead("GET / HTTP/1.0\r\n\r\n", cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(head.Version).To(Equal("HTTP/1.0"))
		})

		It("accepts free-form token methods", func() {
			head, err := parseHead("PURGE-ALL / HTTP/1.1\r\nHost: x\r\n\r\n", cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(head.Method).To(Equal("PURGE-ALL"))
		})
	})

	Describe("header validation", func() {
		It("requires Host on HTTP/1.1", func() {
			_, err := parseHead("GET / HTTP/1.1\r\nX-A: 1\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("rejects obsolete folding", func() {
			_, err := parseHead("GET / HTTP/1.1\r\nHost: x\r\n folded\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("rejects header names with spaces", func() {
			_, err := parseHead("GET / HTTP/1.1\r\nHost : x\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("enforces the header count limit", func() {
			cfg.MaxHeaderCount = 3
			var b strings.Builder
			b.WriteString("GET / HTTP/1.1\r\nHost: x\r\n")
			for i := 0; i < 4; i++ {
				b.WriteString("X-Filler: v\r\n")
			}
			b.WriteString("\r\n")
			_, err := parseHead(b.String(), cfg)
			expectKind(err, httperr.KindHeaderTooLarge)
		})

		It("enforces the total head size limit", func() {
			_, err := parseHead("GET / HTTP/1.1\r\nHost: x\r\nX-Big: "+strings.Repeat("a", 9000)+"\r\n\r\n", cfg)
			expectKind(err, httperr.KindHeaderTooLarge)
		})
	})

	Describe("body framing headers", func() {
		It("selects chunked framing and ignores Content-Length", func() {
			head, err := parseHead("POST /u HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\n", cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(head.Chunked).To(BeTrue())
			Expect(head.ContentLength).To(Equal(int64(-1)))
		})

		It("requires chunked to be the final transfer coding", func() {
			_, err := parseHead("POST /u HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked, gzip\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("parses a single Content-Length", func() {
			head, err := parseHead("POST /u HTTP/1.1\r\nHost: x\r\nContent-Length: 11\r\n\r\n", cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(head.ContentLength).To(Equal(int64(11)))
		})

		It("accepts agreeing duplicate Content-Lengths", func() {
			head, err := parseHead("POST /u HTTP/1.1\r\nHost: x\r\nContent-Length: 4\r\nContent-Length: 4\r\n\r\n", cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(head.ContentLength).To(Equal(int64(4)))
		})

		It("rejects conflicting Content-Lengths", func() {
			_, err := parseHead("POST /u HTTP/1.1\r\nHost: x\r\nContent-Length: 4\r\nContent-Length: 5\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("rejects a negative Content-Length", func() {
			_, err := parseHead("POST /u HTTP/1.1\r\nHost: x\r\nContent-Length: -1\r\n\r\n", cfg)
			expectKind(err, httperr.KindMalformedRequest)
		})

		It("flags Expect: 100-continue", func() {
			head, err := parseHead("POST /u HTTP/1.1\r\nHost: x\r\nExpect: 100-continue\r\nContent-Length: 2\r\n\r\n", cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(head.ExpectContinue).To(BeTrue())
		})

		It("flags an upgrade request", func() {
			head, err := parseHead("GET /ws HTTP/1.1\r\nHost: x\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n", cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(head.Upgrade).To(BeTrue())
		})
	})
})

var _ = Describe("NewRequestBody", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.DefaultConfig()
	})

	It("reads exactly Content-Length bytes", func() {
		c, _ := newTestConn("POST /u HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhelloEXTRA", cfg)
		head, err := ParseRequestHead(c, cfg, time.Second)
		Expect(err).NotTo(HaveOccurred())

		body := NewRequestBody(c, head, cfg)
		data, err := io.ReadAll(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("hello"))
		Expect(body.FullyRead()).To(BeTrue())
	})

	It("classifies a short fixed body as unexpected EOF", func() {
		c, _ := newTestConn("POST /u HTTP/1.1\r\nHost: x\r\nContent-Length: 10\r\n\r\nhello", cfg)
		head, err := ParseRequestHead(c, cfg, time.Second)
		Expect(err).NotTo(HaveOccurred())

		body := NewRequestBody(c, head, cfg)
		_, err = io.ReadAll(body)
		expectKind(err, httperr.KindUnexpectedEOF)
		Expect(body.Failed()).To(HaveOccurred())
	})

	It("decodes a chunked body", func() {
		c, _ := newTestConn("POST /u HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n", cfg)
		head, err := ParseRequestHead(c, cfg, time.Second)
		Expect(err).NotTo(HaveOccurred())

		body := NewRequestBody(c, head, cfg)
		data, err := io.ReadAll(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("hello world"))
	})

	It("ignores chunk extensions", func() {
		c, _ := newTestConn("POST /u HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n5;name=v\r\nhello\r\n0\r\n\r\n", cfg)
		head, err := ParseRequestHead(c, cfg, time.Second)
		Expect(err).NotTo(HaveOccurred())

		data, err := io.ReadAll(NewRequestBody(c, head, cfg))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("hello"))
	})

	It("captures trailers after the final chunk", func() {
		c, _ := newTestConn("POST /u HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n2\r\nok\r\n0\r\nX-Sum: abc\r\n\r\n", cfg)
		head, err := ParseRequestHead(c, cfg, time.Second)
		Expect(err).NotTo(HaveOccurred())

		_, err = io.ReadAll(NewRequestBody(c, head, cfg))
		Expect(err).NotTo(HaveOccurred())
		Expect(head.Trailers).NotTo(BeNil())
		Expect(head.Trailers.Get("X-Sum")).To(Equal("abc"))
	})

	It("rejects malformed chunk sizes", func() {
		c, _ := newTestConn("POST /u HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\nhello\r\n0\r\n\r\n", cfg)
		head, err := ParseRequestHead(c, cfg, time.Second)
		Expect(err).NotTo(HaveOccurred())

		_, err = io.ReadAll(NewRequestBody(c, head, cfg))
		expectKind(err, httperr.KindMalformedRequest)
	})

	It("emits 100 Continue on the first read only", func() {
		c, fake := newTestConn("POST /u HTTP/1.1\r\nHost: x\r\nExpect: 100-continue\r\nContent-Length: 2\r\n\r\nhi", cfg)
		head, err := ParseRequestHead(c, cfg, time.Second)
		Expect(err).NotTo(HaveOccurred())

		body := NewRequestBody(c, head, cfg)
		Expect(fake.Written()).To(BeEmpty())

		data, err := io.ReadAll(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("hi"))
		Expect(fake.Written()).To(Equal("HTTP/1.1 100 Continue\r\n\r\n"))
	})
})

package header_test

import (
	"bufio"
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/hearthlabs/hearth/header"
)

var _ = Describe("Header", func() {
	var h *Header

	BeforeEach(func() {
		h = &Header{}
	})

	It("preserves insertion order and original case", func() {
		h.Add("X-b", "1")
		h.Add("x-A", "2")
		h.Add("X-B", "3")

		var names []string
		h.Each(func(name, value string) {
			names = append(names, name)
		})
		Expect(names).To(Equal([]string{"X-b", "x-A", "X-B"}))
	})

	It("looks up case-insensitively", func() {
		h.Add("Content-Type", "text/plain")
		Expect(h.Get("content-type")).To(Equal("text/plain"))
		Expect(h.Get("CONTENT-TYPE")).To(Equal("text/plain"))
		Expect(h.Has("conTENT-type")).To(BeTrue())
		Expect(h.Get("Accept")).To(Equal(""))
	})

	It("returns every value for a repeated name", func() {
		h.Add("Via", "a")
		h.Add("VIA", "b")
		Expect(h.Values("via")).To(Equal([]string{"a", "b"}))
	})

	Describe("Set", func() {
		It("replaces all occurrences, keeping the first position", func() {
			h.Add("A", "1")
			h.Add("b", "2")
			h.Add("a", "3")

			h.Set("a", "9")

			Expect(h.Values("a")).To(Equal([]string{"9"}))
			Expect(h.Fields()[0].Value).To(Equal("9"))
			Expect(h.Len()).To(Equal(2))
		})

		It("appends when the name is absent", func() {
			h.Set("A", "1")
			Expect(h.Get("a")).To(Equal("1"))
		})
	})

	It("deletes every occurrence", func() {
		h.Add("X", "1")
		h.Add("x", "2")
		h.Del("X")
		Expect(h.Has("x")).To(BeFalse())
		Expect(h.Len()).To(Equal(0))
	})

	It("clones independently", func() {
		h.Add("A", "1")
		h2 := h.Clone()
		h2.Set("A", "2")
		Expect(h.Get("A")).To(Equal("1"))
	})

	It("writes wire format in order", func() {
		h.Add("Host", "example.test")
		h.Add("x-custom", "v")

		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		Expect(h.Write(w)).To(Succeed())
		Expect(w.Flush()).To(Succeed())

		Expect(buf.String()).To(Equal("Host: example.test\r\nx-custom: v\r\n"))
	})
})

var _ = Describe("HasToken", func() {
	It("matches tokens in a comma-separated list", func() {
		Expect(HasToken("keep-alive, Upgrade", "upgrade")).To(BeTrue())
		Expect(HasToken("close", "close")).To(BeTrue())
		Expect(HasToken("closed", "close")).To(BeFalse())
		Expect(HasToken("", "close")).To(BeFalse())
	})
})

var _ = Describe("IsToken", func() {
	It("accepts RFC 7230 tokens only", func() {
		Expect(IsToken("GET")).To(BeTrue())
		Expect(IsToken("X-Custom_1")).To(BeTrue())
		Expect(IsToken("")).To(BeFalse())
		Expect(IsToken("sp ace")).To(BeFalse())
		Expect(IsToken("na:me")).To(BeFalse())
	})
})

package route_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/hearthlabs/hearth/route"
)

var _ = Describe("ParseAccept", func() {
	It("treats an empty field as */*", func() {
		ranges := ParseAccept("")
		Expect(ranges).To(HaveLen(1))
		Expect(ranges[0].Type).To(Equal("*"))
		Expect(ranges[0].Q).To(Equal(1.0))
	})

	It("parses quality values", func() {
		ranges := ParseAccept("text/html;q=0.8, application/json")
		Expect(ranges).To(HaveLen(2))
		Expect(ranges[0].Q).To(Equal(0.8))
		Expect(ranges[1].Q).To(Equal(1.0))
	})

	It("drops malformed entries", func() {
		ranges := ParseAccept("nonsense, text/plain")
		Expect(ranges).To(HaveLen(1))
		Expect(ranges[0].Subtype).To(Equal("plain"))
	})
})

var _ = Describe("NegotiateScore", func() {
	It("prefers the most specific covering range", func() {
		ranges := ParseAccept("text/*;q=0.5, text/html;q=0.9, */*;q=0.1")

		q, spec, ok := NegotiateScore("text/html", ranges)
		Expect(ok).To(BeTrue())
		Expect(spec).To(Equal(2))
		Expect(q).To(Equal(0.9))

		q, spec, ok = NegotiateScore("text/plain", ranges)
		Expect(ok).To(BeTrue())
		Expect(spec).To(Equal(1))
		Expect(q).To(Equal(0.5))

		q, spec, ok = NegotiateScore("image/png", ranges)
		Expect(ok).To(BeTrue())
		Expect(spec).To(Equal(0))
		Expect(q).To(Equal(0.1))
	})

	It("excludes types the client rated q=0", func() {
		ranges := ParseAccept("text/html;q=0, */*")
		_, _, ok := NegotiateScore("text/html", ranges)
		Expect(ok).To(BeFalse())
	})

	It("matches type and subtype case-insensitively", func() {
		ranges := ParseAccept("Text/HTML")
		_, _, ok := NegotiateScore("text/html", ranges)
		Expect(ok).To(BeTrue())
	})
})

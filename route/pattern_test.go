package route_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/hearthlabs/hearth/route"
)

var _ = Describe("Pattern", func() {
	Describe("ParsePattern", func() {
		It("rejects templates not starting with a slash", func() {
			_, err := ParsePattern("hello")
			Expect(err).To(HaveOccurred())
		})

		It("rejects a wildcard before the final position", func() {
			_, err := ParsePattern("/a/*/b")
			Expect(err).To(MatchError(ContainSubstring("non-final wildcard")))
		})

		It("rejects an unnamed parameter", func() {
			_, err := ParsePattern("/a/{}")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Match", func() {
		It("matches literals case-sensitively", func() {
			p := MustParsePattern("/Hello")
			_, ok := p.Match("/Hello")
			Expect(ok).To(BeTrue())
			_, ok = p.Match("/hello")
			Expect(ok).To(BeFalse())
		})

		It("captures single-segment parameters", func() {
			p := MustParsePattern("/users/{id}/posts/{post}")
			m, ok := p.Match("/users/42/posts/seven")
			Expect(ok).To(BeTrue())
			Expect(m.Params).To(Equal(map[string]string{"id": "42", "post": "seven"}))
		})

		It("refuses an empty segment for a parameter", func() {
			p := MustParsePattern("/users/{id}")
			_, ok := p.Match("/users/")
			Expect(ok).To(BeFalse())
		})

		It("captures the joined wildcard suffix", func() {
			p := MustParsePattern("/api/{id}/*")
			m, ok := p.Match("/api/42/a/b/c")
			Expect(ok).To(BeTrue())
			Expect(m.Params["id"]).To(Equal("42"))
			Expect(m.Wildcard).To(Equal("a/b/c"))
		})

		It("requires at least one segment for the wildcard", func() {
			p := MustParsePattern("/api/*")
			_, ok := p.Match("/api")
			Expect(ok).To(BeFalse())
			_, ok = p.Match("/api/")
			Expect(ok).To(BeFalse())
			m, ok := p.Match("/api/x")
			Expect(ok).To(BeTrue())
			Expect(m.Wildcard).To(Equal("x"))
		})

		It("rejects longer and shorter paths without a wildcard", func() {
			p := MustParsePattern("/a/b")
			_, ok := p.Match("/a")
			Expect(ok).To(BeFalse())
			_, ok = p.Match("/a/b/c")
			Expect(ok).To(BeFalse())
		})

		It("matches the root path", func() {
			p := MustParsePattern("/")
			_, ok := p.Match("/")
			Expect(ok).To(BeTrue())
		})
	})
})

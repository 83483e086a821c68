package httperr_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/hearthlabs/hearth/httperr"
)

var _ = Describe("Error", func() {
	It("exposes its kind through errors.As across wrapping", func() {
		cause := errors.New("underlying")
		err := fmt.Errorf("outer: %w", New(KindTimeout, cause))

		var he *Error
		Expect(errors.As(err, &he)).To(BeTrue())
		Expect(he.Kind).To(Equal(KindTimeout))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("classifies foreign errors as user errors", func() {
		Expect(KindOf(errors.New("someone else's"))).To(Equal(KindUser))
	})

	It("reports kinded membership", func() {
		Expect(Is(New(KindIO, nil), KindIO)).To(BeTrue())
		Expect(Is(New(KindIO, nil), KindTimeout)).To(BeFalse())
	})

	It("marks only transport-level kinds fatal", func() {
		Expect(KindTimeout.Fatal()).To(BeTrue())
		Expect(KindUnexpectedEOF.Fatal()).To(BeTrue())
		Expect(KindIO.Fatal()).To(BeTrue())
		Expect(KindMalformedRequest.Fatal()).To(BeFalse())
		Expect(KindUser.Fatal()).To(BeFalse())
	})

	It("maps answerable kinds to their status codes", func() {
		Expect(KindMalformedRequest.StatusCode()).To(Equal(400))
		Expect(KindHeaderTooLarge.StatusCode()).To(Equal(431))
		Expect(KindUnsupportedMediaType.StatusCode()).To(Equal(415))
		Expect(KindMethodNotAllowed.StatusCode()).To(Equal(405))
		Expect(KindNotAcceptable.StatusCode()).To(Equal(406))
		Expect(KindTimeout.StatusCode()).To(BeZero())
		Expect(KindIO.StatusCode()).To(BeZero())
	})
})

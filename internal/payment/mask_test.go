package payment_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/secure-payments/internal/payment"
)

var _ = Describe("ApplyMask", func() {
	DescribeTable("renders input through the pattern",
		func(pattern, input, expected string) {
			masked, err := payment.ApplyMask(pattern, input)
			Expect(err).NotTo(HaveOccurred())
			Expect(masked).To(Equal(expected))
		},
		Entry("input fills every slot", "****-####", "12345678", "****-5678"),
		Entry("input as long as the pattern", "****-####", "123456789", "****-6789"),
		Entry("surplus leading characters are dropped", "****-####", "1234567890", "****-7890"),
		Entry("reveal only", "####", "abcd", "abcd"),
		Entry("hide only", "****", "abcd", "****"),
		Entry("literals around slots", "ref:**##!", "wxyz", "ref:**yz!"),
		Entry("multibyte input", "**##", "äöüß", "**üß"),
	)

	It("is deterministic", func() {
		first, err := payment.ApplyMask("****-####", "12345678")
		Expect(err).NotTo(HaveOccurred())
		second, err := payment.ApplyMask("****-####", "12345678")
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(second))
	})

	It("rejects input shorter than the slot count", func() {
		_, err := payment.ApplyMask("****-####", "1234567")
		Expect(err).To(MatchError(payment.ErrReferenceTooShort))
	})

	It("rejects a pattern without slots", func() {
		_, err := payment.ApplyMask("----", "1234")
		Expect(err).To(MatchError(payment.ErrPatternHasNoSlots))
	})
})

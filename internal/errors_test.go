package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/secure-payments/internal"
)

var _ = Describe("AppError", func() {
	DescribeTable("maps error types to status codes",
		func(err *internal.AppError, status int) {
			code, _ := err.ToHTTPResponse()
			Expect(code).To(Equal(status))
		},
		Entry("validation", internal.NewValidationError("bad", internal.ErrCodeValidationFailed), http.StatusBadRequest),
		Entry("limit", internal.ErrAmountTooHigh, http.StatusUnprocessableEntity),
		Entry("not found", internal.ErrPaymentNotFound, http.StatusNotFound),
		Entry("invalid state", internal.ErrAlreadyApproved, http.StatusConflict),
		Entry("dependency", internal.NewDependencyError("down", internal.ErrCodeStoreUnavailable, nil), http.StatusServiceUnavailable),
		Entry("authorization gap", internal.ErrEncryptNotGranted, http.StatusInternalServerError),
	)

	It("matches package errors through wrapping and copies", func() {
		withDetails := internal.ErrAmountTooHigh.WithDetails(map[string]int64{"max_amount": 10})
		wrapped := fmt.Errorf("create: %w", withDetails)

		Expect(errors.Is(wrapped, internal.ErrAmountTooHigh)).To(BeTrue())
		Expect(errors.Is(wrapped, internal.ErrPaymentNotFound)).To(BeFalse())
		Expect(internal.ErrAmountTooHigh.Details).To(BeNil())
		Expect(internal.IsType(wrapped, internal.ErrorTypeLimitExceeded)).To(BeTrue())
	})

	It("only marks dependency errors retryable", func() {
		Expect(internal.NewDependencyError("down", internal.ErrCodeKeyUnavailable, nil).Retryable()).To(BeTrue())
		Expect(internal.ErrAlreadyApproved.Retryable()).To(BeFalse())
	})

	It("does not serialize the cause", func() {
		err := internal.NewDependencyError("payment store unavailable", internal.ErrCodeStoreUnavailable, errors.New("dial tcp 10.0.0.1:5432"))
		_, body := err.ToHTTPResponse()

		raw, marshalErr := json.Marshal(body)
		Expect(marshalErr).NotTo(HaveOccurred())
		Expect(string(raw)).NotTo(ContainSubstring("10.0.0.1"))
		Expect(string(raw)).To(ContainSubstring(`"code":"STORE_UNAVAILABLE"`))
		Expect(errors.Unwrap(err)).To(MatchError("dial tcp 10.0.0.1:5432"))
	})

	It("reports the first field message for validation details", func() {
		err := internal.NewValidationFieldError("amount", "amount must be a positive integer", internal.ErrCodeInvalidAmount)
		Expect(err.Error()).To(Equal("amount must be a positive integer"))
	})
})

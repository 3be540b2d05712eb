package payment

import (
	"strings"

	errors "github.com/frahmantamala/secure-payments/internal"
	"github.com/frahmantamala/secure-payments/internal/core/common/validation"
)

const maxReferenceLength = 256

// CreatePaymentDTO represents the request payload for creating a payment
type CreatePaymentDTO struct {
	Amount    int64   `json:"amount"`
	Reference *string `json:"reference,omitempty"`
}

func (dto CreatePaymentDTO) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", dto.Amount).Positive(errors.ErrCodeInvalidAmount)
	if dto.Reference != nil {
		validator.Field("reference", *dto.Reference).Required().MaxLength(maxReferenceLength)
	}

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// NormalizeStatusFilter validates an optional status filter; "" means no filter.
func NormalizeStatusFilter(status string) (string, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return "", nil
	}

	validator := validation.NewValidator()
	validator.Field("status", status).OneOf(errors.ErrCodeInvalidStatus, StatusPending, StatusApproved)
	if appErr := validator.Validate(); appErr != nil {
		return "", appErr
	}
	return strings.ToUpper(status), nil
}

// ListPaymentsResponse is the body of GET /payments.
type ListPaymentsResponse struct {
	Payments []*Summary `json:"payments"`
	Count    int        `json:"count"`
	Status   string     `json:"status,omitempty"`
}

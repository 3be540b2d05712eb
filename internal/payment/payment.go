package payment

import (
	"time"

	paymentDatamodel "github.com/frahmantamala/secure-payments/internal/core/datamodel/payment"
)

const (
	StatusPending  = paymentDatamodel.StatusPending
	StatusApproved = paymentDatamodel.StatusApproved
)

// Payment is the record returned by create, get and approve. Reference holds the clear
// value and is only set when the reading operation is allowed to decrypt it.
type Payment struct {
	ID                 string     `json:"id"`
	Amount             int64      `json:"amount"`
	MaskedReference    *string    `json:"masked_reference,omitempty"`
	Reference          *string    `json:"reference,omitempty"`
	EncryptedReference *string    `json:"-"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
}

// Summary is the listing view; it never carries ciphertext or the clear reference.
type Summary struct {
	ID              string     `json:"id"`
	Amount          int64      `json:"amount"`
	MaskedReference *string    `json:"masked_reference,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
}

func NewRecord(id string, amount int64, maskedReference, encryptedReference *string, createdAt time.Time) *paymentDatamodel.Payment {
	return &paymentDatamodel.Payment{
		ID:                 id,
		Amount:             amount,
		MaskedReference:    maskedReference,
		EncryptedReference: encryptedReference,
		Status:             StatusPending,
		StatusIndexKey:     paymentDatamodel.StatusIndexKey(StatusPending, createdAt, id),
		CreatedAt:          createdAt,
	}
}

func FromDataModel(p *paymentDatamodel.Payment) *Payment {
	return &Payment{
		ID:                 p.ID,
		Amount:             p.Amount,
		MaskedReference:    p.MaskedReference,
		EncryptedReference: p.EncryptedReference,
		Status:             p.Status,
		CreatedAt:          p.CreatedAt,
		ApprovedAt:         p.ApprovedAt,
	}
}

func SummaryFromDataModel(p *paymentDatamodel.Payment) *Summary {
	return &Summary{
		ID:              p.ID,
		Amount:          p.Amount,
		MaskedReference: p.MaskedReference,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt,
		ApprovedAt:      p.ApprovedAt,
	}
}

package payment

import "time"

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
)

// indexTimeLayout is fixed width so index keys sort lexicographically by creation time.
const indexTimeLayout = "2006-01-02T15:04:05.000000000Z"

type Payment struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	Amount             int64      `gorm:"column:amount;not null"`
	MaskedReference    *string    `gorm:"column:masked_reference"`
	EncryptedReference *string    `gorm:"column:encrypted_reference"`
	Status             string     `gorm:"column:status;not null"`
	StatusIndexKey     string     `gorm:"column:status_index_key;not null;uniqueIndex"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	ApprovedAt         *time.Time `gorm:"column:approved_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// StatusIndexEntry is the listing-path row for a payment. Exactly one exists per payment
// and it is replaced, never updated, when the payment changes status.
type StatusIndexEntry struct {
	IndexKey  string    `gorm:"column:index_key;primaryKey"`
	Status    string    `gorm:"column:status;not null;index"`
	PaymentID string    `gorm:"column:payment_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (StatusIndexEntry) TableName() string {
	return "payment_status_index"
}

func StatusIndexKey(status string, createdAt time.Time, id string) string {
	return status + "#" + createdAt.UTC().Format(indexTimeLayout) + "#" + id
}

// StatusIndexPrefix bounds a range scan over one status bucket.
func StatusIndexPrefix(status string) string {
	return status + "#"
}

func NewStatusIndexEntry(p *Payment) *StatusIndexEntry {
	return &StatusIndexEntry{
		IndexKey:  p.StatusIndexKey,
		Status:    p.Status,
		PaymentID: p.ID,
		CreatedAt: p.CreatedAt,
	}
}

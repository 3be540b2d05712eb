package payment

import (
	"context"
	"errors"
	"iter"
	"time"

	paymentDatamodel "github.com/frahmantamala/secure-payments/internal/core/datamodel/payment"
)

var (
	ErrRecordNotFound = errors.New("payment record not found")
	// ErrStatusMismatch means the conditional update found a status other than the expected one.
	ErrStatusMismatch = errors.New("payment status does not match the expected status")

	// ErrDuplicateRecord means a put found a record with the same id already stored.
	ErrDuplicateRecord = errors.New("payment record already exists")
)

// Store persists payments together with their status index entries. Writes that touch
// both must apply atomically.
type Store interface {
	PutRecordAndIndex(ctx context.Context, record *paymentDatamodel.Payment, entry *paymentDatamodel.StatusIndexEntry) error
	GetRecordByID(ctx context.Context, id string) (*paymentDatamodel.Payment, error)
	// QueryByStatus yields records in index order: creation time, then id.
	QueryByStatus(ctx context.Context, status string) iter.Seq2[*paymentDatamodel.Payment, error]
	ScanAll(ctx context.Context) iter.Seq2[*paymentDatamodel.Payment, error]
	ConditionalUpdateStatus(ctx context.Context, id, expectedStatus, newStatus string, approvedAt time.Time) error
	// RepairIndex restores one index entry per record and returns the number of rows changed.
	RepairIndex(ctx context.Context) (int64, error)
}

package postgres

import (
	"context"
	"errors"
	"iter"
	"time"

	paymentDatamodel "github.com/frahmantamala/secure-payments/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/secure-payments/internal/payment"
	"gorm.io/gorm"
)

const defaultPageSize = 200

// indexedPayment is a payment row joined with the index key it was reached through.
type indexedPayment struct {
	paymentDatamodel.Payment
	IndexKey string `gorm:"column:index_key"`
}

type PaymentRepository struct {
	db       *gorm.DB
	pageSize int
}

var _ paymentpkg.Store = (*PaymentRepository)(nil)

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db:       db,
		pageSize: defaultPageSize,
	}
}

// WithPageSize sets how many rows each listing round trip fetches.
func (r *PaymentRepository) WithPageSize(n int) *PaymentRepository {
	if n > 0 {
		r.pageSize = n
	}
	return r
}

func (r *PaymentRepository) PutRecordAndIndex(ctx context.Context, record *paymentDatamodel.Payment, entry *paymentDatamodel.StatusIndexEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func (r *PaymentRepository) GetRecordByID(ctx context.Context, id string) (*paymentDatamodel.Payment, error) {
	var p paymentDatamodel.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, paymentpkg.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// QueryByStatus walks the index in key order, one page per round trip, so no
// connection is held while the caller consumes results.
func (r *PaymentRepository) QueryByStatus(ctx context.Context, status string) iter.Seq2[*paymentDatamodel.Payment, error] {
	return func(yield func(*paymentDatamodel.Payment, error) bool) {
		after := ""
		for {
			var page []indexedPayment
			err := r.db.WithContext(ctx).
				Table("payment_status_index").
				Select("payments.*, payment_status_index.index_key").
				Joins("JOIN payments ON payments.id = payment_status_index.payment_id").
				Where("payment_status_index.status = ? AND payment_status_index.index_key > ?", status, after).
				Order("payment_status_index.index_key").
				Limit(r.pageSize).
				Scan(&page).Error
			if err != nil {
				yield(nil, err)
				return
			}

			for i := range page {
				p := page[i].Payment
				if !yield(&p, nil) {
					return
				}
			}

			if len(page) < r.pageSize {
				return
			}
			after = page[len(page)-1].IndexKey
		}
	}
}

// ScanAll pages through every record by (created_at, id). Each page resumes after the
// last row of the previous one, so rows committed mid-scan never shift the window.
func (r *PaymentRepository) ScanAll(ctx context.Context) iter.Seq2[*paymentDatamodel.Payment, error] {
	return func(yield func(*paymentDatamodel.Payment, error) bool) {
		var last *paymentDatamodel.Payment
		for {
			var page []*paymentDatamodel.Payment
			query := r.db.WithContext(ctx).
				Order("created_at ASC, id ASC").
				Limit(r.pageSize)
			if last != nil {
				query = query.Where("created_at > ? OR (created_at = ? AND id > ?)", last.CreatedAt, last.CreatedAt, last.ID)
			}
			err := query.Find(&page).Error
			if err != nil {
				yield(nil, err)
				return
			}

			for _, p := range page {
				if !yield(p, nil) {
					return
				}
			}

			if len(page) < r.pageSize {
				return
			}
			last = page[len(page)-1]
		}
	}
}

// ConditionalUpdateStatus applies the status change only while the stored status still
// equals expectedStatus, and swaps the index entry in the same transaction.
func (r *PaymentRepository) ConditionalUpdateStatus(ctx context.Context, id, expectedStatus, newStatus string, approvedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current paymentDatamodel.Payment
		if err := tx.Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return paymentpkg.ErrRecordNotFound
			}
			return err
		}

		newKey := paymentDatamodel.StatusIndexKey(newStatus, current.CreatedAt, id)
		res := tx.Model(&paymentDatamodel.Payment{}).
			Where("id = ? AND status = ?", id, expectedStatus).
			Updates(map[string]interface{}{
				"status":           newStatus,
				"approved_at":      approvedAt,
				"status_index_key": newKey,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return paymentpkg.ErrStatusMismatch
		}

		if err := tx.Where("index_key = ?", current.StatusIndexKey).Delete(&paymentDatamodel.StatusIndexEntry{}).Error; err != nil {
			return err
		}

		current.Status = newStatus
		current.StatusIndexKey = newKey
		return tx.Create(paymentDatamodel.NewStatusIndexEntry(&current)).Error
	})
}

// RepairIndex inserts missing index rows and deletes rows whose key no longer matches
// any record.
func (r *PaymentRepository) RepairIndex(ctx context.Context) (int64, error) {
	var changed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted := tx.Exec(`
			INSERT INTO payment_status_index (index_key, status, payment_id, created_at)
			SELECT p.status_index_key, p.status, p.id, p.created_at
			FROM payments p
			WHERE NOT EXISTS (
				SELECT 1 FROM payment_status_index i WHERE i.index_key = p.status_index_key
			)`)
		if inserted.Error != nil {
			return inserted.Error
		}

		deleted := tx.Exec(`
			DELETE FROM payment_status_index
			WHERE NOT EXISTS (
				SELECT 1 FROM payments p WHERE p.status_index_key = payment_status_index.index_key
			)`)
		if deleted.Error != nil {
			return deleted.Error
		}

		changed = inserted.RowsAffected + deleted.RowsAffected
		return nil
	})
	return changed, err
}

// DeleteIndexEntry removes a single index row. Used by operators and tests to drop a
// stale entry before a repair pass.
func (r *PaymentRepository) DeleteIndexEntry(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("index_key = ?", key).Delete(&paymentDatamodel.StatusIndexEntry{}).Error
}

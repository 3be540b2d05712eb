package memory

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	paymentDatamodel "github.com/frahmantamala/secure-payments/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/secure-payments/internal/payment"
)

// Store keeps payments and their index entries in process memory. A single lock covers
// both maps, so record and index writes are applied together.
type Store struct {
	mu      sync.RWMutex
	records map[string]paymentDatamodel.Payment
	index   map[string]paymentDatamodel.StatusIndexEntry
}

var _ paymentpkg.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[string]paymentDatamodel.Payment),
		index:   make(map[string]paymentDatamodel.StatusIndexEntry),
	}
}

func (s *Store) PutRecordAndIndex(ctx context.Context, record *paymentDatamodel.Payment, entry *paymentDatamodel.StatusIndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return paymentpkg.ErrDuplicateRecord
	}
	s.records[record.ID] = clone(*record)
	s.index[entry.IndexKey] = *entry
	return nil
}

func (s *Store) GetRecordByID(ctx context.Context, id string) (*paymentDatamodel.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, paymentpkg.ErrRecordNotFound
	}
	c := clone(record)
	return &c, nil
}

// QueryByStatus snapshots the bucket under the read lock and yields from the snapshot.
func (s *Store) QueryByStatus(ctx context.Context, status string) iter.Seq2[*paymentDatamodel.Payment, error] {
	return func(yield func(*paymentDatamodel.Payment, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		prefix := paymentDatamodel.StatusIndexPrefix(status)

		s.mu.RLock()
		keys := make([]string, 0)
		for key := range s.index {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		snapshot := make([]paymentDatamodel.Payment, 0, len(keys))
		for _, key := range keys {
			if record, ok := s.records[s.index[key].PaymentID]; ok {
				snapshot = append(snapshot, clone(record))
			}
		}
		s.mu.RUnlock()

		for i := range snapshot {
			if !yield(&snapshot[i], nil) {
				return
			}
		}
	}
}

func (s *Store) ScanAll(ctx context.Context) iter.Seq2[*paymentDatamodel.Payment, error] {
	return func(yield func(*paymentDatamodel.Payment, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		s.mu.RLock()
		snapshot := make([]paymentDatamodel.Payment, 0, len(s.records))
		for _, record := range s.records {
			snapshot = append(snapshot, clone(record))
		}
		s.mu.RUnlock()

		sort.Slice(snapshot, func(i, j int) bool {
			if snapshot[i].CreatedAt.Equal(snapshot[j].CreatedAt) {
				return snapshot[i].ID < snapshot[j].ID
			}
			return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt)
		})

		for i := range snapshot {
			if !yield(&snapshot[i], nil) {
				return
			}
		}
	}
}

func (s *Store) ConditionalUpdateStatus(ctx context.Context, id, expectedStatus, newStatus string, approvedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return paymentpkg.ErrRecordNotFound
	}
	if record.Status != expectedStatus {
		return paymentpkg.ErrStatusMismatch
	}

	delete(s.index, record.StatusIndexKey)

	record.Status = newStatus
	record.ApprovedAt = &approvedAt
	record.StatusIndexKey = paymentDatamodel.StatusIndexKey(newStatus, record.CreatedAt, record.ID)
	s.records[id] = record
	s.index[record.StatusIndexKey] = *paymentDatamodel.NewStatusIndexEntry(&record)
	return nil
}

func (s *Store) RepairIndex(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	wanted := make(map[string]struct{}, len(s.records))
	for _, record := range s.records {
		wanted[record.StatusIndexKey] = struct{}{}
		if _, ok := s.index[record.StatusIndexKey]; !ok {
			r := record
			s.index[record.StatusIndexKey] = *paymentDatamodel.NewStatusIndexEntry(&r)
			changed++
		}
	}
	for key := range s.index {
		if _, ok := wanted[key]; !ok {
			delete(s.index, key)
			changed++
		}
	}
	return changed, nil
}

// DropIndexEntry removes an index entry without touching its record, leaving the two
// out of step until RepairIndex runs.
func (s *Store) DropIndexEntry(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.index, key)
}

func clone(p paymentDatamodel.Payment) paymentDatamodel.Payment {
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		p.ApprovedAt = &t
	}
	if p.MaskedReference != nil {
		m := *p.MaskedReference
		p.MaskedReference = &m
	}
	if p.EncryptedReference != nil {
		e := *p.EncryptedReference
		p.EncryptedReference = &e
	}
	return p
}

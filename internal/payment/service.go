package payment

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/frahmantamala/secure-payments/internal"
	paymentDatamodel "github.com/frahmantamala/secure-payments/internal/core/datamodel/payment"
	"github.com/frahmantamala/secure-payments/internal/core/events"
	"github.com/frahmantamala/secure-payments/internal/keymanager"
)

// ParameterProvider resolves the runtime-editable payment settings.
type ParameterProvider interface {
	MaskPattern(ctx context.Context) (string, error)
	MaxAmount(ctx context.Context) (int64, error)
}

// KeyAccess hands out crypto capabilities for a given operation. A missing grant
// yields ok == false.
type KeyAccess interface {
	Encrypter(op keymanager.Operation) (keymanager.Encrypter, bool)
	Decrypter(op keymanager.Operation) (keymanager.Decrypter, bool)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service implements the payment lifecycle: create, get, list and approve.
// It keeps no state between calls beyond its collaborators.
type Service struct {
	store     Store
	params    ParameterProvider
	keys      KeyAccess
	publisher EventPublisher
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates a payment service. publisher may be nil.
func NewService(store Store, params ParameterProvider, keys KeyAccess, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		params:    params,
		keys:      keys,
		publisher: publisher,
		logger:    logger,
		timeout:   5 * time.Second,
		now:       time.Now,
	}
}

// WithDependencyTimeout bounds every store, key manager and parameter call.
func (s *Service) WithDependencyTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreatePayment validates the amount against the current limit, masks and encrypts the
// optional reference and persists the record with its index entry.
func (s *Service) CreatePayment(ctx context.Context, dto CreatePaymentDTO) (*Payment, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("payment validation failed", "error", err)
		return nil, err
	}

	maxAmount, err := s.maxAmount(ctx)
	if err != nil {
		return nil, err
	}
	if dto.Amount > maxAmount {
		s.logger.Warn("payment amount over limit", "amount", dto.Amount, "max_amount", maxAmount)
		return nil, apperrors.ErrAmountTooHigh.WithDetails(map[string]int64{"max_amount": maxAmount})
	}

	var masked, encrypted *string
	if dto.Reference != nil {
		m, err := s.maskReference(ctx, *dto.Reference)
		if err != nil {
			return nil, err
		}
		e, err := s.sealReference(ctx, *dto.Reference)
		if err != nil {
			return nil, err
		}
		masked, encrypted = &m, &e
	}

	id := uuid.NewString()
	createdAt := s.now().UTC().Truncate(time.Microsecond)
	record := NewRecord(id, dto.Amount, masked, encrypted, createdAt)

	err = s.call(ctx, func(ctx context.Context) error {
		return s.store.PutRecordAndIndex(ctx, record, paymentDatamodel.NewStatusIndexEntry(record))
	})
	if err != nil {
		s.logger.Error("failed to persist payment", "error", err, "payment_id", id)
		return nil, apperrors.NewDependencyError("payment store unavailable", apperrors.ErrCodeStoreUnavailable, err)
	}

	s.logger.Info("payment created",
		"payment_id", id,
		"amount", dto.Amount,
		"has_reference", encrypted != nil)

	s.publish(ctx, events.NewPaymentCreatedEvent(id, record.Amount, record.Status, createdAt))

	return FromDataModel(record), nil
}

// GetPayment returns the record by id. The clear reference is included only when the
// get operation holds the decrypt grant and decryption succeeds; otherwise it is omitted.
func (s *Service) GetPayment(ctx context.Context, id string) (*Payment, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	p := FromDataModel(record)
	if record.EncryptedReference == nil {
		return p, nil
	}

	decrypter, ok := s.keys.Decrypter(keymanager.OpGet)
	if !ok {
		s.logger.Debug("get lacks decrypt grant, omitting reference", "payment_id", id)
		return p, nil
	}

	var plaintext []byte
	err = s.call(ctx, func(ctx context.Context) error {
		var derr error
		plaintext, derr = decrypter.Decrypt(ctx, *record.EncryptedReference)
		return derr
	})
	if err != nil {
		if errors.Is(err, keymanager.ErrAccessDenied) {
			s.logger.Info("decrypt denied by key manager, omitting reference", "payment_id", id)
		} else {
			s.logger.Warn("failed to decrypt reference, omitting it", "payment_id", id, "error", err)
		}
		return p, nil
	}

	reference := string(plaintext)
	p.Reference = &reference
	return p, nil
}

// ListPayments returns a lazy, forward-only sequence of summaries. With a status filter
// it reads the status index, which may briefly list a record under its previous status.
func (s *Service) ListPayments(ctx context.Context, status string) (iter.Seq2[*Summary, error], error) {
	status, err := NormalizeStatusFilter(status)
	if err != nil {
		return nil, err
	}

	return func(yield func(*Summary, error) bool) {
		ctx, deadline := newFetchDeadline(ctx, s.timeout)
		defer deadline.release()

		var records iter.Seq2[*paymentDatamodel.Payment, error]
		if status == "" {
			records = s.store.ScanAll(ctx)
		} else {
			records = s.store.QueryByStatus(ctx, status)
		}

		deadline.start()
		for record, err := range records {
			deadline.pause()
			if err != nil {
				if cause := context.Cause(ctx); errors.Is(cause, context.DeadlineExceeded) {
					err = cause
				}
				s.logger.Error("failed to list payments", "error", err, "status", status)
				yield(nil, apperrors.NewDependencyError("payment store unavailable", apperrors.ErrCodeStoreUnavailable, err))
				return
			}
			if !yield(SummaryFromDataModel(record), nil) {
				return
			}
			deadline.resume()
		}
	}, nil
}

// fetchDeadline bounds each stretch a listing spends inside the store. The clock is
// stopped while the consumer holds an item, so a slow reader never times out a fetch.
type fetchDeadline struct {
	timeout time.Duration
	cancel  context.CancelCauseFunc
	timer   *time.Timer
}

func newFetchDeadline(parent context.Context, timeout time.Duration) (context.Context, *fetchDeadline) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancelCause(parent)
	return ctx, &fetchDeadline{timeout: timeout, cancel: cancel}
}

func (d *fetchDeadline) start() {
	d.timer = time.AfterFunc(d.timeout, func() { d.cancel(context.DeadlineExceeded) })
}

func (d *fetchDeadline) pause() {
	d.timer.Stop()
}

func (d *fetchDeadline) resume() {
	d.timer.Reset(d.timeout)
}

func (d *fetchDeadline) release() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.cancel(context.Canceled)
}

// ApprovePayment moves a PENDING payment to APPROVED. Approval is not idempotent: a
// second call fails with an invalid state error and leaves the record unchanged.
func (s *Service) ApprovePayment(ctx context.Context, id string) (*Payment, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Status != StatusPending {
		s.logger.Warn("cannot approve payment in current status", "payment_id", id, "current_status", record.Status)
		return nil, apperrors.ErrAlreadyApproved
	}

	approvedAt := s.now().UTC().Truncate(time.Microsecond)
	err = s.call(ctx, func(ctx context.Context) error {
		return s.store.ConditionalUpdateStatus(ctx, id, StatusPending, StatusApproved, approvedAt)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrStatusMismatch):
		current, rerr := s.getRecord(ctx, id)
		if rerr == nil {
			s.logger.Warn("lost approval race", "payment_id", id, "current_status", current.Status)
		}
		return nil, apperrors.ErrAlreadyApproved
	case errors.Is(err, ErrRecordNotFound):
		return nil, apperrors.ErrPaymentNotFound
	default:
		s.logger.Error("failed to approve payment", "error", err, "payment_id", id)
		return nil, apperrors.NewDependencyError("payment store unavailable", apperrors.ErrCodeStoreUnavailable, err)
	}

	record.Status = StatusApproved
	record.ApprovedAt = &approvedAt
	record.StatusIndexKey = paymentDatamodel.StatusIndexKey(StatusApproved, record.CreatedAt, record.ID)

	s.logger.Info("payment approved", "payment_id", id, "amount", record.Amount)
	s.publish(ctx, events.NewPaymentApprovedEvent(id, record.Amount, approvedAt))

	return FromDataModel(record), nil
}

func (s *Service) getRecord(ctx context.Context, id string) (*paymentDatamodel.Payment, error) {
	if id == "" {
		return nil, apperrors.NewValidationFieldError("id", "id is required", apperrors.ErrCodeValidationFailed)
	}

	var record *paymentDatamodel.Payment
	err := s.call(ctx, func(ctx context.Context) error {
		var gerr error
		record, gerr = s.store.GetRecordByID(ctx, id)
		return gerr
	})
	if errors.Is(err, ErrRecordNotFound) {
		return nil, apperrors.ErrPaymentNotFound
	}
	if err != nil {
		s.logger.Error("failed to read payment", "error", err, "payment_id", id)
		return nil, apperrors.NewDependencyError("payment store unavailable", apperrors.ErrCodeStoreUnavailable, err)
	}
	return record, nil
}

func (s *Service) maxAmount(ctx context.Context) (int64, error) {
	var maxAmount int64
	err := s.call(ctx, func(ctx context.Context) error {
		var perr error
		maxAmount, perr = s.params.MaxAmount(ctx)
		return perr
	})
	if err != nil {
		s.logger.Error("failed to resolve max amount", "error", err)
		return 0, apperrors.NewDependencyError("payment configuration unavailable", apperrors.ErrCodeConfigUnavailable, err)
	}
	return maxAmount, nil
}

func (s *Service) maskReference(ctx context.Context, reference string) (string, error) {
	var pattern string
	err := s.call(ctx, func(ctx context.Context) error {
		var perr error
		pattern, perr = s.params.MaskPattern(ctx)
		return perr
	})
	if err != nil {
		s.logger.Error("failed to resolve mask pattern", "error", err)
		return "", apperrors.NewDependencyError("payment configuration unavailable", apperrors.ErrCodeConfigUnavailable, err)
	}

	masked, err := ApplyMask(pattern, reference)
	switch {
	case err == nil:
		return masked, nil
	case errors.Is(err, ErrReferenceTooShort):
		return "", apperrors.NewValidationFieldError("reference", "reference is shorter than the mask pattern", apperrors.ErrCodeInvalidReference)
	default:
		s.logger.Error("mask pattern is unusable", "error", err)
		return "", apperrors.NewDependencyError("payment configuration unavailable", apperrors.ErrCodeConfigUnavailable, err)
	}
}

// sealReference encrypts the reference and, when create also holds decrypt, opens the
// envelope again to confirm it is readable before anything is persisted.
func (s *Service) sealReference(ctx context.Context, reference string) (string, error) {
	encrypter, ok := s.keys.Encrypter(keymanager.OpCreate)
	if !ok {
		s.logger.Error("create lacks encrypt grant")
		return "", apperrors.ErrEncryptNotGranted
	}

	var ciphertext string
	err := s.call(ctx, func(ctx context.Context) error {
		var eerr error
		ciphertext, eerr = encrypter.Encrypt(ctx, []byte(reference))
		return eerr
	})
	if errors.Is(err, keymanager.ErrAccessDenied) {
		s.logger.Error("encrypt denied by key manager")
		return "", apperrors.ErrEncryptNotGranted
	}
	if err != nil {
		s.logger.Error("failed to encrypt reference", "error", err)
		return "", apperrors.NewDependencyError("key manager unavailable", apperrors.ErrCodeKeyUnavailable, err)
	}

	decrypter, ok := s.keys.Decrypter(keymanager.OpCreate)
	if !ok {
		return ciphertext, nil
	}

	var plaintext []byte
	err = s.call(ctx, func(ctx context.Context) error {
		var derr error
		plaintext, derr = decrypter.Decrypt(ctx, ciphertext)
		return derr
	})
	if errors.Is(err, keymanager.ErrAccessDenied) {
		return ciphertext, nil
	}
	if err != nil || string(plaintext) != reference {
		if err == nil {
			err = errors.New("envelope does not round trip")
		}
		s.logger.Error("failed to verify encrypted reference", "error", err)
		return "", apperrors.NewDependencyError("key manager unavailable", apperrors.ErrCodeKeyUnavailable, err)
	}
	return ciphertext, nil
}

// call runs fn under the dependency timeout.
func (s *Service) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := apperrors.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "event_type", event.EventType())
	}
}

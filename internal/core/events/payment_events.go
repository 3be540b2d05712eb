package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCreated  = "payment.created"
	EventTypePaymentApproved = "payment.approved"
)

// Payment events never carry the reference, masked or otherwise.

type PaymentCreatedEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

func NewPaymentCreatedEvent(paymentID string, amount int64, status string, createdAt time.Time) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCreated,
			Timestamp: createdAt,
			Data: map[string]interface{}{
				"payment_id": paymentID,
				"amount":     amount,
				"status":     status,
			},
		},
		PaymentID: paymentID,
		Amount:    amount,
		Status:    status,
	}
}

type PaymentApprovedEvent struct {
	BaseEvent
	PaymentID  string    `json:"payment_id"`
	Amount     int64     `json:"amount"`
	ApprovedAt time.Time `json:"approved_at"`
}

func NewPaymentApprovedEvent(paymentID string, amount int64, approvedAt time.Time) *PaymentApprovedEvent {
	return &PaymentApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentApproved,
			Timestamp: approvedAt,
			Data: map[string]interface{}{
				"payment_id":  paymentID,
				"amount":      amount,
				"approved_at": approvedAt,
			},
		},
		PaymentID:  paymentID,
		Amount:     amount,
		ApprovedAt: approvedAt,
	}
}

package payment

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	errors "github.com/frahmantamala/secure-payments/internal"
	"github.com/frahmantamala/secure-payments/internal/transport"
	"github.com/frahmantamala/secure-payments/pkg/logger"
	"github.com/go-chi/chi"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type ServiceAPI interface {
	CreatePayment(ctx context.Context, dto CreatePaymentDTO) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	ListPayments(ctx context.Context, status string) (iter.Seq2[*Summary, error], error)
	ApprovePayment(ctx context.Context, id string) (*Payment, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var dto CreatePaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreatePayment: invalid request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	payment, err := h.Service.CreatePayment(r.Context(), dto)
	if err != nil {
		h.Logger.Error("CreatePayment: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, payment)
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payment, err := h.Service.GetPayment(r.Context(), id)
	if err != nil {
		h.Logger.Error("GetPayment: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, payment)
}

// ListPayments handles GET /api/v1/payments?status=&limit=
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 || l > maxListLimit {
			h.Logger.Error("ListPayments: invalid limit", "limit", limitStr)
			h.HandleError(w, errors.NewValidationFieldError("limit", "limit must be between 1 and 1000", errors.ErrCodeValidationFailed))
			return
		}
		limit = l
	}

	payments, err := h.Service.ListPayments(r.Context(), status)
	if err != nil {
		h.Logger.Error("ListPayments: invalid filter", "error", err, "status", status)
		h.HandleServiceError(w, err)
		return
	}

	resp := ListPaymentsResponse{Payments: make([]*Summary, 0), Status: strings.ToUpper(strings.TrimSpace(status))}
	for summary, err := range payments {
		if err != nil {
			h.Logger.Error("ListPayments: service error", "error", err, "status", status)
			h.HandleServiceError(w, err)
			return
		}
		resp.Payments = append(resp.Payments, summary)
		if len(resp.Payments) == limit {
			break
		}
	}
	resp.Count = len(resp.Payments)

	h.WriteJSON(w, http.StatusOK, resp)
}

// ApprovePayment handles POST /api/v1/payments/{id}/approve
func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payment, err := h.Service.ApprovePayment(r.Context(), id)
	if err != nil {
		h.Logger.Error("ApprovePayment: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("ApprovePayment: payment approved", "payment_id", payment.ID)

	h.WriteJSON(w, http.StatusOK, payment)
}

package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/secure-payments/internal"
	"github.com/frahmantamala/secure-payments/internal/keymanager"
	"github.com/frahmantamala/secure-payments/internal/payment"
	"github.com/frahmantamala/secure-payments/internal/payment/memory"
)

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// brokenListing fails part way through a listing.
type brokenListing struct {
	payment.ServiceAPI
}

func (brokenListing) ListPayments(ctx context.Context, status string) (iter.Seq2[*payment.Summary, error], error) {
	return func(yield func(*payment.Summary, error) bool) {
		if !yield(&payment.Summary{ID: "p-1", Amount: 1, Status: payment.StatusPending, CreatedAt: time.Now()}, nil) {
			return
		}
		yield(nil, apperrors.NewDependencyError("payment store unavailable", apperrors.ErrCodeStoreUnavailable, errors.New("boom")))
	}, nil
}

func newRouter(svc payment.ServiceAPI) *chi.Mux {
	h := payment.NewHandler(svc)
	h.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.Route("/api/v1/payments", func(pr chi.Router) {
		pr.Post("/", h.CreatePayment)
		pr.Get("/", h.ListPayments)
		pr.Get("/{id}", h.GetPayment)
		pr.Post("/{id}/approve", h.ApprovePayment)
	})
	return r
}

var _ = Describe("Handler", func() {
	var (
		router *chi.Mux
		svc    *payment.Service
	)

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var reader io.Reader
		switch b := body.(type) {
		case nil:
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decodeError := func(rec *httptest.ResponseRecorder) errorBody {
		var body errorBody
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	create := func(amount int64, reference string) payment.Payment {
		payload := map[string]interface{}{"amount": amount}
		if reference != "" {
			payload["reference"] = reference
		}
		rec := do(http.MethodPost, "/api/v1/payments", payload)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var p payment.Payment
		Expect(json.Unmarshal(rec.Body.Bytes(), &p)).To(Succeed())
		return p
	}

	BeforeEach(func() {
		keys, err := keymanager.NewLocalKeyManager("payments-key", bytes.Repeat([]byte{5}, 32))
		Expect(err).NotTo(HaveOccurred())

		svc = payment.NewService(
			memory.New(),
			&fakeParams{pattern: "****-####", maxAmount: 1000},
			keymanager.NewScoped(keys, nil),
			nil,
			slog.New(slog.NewTextHandler(io.Discard, nil)),
		)
		router = newRouter(svc)
	})

	Describe("POST /payments", func() {
		It("creates a payment", func() {
			p := create(250, "12345678")
			Expect(p.ID).NotTo(BeEmpty())
			Expect(p.Status).To(Equal(payment.StatusPending))
			Expect(*p.MaskedReference).To(Equal("****-5678"))
			Expect(p.Reference).To(BeNil())
		})

		It("does not echo ciphertext", func() {
			rec := do(http.MethodPost, "/api/v1/payments", map[string]interface{}{"amount": 1, "reference": "12345678"})
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Body.String()).NotTo(ContainSubstring("v1.payments-key."))
			Expect(rec.Body.String()).NotTo(ContainSubstring("12345678"))
		})

		It("maps validation failures to 400", func() {
			rec := do(http.MethodPost, "/api/v1/payments", map[string]interface{}{"amount": 0})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(rec).Error.Type).To(Equal(string(apperrors.ErrorTypeValidation)))
		})

		It("maps malformed json to 400", func() {
			rec := do(http.MethodPost, "/api/v1/payments", "{not json")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps the amount limit to 422", func() {
			rec := do(http.MethodPost, "/api/v1/payments", map[string]interface{}{"amount": 1001})
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
			body := decodeError(rec)
			Expect(body.Error.Type).To(Equal(string(apperrors.ErrorTypeLimitExceeded)))
			Expect(body.Error.Code).To(Equal(string(apperrors.ErrCodeAmountTooHigh)))
		})
	})

	Describe("GET /payments/{id}", func() {
		It("returns the payment with its clear reference", func() {
			created := create(10, "12345678")

			rec := do(http.MethodGet, "/api/v1/payments/"+created.ID, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var got payment.Payment
			Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
			Expect(got.ID).To(Equal(created.ID))
			Expect(*got.Reference).To(Equal("12345678"))
		})

		It("returns 404 for unknown ids", func() {
			rec := do(http.MethodGet, "/api/v1/payments/unknown", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(decodeError(rec).Error.Code).To(Equal(string(apperrors.ErrCodePaymentNotFound)))
		})
	})

	Describe("GET /payments", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				create(int64(i+1), "")
			}
		})

		It("lists payments with a count", func() {
			rec := do(http.MethodGet, "/api/v1/payments", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body payment.ListPaymentsResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Count).To(Equal(3))
			Expect(body.Payments).To(HaveLen(3))
		})

		It("honours the limit", func() {
			rec := do(http.MethodGet, "/api/v1/payments?limit=2", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body payment.ListPaymentsResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Count).To(Equal(2))
		})

		It("filters by status", func() {
			rec := do(http.MethodGet, "/api/v1/payments?status=approved", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body payment.ListPaymentsResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Count).To(BeZero())
			Expect(body.Payments).To(BeEmpty())
			Expect(body.Status).To(Equal(payment.StatusApproved))
		})

		DescribeTable("rejects bad query parameters",
			func(query string) {
				rec := do(http.MethodGet, "/api/v1/payments?"+query, nil)
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			},
			Entry("unknown status", "status=REJECTED"),
			Entry("zero limit", "limit=0"),
			Entry("limit too large", "limit=1001"),
			Entry("non-numeric limit", "limit=ten"),
		)

		It("maps a failure mid-listing to 503", func() {
			router = newRouter(brokenListing{})
			rec := do(http.MethodGet, "/api/v1/payments", nil)
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(rec.Header().Get("Retry-After")).NotTo(BeEmpty())
		})
	})

	Describe("POST /payments/{id}/approve", func() {
		It("approves a pending payment and refuses a second approval", func() {
			created := create(10, "")

			rec := do(http.MethodPost, "/api/v1/payments/"+created.ID+"/approve", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var approved payment.Payment
			Expect(json.Unmarshal(rec.Body.Bytes(), &approved)).To(Succeed())
			Expect(approved.Status).To(Equal(payment.StatusApproved))
			Expect(approved.ApprovedAt).NotTo(BeNil())

			rec = do(http.MethodPost, "/api/v1/payments/"+created.ID+"/approve", nil)
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(decodeError(rec).Error.Type).To(Equal(string(apperrors.ErrorTypeInvalidState)))
		})

		It("returns 404 for unknown ids", func() {
			rec := do(http.MethodPost, "/api/v1/payments/unknown/approve", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})

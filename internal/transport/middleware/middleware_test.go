package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/secure-payments/internal"
	"github.com/frahmantamala/secure-payments/internal/transport/middleware"
)

var _ = Describe("LoggingMiddleware", func() {
	It("keeps references and key material out of the log", func() {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		handler := middleware.LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p-1","reference":"4111111111111111"}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewBufferString(`{"amount":10,"reference":"4111111111111111"}`))
		req.Header.Set("X-Api-Key", "top-secret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(buf.String()).NotTo(ContainSubstring("4111111111111111"))
		Expect(buf.String()).NotTo(ContainSubstring("top-secret"))
		Expect(buf.String()).To(ContainSubstring("[FILTERED]"))
	})
})

var _ = Describe("RequestID", func() {
	It("propagates the caller's trace id", func() {
		var seen string
		handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = internal.RequestIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Trace-ID", "trace-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(seen).To(Equal("trace-123"))
		Expect(rec.Header().Get("X-Trace-ID")).To(Equal("trace-123"))
	})

	It("generates an id when none is supplied", func() {
		var seen string
		handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = internal.RequestIDFromContext(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(seen).NotTo(BeEmpty())
		Expect(rec.Header().Get("X-Trace-ID")).To(Equal(seen))
	})
})

var _ = Describe("CORS", func() {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	It("allows configured origins", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		middleware.CORS("http://localhost:3000, https://app.example.com")(next).ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
	})

	It("ignores other origins", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		rec := httptest.NewRecorder()
		middleware.CORS("http://localhost:3000")(next).ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("answers preflight requests", func() {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "http://any.example.com")
		rec := httptest.NewRecorder()
		middleware.CORS("*")(next).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://any.example.com"))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into an internal error response", func() {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		handler := middleware.RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring(`"type":"INTERNAL_ERROR"`))
		Expect(rec.Body.String()).NotTo(ContainSubstring("boom"))
		Expect(buf.String()).To(ContainSubstring("boom"))
	})
})

package middleware

import (
	"net/http"

	"github.com/frahmantamala/secure-payments/internal"
	"github.com/frahmantamala/secure-payments/pkg/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

const traceHeader = "X-Trace-ID"

// RequestID reuses chi's request id when present, otherwise the caller's trace header,
// and attaches it to both the request context and the request-scoped logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = middleware.GetReqID(r.Context())
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := internal.ContextWithRequestID(r.Context(), traceID)
		ctx = logger.With(ctx, "traceID", traceID)

		w.Header().Set(traceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

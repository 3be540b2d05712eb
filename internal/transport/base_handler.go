package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/secure-payments/internal"
	"github.com/frahmantamala/secure-payments/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// HandleError writes an AppError with its mapped status code.
func (h *BaseHandler) HandleError(w http.ResponseWriter, appErr *errors.AppError) {
	status, body := appErr.ToHTTPResponse()
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", "type", appErr.Type, "code", appErr.Code, "error", appErr)
	} else {
		h.Logger.Debug("request rejected", "type", appErr.Type, "code", appErr.Code, "message", appErr.GetDetailedMessage())
	}
	if appErr.Retryable() {
		w.Header().Set("Retry-After", "1")
	}
	h.WriteJSON(w, status, body)
}

// HandleServiceError maps any service error onto the error response. Errors that are
// not AppErrors are reported as internal errors without leaking their text.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := errors.IsAppError(err); ok {
		h.HandleError(w, appErr)
		return
	}
	h.HandleError(w, errors.NewInternalError("internal server error", err))
}

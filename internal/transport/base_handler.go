package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

const maxBodyBytes = 1 << 20

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
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.Logger.Error("http error", "status", status, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResp := map[string]interface{}{
		"code":    status,
		"message": message,
	}

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		h.Logger.Error("failed to encode error response", "error", err)
	}
}

// HandleServiceError renders AppErrors with their own status and body; any
// other error is logged and reported as a 500 without leaking its text.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := errors.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		if status >= http.StatusInternalServerError {
			h.Logger.Error("service error", "code", appErr.Code, "error", err)
		}
		h.WriteJSON(w, status, body)
		return
	}

	h.Logger.Error("unhandled service error", "error", err)
	status, body := errors.NewInternalError("Internal server error", nil).ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// DecodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("Invalid request body", errors.ErrCodeValidationFailed).WithCause(err)
	}
	return nil
}

// RequireActor fetches the authenticated caller or writes a 401.
func (h *BaseHandler) RequireActor(w http.ResponseWriter, r *http.Request) (errors.Actor, bool) {
	actor, ok := errors.ActorFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, errors.ErrInvalidToken)
		return errors.Actor{}, false
	}
	return actor, true
}

// URLParamID parses a positive int64 chi path parameter.
func (h *BaseHandler) URLParamID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationFieldError(name, "invalid "+name, errors.ErrCodeValidationFailed)
	}
	return id, nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}

	return authHeader[7:]
}

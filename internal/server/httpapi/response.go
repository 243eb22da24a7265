package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/payments"
	"github.com/psicopedagogiando/tienda/internal/server/services"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func mapDomainError(err error) (int, string, string) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "VALIDATION_ERROR", verr.Error()
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", "invalid input"
	case errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, "TOKEN_EXPIRED", "session expired"
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "authentication required"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "FORBIDDEN", "access denied"
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, services.ErrMaterialUnavailable):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "resource already exists"
	case errors.Is(err, payments.ErrNotConfigured):
		return http.StatusServiceUnavailable, "PAYMENTS_UNAVAILABLE", "payments are not available"
	case errors.Is(err, payments.ErrGateway):
		return http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR", "payment gateway error"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func (h *Handler) writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	args := []any{"operation", operation, "status_code", status, "code", code, "err", err}
	if status >= http.StatusInternalServerError {
		h.log.Error(ctx, "request failed", args...)
	} else {
		h.log.Debug(ctx, "request rejected", args...)
	}
	writeError(w, status, code, msg)
}

func (h *Handler) writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	h.log.Debug(ctx, "invalid request", "operation", operation, "err", err)
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

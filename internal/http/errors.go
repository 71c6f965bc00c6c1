package http

import (
	"context"
	"errors"
	"net/http"

	"despesas/internal/core"
	applog "despesas/internal/log"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidFormat),
		errors.Is(err, core.ErrInvalidScope),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// messageFor is the user-facing message for a status.
func messageFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Dados inválidos"
	case http.StatusUnauthorized:
		return "Não autorizado"
	case http.StatusNotFound:
		return "Não encontrado"
	case http.StatusConflict:
		return "Conflito com o estado atual"
	case http.StatusGatewayTimeout:
		return "Tempo esgotado"
	default:
		return "Erro interno do servidor"
	}
}

// writeError logs err and writes the mapped JSON error. Internal errors are
// never echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := statusFor(err)
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentHTTP)

	detail := err.Error()
	if status >= http.StatusInternalServerError {
		fields := applog.NewFields()
		fields[applog.FieldPath] = r.URL.Path
		fields[applog.FieldStatusCode] = status
		applog.NewStructuredLogger(logger).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, operation, fields)
		detail = ""
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, operation,
			applog.FieldError, err,
			applog.FieldStatusCode, status)
	}

	ErrorResponse(status, messageFor(status), detail).Write(w)
}

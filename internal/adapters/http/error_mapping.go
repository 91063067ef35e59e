package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNoChanges):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBusy):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrClassifierUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrClassifierResponse):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the internal detail and answers with the user-safe message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	attrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err.Error(),
	}
	if status >= 500 {
		slog.Error("request_failed", attrs...)
	} else {
		slog.Debug("request_failed", attrs...)
	}
	writeJSON(w, status, map[string]string{"error": domain.UserMessage(err)})
}

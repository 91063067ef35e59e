package docrepo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "docrepo status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("docrepo %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("docrepo %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// classifyReadError allows retries. Reads and set-current are safe to repeat.
func classifyReadError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// classifyWriteError never retries: a create or upload whose response was
// lost may already have been applied, and the file body is consumed.
func classifyWriteError(err error) resilience.ErrorClassification {
	class := classifyReadError(err)
	class.Retryable = false
	return class
}

// toDomainError maps a transport failure onto the domain error kinds. The
// status body stays in the wrapped chain for logs only.
func toDomainError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return domain.WrapError(domain.ErrNotFound, operation, err)
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return domain.WrapError(domain.ErrUnauthorized, operation, err)
		case statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnprocessableEntity:
			return domain.WrapError(domain.ErrValidation, operation, err)
		case isRetryableHTTPStatus(statusErr.StatusCode):
			return domain.WrapError(domain.ErrStore, operation, domain.WrapError(domain.ErrTemporary, "retryable status", err))
		default:
			return domain.WrapError(domain.ErrStore, operation, err)
		}
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if classifyReadError(err).Retryable || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrStore, operation, domain.WrapError(domain.ErrTemporary, "transport", err))
	}
	return domain.WrapError(domain.ErrStore, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

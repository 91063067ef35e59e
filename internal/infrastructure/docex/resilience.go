package docex

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/resilience"
)

func classifyDocexError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}

	var respErr *domain.ClassifierResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: respErr.StatusCode >= 500}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: !netErr.Timeout(), RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// toDomainError keeps status failures as ClassifierResponseError. Transport
// failures, timeouts and an open breaker become ErrClassifierUnavailable.
func toDomainError(err error) error {
	var respErr *domain.ClassifierResponseError
	switch {
	case errors.As(err, &respErr), domain.IsKind(err, domain.ErrClassifierResponse):
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		return domain.WrapError(domain.ErrClassifierUnavailable, "classify", err)
	}
}

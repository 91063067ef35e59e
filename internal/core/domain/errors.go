package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrNoChanges             = errors.New("no changes to submit")
	ErrDuplicateTag          = errors.New("tag already present")
	ErrNotFound              = errors.New("not found")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrClassifierResponse    = errors.New("classifier rejected request")
	ErrBusy                  = errors.New("classification already running")
	ErrStore                 = errors.New("document store failure")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ClassifierResponseError is a non-2xx answer from the classifier service.
type ClassifierResponseError struct {
	StatusCode int
	Body       string
}

func (e *ClassifierResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("classifier status %d", e.StatusCode)
	}
	return fmt.Sprintf("classifier status %d: %s", e.StatusCode, e.Body)
}

func (e *ClassifierResponseError) Unwrap() error { return ErrClassifierResponse }

// Reason subdivides classifier failures by status class.
func (e *ClassifierResponseError) Reason() string {
	switch {
	case e.StatusCode == http.StatusBadRequest:
		return "invalid_format"
	case e.StatusCode == http.StatusUnprocessableEntity:
		return "validation"
	case e.StatusCode >= 500:
		return "server_error"
	default:
		return "other"
	}
}

// UserMessage renders err as text that is safe to show outside the core.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var respErr *ClassifierResponseError
	switch {
	case errors.As(err, &respErr):
		switch respErr.Reason() {
		case "invalid_format":
			return "Invalid file format for classification."
		case "validation":
			return "File validation error. Please ensure the document is a supported file."
		case "server_error":
			return "Classification service error. Please try again later."
		default:
			return fmt.Sprintf("Classification failed (error %d).", respErr.StatusCode)
		}
	case IsKind(err, ErrBusy):
		return "This document is already being classified."
	case IsKind(err, ErrClassifierUnavailable):
		return "Classification service is unavailable or timed out."
	case IsKind(err, ErrClassifierResponse):
		return "Classification failed. Please try again."
	case IsKind(err, ErrNoChanges):
		return "Please make some changes to update the document."
	case IsKind(err, ErrDuplicateTag):
		return "This tag already exists on the document."
	case IsKind(err, ErrValidation):
		var fieldErr *FieldError
		if errors.As(err, &fieldErr) {
			return fieldErr.Message
		}
		return "The request is invalid."
	case IsKind(err, ErrNotFound):
		return "Document or version not found."
	case IsKind(err, ErrUnauthorized):
		return "Authentication required."
	default:
		return "The document service failed to complete the request."
	}
}

// FieldError names the field that failed local validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Unwrap() error { return ErrValidation }

func NewFieldError(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

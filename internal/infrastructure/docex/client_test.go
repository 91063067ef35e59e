package docex

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/resilience"
)

func newTestClient(serverURL string, timeout time.Duration) *Client {
	return New(Options{
		BaseURL: serverURL,
		Timeout: timeout,
		ResilienceExecutor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
			BreakerEnabled:      false,
		}),
	})
}

func TestClassifySendsMultipartFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify/document" {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		raw, _ := io.ReadAll(file)
		if header.Filename != "mail.eml" || string(raw) != "From: a@b" {
			t.Errorf("unexpected upload %s %q", header.Filename, raw)
		}
		_, _ = w.Write([]byte(`{"success":true,"predicted_class":"email","confidence":0.92}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL, time.Second).Classify(context.Background(), "mail.eml", "message/rfc822", strings.NewReader("From: a@b"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !result.Success || result.Label != "email" || result.Confidence != 0.92 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifyStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		reason string
	}{
		{status: http.StatusBadRequest, reason: "invalid_format"},
		{status: http.StatusUnprocessableEntity, reason: "validation"},
		{status: http.StatusInternalServerError, reason: "server_error"},
		{status: http.StatusTeapot, reason: "other"},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"nope"}`, tc.status)
		}))

		_, err := newTestClient(server.URL, time.Second).Classify(context.Background(), "a.pdf", "", strings.NewReader("x"))
		server.Close()

		var respErr *domain.ClassifierResponseError
		if !errors.As(err, &respErr) {
			t.Fatalf("status %d: expected ClassifierResponseError, got %v", tc.status, err)
		}
		if respErr.Reason() != tc.reason {
			t.Fatalf("status %d: expected reason %s, got %s", tc.status, tc.reason, respErr.Reason())
		}
		if !domain.IsKind(err, domain.ErrClassifierResponse) {
			t.Fatalf("status %d: expected classifier response kind", tc.status)
		}
	}
}

func TestClassifyRetriesBadGateway(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"predicted_class":"not-email","confidence":0.7}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL, time.Second).Classify(context.Background(), "a.pdf", "", strings.NewReader("body"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Label != "not-email" || calls.Load() != 2 {
		t.Fatalf("unexpected result %+v after %d calls", result, calls.Load())
	}
}

func TestClassifyTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := newTestClient(server.URL, time.Second).Classify(ctx, "a.pdf", "", strings.NewReader("body"))
	if !domain.IsKind(err, domain.ErrClassifierUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestClassifyConnectionRefusedIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url, time.Second).Classify(context.Background(), "a.pdf", "", strings.NewReader("body"))
	if !domain.IsKind(err, domain.ErrClassifierUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/observability/metrics"
)

type runnerFake struct {
	outcome *domain.ClassificationOutcome
	err     error
}

func (f runnerFake) Classify(context.Context, string) (*domain.ClassificationOutcome, error) {
	return f.outcome, f.err
}

func (f runnerFake) Abandon(string) bool { return false }

func (f runnerFake) State(string) domain.WorkflowState { return domain.StateIdle }

type queueFake struct {
	finished []domain.ClassificationOutcome
}

func (f *queueFake) PublishClassificationRequested(context.Context, string) error { return nil }

func (f *queueFake) SubscribeClassificationRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *queueFake) PublishClassificationFinished(_ context.Context, outcome domain.ClassificationOutcome) error {
	f.finished = append(f.finished, outcome)
	return nil
}

func TestHandleRequestPublishesOutcome(t *testing.T) {
	queue := &queueFake{}
	runner := runnerFake{outcome: &domain.ClassificationOutcome{DocumentID: "d1", State: domain.StateDone, Tagged: true}}

	if err := handleRequest(context.Background(), runner, queue, metrics.NewWorkerMetrics(service), "d1"); err != nil {
		t.Fatalf("handleRequest() error = %v", err)
	}
	if len(queue.finished) != 1 || !queue.finished[0].Tagged {
		t.Fatalf("expected one published outcome, got %+v", queue.finished)
	}
}

func TestHandleRequestPublishesFailedOutcome(t *testing.T) {
	queue := &queueFake{}
	runErr := domain.WrapError(domain.ErrClassifierUnavailable, "classify", errors.New("timeout"))
	runner := runnerFake{
		outcome: &domain.ClassificationOutcome{DocumentID: "d1", State: domain.StateFailed, FailedStage: domain.StateClassifying},
		err:     runErr,
	}

	err := handleRequest(context.Background(), runner, queue, metrics.NewWorkerMetrics(service), "d1")
	if !errors.Is(err, domain.ErrClassifierUnavailable) {
		t.Fatalf("expected classifier error, got %v", err)
	}
	if len(queue.finished) != 1 || queue.finished[0].FailedStage != domain.StateClassifying {
		t.Fatalf("expected failed outcome to be published, got %+v", queue.finished)
	}
}

func TestHandleRequestDropsBusyDocument(t *testing.T) {
	queue := &queueFake{}
	runner := runnerFake{err: domain.WrapError(domain.ErrBusy, "classify", errors.New("in flight"))}

	if err := handleRequest(context.Background(), runner, queue, metrics.NewWorkerMetrics(service), "d1"); err != nil {
		t.Fatalf("expected busy request to be dropped, got %v", err)
	}
	if len(queue.finished) != 0 {
		t.Fatalf("expected nothing published, got %+v", queue.finished)
	}
}

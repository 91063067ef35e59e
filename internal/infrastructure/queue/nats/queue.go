package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/infrastructure/resilience"
)

const (
	DefaultRequestSubject = "docrepo.classification.requested"
	DefaultOutcomeSubject = "docrepo.classification.finished"
	DefaultQueueGroup     = "classifiers"
)

// Queue carries classification requests (plain document ids) to workers and
// broadcasts finished outcomes as JSON. It implements ports.ClassificationQueue.
type Queue struct {
	conn           *nats.Conn
	requestSubject string
	outcomeSubject string
	queueGroup     string
	executor       *resilience.Executor
}

type Options struct {
	Name                 string
	RequestSubject       string
	OutcomeSubject       string
	QueueGroup           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

// OutcomeEvent is the payload published on the outcome subject.
type OutcomeEvent struct {
	Outcome    domain.ClassificationOutcome `json:"outcome"`
	FinishedAt time.Time                    `json:"finished_at"`
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	name := options.Name
	if name == "" {
		name = "docrepo-assistant"
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		requestSubject: withDefault(options.RequestSubject, DefaultRequestSubject),
		outcomeSubject: withDefault(options.OutcomeSubject, DefaultOutcomeSubject),
		queueGroup:     withDefault(options.QueueGroup, DefaultQueueGroup),
		executor:       options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishClassificationRequested(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return domain.WrapError(domain.ErrValidation, "publish classification request", errors.New("empty document id"))
	}
	return q.publish(ctx, "nats.publish_request", q.requestSubject, []byte(documentID))
}

func (q *Queue) PublishClassificationFinished(ctx context.Context, outcome domain.ClassificationOutcome) error {
	payload, err := encodeOutcome(outcome, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	return q.publish(ctx, "nats.publish_outcome", q.outcomeSubject, payload)
}

// SubscribeClassificationRequested blocks until ctx is done, handing each
// request to handler. Members of the queue group share the stream.
func (q *Queue) SubscribeClassificationRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.requestSubject, q.queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}

		documentID := strings.TrimSpace(string(msg.Data))
		if documentID == "" {
			slog.Warn("classification_request_empty", "subject", msg.Subject)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, documentID); err != nil {
			slog.Error("classification_handler_failed", "document_id", documentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) publish(ctx context.Context, operation, subject string, payload []byte) error {
	err := q.executor.Execute(ctx, operation, func(context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}, classifyNATSError)
	return wrapTemporaryIfNeeded(operation, err)
}

func encodeOutcome(outcome domain.ClassificationOutcome, finishedAt time.Time) ([]byte, error) {
	return json.Marshal(OutcomeEvent{Outcome: outcome, FinishedAt: finishedAt})
}

func withDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

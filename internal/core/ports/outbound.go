package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

// DocumentStore is the remote document service that persists documents,
// versions and tags.
type DocumentStore interface {
	ListDocuments(ctx context.Context, query domain.CatalogQuery) ([]domain.Document, error)
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	ListVersions(ctx context.Context, documentID string) ([]domain.Version, error)
	CreateDocument(ctx context.Context, req domain.CreateDocumentRequest) (*domain.Document, error)
	UpdateDocument(ctx context.Context, documentID string, req domain.UpdateDocumentRequest) (*domain.Document, error)
	SetCurrentVersion(ctx context.Context, documentID, versionID string) error
	DeleteDocument(ctx context.Context, documentID string) error
	Download(ctx context.Context, documentID, versionID string) (*domain.DocumentFile, error)
	AddTags(ctx context.Context, documentID string, tags []string) ([]string, error)
}

// DocumentClassifier is the remote classification service.
type DocumentClassifier interface {
	Classify(ctx context.Context, fileName, contentType string, body io.Reader) (domain.ClassificationResult, error)
}

// DocumentLocker hands out per-key mutual exclusion tokens. Release must be
// called exactly once for every successful acquisition.
type DocumentLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// ClassificationQueue carries asynchronous classification requests and
// their outcomes.
type ClassificationQueue interface {
	PublishClassificationRequested(ctx context.Context, documentID string) error
	SubscribeClassificationRequested(ctx context.Context, handler func(context.Context, string) error) error
	PublishClassificationFinished(ctx context.Context, outcome domain.ClassificationOutcome) error
}

// WorkflowObserver receives workflow telemetry.
type WorkflowObserver interface {
	ObserveClassification(outcome domain.ClassificationOutcome, duration time.Duration)
	ObserveBusy()
	ObserveLedgerRepair()
}

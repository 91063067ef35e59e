package ports

import (
	"context"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

// VersionLedger is the inbound contract for version history of a document.
type VersionLedger interface {
	RecordUpload(ctx context.Context, documentID string, file domain.FileUpload, uploader string) (*domain.Version, error)
	SetCurrent(ctx context.Context, documentID, versionID string) error
	ListVersions(ctx context.Context, documentID string) ([]domain.Version, error)
}

// DocumentEditor is the inbound contract for create/update edit sessions.
type DocumentEditor interface {
	BeginCreate() *domain.EditSession
	BeginUpdate(ctx context.Context, documentID string) (*domain.EditSession, error)
	Submit(ctx context.Context, session *domain.EditSession) (*domain.Document, error)
	ApplyAutomaticTag(ctx context.Context, documentID, label string) (*domain.Document, error)
}

// ClassificationRunner is the inbound contract for the classification workflow.
type ClassificationRunner interface {
	Classify(ctx context.Context, documentID string) (*domain.ClassificationOutcome, error)
	Abandon(documentID string) bool
	State(documentID string) domain.WorkflowState
}

// DocumentCatalog is the inbound read model for listing and retrieval.
type DocumentCatalog interface {
	Search(ctx context.Context, freeText string, selectedTags []string) (*domain.CatalogPage, error)
	Get(ctx context.Context, documentID string) (*domain.Document, error)
	Download(ctx context.Context, documentID, versionID string) (*domain.DocumentFile, error)
	Delete(ctx context.Context, documentID string) error
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
)

type DocumentEditorUseCase struct {
	store  ports.DocumentStore
	ledger *VersionLedgerUseCase
}

func NewDocumentEditorUseCase(store ports.DocumentStore, ledger *VersionLedgerUseCase) *DocumentEditorUseCase {
	return &DocumentEditorUseCase{
		store:  store,
		ledger: ledger,
	}
}

func (uc *DocumentEditorUseCase) BeginCreate() *domain.EditSession {
	return domain.NewCreateSession()
}

// BeginUpdate loads the document and captures it as the session baseline.
func (uc *DocumentEditorUseCase) BeginUpdate(ctx context.Context, documentID string) (*domain.EditSession, error) {
	doc, err := uc.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document baseline: %w", err)
	}
	return domain.NewUpdateSession(*doc), nil
}

// Submit validates the session locally, refuses no-op updates and sends the
// create or update request. Updates that carry a file go through the ledger
// so the new version is confirmed as the single current one.
func (uc *DocumentEditorUseCase) Submit(ctx context.Context, session *domain.EditSession) (*domain.Document, error) {
	if session == nil {
		return nil, domain.WrapError(domain.ErrValidation, "submit document", fmt.Errorf("nil session"))
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if !session.HasChanges() {
		return nil, domain.WrapError(domain.ErrNoChanges, "submit document", fmt.Errorf("document %s unchanged", session.DocumentID))
	}

	existing, added := session.SubmissionTagSets()
	title := strings.TrimSpace(session.Title)

	if !session.IsUpdate() {
		doc, err := uc.store.CreateDocument(ctx, domain.CreateDocumentRequest{
			Title:       title,
			Description: session.Description,
			Tags:        added,
			File:        *session.StagedFile,
		})
		if err != nil {
			return nil, fmt.Errorf("create document: %w", err)
		}
		return doc, nil
	}

	var updated *domain.Document
	err := uc.ledger.WithDocumentLock(ctx, session.DocumentID, func(ctx context.Context) error {
		previousMax, previousCurrent := 0, ""
		if session.StagedFile != nil {
			n, current, err := uc.ledger.uploadBaseline(ctx, session.DocumentID)
			if err != nil {
				return err
			}
			previousMax, previousCurrent = n, current
		}

		doc, err := uc.store.UpdateDocument(ctx, session.DocumentID, domain.UpdateDocumentRequest{
			Title:        title,
			Description:  session.Description,
			ExistingTags: existing,
			NewTags:      added,
			UploadedBy:   session.UploadedBy,
			File:         session.StagedFile,
		})
		if err != nil {
			err = fmt.Errorf("update document: %w", err)
			if session.StagedFile == nil {
				return err
			}
			return uc.ledger.recoverFailedUpload(ctx, session.DocumentID, previousMax, previousCurrent, err)
		}
		updated = doc

		if session.StagedFile == nil {
			return nil
		}
		current, err := uc.ledger.confirmUpload(ctx, session.DocumentID, previousMax)
		if err != nil {
			return err
		}
		if updated == nil {
			updated = &domain.Document{ID: session.DocumentID}
		}
		updated.CurrentVersion = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyAutomaticTag adds label to the persisted document with a direct tag
// call and re-reads the document so callers see the change.
func (uc *DocumentEditorUseCase) ApplyAutomaticTag(ctx context.Context, documentID, label string) (*domain.Document, error) {
	tag := strings.TrimSpace(label)
	if tag == "" {
		return nil, domain.WrapError(domain.ErrValidation, "apply tag", domain.NewFieldError("tags", "tag is required"))
	}

	tags, err := uc.store.AddTags(ctx, documentID, []string{tag})
	if err != nil {
		return nil, fmt.Errorf("apply tag %q: %w", tag, err)
	}

	doc, err := uc.store.GetDocument(ctx, documentID)
	if err != nil {
		slog.Warn("refresh_after_tag_failed", "document_id", documentID, "tag", tag, "error", err)
		return &domain.Document{ID: documentID, Tags: tags}, nil
	}
	return doc, nil
}

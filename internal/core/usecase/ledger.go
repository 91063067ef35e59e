package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
)

const (
	ledgerLockPrefix = "ledger:"
	repairTimeout    = 10 * time.Second
)

type VersionLedgerUseCase struct {
	store    ports.DocumentStore
	locker   ports.DocumentLocker
	observer ports.WorkflowObserver
}

func NewVersionLedgerUseCase(
	store ports.DocumentStore,
	locker ports.DocumentLocker,
	observer ports.WorkflowObserver,
) *VersionLedgerUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	return &VersionLedgerUseCase{
		store:    store,
		locker:   locker,
		observer: observer,
	}
}

// RecordUpload stores file as the newest version of the document and makes it
// current. The returned version is read back from the store after the write.
func (uc *VersionLedgerUseCase) RecordUpload(
	ctx context.Context,
	documentID string,
	file domain.FileUpload,
	uploader string,
) (*domain.Version, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "record upload", domain.NewFieldError("document_id", "document id is required"))
	}
	if file.Body == nil {
		return nil, domain.WrapError(domain.ErrValidation, "record upload", domain.NewFieldError("file", "Please select a file to upload"))
	}

	var recorded *domain.Version
	err := uc.WithDocumentLock(ctx, documentID, func(ctx context.Context) error {
		doc, err := uc.store.GetDocument(ctx, documentID)
		if err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				return domain.WrapError(domain.ErrValidation, "record upload", fmt.Errorf("document %s does not exist", documentID))
			}
			return fmt.Errorf("load document: %w", err)
		}

		previousMax, previousCurrent, err := uc.uploadBaseline(ctx, documentID)
		if err != nil {
			return err
		}

		_, err = uc.store.UpdateDocument(ctx, documentID, domain.UpdateDocumentRequest{
			Title:        doc.Title,
			Description:  doc.Description,
			ExistingTags: doc.Tags,
			NewTags:      []string{},
			UploadedBy:   uploader,
			File:         &file,
		})
		if err != nil {
			return uc.recoverFailedUpload(ctx, documentID, previousMax, previousCurrent, fmt.Errorf("upload new version: %w", err))
		}

		recorded, err = uc.confirmUpload(ctx, documentID, previousMax)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// SetCurrent moves the current flag to versionID. Re-setting the version that
// is already current does not contact the store.
func (uc *VersionLedgerUseCase) SetCurrent(ctx context.Context, documentID, versionID string) error {
	return uc.WithDocumentLock(ctx, documentID, func(ctx context.Context) error {
		versions, err := uc.ListVersions(ctx, documentID)
		if err != nil {
			return err
		}

		idx := slices.IndexFunc(versions, func(v domain.Version) bool { return v.ID == versionID })
		if idx < 0 {
			return domain.WrapError(domain.ErrNotFound, "set current version", fmt.Errorf("version %s does not belong to document %s", versionID, documentID))
		}
		if versions[idx].IsCurrent && domain.CountCurrent(versions) == 1 {
			return nil
		}

		previous := domain.CurrentVersionOf(versions)
		if err := uc.store.SetCurrentVersion(ctx, documentID, versionID); err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				return fmt.Errorf("set current version: %w", err)
			}
			fallback := versionID
			if previous != nil {
				fallback = previous.ID
			}
			if _, repairErr := uc.ensureSingleCurrent(ctx, documentID, fallback, false); repairErr != nil {
				return errors.Join(fmt.Errorf("set current version: %w", err), repairErr)
			}
			return fmt.Errorf("set current version: %w", err)
		}

		_, err = uc.ensureSingleCurrent(ctx, documentID, versionID, true)
		return err
	})
}

// ListVersions returns the history ordered by version number ascending.
func (uc *VersionLedgerUseCase) ListVersions(ctx context.Context, documentID string) ([]domain.Version, error) {
	versions, err := uc.store.ListVersions(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	out := slices.Clone(versions)
	for i := range out {
		out[i].DocumentID = documentID
	}
	slices.SortFunc(out, func(a, b domain.Version) int { return a.VersionNumber - b.VersionNumber })
	return out, nil
}

// WithDocumentLock runs fn while holding the ledger token of the document.
func (uc *VersionLedgerUseCase) WithDocumentLock(ctx context.Context, documentID string, fn func(context.Context) error) error {
	release, err := uc.locker.Acquire(ctx, ledgerLockPrefix+documentID)
	if err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	defer release()
	return fn(ctx)
}

// uploadBaseline returns the highest version number and the id of the
// current version before an upload.
func (uc *VersionLedgerUseCase) uploadBaseline(ctx context.Context, documentID string) (int, string, error) {
	versions, err := uc.ListVersions(ctx, documentID)
	if err != nil {
		return 0, "", err
	}
	previousMax := 0
	if latest := domain.LatestVersion(versions); latest != nil {
		previousMax = latest.VersionNumber
	}
	previousCurrent := ""
	if current := domain.CurrentVersionOf(versions); current != nil {
		previousCurrent = current.ID
	}
	return previousMax, previousCurrent, nil
}

// recoverFailedUpload restores a single current version after an upload
// write returned cause. A version newer than previousMax means the store
// applied the upload and it becomes current; otherwise previousCurrent is
// kept. cause is always returned, joined with any repair failure.
func (uc *VersionLedgerUseCase) recoverFailedUpload(ctx context.Context, documentID string, previousMax int, previousCurrent string, cause error) error {
	if domain.IsKind(cause, domain.ErrNotFound) {
		return cause
	}

	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), repairTimeout)
	versions, err := uc.ListVersions(readCtx, documentID)
	cancel()
	if err != nil {
		return errors.Join(cause, err)
	}

	want := previousCurrent
	if latest := domain.LatestVersion(versions); latest != nil && (latest.VersionNumber > previousMax || want == "") {
		want = latest.ID
	}
	if want == "" {
		return cause
	}
	if _, err := uc.ensureSingleCurrent(ctx, documentID, want, false); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// confirmUpload checks that the store created a version newer than
// previousMax and that it is the only current one.
func (uc *VersionLedgerUseCase) confirmUpload(ctx context.Context, documentID string, previousMax int) (*domain.Version, error) {
	versions, err := uc.ListVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	latest := domain.LatestVersion(versions)
	if latest == nil || latest.VersionNumber <= previousMax {
		return nil, domain.WrapError(domain.ErrStore, "confirm upload", fmt.Errorf("no version newer than %d for document %s", previousMax, documentID))
	}

	versions, err = uc.ensureSingleCurrent(ctx, documentID, latest.ID, true)
	if err != nil {
		return nil, err
	}
	current := domain.CurrentVersionOf(versions)
	if current == nil {
		return nil, domain.WrapError(domain.ErrStore, "confirm upload", fmt.Errorf("document %s has no current version", documentID))
	}
	return current, nil
}

// ensureSingleCurrent re-reads the history and re-asserts want when the
// store does not show exactly one current version. With strict set, the
// single current version must also be want.
func (uc *VersionLedgerUseCase) ensureSingleCurrent(ctx context.Context, documentID, want string, strict bool) ([]domain.Version, error) {
	repairCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), repairTimeout)
	defer cancel()

	versions, err := uc.ListVersions(repairCtx, documentID)
	if err != nil {
		return nil, err
	}
	if current := domain.CurrentVersionOf(versions); current != nil && (!strict || current.ID == want) {
		return versions, nil
	}

	slog.Warn("ledger_current_repaired",
		"document_id", documentID,
		"current_count", domain.CountCurrent(versions),
		"target_version_id", want,
	)
	uc.observer.ObserveLedgerRepair()

	if err := uc.store.SetCurrentVersion(repairCtx, documentID, want); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "repair current version", err)
	}
	versions, err = uc.ListVersions(repairCtx, documentID)
	if err != nil {
		return nil, err
	}
	current := domain.CurrentVersionOf(versions)
	if current == nil || current.ID != want {
		return nil, domain.WrapError(domain.ErrStore, "repair current version", fmt.Errorf("document %s still has %d current versions", documentID, domain.CountCurrent(versions)))
	}
	return versions, nil
}

type noopObserver struct{}

func (noopObserver) ObserveClassification(domain.ClassificationOutcome, time.Duration) {}
func (noopObserver) ObserveBusy()                                                       {}
func (noopObserver) ObserveLedgerRepair()                                               {}

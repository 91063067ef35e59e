package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/kirillkom/docrepo-assistant/internal/config"
	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

func newTestHandler(cfg config.Config, services Services) http.Handler {
	return NewRouter(cfg, services, nil).Handler()
}

type catalogFake struct {
	page *domain.CatalogPage
	doc  *domain.Document
	file *domain.DocumentFile
	err  error

	searchText  string
	searchTags  []string
	token       string
	requestID   string
	downloadVer string
	deleted     []string
}

func (f *catalogFake) Search(ctx context.Context, freeText string, selectedTags []string) (*domain.CatalogPage, error) {
	f.searchText, f.searchTags = freeText, selectedTags
	f.token, f.requestID = domain.BearerToken(ctx), domain.RequestID(ctx)
	if f.err != nil {
		return nil, f.err
	}
	page := *f.page
	page.UsedTags = slices.Clone(f.page.UsedTags)
	return &page, nil
}

func (f *catalogFake) Get(_ context.Context, documentID string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *catalogFake) Download(_ context.Context, documentID, versionID string) (*domain.DocumentFile, error) {
	f.downloadVer = versionID
	if f.err != nil {
		return nil, f.err
	}
	return f.file, nil
}

func (f *catalogFake) Delete(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, documentID)
	return nil
}

// editorFake runs real edit sessions and mirrors the submission checks.
type editorFake struct {
	doc       domain.Document
	getErr    error
	submitErr error

	submitted   *domain.EditSession
	fileContent string
}

func (f *editorFake) BeginCreate() *domain.EditSession { return domain.NewCreateSession() }

func (f *editorFake) BeginUpdate(_ context.Context, documentID string) (*domain.EditSession, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return domain.NewUpdateSession(f.doc), nil
}

func (f *editorFake) Submit(_ context.Context, session *domain.EditSession) (*domain.Document, error) {
	f.submitted = session
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if !session.HasChanges() {
		return nil, domain.WrapError(domain.ErrNoChanges, "submit", errors.New("no delta"))
	}
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if session.StagedFile != nil {
		raw, _ := io.ReadAll(session.StagedFile.Body)
		f.fileContent = string(raw)
	}
	existing, added := session.SubmissionTagSets()
	return &domain.Document{
		ID:    "d1",
		Title: session.Title,
		Tags:  append(existing, added...),
	}, nil
}

func (f *editorFake) ApplyAutomaticTag(context.Context, string, string) (*domain.Document, error) {
	return &f.doc, nil
}

type ledgerFake struct {
	versions []domain.Version
	err      error

	uploadName    string
	uploadContent string
	uploadedBy    string
	setCurrent    string
}

func (f *ledgerFake) RecordUpload(_ context.Context, documentID string, file domain.FileUpload, uploader string) (*domain.Version, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := io.ReadAll(file.Body)
	f.uploadName, f.uploadContent, f.uploadedBy = file.FileName, string(raw), uploader
	return &domain.Version{ID: "v3", DocumentID: documentID, VersionNumber: 3, FileName: file.FileName, IsCurrent: true}, nil
}

func (f *ledgerFake) SetCurrent(_ context.Context, documentID, versionID string) error {
	if f.err != nil {
		return f.err
	}
	f.setCurrent = versionID
	for i := range f.versions {
		f.versions[i].IsCurrent = f.versions[i].ID == versionID
	}
	return nil
}

func (f *ledgerFake) ListVersions(context.Context, string) ([]domain.Version, error) {
	return slices.Clone(f.versions), nil
}

type runnerFake struct {
	outcome   *domain.ClassificationOutcome
	err       error
	state     domain.WorkflowState
	abandoned bool
}

func (f *runnerFake) Classify(context.Context, string) (*domain.ClassificationOutcome, error) {
	return f.outcome, f.err
}

func (f *runnerFake) Abandon(string) bool { return f.abandoned }

func (f *runnerFake) State(string) domain.WorkflowState {
	if f.state == "" {
		return domain.StateIdle
	}
	return f.state
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishClassificationRequested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeClassificationRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *queueFake) PublishClassificationFinished(context.Context, domain.ClassificationOutcome) error {
	return nil
}

type breakersFake map[string]string

func (b breakersFake) BreakerStates() map[string]string { return b }

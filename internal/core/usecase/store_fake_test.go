package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

// storeFake is an in-memory document service. Hooks let tests break the
// single-current rule the way a partially failed remote call would.
type storeFake struct {
	mu       sync.Mutex
	docs     map[string]*domain.Document
	versions map[string][]domain.Version
	content  map[string][]byte
	nextID   int

	setCurrentCalls int
	updateCalls     int
	createCalls     int
	addTagCalls     int
	lastQuery       domain.CatalogQuery
	lastUpdate      domain.UpdateDocumentRequest

	// leaveAllCurrentOnUpload keeps older versions flagged after an upload.
	leaveAllCurrentOnUpload bool
	// clearThenFailSetCurrent clears every flag and returns an error.
	clearThenFailSetCurrent bool
	// failAfterUpload is returned by UpdateDocument after the upload was
	// applied.
	failAfterUpload error
	downloadErr             error
	addTagsErr              error
	listErr                 error
}

func newStoreFake() *storeFake {
	return &storeFake{
		docs:     make(map[string]*domain.Document),
		versions: make(map[string][]domain.Version),
		content:  make(map[string][]byte),
	}
}

func (f *storeFake) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// seed adds a document with n versions, the last one current.
func (f *storeFake) seed(title string, tags []string, n int) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	docID := f.id("doc")
	f.docs[docID] = &domain.Document{ID: docID, Title: title, Tags: slices.Clone(tags), CreatedAt: time.Unix(0, 0)}
	for i := 1; i <= n; i++ {
		f.appendVersionLocked(docID, fmt.Sprintf("file-v%d.pdf", i), []byte(fmt.Sprintf("v%d", i)), "alice")
	}
	return docID
}

func (f *storeFake) appendVersionLocked(docID, fileName string, body []byte, uploader string) domain.Version {
	versions := f.versions[docID]
	if !f.leaveAllCurrentOnUpload {
		for i := range versions {
			versions[i].IsCurrent = false
		}
	}
	v := domain.Version{
		ID:            f.id("ver"),
		VersionNumber: len(versions) + 1,
		FileName:      fileName,
		FileSize:      int64(len(body)),
		ContentType:   "application/pdf",
		UploadedBy:    uploader,
		UploadedAt:    time.Unix(int64(len(versions)+1), 0),
		IsCurrent:     true,
	}
	f.versions[docID] = append(versions, v)
	f.content[v.ID] = body
	cur := v
	f.docs[docID].CurrentVersion = &cur
	return v
}

func (f *storeFake) flags(docID string) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, 0, len(f.versions[docID]))
	for _, v := range f.versions[docID] {
		out = append(out, v.IsCurrent)
	}
	return out
}

func (f *storeFake) ListDocuments(_ context.Context, query domain.CatalogQuery) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = query
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Document
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	slices.SortFunc(out, func(a, b domain.Document) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

func (f *storeFake) GetDocument(_ context.Context, documentID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", documentID))
	}
	out := *doc
	out.Tags = slices.Clone(doc.Tags)
	return &out, nil
}

func (f *storeFake) ListVersions(_ context.Context, documentID string) ([]domain.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[documentID]; !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "list versions", fmt.Errorf("document %s", documentID))
	}
	out := slices.Clone(f.versions[documentID])
	slices.Reverse(out)
	return out, nil
}

func (f *storeFake) CreateDocument(_ context.Context, req domain.CreateDocumentRequest) (*domain.Document, error) {
	body, err := io.ReadAll(req.File.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	docID := f.id("doc")
	f.docs[docID] = &domain.Document{ID: docID, Title: req.Title, Description: req.Description, Tags: slices.Clone(req.Tags)}
	f.appendVersionLocked(docID, req.File.FileName, body, "")
	out := *f.docs[docID]
	return &out, nil
}

func (f *storeFake) UpdateDocument(_ context.Context, documentID string, req domain.UpdateDocumentRequest) (*domain.Document, error) {
	var body []byte
	if req.File != nil {
		raw, err := io.ReadAll(req.File.Body)
		if err != nil {
			return nil, err
		}
		body = raw
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastUpdate = req
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "update document", fmt.Errorf("document %s", documentID))
	}
	doc.Title = req.Title
	doc.Description = req.Description
	tags := slices.Clone(req.ExistingTags)
	for _, t := range req.NewTags {
		if !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	doc.Tags = tags
	if req.File != nil {
		f.appendVersionLocked(documentID, req.File.FileName, body, req.UploadedBy)
		if f.failAfterUpload != nil {
			return nil, f.failAfterUpload
		}
	}
	out := *doc
	return &out, nil
}

func (f *storeFake) SetCurrentVersion(_ context.Context, documentID, versionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCurrentCalls++
	versions := f.versions[documentID]
	idx := slices.IndexFunc(versions, func(v domain.Version) bool { return v.ID == versionID })
	if idx < 0 {
		return domain.WrapError(domain.ErrNotFound, "set current version", fmt.Errorf("version %s", versionID))
	}
	for i := range versions {
		versions[i].IsCurrent = false
	}
	if f.clearThenFailSetCurrent {
		f.clearThenFailSetCurrent = false
		return domain.WrapError(domain.ErrTemporary, "set current version", errors.New("connection reset"))
	}
	versions[idx].IsCurrent = true
	cur := versions[idx]
	f.docs[documentID].CurrentVersion = &cur
	return nil
}

func (f *storeFake) DeleteDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[documentID]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete document", fmt.Errorf("document %s", documentID))
	}
	delete(f.docs, documentID)
	delete(f.versions, documentID)
	return nil
}

func (f *storeFake) Download(_ context.Context, documentID, versionID string) (*domain.DocumentFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	for _, v := range f.versions[documentID] {
		if (versionID == "" && v.IsCurrent) || v.ID == versionID {
			return &domain.DocumentFile{FileName: v.FileName, ContentType: v.ContentType, Content: bytes.Clone(f.content[v.ID])}, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "download", fmt.Errorf("document %s version %q", documentID, versionID))
}

func (f *storeFake) AddTags(_ context.Context, documentID string, tags []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addTagCalls++
	if f.addTagsErr != nil {
		return nil, f.addTagsErr
	}
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "add tags", fmt.Errorf("document %s", documentID))
	}
	for _, t := range tags {
		if !slices.Contains(doc.Tags, t) {
			doc.Tags = append(doc.Tags, t)
		}
	}
	return slices.Clone(doc.Tags), nil
}

// lockerFake is a per-key mutex set with a counter of acquisitions.
type lockerFake struct {
	mu       sync.Mutex
	held     map[string]chan struct{}
	acquired []string
}

func newLockerFake() *lockerFake {
	return &lockerFake{held: make(map[string]chan struct{})}
}

func (l *lockerFake) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		release, ok, err := l.TryAcquire(ctx, key)
		if err != nil || ok {
			return release, err
		}
		l.mu.Lock()
		ch := l.held[key]
		l.mu.Unlock()
		if ch == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

func (l *lockerFake) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	ch := make(chan struct{})
	l.held[key] = ch
	l.acquired = append(l.acquired, key)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
			close(ch)
		})
	}, true, nil
}

func (l *lockerFake) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

type observerFake struct {
	mu       sync.Mutex
	outcomes []domain.ClassificationOutcome
	busy     int
	repairs  int
}

func (o *observerFake) ObserveClassification(outcome domain.ClassificationOutcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *observerFake) ObserveBusy() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy++
}

func (o *observerFake) ObserveLedgerRepair() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.repairs++
}

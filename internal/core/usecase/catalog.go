package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
)

type CatalogUseCase struct {
	store  ports.DocumentStore
	ledger *VersionLedgerUseCase
}

func NewCatalogUseCase(store ports.DocumentStore, ledger *VersionLedgerUseCase) *CatalogUseCase {
	return &CatalogUseCase{
		store:  store,
		ledger: ledger,
	}
}

// Search lists documents matching the query. Every call returns a complete
// page; results are never merged with a previous page.
func (uc *CatalogUseCase) Search(ctx context.Context, freeText string, selectedTags []string) (*domain.CatalogPage, error) {
	query := BuildQuery(freeText, selectedTags)
	docs, err := uc.store.ListDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return &domain.CatalogPage{
		Query:     query,
		Documents: docs,
		UsedTags:  DeriveUsedTags(docs),
	}, nil
}

func (uc *CatalogUseCase) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Download returns the bytes of versionID, or of the current version when
// versionID is empty.
func (uc *CatalogUseCase) Download(ctx context.Context, documentID, versionID string) (*domain.DocumentFile, error) {
	file, err := uc.store.Download(ctx, documentID, strings.TrimSpace(versionID))
	if err != nil {
		return nil, fmt.Errorf("download document: %w", err)
	}
	return file, nil
}

// Delete removes the document while holding its ledger token, so it cannot
// interleave with an upload or a current-version switch.
func (uc *CatalogUseCase) Delete(ctx context.Context, documentID string) error {
	return uc.ledger.WithDocumentLock(ctx, documentID, func(ctx context.Context) error {
		if err := uc.store.DeleteDocument(ctx, documentID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
}

// BuildQuery trims the free text and drops blank tags. An empty search is
// omitted from the request; tags keep the caller's order.
func BuildQuery(freeText string, selectedTags []string) domain.CatalogQuery {
	query := domain.CatalogQuery{Search: strings.TrimSpace(freeText)}
	for _, tag := range selectedTags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(query.Tags, tag) {
			continue
		}
		query.Tags = append(query.Tags, tag)
	}
	return query
}

// DeriveUsedTags returns the distinct tags of docs sorted ascending.
func DeriveUsedTags(docs []domain.Document) []string {
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for _, tag := range doc.Tags {
			seen[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}

// FilterTags keeps the tags containing query, case-insensitively.
func FilterTags(tags []string, query string) []string {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if needle == "" || strings.Contains(strings.ToLower(tag), needle) {
			out = append(out, tag)
		}
	}
	return out
}

package mcpadapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

func formatCatalogPage(query string, page *domain.CatalogPage) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Documents matching %q (%d results)\n\n", query, len(page.Documents)))

	if len(page.Documents) == 0 {
		sb.WriteString("No documents found.\n")
		return sb.String()
	}

	for i, doc := range page.Documents {
		sb.WriteString(fmt.Sprintf("%d. **%s** (`%s`)\n", i+1, doc.Title, doc.ID))
		if len(doc.Tags) > 0 {
			sb.WriteString(fmt.Sprintf("   Tags: %s\n", strings.Join(doc.Tags, ", ")))
		}
		if v := doc.CurrentVersion; v != nil {
			sb.WriteString(fmt.Sprintf("   Current: v%d %s\n", v.VersionNumber, v.FileName))
		}
	}
	if len(page.UsedTags) > 0 {
		sb.WriteString(fmt.Sprintf("\n**Tags in use:** %s\n", strings.Join(page.UsedTags, ", ")))
	}
	return sb.String()
}

func formatVersions(documentID string, versions []domain.Version) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Versions of `%s` (%d)\n\n", documentID, len(versions)))

	for _, v := range versions {
		marker := ""
		if v.IsCurrent {
			marker = " **(current)**"
		}
		sb.WriteString(fmt.Sprintf("- v%d `%s` %s, %d bytes%s\n", v.VersionNumber, v.ID, v.FileName, v.FileSize, marker))
		if !v.UploadedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("  Uploaded: %s\n", v.UploadedAt.Format(time.RFC3339)))
		}
	}
	return sb.String()
}

func formatOutcome(outcome *domain.ClassificationOutcome) string {
	var sb strings.Builder
	sb.WriteString(outcome.Message)
	sb.WriteString("\n")
	if outcome.TagWarning != "" {
		sb.WriteString(fmt.Sprintf("\nWarning: %s\n", outcome.TagWarning))
	}
	if outcome.Document != nil && len(outcome.Document.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("\nTags: %s\n", strings.Join(outcome.Document.Tags, ", ")))
	}
	return sb.String()
}

package mcpadapter

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
)

func handleSearchDocuments(catalog ports.DocumentCatalog) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := request.GetString("query", "")
		tags := request.GetStringSlice("tags", nil)

		page, err := catalog.Search(ctx, query, tags)
		if err != nil {
			slog.Error("mcp_search_failed", "error", err)
			return errorResult("Search error: " + domain.UserMessage(err)), nil
		}
		return textResult(formatCatalogPage(query, page)), nil
	}
}

func handleListVersions(ledger ports.VersionLedger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		documentID, err := request.RequireString("document_id")
		if err != nil || documentID == "" {
			return errorResult("Error: document_id parameter is required"), nil
		}

		versions, err := ledger.ListVersions(ctx, documentID)
		if err != nil {
			slog.Error("mcp_list_versions_failed", "document_id", documentID, "error", err)
			return errorResult("List error: " + domain.UserMessage(err)), nil
		}
		return textResult(formatVersions(documentID, versions)), nil
	}
}

func handleSetCurrentVersion(ledger ports.VersionLedger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		documentID, err := request.RequireString("document_id")
		if err != nil || documentID == "" {
			return errorResult("Error: document_id parameter is required"), nil
		}
		versionID, err := request.RequireString("version_id")
		if err != nil || versionID == "" {
			return errorResult("Error: version_id parameter is required"), nil
		}

		if err := ledger.SetCurrent(ctx, documentID, versionID); err != nil {
			slog.Error("mcp_set_current_failed", "document_id", documentID, "version_id", versionID, "error", err)
			return errorResult("Set current error: " + domain.UserMessage(err)), nil
		}
		versions, err := ledger.ListVersions(ctx, documentID)
		if err != nil {
			return errorResult("List error: " + domain.UserMessage(err)), nil
		}
		return textResult(formatVersions(documentID, versions)), nil
	}
}

func handleClassifyDocument(workflow ports.ClassificationRunner) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		documentID, err := request.RequireString("document_id")
		if err != nil || documentID == "" {
			return errorResult("Error: document_id parameter is required"), nil
		}

		outcome, err := workflow.Classify(ctx, documentID)
		if err != nil {
			slog.Warn("mcp_classify_failed", "document_id", documentID, "error", err)
			return errorResult(domain.UserMessage(err)), nil
		}
		return textResult(formatOutcome(outcome)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

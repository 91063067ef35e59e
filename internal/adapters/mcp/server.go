// Package mcpadapter exposes catalog, ledger and classification operations
// as MCP tools.
package mcpadapter

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docrepo-assistant/internal/core/ports"
)

type Services struct {
	Catalog  ports.DocumentCatalog
	Ledger   ports.VersionLedger
	Workflow ports.ClassificationRunner
}

func NewServer(version string, services Services) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"docrepo",
		version,
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(searchDocumentsTool(), handleSearchDocuments(services.Catalog))
	mcpServer.AddTool(listVersionsTool(), handleListVersions(services.Ledger))
	mcpServer.AddTool(setCurrentVersionTool(), handleSetCurrentVersion(services.Ledger))
	mcpServer.AddTool(classifyDocumentTool(), handleClassifyDocument(services.Workflow))

	return mcpServer
}

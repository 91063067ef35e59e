package mcpadapter

import "github.com/mark3labs/mcp-go/mcp"

func searchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Search the document catalog by free text and tags"),
		mcp.WithString("query",
			mcp.Description("Free text matched by the document service"),
		),
		mcp.WithArray("tags",
			mcp.WithStringItems(),
			mcp.Description("Only documents carrying these tags"),
		),
	)
}

func listVersionsTool() mcp.Tool {
	return mcp.NewTool("list_versions",
		mcp.WithDescription("List the versions of a document, oldest first, marking the current one"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document ID"),
		),
	)
}

func setCurrentVersionTool() mcp.Tool {
	return mcp.NewTool("set_current_version",
		mcp.WithDescription("Make an existing version the current version of its document"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document ID"),
		),
		mcp.WithString("version_id",
			mcp.Required(),
			mcp.Description("Version ID from list_versions"),
		),
	)
}

func classifyDocumentTool() mcp.Tool {
	return mcp.NewTool("classify_document",
		mcp.WithDescription("Classify the current version of a document and tag it when the auto-tag policy matches"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document ID"),
		),
	)
}

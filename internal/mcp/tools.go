package mcp

import "github.com/mark3labs/mcp-go/mcp"

// relatedNotesTool defines the related_notes MCP tool.
var relatedNotesTool = mcp.NewTool("related_notes",
	mcp.WithDescription("Find the notes most semantically similar to a given note. The note is indexed first if its content changed."),
	mcp.WithString("note",
		mcp.Required(),
		mcp.Description("Vault-relative path of the note, e.g. projects/garden.md"),
	),
	mcp.WithNumber("top",
		mcp.Description("Maximum number of related notes to return (default 5)"),
	),
)

// reindexNoteTool defines the reindex_note MCP tool.
var reindexNoteTool = mcp.NewTool("reindex_note",
	mcp.WithDescription("Re-embed a single note immediately, ahead of any queued indexing work."),
	mcp.WithString("note",
		mcp.Required(),
		mcp.Description("Vault-relative path of the note"),
	),
)

// rebuildIndexTool defines the rebuild_index MCP tool.
var rebuildIndexTool = mcp.NewTool("rebuild_index",
	mcp.WithDescription("Scan the whole vault and schedule embedding work for every new or modified note."),
)

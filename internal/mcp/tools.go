package mcp

import "github.com/mark3labs/mcp-go/mcp"

var saveToolDef = mcp.NewTool("note_save",
	mcp.WithDescription("Save a network event as a note at the front of the store. Saving an id that already exists replaces that note and resets its upvotes."),
	mcp.WithObject("event", mcp.Required(),
		mcp.Description("Full event payload: id, pubkey, created_at, kind, tags, content, sig")),
	mcp.WithObject("metadata", mcp.Description("Author profile (name, about, picture, ...)")),
	mcp.WithString("collection", mcp.Description("Collection to file the note under (default: Default)")),
	mcp.WithString("thoughts", mcp.Description("Optional annotation")),
)

var getToolDef = mcp.NewTool("note_get",
	mcp.WithDescription("Get one note by event id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
)

var listToolDef = mcp.NewTool("note_list",
	mcp.WithDescription("List notes ranked by upvotes, newest first on ties."),
	mcp.WithString("collection", mcp.Description("Only this collection (default: every note)")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var upvoteToolDef = mcp.NewTool("note_upvote",
	mcp.WithDescription("Add one upvote to a note."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
)

var downvoteToolDef = mcp.NewTool("note_downvote",
	mcp.WithDescription("Remove one upvote from a note. Upvotes never drop below zero."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
)

var moveToolDef = mcp.NewTool("note_move",
	mcp.WithDescription("File a note under another collection, creating it if needed."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
	mcp.WithString("collection", mcp.Required(), mcp.Description("Target collection")),
)

var annotateToolDef = mcp.NewTool("note_annotate",
	mcp.WithDescription("Set a note's thoughts. Blank thoughts clear the annotation."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
	mcp.WithString("thoughts", mcp.Description("Annotation text")),
)

var removeToolDef = mcp.NewTool("note_remove",
	mcp.WithDescription("Delete a note."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
)

var clearToolDef = mcp.NewTool("notes_clear",
	mcp.WithDescription("Delete every note and collection except Default."),
)

var collectionListToolDef = mcp.NewTool("collection_list",
	mcp.WithDescription("List collections in registry order with note counts."),
)

var collectionCreateToolDef = mcp.NewTool("collection_create",
	mcp.WithDescription("Register a collection. Creating an existing one is a no-op."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Collection name")),
)

var collectionRenameToolDef = mcp.NewTool("collection_rename",
	mcp.WithDescription("Rename a collection; its notes follow. Default cannot be renamed."),
	mcp.WithString("from", mcp.Required(), mcp.Description("Current name")),
	mcp.WithString("to", mcp.Required(), mcp.Description("New name")),
)

var collectionDeleteToolDef = mcp.NewTool("collection_delete",
	mcp.WithDescription("Delete a collection and move its notes to Default. Default cannot be deleted."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Collection name")),
)

var exportToolDef = mcp.NewTool("archive_export",
	mcp.WithDescription("Export every collection to a zip archive of markdown notes."),
	mcp.WithString("path", mcp.Description("Output .zip path (default: ~/.smn/exports/<prefix>-export-YYYY-MM-DD.zip)")),
)

var importToolDef = mcp.NewTool("archive_import",
	mcp.WithDescription("Import notes from a zip archive. Notes whose id already exists are skipped unless overwrite is set."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Archive .zip path")),
	mcp.WithBoolean("overwrite", mcp.Description("Replace existing notes with the same id")),
	mcp.WithBoolean("merge_collections", mcp.Description("Register the archive's collections (default true)")),
	mcp.WithArray("include", mcp.WithStringItems(),
		mcp.Description("Only import entries matching these glob patterns, e.g. Work/**")),
)

var historyToolDef = mcp.NewTool("archive_history",
	mcp.WithDescription("List recent imports, newest first."),
	mcp.WithNumber("limit", mcp.Description("Runs to return (default 50)")),
)

var lintToolDef = mcp.NewTool("archive_lint",
	mcp.WithDescription("Check that a markdown note document has the archive layout and decodes."),
	mcp.WithString("document", mcp.Required(), mcp.Description("Markdown document text")),
)

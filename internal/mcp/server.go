package mcp

import (
	"context"
	"database/sql"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/smn/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"note_save": {
		def:     saveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSave },
	},
	"note_get": {
		def:     getToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet },
	},
	"note_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"note_upvote": {
		def:     upvoteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpvote },
	},
	"note_downvote": {
		def:     downvoteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDownvote },
	},
	"note_move": {
		def:     moveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMove },
	},
	"note_annotate": {
		def:     annotateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnnotate },
	},
	"note_remove": {
		def:     removeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemove },
	},
	"notes_clear": {
		def:     clearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClear },
	},
	"collection_list": {
		def:     collectionListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCollectionList },
	},
	"collection_create": {
		def:     collectionCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCollectionCreate },
	},
	"collection_rename": {
		def:     collectionRenameToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCollectionRename },
	},
	"collection_delete": {
		def:     collectionDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCollectionDelete },
	},
	"archive_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"archive_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"archive_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"archive_lint": {
		def:     lintToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLint },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the entries that match no tool. Entries are
// tool names or glob patterns such as "collection_*".
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if len(matchTools(name)) == 0 {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// matchTools returns the tools a disabled_tools entry refers to.
func matchTools(pattern string) []string {
	if _, ok := toolRegistry[pattern]; ok {
		return []string{pattern}
	}
	var matched []string
	for name := range toolRegistry {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			matched = append(matched, name)
		}
	}
	return matched
}

// NewServer creates an MCP server with every tool not excluded by
// cfg.DisabledTools.
func NewServer(db *sql.DB, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"smn",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg)

	disabled := make(map[string]bool)
	for _, entry := range cfg.DisabledTools {
		for _, name := range matchTools(entry) {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, version string) error {
	s := NewServer(db, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/smn/internal/config"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
	"github.com/hpungsan/smn/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for each tool

// SaveRequest represents the arguments for note_save.
type SaveRequest struct {
	Event      note.Event    `json:"event"`
	Metadata   note.Metadata `json:"metadata,omitempty"`
	Collection string        `json:"collection,omitempty"`
	Thoughts   *string       `json:"thoughts,omitempty"`
}

// IDRequest represents the arguments of tools addressing one note.
type IDRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for note_list.
type ListRequest struct {
	Collection string `json:"collection,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// MoveRequest represents the arguments for note_move.
type MoveRequest struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
}

// AnnotateRequest represents the arguments for note_annotate.
type AnnotateRequest struct {
	ID       string `json:"id"`
	Thoughts string `json:"thoughts"`
}

// CollectionRequest represents the arguments for collection_create and
// collection_delete.
type CollectionRequest struct {
	Name string `json:"name"`
}

// RenameRequest represents the arguments for collection_rename.
type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ExportRequest represents the arguments for archive_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for archive_import.
type ImportRequest struct {
	Path             string   `json:"path"`
	Overwrite        bool     `json:"overwrite,omitempty"`
	MergeCollections *bool    `json:"merge_collections,omitempty"`
	Include          []string `json:"include,omitempty"`
}

// HistoryRequest represents the arguments for archive_history.
type HistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// LintRequest represents the arguments for archive_lint.
type LintRequest struct {
	Document string `json:"document"`
}

// Handler implementations

// HandleSave handles the note_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Save(h.db, ops.SaveInput{
		Event:      input.Event,
		Metadata:   input.Metadata,
		Collection: input.Collection,
		Thoughts:   input.Thoughts,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGet handles the note_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Get(h.db, ops.GetInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleList handles the note_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(h.db, ops.ListInput{
		Collection: input.Collection,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUpvote handles the note_upvote tool call.
func (h *Handlers) HandleUpvote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Upvote(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDownvote handles the note_downvote tool call.
func (h *Handlers) HandleDownvote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Downvote(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMove handles the note_move tool call.
func (h *Handlers) HandleMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Move(h.db, ops.MoveInput{ID: input.ID, Collection: input.Collection})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAnnotate handles the note_annotate tool call.
func (h *Handlers) HandleAnnotate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnnotateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Annotate(h.db, ops.AnnotateInput{ID: input.ID, Thoughts: input.Thoughts})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleRemove handles the note_remove tool call.
func (h *Handlers) HandleRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Remove(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleClear handles the notes_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Clear(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCollectionList handles the collection_list tool call.
func (h *Handlers) HandleCollectionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListCollections(h.db)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCollectionCreate handles the collection_create tool call.
func (h *Handlers) HandleCollectionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CollectionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateCollection(h.db, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCollectionRename handles the collection_rename tool call.
func (h *Handlers) HandleCollectionRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RenameRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RenameCollection(h.db, ops.RenameCollectionInput{From: input.From, To: input.To})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCollectionDelete handles the collection_delete tool call.
func (h *Handlers) HandleCollectionDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CollectionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteCollection(h.db, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the archive_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the archive_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Path == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	result, err := ops.Import(ctx, h.db, h.cfg, ops.ImportInput{
		Path:             input.Path,
		Overwrite:        input.Overwrite,
		MergeCollections: input.MergeCollections,
		Include:          input.Include,
	})
	if err != nil {
		if result != nil {
			return importFailedResult(err, result), nil
		}
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the archive_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(h.db, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLint handles the archive_lint tool call.
func (h *Handlers) HandleLint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LintRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Lint(ops.LintInput{Document: input.Document})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorPayload builds the error object for err. INTERNAL errors and non-smn
// errors carry no details so SQL text and file paths stay private.
func errorPayload(err error) map[string]any {
	var smnErr *errors.SMNError
	if !stderrors.As(err, &smnErr) {
		return map[string]any{
			"code":    string(errors.ErrInternal),
			"message": "an internal error occurred",
			"status":  500,
		}
	}

	message := smnErr.Message
	if smnErr.Code == errors.ErrInternal {
		message = "an internal error occurred"
	} else if err != error(smnErr) {
		// keep the wrapper's context, e.g. "entry 3: ..."
		message = strings.TrimSuffix(err.Error(), smnErr.Error()) + smnErr.Message
	}

	errorObj := map[string]any{
		"code":    string(smnErr.Code),
		"message": message,
		"status":  smnErr.Status,
	}
	if smnErr.Code != errors.ErrInternal && smnErr.Details != nil {
		errorObj["details"] = smnErr.Details
	}
	return errorObj
}

// errorResult creates an MCP error result from any error, with IsError set
// so clients recognize the failure.
func errorResult(err error) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{"error": errorPayload(err)})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// importFailedResult reports a failed import together with its per-entry
// errors and counts.
func importFailedResult(err error, result *ops.ImportOutput) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{
		"error":  errorPayload(err),
		"result": result,
	})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

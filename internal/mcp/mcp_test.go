package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/smn/internal/config"
	"github.com/hpungsan/smn/internal/db"
	"github.com/hpungsan/smn/internal/errors"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // temp dirs are outside ~/.smn/exports

	return database, cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func hexOf(c byte) string {
	return strings.Repeat(string(c), 64)
}

// eventArgs returns an event payload as a client would send it.
func eventArgs(id string, content string) map[string]any {
	return map[string]any{
		"id":         id,
		"pubkey":     hexOf('b'),
		"created_at": 1700000000,
		"kind":       1,
		"tags":       []any{[]any{"t", "go"}},
		"content":    content,
		"sig":        hexOf('c') + hexOf('c'),
	}
}

func saveNote(t *testing.T, h *Handlers, id, collection string) {
	t.Helper()
	result, err := h.HandleSave(context.Background(), makeRequest(map[string]any{
		"event":      eventArgs(id, "note "+id[:4]),
		"metadata":   map[string]any{"name": "jack"},
		"collection": collection,
	}))
	if err != nil {
		t.Fatalf("HandleSave returned error: %v", err)
	}
	parseOutput(t, result)
}

func TestHandleSave(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		result, err := h.HandleSave(ctx, makeRequest(map[string]any{
			"event":      eventArgs(hexOf('a'), "hello"),
			"collection": "Work",
			"thoughts":   "  good one ",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := parseOutput(t, result)
		if output["id"] != hexOf('a') {
			t.Errorf("id = %v, want %s", output["id"], hexOf('a'))
		}
		if output["collection"] != "Work" {
			t.Errorf("collection = %v, want Work", output["collection"])
		}
		if output["replaced"] != false {
			t.Errorf("replaced = %v, want false", output["replaced"])
		}
	})

	t.Run("missing event", func(t *testing.T) {
		result, _ := h.HandleSave(ctx, makeRequest(map[string]any{"collection": "Work"}))
		if !result.IsError {
			t.Fatal("expected error result")
		}
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("wrong argument type", func(t *testing.T) {
		result, _ := h.HandleSave(ctx, makeRequest(map[string]any{"event": "not an object"}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleGetAndList(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	ctx := context.Background()

	saveNote(t, h, hexOf('1'), "Work")
	saveNote(t, h, hexOf('2'), "Work")
	saveNote(t, h, hexOf('3'), "")

	if _, err := h.HandleUpvote(ctx, makeRequest(map[string]any{"id": hexOf('1')})); err != nil {
		t.Fatalf("HandleUpvote: %v", err)
	}

	result, _ := h.HandleGet(ctx, makeRequest(map[string]any{"id": hexOf('1')}))
	output := parseOutput(t, result)
	if output["author_name"] != "jack" {
		t.Errorf("author_name = %v, want jack", output["author_name"])
	}
	if output["upvotes"] != float64(1) {
		t.Errorf("upvotes = %v, want 1", output["upvotes"])
	}

	result, _ = h.HandleGet(ctx, makeRequest(map[string]any{"id": hexOf('9')}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = h.HandleList(ctx, makeRequest(map[string]any{"collection": "Work"}))
	output = parseOutput(t, result)
	items := output["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].(map[string]any)["id"] != hexOf('1') {
		t.Errorf("first item = %v, want the upvoted note", items[0].(map[string]any)["id"])
	}

	result, _ = h.HandleList(ctx, makeRequest(map[string]any{"limit": 1}))
	output = parseOutput(t, result)
	pagination := output["pagination"].(map[string]any)
	if pagination["total"] != float64(3) || pagination["has_more"] != true {
		t.Errorf("pagination = %v, want total 3 with more", pagination)
	}
}

func TestHandleVotesMoveAnnotateRemove(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	ctx := context.Background()
	id := hexOf('d')
	saveNote(t, h, id, "")

	result, _ := h.HandleDownvote(ctx, makeRequest(map[string]any{"id": id}))
	if got := parseOutput(t, result)["upvotes"]; got != float64(0) {
		t.Errorf("upvotes after downvote = %v, want 0", got)
	}

	result, _ = h.HandleMove(ctx, makeRequest(map[string]any{"id": id, "collection": "Later"}))
	output := parseOutput(t, result)
	if output["from"] != "Default" || output["collection"] != "Later" {
		t.Errorf("move output = %v", output)
	}

	result, _ = h.HandleAnnotate(ctx, makeRequest(map[string]any{"id": id, "thoughts": "revisit"}))
	if got := parseOutput(t, result)["thoughts"]; got != "revisit" {
		t.Errorf("thoughts = %v, want revisit", got)
	}

	result, _ = h.HandleAnnotate(ctx, makeRequest(map[string]any{"id": id, "thoughts": "  "}))
	if got := parseOutput(t, result)["thoughts"]; got != nil {
		t.Errorf("thoughts = %v, want null", got)
	}

	result, _ = h.HandleRemove(ctx, makeRequest(map[string]any{"id": id}))
	parseOutput(t, result)

	result, _ = h.HandleRemove(ctx, makeRequest(map[string]any{"id": id}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = h.HandleUpvote(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleCollections(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	ctx := context.Background()

	result, _ := h.HandleCollectionCreate(ctx, makeRequest(map[string]any{"name": "Work"}))
	if parseOutput(t, result)["created"] != true {
		t.Error("expected collection to be created")
	}
	saveNote(t, h, hexOf('e'), "Work")

	result, _ = h.HandleCollectionRename(ctx, makeRequest(map[string]any{"from": "Work", "to": "Job"}))
	if parseOutput(t, result)["notes"] != float64(1) {
		t.Error("expected renamed collection to carry its note")
	}

	result, _ = h.HandleCollectionRename(ctx, makeRequest(map[string]any{"from": "Default", "to": "Main"}))
	assertErrorCode(t, result, "RESERVED_COLLECTION")

	result, _ = h.HandleCollectionDelete(ctx, makeRequest(map[string]any{"name": "Default"}))
	assertErrorCode(t, result, "RESERVED_COLLECTION")

	result, _ = h.HandleCollectionDelete(ctx, makeRequest(map[string]any{"name": "Job"}))
	if parseOutput(t, result)["moved"] != float64(1) {
		t.Error("expected one note moved to Default")
	}

	result, _ = h.HandleCollectionList(ctx, makeRequest(nil))
	output := parseOutput(t, result)
	if output["total"] != float64(1) {
		t.Errorf("total = %v, want 1", output["total"])
	}

	result, _ = h.HandleClear(ctx, makeRequest(nil))
	if parseOutput(t, result)["removed"] != float64(1) {
		t.Error("expected clear to remove one note")
	}
}

func TestHandleExportImport(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)
	ctx := context.Background()

	saveNote(t, h, hexOf('f'), "Work")

	exportPath := filepath.Join(t.TempDir(), "export.zip")
	exportResult, err := h.HandleExport(ctx, makeRequest(map[string]any{"path": exportPath}))
	if err != nil {
		t.Fatalf("export handler returned error: %v", err)
	}
	if parseOutput(t, exportResult)["notes"] != float64(1) {
		t.Error("expected one exported note")
	}
	if _, err := os.Stat(exportPath); os.IsNotExist(err) {
		t.Fatal("export file not created")
	}

	database2, cfg2 := testSetup(t)
	h2 := NewHandlers(database2, cfg2)

	importResult, err := h2.HandleImport(ctx, makeRequest(map[string]any{
		"path":    exportPath,
		"include": []any{"Work/**"},
	}))
	if err != nil {
		t.Fatalf("import handler returned error: %v", err)
	}
	output := parseOutput(t, importResult)
	if output["imported"] != float64(1) {
		t.Errorf("imported = %v, want 1", output["imported"])
	}

	getResult, _ := h2.HandleGet(ctx, makeRequest(map[string]any{"id": hexOf('f')}))
	if getResult.IsError {
		t.Error("imported note not found")
	}

	// Importing again skips everything and reports why
	again, _ := h2.HandleImport(ctx, makeRequest(map[string]any{"path": exportPath}))
	assertErrorCode(t, again, "NO_VALID_NOTES")
	var payload map[string]any
	if err := json.Unmarshal([]byte(again.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if payload["result"].(map[string]any)["skipped"] != float64(1) {
		t.Errorf("result = %v, want skipped 1", payload["result"])
	}

	historyResult, _ := h2.HandleHistory(ctx, makeRequest(nil))
	runs := parseOutput(t, historyResult)["runs"].([]any)
	if len(runs) != 1 {
		t.Errorf("runs = %d, want 1", len(runs))
	}

	missing, _ := h2.HandleImport(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, missing, "INVALID_REQUEST")
}

func TestHandleLint(t *testing.T) {
	database, cfg := testSetup(t)
	h := NewHandlers(database, cfg)

	result, _ := h.HandleLint(context.Background(), makeRequest(map[string]any{
		"document": "# Note by x\n\n## Content\n\nhi\n",
	}))
	output := parseOutput(t, result)
	if output["valid"] != false {
		t.Error("expected document without metadata to be invalid")
	}
	missing := output["missing_sections"].([]any)
	if len(missing) != 1 || missing[0] != "Metadata" {
		t.Errorf("missing_sections = %v, want [Metadata]", missing)
	}
}

func TestServerRegistration(t *testing.T) {
	database, cfg := testSetup(t)

	s := NewServer(database, cfg, "test")
	tools := s.ListTools()
	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}
	for _, name := range AllToolNames() {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg := testSetup(t)

	cfg.DisabledTools = []string{"notes_clear", "collection_*", "notes_clear"}
	s := NewServer(database, cfg, "test")
	tools := s.ListTools()

	for _, name := range []string{"notes_clear", "collection_list", "collection_create", "collection_rename", "collection_delete"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	if want := len(toolRegistry) - 5; len(tools) != want {
		t.Errorf("registered tool count = %d, want %d", len(tools), want)
	}
	if _, ok := tools["note_save"]; !ok {
		t.Error("note_save should be registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(database, cfg, "test")
	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"notes_clear", "note_remove"}, 0},
		{"glob", []string{"archive_*"}, 0},
		{"one unknown", []string{"notes_clear", "note_publish"}, 1},
		{"glob matching nothing", []string{"thread_*"}, 1},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %v, want %d unknown", unknown, tt.wantLen)
			}
		})
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}
	text := r.Content[0].(mcp.TextContent).Text
	if strings.Contains(text, "secret.db") {
		t.Fatalf("internal error leaked details: %s", text)
	}
	assertErrorCode(t, r, string(errors.ErrInternal))
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("entry 2: %w", errors.NewCollectionExists("Work"))

	r := errorResult(wrapped)
	assertErrorCode(t, r, string(errors.ErrCollectionExists))
	if msg := extractErrorMessage(r); !strings.Contains(msg, "entry 2") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	assertErrorCode(t, r, string(errors.ErrInternal))
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result with code %q, got success", expectedCode)
		return
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}
	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}
	if code := errorObj["code"]; code != expectedCode {
		t.Errorf("got error code %v, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}

package web

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/smn/internal/archive"
	"github.com/hpungsan/smn/internal/config"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/logger"
	"github.com/hpungsan/smn/internal/ops"
)

// maxUploadMemory is how much of a multipart upload is buffered in memory
// before spilling to temp files.
const maxUploadMemory = 32 << 20

var now = time.Now

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	metrics  *metrics
}

// HandleCollections handles GET /collections: every collection with its
// note count.
func (h *Handlers) HandleCollections(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListCollections(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "collections", CollectionsPageData{
		PageData: h.renderer.page("Collections", "collections"),
		Items:    result.Items,
		Total:    result.Total,
	})
}

// HandleCollection handles GET /collections/{name}: one collection's notes
// ranked by upvotes.
func (h *Handlers) HandleCollection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	result, err := ops.List(h.db, ops.ListInput{
		Collection: name,
		Limit:      parseIntParam(r, "limit", 20),
		Offset:     parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "collection", CollectionPageData{
		PageData:   h.renderer.page(name, "collections"),
		Name:       name,
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleNote handles GET /notes/{id}.
func (h *Handlers) HandleNote(w http.ResponseWriter, r *http.Request) {
	n, err := ops.Get(h.db, ops.GetInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, n)
		return
	}

	data := NotePageData{
		PageData:    h.renderer.page(n.AuthorName, "collections"),
		Note:        n,
		ContentHTML: renderMarkdown(n.Event.Content),
	}
	if n.Thoughts != nil {
		data.ThoughtsHTML = renderMarkdown(*n.Thoughts)
	}
	h.renderer.renderPage(w, r, "note", data)
}

// HandleUpvote handles POST /notes/{id}/upvote.
func (h *Handlers) HandleUpvote(w http.ResponseWriter, r *http.Request) {
	h.handleVote(w, r, ops.Upvote)
}

// HandleDownvote handles POST /notes/{id}/downvote.
func (h *Handlers) HandleDownvote(w http.ResponseWriter, r *http.Request) {
	h.handleVote(w, r, ops.Downvote)
}

func (h *Handlers) handleVote(w http.ResponseWriter, r *http.Request, vote func(*sql.DB, string) (*ops.VoteOutput, error)) {
	id := r.PathValue("id")
	result, err := vote(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `<span class="upvotes">%d</span>`, result.Upvotes)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/notes/"+result.ID, http.StatusSeeOther)
}

// HandleRemove handles DELETE /notes/{id}.
func (h *Handlers) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// The collection is needed for the redirect target.
	n, err := ops.Get(h.db, ops.GetInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Remove(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	target := "/collections/" + url.PathEscape(n.Collection)

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleExport handles GET /export: the whole store as a zip download.
// The archive is built in memory first so a failure still gets a proper
// error response.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	exportTime := now()

	var buf bytes.Buffer
	stats, err := ops.WriteArchive(r.Context(), h.db, &buf, exportTime)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.metrics.exports.Inc()

	filename := archive.ExportFilename(h.cfg.ExportPrefix, exportTime)
	logger.L().Info().
		Str("file", filename).
		Int("notes", stats.Notes).
		Msg("export downloaded")

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleImportPage handles GET /import: the upload form.
func (h *Handlers) HandleImportPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "import", ImportPageData{
		PageData: h.renderer.page("Import", "import"),
	})
}

// HandleImport handles POST /import: a multipart upload in the "archive"
// field, with optional "overwrite" and "merge_collections" form values.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ops.MaxArchiveSize)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("archive file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("failed to read upload"))
		return
	}

	input := ops.ImportInput{
		Data:      data,
		Source:    header.Filename,
		Overwrite: parseBoolForm(r, "overwrite"),
	}
	if v := r.FormValue("merge_collections"); v != "" {
		merge := v == "true" || v == "1" || v == "on"
		input.MergeCollections = &merge
	}
	if include := strings.TrimSpace(r.FormValue("include")); include != "" {
		input.Include = strings.Fields(include)
	}

	result, err := ops.Import(r.Context(), h.db, h.cfg, input)
	if result != nil {
		h.metrics.imported.Add(float64(result.Imported))
		h.metrics.skipped.Add(float64(result.Skipped))
		h.metrics.importErrors.Add(float64(result.ErrorCount))
	}
	if err != nil && result == nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// A corrupt or empty archive still reports what was found.
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}

	if wantsJSON(r) {
		renderJSON(w, status, result)
		return
	}

	h.renderer.renderPageStatus(w, r, status, "import", ImportPageData{
		PageData: h.renderer.page("Import", "import"),
		Result:   result,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolForm parses a checkbox-style form value.
func parseBoolForm(r *http.Request, name string) bool {
	s := r.FormValue(name)
	return s == "true" || s == "1" || s == "on"
}

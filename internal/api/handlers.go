package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/docservice"
	"github.com/starford/headless/internal/hn"
	"github.com/starford/headless/internal/index"
)

// FormatHN is the only response format the content graph endpoint serves.
const FormatHN = "hn"

// Handler holds API route handlers.
type Handler struct {
	graph  *hn.Service
	docs   *docservice.Service
	maxAge time.Duration
}

// NewHandler creates a new Handler.
func NewHandler(graph *hn.Service, docs *docservice.Service, maxAge time.Duration) *Handler {
	return &Handler{graph: graph, docs: docs, maxAge: maxAge}
}

// documentPath extracts the document path from the URL (everything after
// /api/documents/). Supports encoded slashes (e.g. pages%2Fabout.md).
func documentPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ContentGraph handles GET /api/content-graph.
//
//	@Summary		Normalized content graph of a path
//	@Tags			content
//	@Produce		json
//	@Param			path	query		string	false	"Site path"	default(/)
//	@Param			_format	query		string	false	"Response format"	Enums(hn)
//	@Param			debug	query		int		false	"Attach the build log"	Enums(0, 1)
//	@Success		200		{object}	hn.Response
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		406		{object}	errResponse
//	@Router			/content-graph [get]
func (h *Handler) ContentGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("_format")
	if format == "" {
		format = q.Get("format")
	}
	if format != "" && format != FormatHN {
		writeJSON(w, http.StatusNotAcceptable, errorBody(apperr.ErrNotAcceptable.Error()+": "+format))
		return
	}

	account := content.AccountFrom(r.Context())
	if !account.HasPermission(content.PermUseGraph) {
		writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
		return
	}

	path := q.Get("path")
	if path == "" {
		path = "/"
	}
	debug := isTrue(q.Get("debug"))

	resp, err := h.graph.BuildResponse(r.Context(), hn.Request{
		Path:    path,
		Query:   q,
		Account: account,
		Debug:   debug,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("content graph failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	if debug || h.maxAge <= 0 {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(h.maxAge.Seconds())))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents with optional pagination and kind filter
//	@Tags			documents
//	@Produce		json
//	@Param			kind	query		string	false	"Document kind"	Enums(content, config)
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.docs.ListDocuments(r.Context(), q.Get("kind"), limit, offset)
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a single document by path
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := documentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.docs.GetDocument(r.Context(), path)
	if err != nil {
		writeDocumentError(w, "get document failed", path, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a new document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	doc, err := h.docs.CreateDocument(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeDocumentError(w, "create document failed", req.Path, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// PutDocument handles PUT /api/documents/*.
//
//	@Summary		Create or replace a document with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Document path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	PutDocumentRequest	true	"Document content"
//	@Success		200		{object}	DocumentDetail
//	@Success		201		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [put]
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := documentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req PutDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	doc, created, err := h.docs.PutDocument(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		writeDocumentError(w, "put document failed", path, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, doc)
}

// MoveDocument handles POST /api/documents/move.
//
//	@Summary		Rename a document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveDocumentRequest	true	"Source and target paths"
//	@Success		200		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/move [post]
func (h *Handler) MoveDocument(w http.ResponseWriter, r *http.Request) {
	var req MoveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("from and to are required"))
		return
	}
	doc, err := h.docs.MoveDocument(r.Context(), req.From, req.To)
	if err != nil {
		writeDocumentError(w, "move document failed", req.From, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/*.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Param			path	path	string	true	"Document path"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := documentPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.docs.DeleteDocument(r.Context(), path); err != nil {
		writeDocumentError(w, "delete document failed", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across content documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.docs.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func writeDocumentError(w http.ResponseWriter, msg, path string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("document already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error(msg, slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

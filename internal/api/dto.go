package api

import (
	"github.com/starford/headless/internal/docservice"
	"github.com/starford/headless/internal/index"
	"github.com/starford/headless/internal/models"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Path    string `json:"path" example:"pages/about.md" validate:"required"`
	Content string `json:"content" example:"---\ntype: node\nid: \"2\"\n---\n# About" validate:"required"`
}

// PutDocumentRequest is the request body for writing a document.
type PutDocumentRequest struct {
	Content string `json:"content" example:"---\ntype: node\nid: \"2\"\n---\n# About" validate:"required"`
}

// MoveDocumentRequest is the request body for renaming a document.
type MoveDocumentRequest struct {
	From string `json:"from" example:"pages/about.md" validate:"required"`
	To   string `json:"to" example:"company/about.md" validate:"required"`
}

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.DocumentMetadata `json:"documents" validate:"required"`
	Total     int                       `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

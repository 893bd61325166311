// Package models defines the vault document types.
package models

import "time"

// Document kinds.
const (
	// KindContent documents are Markdown files describing one object.
	KindContent = "content"
	// KindConfig documents are YAML files holding displays, redirects and
	// collection views.
	KindConfig = "config"
)

// DocumentMetadata is a lightweight representation returned by list operations.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Kind      string    `json:"kind"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

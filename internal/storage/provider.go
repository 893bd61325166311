// Package storage defines the vault file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/headless/internal/models"
)

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every document under dir (relative to vault root).
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to vault root).
	Move(oldPath, newPath string) error
}

// KindOf returns the document kind of path, or "" when the file is not a
// vault document.
func KindOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		return models.KindContent
	case ".yaml", ".yml":
		return models.KindConfig
	}
	return ""
}

package index

import (
	"fmt"
	"log/slog"

	"github.com/starford/headless/internal/checksum"
	"github.com/starford/headless/internal/models"
	"github.com/starford/headless/internal/parser"
	"github.com/starford/headless/internal/storage"
)

// Change kinds.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Change describes one index mutation. Tags are the cache tags it
// invalidates.
type Change struct {
	Kind string   `json:"kind"`
	Path string   `json:"path"`
	Tags []string `json:"tags"`
}

// EventCallback is called after a sync- or watcher-driven index change.
type EventCallback func(Change)

// Sync walks the vault and brings the index up to date:
//   - new/changed documents are parsed and upserted
//   - documents removed from disk are deleted from the index
//
// cb (if non-nil) receives every change, so persistent caches can drop
// entries that went stale while the process was down.
func Sync(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		old, known := checksums[m.Path]
		if known && old == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		tags, err := IndexDocument(db, m.Path, data)
		if err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path))
		kind := ChangeUpdated
		if !known {
			kind = ChangeCreated
		}
		notify(cb, kind, m.Path, tags)
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			tags, err := db.DeleteDocument(p)
			if err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			logger.Debug("sync: removed stale", slog.String("path", p))
			notify(cb, ChangeDeleted, p, tags)
		}
	}

	return nil
}

// IndexDocument parses data according to the document kind of path and upserts
// it into the DB. It returns the invalidated cache tags.
func IndexDocument(db *DB, path string, data []byte) ([]string, error) {
	doc := DocumentRow{
		Path:     path,
		Kind:     storage.KindOf(path),
		Checksum: checksum.Sum(data),
	}
	switch doc.Kind {
	case models.KindContent:
		obj, res, err := parser.ParseObject(path, data, db.defaultLang)
		if err != nil {
			return nil, err
		}
		return db.UpsertContent(doc, obj, res.Body)
	case models.KindConfig:
		cfg, err := parser.ParseConfig(data, db.defaultLang)
		if err != nil {
			return nil, err
		}
		return db.UpsertConfig(doc, cfg)
	}
	return nil, fmt.Errorf("index: %s is not a vault document", path)
}

func notify(cb EventCallback, kind, path string, tags []string) {
	if cb != nil {
		cb(Change{Kind: kind, Path: path, Tags: tags})
	}
}

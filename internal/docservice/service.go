// Package docservice coordinates vault documents and the index: reads,
// optimistic writes and deletes, each reported as an index change.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/checksum"
	"github.com/starford/headless/internal/index"
	"github.com/starford/headless/internal/models"
	"github.com/starford/headless/internal/parser"
	"github.com/starford/headless/internal/storage"
)

// ObjectSummary identifies the object a content document declares.
type ObjectSummary struct {
	Category string `json:"category"`
	ID       string `json:"id"`
	UUID     string `json:"uuid"`
	Langcode string `json:"langcode"`
	Alias    string `json:"alias,omitempty"`
}

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	Path       string            `json:"path"`
	Kind       string            `json:"kind"`
	Content    string            `json:"content"`
	Checksum   string            `json:"checksum"`
	Object     *ObjectSummary    `json:"object,omitempty"`
	References []index.Reference `json:"references"`
	Backlinks  []index.Reference `json:"backlinks"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       *index.DB
	onChange index.EventCallback
}

// Option configures a Service.
type Option func(*Service)

// WithChangeCallback receives every change the service makes, so the
// response cache can drop entries before the watcher catches up.
func WithChangeCallback(cb index.EventCallback) Option {
	return func(s *Service) { s.onChange = cb }
}

// NewService creates a new document service.
func NewService(store storage.Provider, db *index.DB, opts ...Option) *Service {
	s := &Service{store: store, db: db}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetDocument reads a document from storage and enriches it with its
// object's references and backlinks.
func (s *Service) GetDocument(ctx context.Context, path string) (*DocumentDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
		return nil, err
	}
	return s.buildDetail(ctx, path, data)
}

// ListDocuments returns one page of indexed documents.
func (s *Service) ListDocuments(_ context.Context, kind string, limit, offset int) ([]models.DocumentMetadata, int, error) {
	rows, total, err := s.db.ListDocuments(kind, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.DocumentMetadata, len(rows))
	for i, r := range rows {
		items[i] = models.DocumentMetadata{
			Path:      r.Path,
			Kind:      r.Kind,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// PutDocument creates or replaces a document. A non-empty ifMatch must equal
// the checksum of the stored document. Documents that do not parse are
// rejected with apperr.ErrInvalid before anything is written.
func (s *Service) PutDocument(ctx context.Context, path string, data []byte, ifMatch string) (*DocumentDetail, bool, error) {
	if err := s.validate(path, data); err != nil {
		return nil, false, err
	}

	existing, err := s.store.Read(path)
	created := errors.Is(err, os.ErrNotExist)
	switch {
	case created:
		if ifMatch != "" {
			return nil, false, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
	case err != nil:
		return nil, false, err
	case ifMatch != "" && ifMatch != checksum.Sum(existing):
		return nil, false, apperr.ErrConflict
	}

	if err := s.store.Write(path, data); err != nil {
		return nil, false, err
	}
	tags, err := index.IndexDocument(s.db, path, data)
	if err != nil {
		return nil, false, err
	}
	kind := index.ChangeUpdated
	if created {
		kind = index.ChangeCreated
	}
	s.notify(index.Change{Kind: kind, Path: path, Tags: tags})

	detail, err := s.buildDetail(ctx, path, data)
	return detail, created, err
}

// CreateDocument writes a new document and fails with
// apperr.ErrAlreadyExists when path is taken.
func (s *Service) CreateDocument(ctx context.Context, path string, data []byte) (*DocumentDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, path)
	}
	detail, _, err := s.PutDocument(ctx, path, data, "")
	return detail, err
}

// DeleteDocument removes a document from storage and index.
func (s *Service) DeleteDocument(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
		return err
	}
	tags, err := s.db.DeleteDocument(path)
	if err != nil {
		return err
	}
	if tags != nil {
		s.notify(index.Change{Kind: index.ChangeDeleted, Path: path, Tags: tags})
	}
	return nil
}

// MoveDocument renames a document within the vault. The old path is
// reported deleted and the new one created. Both paths must be of the same
// kind.
func (s *Service) MoveDocument(ctx context.Context, from, to string) (*DocumentDetail, error) {
	kind := storage.KindOf(from)
	if kind == "" || kind != storage.KindOf(to) {
		return nil, fmt.Errorf("%w: cannot move %s to %s", apperr.ErrInvalid, from, to)
	}
	if _, err := s.store.Read(to); err == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, to)
	}
	if err := s.store.Move(from, to); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, from)
		}
		return nil, err
	}

	removed, err := s.db.DeleteDocument(from)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(to)
	if err != nil {
		return nil, err
	}
	added, err := index.IndexDocument(s.db, to, data)
	if err != nil {
		return nil, err
	}
	if removed != nil {
		s.notify(index.Change{Kind: index.ChangeDeleted, Path: from, Tags: removed})
	}
	s.notify(index.Change{Kind: index.ChangeCreated, Path: to, Tags: added})

	return s.buildDetail(ctx, to, data)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// References returns the outgoing references and backlinks of an object.
func (s *Service) References(ctx context.Context, category, id string) ([]index.Reference, []index.Reference, error) {
	out, err := s.db.References(ctx, category, id)
	if err != nil {
		return nil, nil, err
	}
	in, err := s.db.Backlinks(ctx, category, id)
	if err != nil {
		return nil, nil, err
	}
	return nonNilSlice(out), nonNilSlice(in), nil
}

func (s *Service) validate(path string, data []byte) error {
	var err error
	switch storage.KindOf(path) {
	case models.KindContent:
		_, _, err = parser.ParseObject(path, data, s.db.DefaultLangcode())
	case models.KindConfig:
		_, err = parser.ParseConfig(data, s.db.DefaultLangcode())
	default:
		err = fmt.Errorf("%s is not a .md or .yaml document", path)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return nil
}

func (s *Service) notify(c index.Change) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

// buildDetail constructs a DocumentDetail from raw data without re-reading the file.
func (s *Service) buildDetail(ctx context.Context, path string, data []byte) (*DocumentDetail, error) {
	d := &DocumentDetail{
		Path:       path,
		Kind:       storage.KindOf(path),
		Content:    string(data),
		Checksum:   checksum.Sum(data),
		References: []index.Reference{},
		Backlinks:  []index.Reference{},
		UpdatedAt:  time.Now(),
	}
	if d.Kind != models.KindContent {
		return d, nil
	}
	obj, _, err := parser.ParseObject(path, data, s.db.DefaultLangcode())
	if err != nil {
		return d, nil
	}
	d.Object = &ObjectSummary{
		Category: obj.Category,
		ID:       obj.ID,
		UUID:     obj.UUID,
		Langcode: obj.Langcode,
		Alias:    obj.Alias,
	}
	d.References, d.Backlinks, err = s.References(ctx, obj.Category, obj.ID)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

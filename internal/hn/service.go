package hn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/starford/headless/internal/content"
)

// Request is one graph request.
type Request struct {
	Path    string
	Query   url.Values
	Account content.Account
	Debug   bool
}

// Service builds responses. It is safe for concurrent use; every call gets
// its own builder and event bus.
type Service struct {
	store       content.Store
	cache       ResponseCache
	handlers    *HandlerRegistry
	subscribers []Subscriber
	limits      Limits
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables response caching.
func WithCache(c ResponseCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

func WithHandlers(r *HandlerRegistry) ServiceOption {
	return func(s *Service) { s.handlers = r }
}

func WithSubscribers(subs ...Subscriber) ServiceOption {
	return func(s *Service) { s.subscribers = append(s.subscribers, subs...) }
}

func WithLimits(l Limits) ServiceOption {
	return func(s *Service) { s.limits = l.withDefaults() }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(store content.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		handlers: DefaultHandlers(),
		limits:   DefaultLimits(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BuildResponse resolves req.Path and returns the graph of its root object.
// Cached responses are returned as stored, without the pre-send event.
// Resolution failures (apperr.ErrNotFound) are returned and never cached.
func (s *Service) BuildResponse(ctx context.Context, req Request) (*Response, error) {
	var dlog *DebugLog
	if req.Debug {
		dlog = NewDebugLog(s.now)
	}
	logf := func(format string, args ...any) {
		if dlog != nil {
			dlog.Add(fmt.Sprintf(format, args...))
		}
	}

	query := url.Values{}
	for k, v := range req.Query {
		query[k] = v
	}
	if query.Get("path") == "" {
		query.Set("path", req.Path)
	}

	bus := NewEventBus(s.subscribers...)
	resp := bus.DispatchResponse(ctx, EventCreated, NewResponse())
	logf("Creating new response.")

	path := req.Path
	status := http.StatusOK
	account := req.Account
	key := CacheKey(account, query)
	if !account.HasPermission(content.PermAccessContent) {
		logf("Account %s may not access content, using 403 page.", account.ID)
		path = s.store.ForbiddenPath()
		status = http.StatusForbidden
		account = content.NewAccount(account.ID, content.PermAccessContent)
		key = forbiddenCacheKey(path)
	}

	useCache := s.cache != nil && !req.Debug
	var generation uint64
	if useCache {
		entry, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("response cache get failed", "key", key, "error", err)
		} else if ok && entry.Graph != nil {
			return entry.Graph, nil
		}
		// Read before any content so a concurrent invalidation keeps the
		// result out of the cache.
		if generation, err = s.cache.Generation(ctx); err != nil {
			s.logger.Warn("response cache generation failed", "error", err)
			useCache = false
		}
	}
	resp = bus.DispatchResponse(ctx, EventCacheMiss, resp)
	logf("Cache miss, building response.")

	if status == http.StatusForbidden && path == "" {
		resp.Status = status
		resp = bus.DispatchResponse(ctx, EventPostEntitiesAdded, resp)
		s.attachLog(resp, dlog)
		return bus.DispatchResponse(ctx, EventPreSend, resp), nil
	}

	res, err := NewRequestResolver(s.store, logf).Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		status = res.Status
	}

	b := NewBuilder(s.store, s.handlers, bus, resp,
		WithBuilderLimits(s.limits),
		WithBuilderLogger(s.logger),
		WithDebugLog(dlog),
		WithAccount(account),
		WithLanguage(res.Language),
		WithQuery(query),
	)
	b.AddObject(ctx, res.Object, res.ViewMode)

	resp = bus.DispatchResponse(ctx, EventPostEntitiesAdded, resp)

	root := res.Object.UUID
	rec := resp.Data[root]
	if rec == nil {
		rec = Record{}
		resp.Data[root] = rec
	}
	rec.Meta()["status"] = status
	resp.Paths[NormalizePath(path)] = root
	resp.Status = status
	logf("Response built with %d objects.", len(resp.Data))
	s.attachLog(resp, dlog)

	if useCache {
		entry := &CacheEntry{Key: key, Graph: resp, Tags: b.CacheTags(), Generation: generation}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Warn("response cache set failed", "key", key, "error", err)
		}
	}

	return bus.DispatchResponse(ctx, EventPreSend, resp), nil
}

func (s *Service) attachLog(resp *Response, dlog *DebugLog) {
	if dlog == nil {
		return
	}
	if resp.Meta == nil {
		resp.Meta = make(map[string]any)
	}
	resp.Meta["log"] = dlog.Lines()
}

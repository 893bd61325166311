package hn

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"

	"github.com/starford/headless/internal/content"
)

// Limits bound a single build.
type Limits struct {
	// MaxDepth is the deepest reference nesting followed from the root.
	MaxDepth int
	// MaxObjects caps the number of (object, view mode) pairs handled.
	MaxObjects int
}

// DefaultLimits are used when a limit is zero.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 32, MaxObjects: 5000}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxObjects <= 0 {
		l.MaxObjects = d.MaxObjects
	}
	return l
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

func WithBuilderLimits(l Limits) BuilderOption {
	return func(b *Builder) { b.limits = l.withDefaults() }
}

func WithBuilderLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

func WithDebugLog(l *DebugLog) BuilderOption {
	return func(b *Builder) { b.debug = l }
}

func WithAccount(a content.Account) BuilderOption {
	return func(b *Builder) { b.account = a }
}

func WithLanguage(lang string) BuilderOption {
	return func(b *Builder) { b.language = lang }
}

func WithQuery(q url.Values) BuilderOption {
	return func(b *Builder) { b.query = q }
}

type visit struct {
	uuid     string
	viewMode string
}

// Builder accumulates the graph of one request. It is not safe for
// concurrent use.
type Builder struct {
	store    content.Store
	handlers *HandlerRegistry
	events   *EventBus
	displays *DisplayResolver
	limits   Limits
	logger   *slog.Logger
	debug    *DebugLog

	account  content.Account
	language string
	query    url.Values

	graph   *Response
	views   *viewRegistry
	visited map[visit]bool
	handled int
	depth   int
	touched map[string]*content.Object
}

// NewBuilder returns a builder writing into graph.
func NewBuilder(store content.Store, handlers *HandlerRegistry, events *EventBus, graph *Response, opts ...BuilderOption) *Builder {
	if events == nil {
		events = NewEventBus()
	}
	if graph == nil {
		graph = NewResponse()
	}
	b := &Builder{
		store:    store,
		handlers: handlers,
		events:   events,
		displays: NewDisplayResolver(store),
		limits:   DefaultLimits(),
		logger:   slog.Default(),
		account:  content.NewAccount("anonymous"),
		language: store.Languages().Default,
		query:    url.Values{},
		graph:    graph,
		views:    newViewRegistry(),
		visited:  make(map[visit]bool),
		touched:  make(map[string]*content.Object),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Builder) Store() content.Store     { return b.store }
func (b *Builder) Account() content.Account { return b.account }
func (b *Builder) Language() string         { return b.language }
func (b *Builder) Query() url.Values        { return b.query }
func (b *Builder) Graph() *Response         { return b.graph }

// Logf writes to the debug log and the debug level of the logger.
func (b *Builder) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.debug.Add(msg)
	b.logger.Debug(msg)
}

// RegisterView records viewMode for obj. It returns false when the pair was
// registered before, in which case the caller must not produce a record.
func (b *Builder) RegisterView(ctx context.Context, obj *content.Object, viewMode string) (*EntityWithViews, bool, error) {
	if e := b.views.get(obj.UUID); e != nil && e.HasViewMode(viewMode) {
		return e, false, nil
	}
	d, err := b.displays.Display(ctx, obj.Category, obj.Variant, viewMode)
	if err != nil {
		return nil, false, err
	}
	e, added := b.views.add(obj, viewMode, d)
	return e, added, nil
}

// Views returns the views registered for uuid or nil.
func (b *Builder) Views(uuid string) *EntityWithViews {
	return b.views.get(uuid)
}

// AddObject adds obj rendered in viewMode to the graph, together with
// everything its handler pulls in. Adding the same (uuid, view mode) pair a
// second time is a no-op. Failures are logged and skip only this object.
func (b *Builder) AddObject(ctx context.Context, obj *content.Object, viewMode string) {
	if obj == nil {
		return
	}
	if viewMode == "" {
		viewMode = content.DefaultViewMode
	}
	key := visit{uuid: obj.UUID, viewMode: viewMode}
	if b.visited[key] {
		return
	}

	// Rejected pairs stay unvisited so a shallower reference can still add them.
	if b.depth >= b.limits.MaxDepth {
		b.Logf("Not adding %s, depth limit %d reached.", obj.UUID, b.limits.MaxDepth)
		return
	}
	if b.handled >= b.limits.MaxObjects {
		b.Logf("Not adding %s, object limit %d reached.", obj.UUID, b.limits.MaxObjects)
		return
	}
	if err := ctx.Err(); err != nil {
		return
	}
	b.visited[key] = true
	b.handled++

	obj, viewMode = b.events.DispatchObjectAdded(ctx, obj, viewMode)

	h := b.handlers.Handler(obj)
	if h == nil {
		b.Logf("No handler for %s %s.", obj.Category, obj.UUID)
		b.logger.Warn("no entity handler", "category", obj.Category, "uuid", obj.UUID)
		return
	}

	b.touched[obj.UUID] = obj
	b.depth++
	rec, err := b.handle(ctx, h, obj, viewMode)
	b.depth--
	if err != nil {
		b.Logf("Handler %s failed for %s: %v", h.ID(), obj.UUID, err)
		b.logger.Warn("entity handler failed", "handler", h.ID(), "uuid", obj.UUID, "error", err)
		return
	}
	if rec == nil {
		return
	}

	meta := rec.Meta()
	meta["entity"] = map[string]any{
		"category": obj.Category,
		"variant":  obj.Variant,
	}
	if path, err := b.store.CanonicalPath(ctx, obj); err == nil && path != "" {
		b.graph.Paths[path] = obj.UUID
		meta["url"] = path
	}

	rec = b.events.DispatchObjectNormalized(ctx, obj, viewMode, rec)
	if rec == nil {
		return
	}
	b.graph.Data[obj.UUID] = rec
}

func (b *Builder) handle(ctx context.Context, h EntityHandler, obj *content.Object, viewMode string) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hn: handler %s panicked: %v", h.ID(), r)
		}
	}()
	return h.Handle(ctx, b, obj, viewMode)
}

// CacheTags returns the sorted union of the cache tags of every object in
// the graph.
func (b *Builder) CacheTags() []string {
	set := make(map[string]bool)
	for _, obj := range b.touched {
		for _, t := range b.store.CacheTags(obj) {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

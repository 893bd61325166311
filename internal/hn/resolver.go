package hn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
)

// Resolution is the root object a request path resolved to.
type Resolution struct {
	Object   *content.Object
	ViewMode string
	// Status is 200, the redirect status, or 404 when the not-found page was
	// substituted.
	Status   int
	Language string
}

// RequestResolver maps a request path to a root object.
type RequestResolver struct {
	store content.Store
	logf  func(format string, args ...any)
}

// NewRequestResolver returns a resolver. logf may be nil.
func NewRequestResolver(store content.Store, logf func(format string, args ...any)) *RequestResolver {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &RequestResolver{store: store, logf: logf}
}

// NormalizePath returns raw with exactly one leading slash and no trailing
// slash.
func NormalizePath(raw string) string {
	return "/" + strings.Trim(raw, "/")
}

// Resolve resolves rawPath. Unrouted paths fall back to a redirect target
// and then to the not-found page. apperr.ErrNotFound is returned only when
// the not-found page itself cannot be resolved.
func (r *RequestResolver) Resolve(ctx context.Context, rawPath string) (*Resolution, error) {
	lang, path := r.negotiate(NormalizePath(rawPath))
	res := &Resolution{ViewMode: content.DefaultViewMode, Status: http.StatusOK, Language: lang}

	if path == "/" {
		if front := r.store.FrontPagePath(); front != "" {
			path = NormalizePath(front)
		}
	}

	route, err := r.store.Resolve(ctx, path)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrUnrouted):
		route, res.Status, err = r.unrouted(ctx, path, lang)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("hn: resolve %s: %w", path, err)
	}

	if route.Name == content.RouteFront {
		route, err = r.front(ctx)
		if err != nil {
			return nil, err
		}
	}

	obj, err := r.load(ctx, route)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		r.logf("Path %s doesn't resolve to an object, getting 404 page.", path)
		route, err = r.notFoundRoute(ctx)
		if err != nil {
			return nil, err
		}
		res.Status = http.StatusNotFound
		if obj, err = r.load(ctx, route); err != nil {
			return nil, err
		}
		if obj == nil {
			return nil, fmt.Errorf("%w: 404 page is not an object", apperr.ErrNotFound)
		}
	}

	if obj.Translatable && lang != "" && lang != obj.Langcode {
		translated, err := r.store.Translate(ctx, obj, lang)
		if err != nil {
			return nil, fmt.Errorf("hn: translate %s: %w", obj.UUID, err)
		}
		obj = translated
	}
	res.Object = obj
	return res, nil
}

// negotiate strips a language path prefix and returns the active language.
func (r *RequestResolver) negotiate(path string) (string, string) {
	ls := r.store.Languages()
	lang := ls.Default
	codes := make([]string, 0, len(ls.Prefixes))
	for code := range ls.Prefixes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	if lang == "" {
		for _, code := range codes {
			if ls.Prefixes[code] == "" {
				lang = code
				break
			}
		}
	}
	if ls.Method != content.NegotiationPathPrefix {
		return lang, path
	}
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	for _, code := range codes {
		if prefix := ls.Prefixes[code]; prefix != "" && prefix == first {
			return code, NormalizePath(rest)
		}
	}
	return lang, path
}

func (r *RequestResolver) unrouted(ctx context.Context, path, lang string) (content.Route, int, error) {
	red, err := r.store.FindRedirect(ctx, strings.Trim(path, "/"), lang)
	if err != nil {
		return content.Route{}, 0, fmt.Errorf("hn: redirect lookup %s: %w", path, err)
	}
	if red != nil {
		r.logf("Path %s redirects to %s.", path, red.Target)
		route, err := r.store.Resolve(ctx, NormalizePath(red.Target))
		if err == nil {
			status := red.Status
			if status == 0 {
				status = http.StatusMovedPermanently
			}
			return route, status, nil
		}
		if !errors.Is(err, apperr.ErrUnrouted) {
			return content.Route{}, 0, fmt.Errorf("hn: resolve %s: %w", red.Target, err)
		}
		r.logf("Redirect target %s isn't routed.", red.Target)
	} else {
		r.logf("Path %s isn't routed and no redirects found, getting 404 page.", path)
	}
	route, err := r.notFoundRoute(ctx)
	return route, http.StatusNotFound, err
}

func (r *RequestResolver) notFoundRoute(ctx context.Context) (content.Route, error) {
	p := r.store.NotFoundPath()
	if p == "" {
		return content.Route{}, fmt.Errorf("%w: no 404 page configured", apperr.ErrNotFound)
	}
	route, err := r.store.Resolve(ctx, NormalizePath(p))
	if errors.Is(err, apperr.ErrUnrouted) {
		return content.Route{}, fmt.Errorf("%w: 404 page %s is not routed", apperr.ErrNotFound, p)
	}
	if err != nil {
		return content.Route{}, fmt.Errorf("hn: resolve %s: %w", p, err)
	}
	return route, nil
}

func (r *RequestResolver) front(ctx context.Context) (content.Route, error) {
	p := NormalizePath(r.store.FrontPagePath())
	if p == "/" {
		r.logf("No front page configured, getting 404 page.")
		return r.notFoundRoute(ctx)
	}
	route, err := r.store.Resolve(ctx, p)
	if err != nil || route.Name == content.RouteFront {
		r.logf("Front page %s isn't routed, getting 404 page.", p)
		return r.notFoundRoute(ctx)
	}
	return route, nil
}

// load returns the object of route, or nil when the route has none.
func (r *RequestResolver) load(ctx context.Context, route content.Route) (*content.Object, error) {
	category, id := route.Category, route.ID
	if !route.HasObject() {
		cid, ok := route.Collection()
		if !ok {
			return nil, nil
		}
		category, id = content.CollectionCategory, cid
	}
	obj, err := r.store.Load(ctx, category, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hn: load %s/%s: %w", category, id, err)
	}
	return obj, nil
}

package extension

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/roach88/shelf/internal/auth"
	"github.com/roach88/shelf/internal/store"
)

type routeKey struct {
	method string
	path   string
}

func keyOf(method, path string) routeKey {
	return routeKey{method: strings.ToUpper(method), path: path}
}

// loadedRoute is a route with the module that contributed it.
type loadedRoute struct {
	Route
	module string
}

// Registry resolves module names against a catalog and mounts the
// resulting routes. It is immutable once Load succeeds.
type Registry struct {
	catalog  map[string]Module
	reserved map[routeKey]bool
	routes   []loadedRoute
	loaded   []string
}

// NewRegistry creates a Registry over catalog.
func NewRegistry(catalog []Module) (*Registry, error) {
	r := &Registry{
		catalog:  make(map[string]Module, len(catalog)),
		reserved: make(map[routeKey]bool),
	}
	for _, m := range catalog {
		if m.Name == "" {
			return nil, fmt.Errorf("extension module has no name")
		}
		if _, dup := r.catalog[m.Name]; dup {
			return nil, fmt.Errorf("extension module %q registered twice", m.Name)
		}
		r.catalog[m.Name] = m
	}
	return r, nil
}

// Reserve claims method and path for a core endpoint, so no module may
// register it.
func (r *Registry) Reserve(method, path string) {
	r.reserved[keyOf(method, path)] = true
}

// Load resolves names in order. Any unknown module, duplicate name or
// conflicting route fails the whole load.
func (r *Registry) Load(names []string) error {
	if r.loaded != nil {
		return fmt.Errorf("extensions already loaded")
	}

	var routes []loadedRoute
	owner := map[routeKey]string{}
	seenModule := map[string]bool{}

	for _, name := range names {
		m, ok := r.catalog[name]
		if !ok {
			return fmt.Errorf("unknown extension module %q", name)
		}
		if seenModule[name] {
			return fmt.Errorf("extension module %q listed twice", name)
		}
		seenModule[name] = true

		for _, rt := range m.Routes {
			if err := validateRoute(rt); err != nil {
				return fmt.Errorf("extension %q: %w", name, err)
			}
			k := keyOf(rt.Method, rt.Path)
			if r.reserved[k] {
				return fmt.Errorf("extension %q: %s %s is a core route", name, k.method, k.path)
			}
			if prev, dup := owner[k]; dup {
				return fmt.Errorf("extension %q: %s %s already registered by %q", name, k.method, k.path, prev)
			}
			owner[k] = name
			routes = append(routes, loadedRoute{Route: rt, module: name})
		}
	}

	r.routes = routes
	r.loaded = append([]string{}, names...)
	return nil
}

func validateRoute(rt Route) error {
	switch strings.ToUpper(rt.Method) {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method %q", rt.Method)
	}
	if !strings.HasPrefix(rt.Path, "/") {
		return fmt.Errorf("path %q must start with /", rt.Path)
	}
	if rt.Handler == nil {
		return fmt.Errorf("%s %s has no handler", rt.Method, rt.Path)
	}
	return nil
}

// Loaded returns the loaded module names in load order.
func (r *Registry) Loaded() []string {
	return append([]string{}, r.loaded...)
}

// Routes returns "METHOD /path" for every loaded route in mount order.
func (r *Registry) Routes() []string {
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = strings.ToUpper(rt.Method) + " " + rt.Path
	}
	return out
}

// Mount registers every loaded route on router. Routes with RequiresAuth
// run behind mw.Require; the others decode an identity when one is sent.
func (r *Registry) Mount(router *mux.Router, mw *auth.Middleware, s *store.Store, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, rt := range r.routes {
		log := logger.With("extension", rt.module)
		var h http.Handler = handlerFor(rt.Route, s, log)
		if rt.RequiresAuth {
			h = mw.Require(h)
		} else {
			h = mw.Optional(h)
		}
		router.Handle(rt.Path, h).Methods(strings.ToUpper(rt.Method))
		log.Debug("mounted extension route", "method", rt.Method, "path", rt.Path)
	}
}

func handlerFor(rt Route, s *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user, _ := auth.FromContext(req.Context())
		rt.Handler(&Context{
			W:      w,
			R:      req,
			User:   user,
			Logger: logger,
			store:  s,
		})
	}
}

// Package server assembles the shelf HTTP surface: authentication routes,
// static uploads, extension modules and the generic collection endpoints,
// wrapped in the request-scoped middleware every response goes through.
package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/roach88/shelf/internal/attach"
	"github.com/roach88/shelf/internal/auth"
	"github.com/roach88/shelf/internal/extension"
	"github.com/roach88/shelf/internal/httpjson"
	"github.com/roach88/shelf/internal/marker"
	"github.com/roach88/shelf/internal/metrics"
	"github.com/roach88/shelf/internal/resource"
	"github.com/roach88/shelf/internal/schema"
	"github.com/roach88/shelf/internal/store"
)

// Handler represents the shelf HTTP handler.
type Handler struct {
	Handler http.Handler

	store   *store.Store
	files   *attach.Store
	markers marker.Checker
	auth    *auth.Service
	limiter *auth.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	catalog    []extension.Module
	extensions []string
	registry   *extension.Registry

	allowedOrigins []string
	trustProxy     bool

	middleware []func(http.Handler) http.Handler
}

// handlerOption is a functional option type for Handler.
type handlerOption func(h *Handler) error

// OptHandlerStore sets the record store. Required.
func OptHandlerStore(s *store.Store) handlerOption {
	return func(h *Handler) error {
		h.store = s
		return nil
	}
}

// OptHandlerFiles sets the attachment store. Required.
func OptHandlerFiles(f *attach.Store) handlerOption {
	return func(h *Handler) error {
		h.files = f
		return nil
	}
}

// OptHandlerMarkers sets the checker consulted before list reads. Required.
func OptHandlerMarkers(m marker.Checker) handlerOption {
	return func(h *Handler) error {
		h.markers = m
		return nil
	}
}

// OptHandlerAuth sets the account service. Required.
func OptHandlerAuth(svc *auth.Service) handlerOption {
	return func(h *Handler) error {
		h.auth = svc
		return nil
	}
}

// OptHandlerLimiter rate limits /register and /login.
func OptHandlerLimiter(l *auth.Limiter) handlerOption {
	return func(h *Handler) error {
		h.limiter = l
		return nil
	}
}

func OptHandlerMetrics(m *metrics.Metrics) handlerOption {
	return func(h *Handler) error {
		h.metrics = m
		return nil
	}
}

func OptHandlerLogger(l *slog.Logger) handlerOption {
	return func(h *Handler) error {
		h.logger = l
		return nil
	}
}

// OptHandlerClock sets the time source for record timestamps.
func OptHandlerClock(now func() time.Time) handlerOption {
	return func(h *Handler) error {
		h.now = now
		return nil
	}
}

// OptHandlerExtensions loads the named modules from catalog, in order.
func OptHandlerExtensions(catalog []extension.Module, names []string) handlerOption {
	return func(h *Handler) error {
		h.catalog = catalog
		h.extensions = names
		return nil
	}
}

// OptHandlerAllowedOrigins sets the origins accepted by CORS.
func OptHandlerAllowedOrigins(origins []string) handlerOption {
	return func(h *Handler) error {
		h.allowedOrigins = origins
		return nil
	}
}

// OptHandlerTrustProxy derives the client address from X-Forwarded-For
// and related headers.
func OptHandlerTrustProxy(v bool) handlerOption {
	return func(h *Handler) error {
		h.trustProxy = v
		return nil
	}
}

// OptHandlerMiddleware wraps the router in middleware. Later options wrap
// earlier ones.
func OptHandlerMiddleware(middleware func(http.Handler) http.Handler) handlerOption {
	return func(h *Handler) error {
		h.middleware = append(h.middleware, middleware)
		return nil
	}
}

// coreRoutes are served by the handler itself and may not be claimed by
// an extension module.
var coreRoutes = [][2]string{
	{http.MethodPost, "/register"},
	{http.MethodPost, "/login"},
	{http.MethodGet, "/me"},
}

// NewHandler returns a new Handler.
func NewHandler(opts ...handlerOption) (*Handler, error) {
	h := &Handler{
		logger:         slog.Default(),
		now:            time.Now,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}

	switch {
	case h.store == nil:
		return nil, errors.New("must pass OptHandlerStore")
	case h.files == nil:
		return nil, errors.New("must pass OptHandlerFiles")
	case h.markers == nil:
		return nil, errors.New("must pass OptHandlerMarkers")
	case h.auth == nil:
		return nil, errors.New("must pass OptHandlerAuth")
	}

	reg, err := extension.NewRegistry(h.catalog)
	if err != nil {
		return nil, errors.Wrap(err, "building extension registry")
	}
	for _, r := range coreRoutes {
		reg.Reserve(r[0], r[1])
	}
	if err := reg.Load(h.extensions); err != nil {
		return nil, errors.Wrap(err, "loading extensions")
	}
	h.registry = reg

	h.Handler = newRouter(h)
	return h, nil
}

// Modules returns the loaded extension modules in load order.
func (h *Handler) Modules() []string {
	return h.registry.Loaded()
}

// Extensions returns the mounted extension routes as "METHOD /path".
func (h *Handler) Extensions() []string {
	return h.registry.Routes()
}

func newRouter(h *Handler) http.Handler {
	router := mux.NewRouter()
	mw := auth.NewMiddleware(h.auth.Issuer())

	router.Handle("/register", h.limit(http.HandlerFunc(h.auth.ServeRegister))).Methods(http.MethodPost).Name("Register")
	router.Handle("/login", h.limit(http.HandlerFunc(h.auth.ServeLogin))).Methods(http.MethodPost).Name("Login")
	router.Handle("/me", mw.Require(http.HandlerFunc(auth.ServeMe))).Methods(http.MethodGet).Name("Me")
	router.PathPrefix(attach.PublicPrefix).Handler(h.files.Handler()).Methods(http.MethodGet, http.MethodHead).Name("Uploads")

	// Extension routes are matched before the collection patterns below.
	h.registry.Mount(router, mw, h.store, h.logger)

	open := resource.StoreOpener(h.store)
	writer := resource.NewWriter(open,
		schema.NewReconciler(h.store),
		schema.NewProvisioner(h.store, h.metrics, h.logger),
		resource.WithFiles(h.files),
		resource.WithClock(h.now),
		resource.WithWriterLogger(h.logger),
	)
	reader := resource.NewReader(open, h.markers, resource.SoftFailRead{Logger: h.logger, Metrics: h.metrics})

	collection := "/{" + resource.VarCollection + "}"
	router.Handle(collection, mw.Require(writer)).Methods(http.MethodPost).Name("PostRecord")
	router.Handle(collection, mw.Require(reader)).Methods(http.MethodGet).Name("GetRecords")
	router.Handle(collection+"/{"+resource.VarID+"}", mw.Require(reader)).Methods(http.MethodGet).Name("GetRecord")

	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(notFound)

	var handler http.Handler = router
	for _, middleware := range h.middleware {
		handler = middleware(handler)
	}
	handler = securityHeaders(handler)
	// CORS wraps the router rather than going through router.Use, which
	// only runs for matched routes and would miss preflight requests.
	handler = handlers.CORS(
		handlers.AllowedOrigins(h.allowedOrigins),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions}),
		handlers.ExposedHeaders([]string{RequestIDHeader, "Retry-After"}),
	)(handler)
	if h.trustProxy {
		handler = handlers.ProxyHeaders(handler)
	}
	handler = handlers.CustomLoggingHandler(io.Discard, handler, h.logRequest)
	return requestID(handler)
}

func (h *Handler) limit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Limit(next)
}

// ServeHTTP handles an HTTP request. A panicking handler is logged and
// answered with a 500.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			h.logger.ErrorContext(r.Context(), "handler panicked",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(err),
				"stack", string(debug.Stack()),
			)
			httpjson.Message(w, http.StatusInternalServerError, httpjson.MsgInternal)
		}
	}()

	h.Handler.ServeHTTP(w, r)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httpjson.Message(w, http.StatusNotFound, httpjson.MsgNotFound)
}

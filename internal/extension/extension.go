// Package extension mounts compiled-in route modules next to the core
// endpoints.
//
// A Module is a named list of Routes. The set of available modules is
// fixed at build time (see Builtins); configuration picks which of them to
// load and in what order. Loading fails on an unknown module name or on two
// routes with the same method and path, so conflicts surface at startup
// rather than as silently shadowed handlers.
package extension

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/roach88/shelf/internal/auth"
	"github.com/roach88/shelf/internal/httpjson"
	"github.com/roach88/shelf/internal/store"
)

// Route describes one extension endpoint.
type Route struct {
	Method       string
	Path         string
	RequiresAuth bool
	Handler      func(*Context)
}

// Module is a named group of routes.
type Module struct {
	Name   string
	Routes []Route
}

// Context is passed to every extension handler.
type Context struct {
	W http.ResponseWriter
	R *http.Request

	// User is the authenticated caller, or nil.
	User *auth.Identity

	Logger *slog.Logger

	store *store.Store
}

// Model returns the generic model for a collection.
func (c *Context) Model(collection string) (*store.Model, error) {
	return c.store.Collection(collection)
}

// Tables lists the database's tables.
func (c *Context) Tables(ctx context.Context) ([]string, error) {
	return c.store.Tables(ctx)
}

// Users lists registered users without password hashes.
func (c *Context) Users(ctx context.Context) ([]store.User, error) {
	return c.store.Users(ctx)
}

// JSON writes v as a JSON response.
func (c *Context) JSON(status int, v any) {
	httpjson.Write(c.W, status, v)
}

// Text writes a plain text response.
func (c *Context) Text(status int, s string) {
	c.W.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.W.WriteHeader(status)
	c.W.Write([]byte(s))
}

// Error logs err and writes a 500 with msg.
func (c *Context) Error(msg string, err error) {
	c.Logger.ErrorContext(c.R.Context(), msg, "error", err)
	httpjson.Message(c.W, http.StatusInternalServerError, msg)
}

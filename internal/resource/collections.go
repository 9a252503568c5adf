package resource

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/store"
)

// Route variables.
const (
	VarCollection = "collection"
	VarID         = "id"
)

// Records is the data access a collection endpoint needs.
type Records interface {
	Insert(ctx context.Context, fields ir.Record) (ir.Record, error)
	Get(ctx context.Context, id int64) (ir.Record, error)
	List(ctx context.Context) ([]ir.Record, error)
}

// Opener returns the Records for a collection.
type Opener func(collection string) (Records, error)

// StoreOpener opens collections of s.
func StoreOpener(s *store.Store) Opener {
	return func(collection string) (Records, error) {
		return s.Collection(collection)
	}
}

// collectionName resolves the request's collection variable. ok is false
// for names that cannot address a collection.
func collectionName(r *http.Request) (string, bool) {
	name, err := ir.NormalizeCollection(mux.Vars(r)[VarCollection])
	if err != nil || store.IsReserved(name) {
		return "", false
	}
	return name, true
}

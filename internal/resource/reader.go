package resource

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roach88/shelf/internal/httpjson"
	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/marker"
	"github.com/roach88/shelf/internal/metrics"
	"github.com/roach88/shelf/internal/store"
)

// Read forms, used as the metrics label.
const (
	FormSingle = "single"
	FormList   = "list"
)

// FailurePolicy answers a read whose storage call failed.
type FailurePolicy interface {
	ReadFailed(w http.ResponseWriter, r *http.Request, collection, form string, err error)
}

// SoftFailRead answers failed reads with 200 and an empty list. The error
// is logged at WARN and counted.
type SoftFailRead struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// ReadFailed implements FailurePolicy.
func (p SoftFailRead) ReadFailed(w http.ResponseWriter, r *http.Request, collection, form string, err error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(r.Context(), "read failed",
		"policy", "soft_fail_read",
		"collection", collection,
		"form", form,
		"error", err)
	p.Metrics.SoftFailedRead(form)
	httpjson.EmptyList(w)
}

// Reader handles GET /{collection} and GET /{collection}/{id}.
type Reader struct {
	open    Opener
	markers marker.Checker
	policy  FailurePolicy
}

// NewReader creates a Reader. A nil policy means SoftFailRead with the
// default logger.
func NewReader(open Opener, markers marker.Checker, policy FailurePolicy) *Reader {
	if policy == nil {
		policy = SoftFailRead{}
	}
	return &Reader{open: open, markers: markers, policy: policy}
}

// ServeHTTP answers from storage once the collection's marker is found.
func (rd *Reader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)[VarCollection]
	collection, ok := collectionName(r)
	if !ok {
		if store.IsReserved(raw) {
			httpjson.Message(w, http.StatusNotFound, httpjson.MsgNotFound)
			return
		}
		httpjson.EmptyList(w)
		return
	}
	if !rd.markers.Declared(collection) {
		httpjson.EmptyList(w)
		return
	}

	records, err := rd.open(collection)
	if err != nil {
		httpjson.Message(w, http.StatusNotFound, httpjson.MsgNotFound)
		return
	}

	idText, single := mux.Vars(r)[VarID]
	if !single {
		list, err := records.List(r.Context())
		if err != nil {
			rd.policy.ReadFailed(w, r, collection, FormList, err)
			return
		}
		httpjson.Write(w, http.StatusOK, list)
		return
	}

	id, ok := ir.Int64(ir.Text(idText))
	if !ok {
		httpjson.Message(w, http.StatusNotFound, httpjson.MsgResourceNotFound)
		return
	}
	rec, err := records.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpjson.Message(w, http.StatusNotFound, httpjson.MsgResourceNotFound)
	case err != nil:
		rd.policy.ReadFailed(w, r, collection, FormSingle, err)
	default:
		httpjson.Write(w, http.StatusOK, rec)
	}
}

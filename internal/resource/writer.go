package resource

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/shelf/internal/attach"
	"github.com/roach88/shelf/internal/httpjson"
	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/schema"
)

// Derived columns set by the Writer.
const (
	ColumnImageURL  = "image_url"
	ColumnCreatedAt = "created_at"
)

// CreatedAtLayout formats created_at, always in UTC.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// multipartOverhead bounds a body without uploads, and is allowed on top of
// the upload limit for text parts and multipart framing.
const multipartOverhead = 1 << 20

// Writer handles POST /{collection}.
type Writer struct {
	open        Opener
	reconciler  *schema.Reconciler
	provisioner *schema.Provisioner
	files       *attach.Store
	now         func() time.Time
	logger      *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithFiles enables multipart uploads stored in files.
func WithFiles(files *attach.Store) WriterOption {
	return func(w *Writer) { w.files = files }
}

// WithClock sets the time source for created_at.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a Writer.
func NewWriter(open Opener, r *schema.Reconciler, p *schema.Provisioner, opts ...WriterOption) *Writer {
	w := &Writer{
		open:        open,
		reconciler:  r,
		provisioner: p,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ServeHTTP parses, reconciles, provisions, inserts and responds.
func (wr *Writer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionName(r)
	if !ok {
		httpjson.Message(w, http.StatusNotFound, httpjson.MsgNotFound)
		return
	}
	limit := int64(multipartOverhead)
	if wr.files != nil && wr.files.MaxSize() > 0 {
		limit += wr.files.MaxSize()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	sub, err := parseBody(r, wr.files)
	if err != nil {
		wr.rejectBody(w, r, collection, err)
		return
	}

	fields, err := wr.prepare(sub)
	if err != nil {
		wr.discard(sub)
		wr.rejectBody(w, r, collection, err)
		return
	}

	ctx := r.Context()
	log := wr.logger.With("collection", collection)

	plan, err := wr.reconciler.Reconcile(ctx, collection, fields.Keys())
	if err != nil {
		wr.fail(w, r, log, sub, "reconcile", err)
		return
	}
	if !plan.Empty() {
		if _, err := wr.provisioner.Ensure(ctx, plan); err != nil {
			wr.fail(w, r, log, sub, "provision", err)
			return
		}
	}

	records, err := wr.open(collection)
	if err != nil {
		wr.fail(w, r, log, sub, "open", err)
		return
	}
	stored, err := records.Insert(ctx, fields)
	if err != nil {
		wr.fail(w, r, log, sub, "insert", err)
		return
	}

	// The body echoes what was submitted: a client-sent created_at keeps
	// the client's value, otherwise the derived timestamp is left out.
	if v, ok := sub.fields.GetFold(ColumnCreatedAt); ok {
		stored.Set(ColumnCreatedAt, v)
	} else {
		stored.Delete(ColumnCreatedAt)
	}
	log.DebugContext(ctx, "created resource", "id", firstValue(stored, ir.IdentityColumn))
	httpjson.Write(w, http.StatusCreated, stored)
}

// prepare validates field names and applies derived fields. Submitted
// fields keep their order; image_url and created_at come last.
func (wr *Writer) prepare(sub submission) (ir.Record, error) {
	var fields ir.Record
	var imageURL ir.Value
	seen := map[string]bool{}

	for _, f := range sub.fields.Fields() {
		if ir.IsIdentity(f.Name) {
			continue
		}
		if !ir.ValidIdentifier(f.Name) {
			return ir.Record{}, errInvalidField
		}
		folded := strings.ToLower(f.Name)
		if seen[folded] {
			return ir.Record{}, errInvalidField
		}
		seen[folded] = true

		switch folded {
		case ColumnImageURL:
			imageURL = f.Value
		case ColumnCreatedAt:
		default:
			fields.Set(f.Name, f.Value)
		}
	}

	if sub.upload != "" {
		imageURL = ir.Text(sub.upload)
	}
	if imageURL != nil {
		fields.Set(ColumnImageURL, imageURL)
	}
	fields.Set(ColumnCreatedAt, ir.Text(wr.now().UTC().Format(CreatedAtLayout)))
	return fields, nil
}

func (wr *Writer) rejectBody(w http.ResponseWriter, r *http.Request, collection string, err error) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig), errors.Is(err, attach.ErrTooLarge):
		httpjson.Message(w, http.StatusRequestEntityTooLarge, httpjson.MsgFileTooLarge)
	case errors.Is(err, errInvalidField):
		httpjson.Message(w, http.StatusBadRequest, httpjson.MsgInvalidField)
	case errors.Is(err, errInvalidBody):
		httpjson.Message(w, http.StatusBadRequest, httpjson.MsgInvalidBody)
	default:
		wr.logger.ErrorContext(r.Context(), "failed to read request body",
			"collection", collection,
			"error", err)
		httpjson.Message(w, http.StatusInternalServerError, httpjson.MsgCreateFailed)
	}
}

func (wr *Writer) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, sub submission, stage string, err error) {
	wr.discard(sub)
	log.ErrorContext(r.Context(), "error creating resource",
		"stage", stage,
		"introspection", schema.IsIntrospectionError(err),
		"extension", schema.IsExtensionError(err),
		"error", err)
	httpjson.Message(w, http.StatusInternalServerError, httpjson.MsgCreateFailed)
}

// discard removes an upload whose record was never stored.
func (wr *Writer) discard(sub submission) {
	if sub.upload != "" && wr.files != nil {
		if err := wr.files.Remove(sub.upload); err != nil {
			wr.logger.Warn("failed to remove orphaned upload", "path", sub.upload, "error", err)
		}
	}
}

func firstValue(r ir.Record, name string) any {
	v, ok := r.Get(name)
	if !ok {
		return nil
	}
	return ir.Param(v)
}

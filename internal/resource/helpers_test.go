package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/attach"
	"github.com/roach88/shelf/internal/ir"
	"github.com/roach88/shelf/internal/marker"
	"github.com/roach88/shelf/internal/metrics"
	"github.com/roach88/shelf/internal/schema"
	"github.com/roach88/shelf/internal/store"
	"github.com/roach88/shelf/internal/testutil"
)

type fixture struct {
	store   *store.Store
	metrics *metrics.Metrics
	markers *marker.Dir
	files   *attach.Store
	router  *mux.Router
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	dir := t.TempDir()
	m := metrics.New()

	s, err := store.Open(filepath.Join(dir, "test.db"), store.WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	files, err := attach.NewStore(filepath.Join(dir, "uploads"), maxUpload)
	require.NoError(t, err)
	files.WithNames(testutil.NewSequentialNames("").Next)

	markers := marker.NewDir(filepath.Join(dir, "markers"))
	clock := testutil.NewDeterministicClock(time.Time{}, time.Second)

	f := &fixture{store: s, metrics: m, markers: markers, files: files}
	f.router = newRouter(
		NewWriter(StoreOpener(s), schema.NewReconciler(s), schema.NewProvisioner(s, m, nil),
			WithFiles(files), WithClock(clock.Now)),
		NewReader(StoreOpener(s), markers, SoftFailRead{Metrics: m}),
	)
	return f
}

func newRouter(w *Writer, r *Reader) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/{collection}", w).Methods(http.MethodPost)
	router.Handle("/{collection}", r).Methods(http.MethodGet)
	router.Handle("/{collection}/{id}", r).Methods(http.MethodGet)
	return router
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// multipartBody builds a form with text fields in order and an optional file.
func multipartBody(t *testing.T, fields [][2]string, fileField, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, kv := range fields {
		require.NoError(t, mw.WriteField(kv[0], kv[1]))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// failingRecords fails every storage call.
type failingRecords struct {
	err error
}

func (f failingRecords) Insert(context.Context, ir.Record) (ir.Record, error) {
	return ir.Record{}, f.err
}

func (f failingRecords) Get(context.Context, int64) (ir.Record, error) {
	return ir.Record{}, f.err
}

func (f failingRecords) List(context.Context) ([]ir.Record, error) {
	return nil, f.err
}

func schemaFor(f *fixture) *schema.Reconciler {
	return schema.NewReconciler(f.store)
}

func provisionerFor(f *fixture) *schema.Provisioner {
	return schema.NewProvisioner(f.store, f.metrics, nil)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/shelf/internal/attach"
	"github.com/roach88/shelf/internal/auth"
	"github.com/roach88/shelf/internal/extension"
	"github.com/roach88/shelf/internal/marker"
	"github.com/roach88/shelf/internal/metrics"
	"github.com/roach88/shelf/internal/store"
	shelftest "github.com/roach88/shelf/internal/testutil"
)

type fixture struct {
	handler *Handler
	store   *store.Store
	markers *marker.Dir
	files   *attach.Store
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, opts ...handlerOption) *fixture {
	t.Helper()
	dir := t.TempDir()
	m := metrics.New()

	s, err := store.Open(filepath.Join(dir, "shelf.db"), store.WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	files, err := attach.NewStore(filepath.Join(dir, "uploads"), 1<<20)
	require.NoError(t, err)
	files.WithNames(shelftest.NewSequentialNames("").Next)

	iss, err := auth.NewIssuer("server-secret", 0)
	require.NoError(t, err)
	svc := auth.NewService(s, iss, nil).WithCost(bcrypt.MinCost)

	markers := marker.NewDir(dir)
	clock := shelftest.NewDeterministicClock(shelftest.Epoch, time.Second)

	base := []handlerOption{
		OptHandlerStore(s),
		OptHandlerFiles(files),
		OptHandlerMarkers(markers),
		OptHandlerAuth(svc),
		OptHandlerMetrics(m),
		OptHandlerClock(clock.Now),
		OptHandlerExtensions(extension.Builtins(), []string{"hello"}),
	}
	h, err := NewHandler(append(base, opts...)...)
	require.NoError(t, err)
	return &fixture{handler: h, store: s, markers: markers, files: files, metrics: m}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) register(t *testing.T, username string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/register", "", `{"username":"`+username+`","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestNewHandler_RequiredOptions(t *testing.T) {
	_, err := NewHandler()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OptHandlerStore")
}

func TestNewHandler_ExtensionCannotClaimCoreRoute(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "x.db"))
	require.NoError(t, err)
	defer s.Close()
	files, err := attach.NewStore(filepath.Join(dir, "uploads"), 0)
	require.NoError(t, err)
	iss, err := auth.NewIssuer("k", 0)
	require.NoError(t, err)

	bad := extension.Module{Name: "bad", Routes: []extension.Route{
		{Method: http.MethodPost, Path: "/login", Handler: func(*extension.Context) {}},
	}}
	_, err = NewHandler(
		OptHandlerStore(s),
		OptHandlerFiles(files),
		OptHandlerMarkers(marker.Set{}),
		OptHandlerAuth(auth.NewService(s, iss, nil)),
		OptHandlerExtensions([]extension.Module{bad}, []string{"bad"}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core route")
}

func TestHandler_WriteThenRead(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "ann")

	rec := f.do(t, http.MethodPost, "/widgets", token, `{"name":"sprocket","color":"red"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1,"name":"sprocket","color":"red"}`, rec.Body.String())

	// Undeclared collections list as empty.
	rec = f.do(t, http.MethodGet, "/widgets", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, f.markers.Declare("widgets"))
	rec = f.do(t, http.MethodGet, "/widgets", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`[{"id":1,"name":"sprocket","color":"red","created_at":"2024-01-01T12:00:00.000Z"}]`,
		rec.Body.String())

	rec = f.do(t, http.MethodGet, "/widgets/1", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"id":1,"name":"sprocket","color":"red","created_at":"2024-01-01T12:00:00.000Z"}`,
		rec.Body.String())

	rec = f.do(t, http.MethodGet, "/widgets/9", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Resource not found"}`, rec.Body.String())
}

func TestHandler_CollectionRoutesRequireAuth(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/widgets"},
		{http.MethodGet, "/widgets"},
		{http.MethodGet, "/widgets/1"},
		{http.MethodGet, "/me"},
	} {
		rec := f.do(t, tc.method, tc.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.JSONEq(t, `{"message":"Authentication required"}`, rec.Body.String())
	}

	rec := f.do(t, http.MethodGet, "/widgets", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Me(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "ann")

	rec := f.do(t, http.MethodGet, "/me", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":{"id":1,"username":"ann"}}`, rec.Body.String())
}

func TestHandler_LoginAndDuplicateRegister(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ann")

	rec := f.do(t, http.MethodPost, "/register", "", `{"username":"ann","password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Username already exists"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/login", "", `{"username":"ann","password":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	rec = f.do(t, http.MethodPost, "/login", "", `{"username":"ann","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())
}

func TestHandler_ExtensionsTakePrecedence(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "ann")

	assert.Equal(t, []string{"GET /hello", "GET /users", "GET /tables", "GET /hello/private"}, f.handler.Extensions())
	assert.Equal(t, []string{"hello"}, f.handler.Modules())

	rec := f.do(t, http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/users", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":[{"id":1,"username":"ann"}]}`, rec.Body.String())

	// POST /hello is not claimed by the extension and falls through to
	// the collection writer.
	rec = f.do(t, http.MethodPost, "/hello", token, `{"a":"b"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandler_UnmatchedIsNotFound(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/widgets/1"},
		{http.MethodGet, "/a/b/c"},
		{http.MethodPut, "/widgets"},
	} {
		rec := f.do(t, tc.method, tc.path, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.method+" "+tc.path)
		assert.JSONEq(t, `{"message":"Not found"}`, rec.Body.String())
	}
}

func TestHandler_ServesUploads(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.files.Dir(), "pic.png"), []byte("png-bytes"), 0o644))

	rec := f.do(t, http.MethodGet, "/uploads/pic.png", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "cross-origin", rec.Header().Get("Cross-Origin-Resource-Policy"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do(t, http.MethodGet, "/uploads/missing.png", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CommonHeaders(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Resource-Policy"))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestHandler_KeepsWellFormedRequestID(t *testing.T) {
	f := newFixture(t)
	const id = "0190a5b4-7c3e-7b1a-9d2e-4f5a6b7c8d9e"

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set(RequestIDHeader, "bogus\nvalue")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "bogus\nvalue", rec.Header().Get(RequestIDHeader))
}

func TestHandler_RecoversPanics(t *testing.T) {
	boom := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/boom" {
				panic("kaboom")
			}
			next.ServeHTTP(w, r)
		})
	}
	f := newFixture(t, OptHandlerMiddleware(boom))

	rec := f.do(t, http.MethodGet, "/boom", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_CountsRequests(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/hello", "", "")
	f.do(t, http.MethodGet, "/hello", "", "")
	f.do(t, http.MethodGet, "/nowhere/at/all", "", "")

	body := scrape(t, f.metrics)
	assert.Contains(t, body, `shelf_http_requests_total{code="200",method="GET"} 2`)
	assert.Contains(t, body, `shelf_http_requests_total{code="404",method="GET"} 1`)
}

func TestHandler_RateLimitsAuth(t *testing.T) {
	f := newFixture(t, OptHandlerLimiter(auth.NewLimiter(2, time.Hour)))

	for range 2 {
		rec := f.do(t, http.MethodPost, "/login", "", `{"username":"x","password":"y"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/login", "", `{"username":"x","password":"y"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Collection routes are not limited.
	rec = f.do(t, http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_MultipartUpload(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "ann")

	var buf bytes.Buffer
	buf.WriteString("--b\r\nContent-Disposition: form-data; name=\"title\"\r\n\r\nsunset\r\n")
	buf.WriteString("--b\r\nContent-Disposition: form-data; name=\"image\"; filename=\"s.jpg\"\r\nContent-Type: image/jpeg\r\n\r\njpeg\r\n")
	buf.WriteString("--b--\r\n")

	req := httptest.NewRequest(http.MethodPost, "/photos", &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1,"title":"sunset","image_url":"/uploads/upload-0001.jpg"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/uploads/upload-0001.jpg", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

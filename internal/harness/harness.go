package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/shelf/internal/attach"
	"github.com/roach88/shelf/internal/auth"
	"github.com/roach88/shelf/internal/extension"
	"github.com/roach88/shelf/internal/marker"
	"github.com/roach88/shelf/internal/resource"
	"github.com/roach88/shelf/internal/server"
	"github.com/roach88/shelf/internal/store"
	"github.com/roach88/shelf/internal/testutil"
)

const (
	// signingKey signs every token issued during a run.
	signingKey = "harness-signing-key"
	// password is used for every user registered through Request.Auth.
	password = "harness-password"
	// maxUpload caps uploads during a run.
	maxUpload = 1 << 20
)

// Harness holds one isolated shelf instance.
type Harness struct {
	store   *store.Store
	markers *marker.Dir
	auth    *auth.Service
	handler http.Handler
	tokens  map[string]string
	logger  *slog.Logger
}

// Run executes a scenario against a fresh instance and returns the
// result. The error is reserved for failures to set up or drive the
// instance; unmet expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "shelf-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(dir)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	for _, m := range scenario.Markers {
		if err := h.markers.Declare(m); err != nil {
			return nil, fmt.Errorf("failed to declare marker %q: %w", m, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h.store, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(dir string) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(dir, "shelf.db"), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	files, err := attach.NewStore(filepath.Join(dir, "uploads"), maxUpload)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create upload store: %w", err)
	}
	files.WithNames(testutil.NewSequentialNames("").Next)

	issuer, err := auth.NewIssuer(signingKey, 0)
	if err != nil {
		st.Close()
		return nil, err
	}
	issuer.WithClock(func() time.Time { return testutil.Epoch })
	svc := auth.NewService(st, issuer, logger).WithCost(bcrypt.MinCost)

	markers := marker.NewDir(filepath.Join(dir, "markers"))
	clock := testutil.NewDeterministicClock(testutil.Epoch, time.Second)

	handler, err := server.NewHandler(
		server.OptHandlerStore(st),
		server.OptHandlerFiles(files),
		server.OptHandlerMarkers(markers),
		server.OptHandlerAuth(svc),
		server.OptHandlerLogger(logger),
		server.OptHandlerClock(clock.Now),
		server.OptHandlerExtensions(extension.Builtins(), []string{"hello"}),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to build handler: %w", err)
	}

	return &Harness{
		store:   st,
		markers: markers,
		auth:    svc,
		handler: handler,
		tokens:  map[string]string{},
		logger:  logger,
	}, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	req, err := h.buildRequest(ctx, step.Request)
	if err != nil {
		return err
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	body := decodeBody(rec)
	result.AddExchange(Exchange{
		Step:   i + 1,
		Method: step.Request.Method,
		Path:   step.Request.Path,
		Status: rec.Code,
		Body:   body,
	})

	h.logger.Info("step completed", "step", i, "method", step.Request.Method, "path", step.Request.Path, "status", rec.Code)

	if step.Expect == nil {
		return nil
	}
	where := fmt.Sprintf("step %d (%s %s)", i+1, step.Request.Method, step.Request.Path)
	if rec.Code != step.Expect.Status {
		result.AddError(fmt.Sprintf("%s: expected status %d, got %d: %s",
			where, step.Expect.Status, rec.Code, strings.TrimSpace(rec.Body.String())))
	}
	if step.Expect.Body.IsZero() {
		return nil
	}
	want, err := nodeValue(&step.Expect.Body)
	if err != nil {
		return fmt.Errorf("expect.body: %w", err)
	}
	var got any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		got = rec.Body.String()
	}
	if path, ok := matchSubset(got, want, "body"); !ok {
		result.AddError(fmt.Sprintf("%s: %s does not match: expected %s, got %s",
			where, path, describe(want), strings.TrimSpace(rec.Body.String())))
	}
	return nil
}

func (h *Harness) buildRequest(ctx context.Context, r Request) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)

	switch {
	case r.Raw != nil:
		body = strings.NewReader(*r.Raw)
		contentType = r.ContentType
	case r.File != nil:
		fields, err := nodeFields(&r.Body)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for _, f := range fields {
			if err := mw.WriteField(f.name, f.value); err != nil {
				return nil, err
			}
		}
		fw, err := mw.CreateFormFile(resource.FileField, r.File.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(fw, r.File.Content); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		body = &buf
		contentType = mw.FormDataContentType()
	case r.Form:
		fields, err := nodeFields(&r.Body)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(encodeForm(fields))
		contentType = "application/x-www-form-urlencoded"
	case !r.Body.IsZero():
		data, err := nodeJSON(&r.Body)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req := httptest.NewRequest(r.Method, r.Path, body).WithContext(ctx)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token := r.Token
	if r.Auth != "" {
		var err error
		if token, err = h.tokenFor(ctx, r.Auth); err != nil {
			return nil, err
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// tokenFor registers username on first use and returns its token.
func (h *Harness) tokenFor(ctx context.Context, username string) (string, error) {
	if tok, ok := h.tokens[username]; ok {
		return tok, nil
	}
	tok, err := h.auth.Register(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("registering %q: %w", username, err)
	}
	h.tokens[username] = tok
	return tok, nil
}

// decodeBody returns the response as JSON values with numbers kept
// verbatim, the raw text for other bodies, or nil when empty.
func decodeBody(rec *httptest.ResponseRecorder) any {
	data := rec.Body.Bytes()
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(data)
	}
	return v
}

package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/metrics"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestServer_ServeAndShutdown(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "api")
	})
	m := metrics.New()
	srv := &Server{API: api, Metrics: m.Handler(), ShutdownTimeout: time.Second}

	ln, mln := listen(t), listen(t)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, mln) }()

	body := fetch(t, "http://"+ln.Addr().String()+"/")
	assert.Equal(t, "api", body)
	body = fetch(t, "http://"+mln.Addr().String()+"/metrics")
	assert.Contains(t, body, "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_ListenError(t *testing.T) {
	ln := listen(t)
	defer ln.Close()

	srv := &Server{Addr: ln.Addr().String(), API: http.NotFoundHandler()}
	err := srv.ListenAndServe(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func fetch(t *testing.T, url string) string {
	t.Helper()
	var resp *http.Response
	var err error
	for range 50 {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

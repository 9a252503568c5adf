package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Server runs the API listener and an optional metrics listener until
// its context is cancelled.
type Server struct {
	API     http.Handler
	Metrics http.Handler

	Addr        string
	MetricsAddr string

	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// ListenAndServe binds Addr (and MetricsAddr when set) and serves until
// ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.Addr)
	}
	var mln net.Listener
	if s.MetricsAddr != "" {
		if mln, err = net.Listen("tcp", s.MetricsAddr); err != nil {
			ln.Close()
			return errors.Wrapf(err, "listening on %s", s.MetricsAddr)
		}
	}
	return s.Serve(ctx, ln, mln)
}

// Serve serves the API on ln and metrics on mln, which may be nil. When
// ctx is done both servers are shut down gracefully within
// ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln, mln net.Listener) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g, ctx := errgroup.WithContext(ctx)
	s.run(ctx, g, logger, "api", ln, s.API)
	if mln != nil && s.Metrics != nil {
		s.run(ctx, g, logger, "metrics", mln, s.Metrics)
	}
	return g.Wait()
}

func (s *Server) run(ctx context.Context, g *errgroup.Group, logger *slog.Logger, name string, ln net.Listener, h http.Handler) {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g.Go(func() error {
		logger.Info("listening", "server", name, "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "serving %s", name)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		timeout := s.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger.Info("shutting down", "server", name)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return errors.Wrapf(err, "shutting down %s", name)
		}
		return nil
	})
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/shelf/internal/attach"
	"github.com/roach88/shelf/internal/auth"
	"github.com/roach88/shelf/internal/config"
	"github.com/roach88/shelf/internal/extension"
	"github.com/roach88/shelf/internal/marker"
	"github.com/roach88/shelf/internal/metrics"
	"github.com/roach88/shelf/internal/server"
	"github.com/roach88/shelf/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Config config.Config
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts, Config: config.Default()}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the shelf HTTP server.

Every option can also be set through a SHELF_<OPTION> environment variable
(dashes become underscores) or a key in the --config TOML file. Flags take
precedence over the environment, which takes precedence over the file.

Example:
  shelf serve --jwt-secret s3cret --db ./shelf.db
  SHELF_JWT_SECRET=s3cret shelf serve --config shelf.toml --log-format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	opts.Config.Flags(cmd.Flags())
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	if err := config.Load(viper.New(), cmd.Flags()); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogFormat, opts.Verbose)
	slog.SetDefault(logger)
	m := metrics.New()

	logger.Info("opening database", "path", cfg.DB, "driver", cfg.DBDriver)
	st, err := store.Open(cfg.DB,
		store.WithDriver(cfg.DBDriver),
		store.WithMetrics(m),
		store.WithLogger(logger),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	if err := st.Ping(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "database not reachable", err)
	}

	files, err := attach.NewStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare upload directory", err)
	}
	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid token settings", err)
	}

	markers := marker.NewDir(cfg.MarkerDir)
	logger.Info("reading markers", "dir", markers.Root())

	svc := auth.NewService(st, issuer, logger)
	var limiter *auth.Limiter
	if cfg.AuthRateLimit > 0 {
		limiter = auth.NewLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
	}

	h, err := server.NewHandler(
		server.OptHandlerStore(st),
		server.OptHandlerFiles(files),
		server.OptHandlerMarkers(markers),
		server.OptHandlerAuth(svc),
		server.OptHandlerLimiter(limiter),
		server.OptHandlerMetrics(m),
		server.OptHandlerLogger(logger),
		server.OptHandlerExtensions(extension.Builtins(), cfg.Extensions),
		server.OptHandlerAllowedOrigins(cfg.AllowedOrigins),
		server.OptHandlerTrustProxy(cfg.TrustProxy),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build handler", err)
	}
	logger.Info("extensions loaded", "modules", h.Modules(), "routes", h.Extensions())

	srv := &server.Server{
		API:             h,
		Metrics:         m.Handler(),
		Addr:            cfg.Bind,
		MetricsAddr:     cfg.MetricsBind,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Server is running on %s\n", cfg.Bind)
	if err := srv.ListenAndServe(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

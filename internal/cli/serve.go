package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/internal/observability"
	"github.com/bearings-api/catalog/internal/server"
	"github.com/bearings-api/catalog/internal/storage"
)

// devDatabaseURL stands in for DATABASE_URL when serving the sample catalog.
const devDatabaseURL = "memory://sample-catalog"

type serveOptions struct {
	port int
	dev  bool
}

func (o *serveOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.port, "port", 0, "listen port (overrides PORT)")
	cmd.Flags().BoolVar(&o.dev, "dev", false, "serve an in-memory sample catalog instead of PostgreSQL")
}

func (c *CLI) newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalog API server",
		Long: `Start the HTTP server.

The database pool is opened once at startup. If the database is unreachable
the server still starts: / keeps answering, data routes return 500 until the
database is back, and /readyz reports 503.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOptions) error {
	if opts.port != 0 {
		c.cfg.Server.Port = opts.port
	}
	if opts.dev && c.cfg.Database.URL == "" {
		c.cfg.Database.URL = devDatabaseURL
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := observability.NewLogger(c.cfg.Logging)
	if err != nil {
		return cerrors.NewInvalidConfig("logging.level", err.Error())
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := c.openRepository(ctx, logger, opts.dev)
	if err != nil {
		return err
	}
	defer closeRepo()

	handler, err := server.New(repo, logger, c.serverOptions())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         c.cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
		IdleTimeout:  c.cfg.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return cerrors.NewInvalidConfig("server.port", err.Error())
	}

	logger.Info().
		Str("addr", srv.Addr).
		Str("version", Version).
		Msgf("Bearings API running on port %d", c.cfg.Server.Port)

	return serve(ctx, srv, ln, c.cfg.Server.ShutdownTimeout, logger)
}

// serverOptions builds the handler options. --quiet drops per-query log
// entries; access logs are kept.
func (c *CLI) serverOptions() server.Options {
	opts := server.Options{CORSOrigins: c.cfg.Server.CORSOrigins}
	if c.quiet {
		opts.QueryLogger = observability.NewNoopQueryLogger()
	}
	return opts
}

// openRepository returns the catalog repository and a function releasing it.
// An unreachable database is logged, not fatal.
func (c *CLI) openRepository(ctx context.Context, logger zerolog.Logger, dev bool) (storage.CatalogRepository, func() error, error) {
	if dev {
		logger.Warn().Msg("development mode: serving the in-memory sample catalog, not PostgreSQL")
		repo := storage.NewMockRepository()
		storage.SeedSampleCatalog(repo)
		return repo, func() error { return nil }, nil
	}

	dbCfg := c.cfg.Database
	if !dbCfg.VerifiesServerCertificate() {
		logger.Warn().
			Str("sslmode", dbCfg.EffectiveSSLMode()).
			Msg("database TLS does not verify the server certificate; set CATALOG_DATABASE_SSLMODE=verify-full to enable verification")
	}

	db, err := storage.Open(ctx, dbCfg)
	var unavailable *cerrors.ErrDatabaseUnavailable
	switch {
	case err == nil:
		logger.Info().
			Str("driver", dbCfg.Driver).
			Int("max_open_conns", dbCfg.MaxOpenConns).
			Msg("connected to database")
	case db != nil && errors.As(err, &unavailable):
		logger.Warn().Err(err).Msg("database unreachable at startup, serving anyway")
	default:
		return nil, nil, err
	}

	repo, err := storage.NewPostgresRepository(db, storage.PostgresConfig{
		QueryTimeout: dbCfg.QueryTimeout,
		PingTimeout:  dbCfg.ConnectTimeout,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db.Close, nil
}

// serve runs srv on ln until ctx is done, then shuts down gracefully within
// shutdownTimeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	<-errCh
	logger.Info().Msg("server stopped")
	return nil
}

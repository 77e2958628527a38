package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver

	"github.com/bearings-api/catalog/internal/config"
	cerrors "github.com/bearings-api/catalog/internal/errors"
)

// Open creates the shared connection pool and verifies it can reach the
// database within cfg.ConnectTimeout. The pool is returned even when the
// ping fails, together with an *errors.ErrDatabaseUnavailable, so callers
// may decide to serve anyway; on any other error the pool is nil.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, cerrors.NewInvalidConfig("database.url", "is required (set DATABASE_URL)")
	}

	dsn, err := WithSSLMode(cfg.URL, cfg.SSLMode)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s pool: %w", cfg.Driver, err)
	}
	ConfigurePool(db, cfg)

	if err := Ping(ctx, db, cfg); err != nil {
		return db, err
	}
	return db, nil
}

// ConfigurePool applies the pool limits from cfg.
func ConfigurePool(db *sql.DB, cfg config.DatabaseConfig) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// Ping checks connectivity within cfg.ConnectTimeout.
func Ping(ctx context.Context, db *sql.DB, cfg config.DatabaseConfig) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return cerrors.NewDatabaseUnavailable("connectivity check failed").WithCause(err)
	}
	return nil
}

// WithSSLMode returns dsn with sslmode set to mode, unless dsn already names
// an sslmode or mode is empty. Both URL ("postgres://...") and key=value
// ("host=... dbname=...") forms are supported.
func WithSSLMode(dsn, mode string) (string, error) {
	if mode == "" {
		return dsn, nil
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", cerrors.NewInvalidConfig("database.url", "not a valid connection URL")
		}
		q := u.Query()
		if q.Get("sslmode") != "" {
			return dsn, nil
		}
		q.Set("sslmode", mode)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	for _, field := range strings.Fields(dsn) {
		if strings.HasPrefix(field, "sslmode=") {
			return dsn, nil
		}
	}
	return strings.TrimSpace(dsn) + " sslmode=" + mode, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/pkg/models"
)

// DefaultQueryTimeout applies when PostgresConfig.QueryTimeout is not set.
const DefaultQueryTimeout = 10 * time.Second

// PostgresRepository implements CatalogRepository using PostgreSQL.
// Every method runs exactly one statement and always closes its rows, so the
// connection goes back to the pool on every path.
type PostgresRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
	pingTimeout  time.Duration
	statements   map[string]Statement
}

// PostgresConfig configures the PostgreSQL repository.
type PostgresConfig struct {
	// QueryTimeout bounds each statement, including row scanning.
	QueryTimeout time.Duration

	// PingTimeout bounds CheckConnectivity. Defaults to QueryTimeout.
	PingTimeout time.Duration
}

// NewPostgresRepository creates a repository over an open pool.
// It fails if db is nil or any catalog statement is not a single read-only query.
func NewPostgresRepository(db *sql.DB, cfg PostgresConfig) (*PostgresRepository, error) {
	if db == nil {
		return nil, cerrors.NewInternal("postgres repository requires a database pool", nil)
	}
	if err := ValidateStatements(CatalogStatements); err != nil {
		return nil, err
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	ping := cfg.PingTimeout
	if ping <= 0 {
		ping = timeout
	}

	return &PostgresRepository{
		db:           db,
		queryTimeout: timeout,
		pingTimeout:  ping,
		statements:   CatalogStatements,
	}, nil
}

// ServerTime returns the database clock.
func (r *PostgresRepository) ServerTime(ctx context.Context) (*models.ServerTime, error) {
	var now time.Time
	if err := r.queryRow(ctx, r.queryTimeout, StmtServerTime, []any{&now}); err != nil {
		return nil, err
	}
	return &models.ServerTime{Now: now}, nil
}

// DatabaseInfo returns the current database and schema names.
func (r *PostgresRepository) DatabaseInfo(ctx context.Context) (*models.DatabaseInfo, error) {
	var database, schema sql.NullString
	if err := r.queryRow(ctx, r.queryTimeout, StmtDatabaseInfo, []any{&database, &schema}); err != nil {
		return nil, err
	}
	return &models.DatabaseInfo{Database: database.String, Schema: schema.String}, nil
}

// ListTables returns the tables of the public schema, by name.
func (r *PostgresRepository) ListTables(ctx context.Context) ([]models.TableName, error) {
	return queryAll(ctx, r, StmtListTables, func(rows *sql.Rows, t *models.TableName) error {
		return rows.Scan(&t.TableName)
	})
}

// ListBearings returns all bearings ordered by code.
func (r *PostgresRepository) ListBearings(ctx context.Context) ([]models.Bearing, error) {
	return queryAll(ctx, r, StmtListBearings, scanBearing)
}

// ListSeries returns all bearing series ordered by series_code.
func (r *PostgresRepository) ListSeries(ctx context.Context) ([]models.BearingSeries, error) {
	return queryAll(ctx, r, StmtListSeries, func(rows *sql.Rows, s *models.BearingSeries) error {
		var code sql.NullString
		if err := rows.Scan(&s.ID, &code); err != nil {
			return err
		}
		s.SeriesCode = nullable(code)
		return nil
	})
}

// ListChains returns all chains ordered by code.
func (r *PostgresRepository) ListChains(ctx context.Context) ([]models.Chain, error) {
	return queryAll(ctx, r, StmtListChains, func(rows *sql.Rows, c *models.Chain) error {
		var code, name, description sql.NullString
		if err := rows.Scan(&code, &name, &description); err != nil {
			return err
		}
		c.Code, c.Name, c.Description = nullable(code), nullable(name), nullable(description)
		return nil
	})
}

// ListCouplings returns all couplings ordered by code.
func (r *PostgresRepository) ListCouplings(ctx context.Context) ([]models.Coupling, error) {
	return queryAll(ctx, r, StmtListCouplings, func(rows *sql.Rows, c *models.Coupling) error {
		var code, name, description, size sql.NullString
		if err := rows.Scan(&code, &name, &description, &size); err != nil {
			return err
		}
		c.Code, c.Name, c.Description, c.Size = nullable(code), nullable(name), nullable(description), nullable(size)
		return nil
	})
}

// ListProductsByCategory returns the bearings in category, ordered by code.
// The category is bound as $1, never interpolated.
func (r *PostgresRepository) ListProductsByCategory(ctx context.Context, category string) ([]models.Bearing, error) {
	return queryAll(ctx, r, StmtProductsByCategory, scanBearing, category)
}

// CheckConnectivity verifies the database answers a trivial query within
// the ping timeout.
func (r *PostgresRepository) CheckConnectivity(ctx context.Context) error {
	var one int
	return r.queryRow(ctx, r.pingTimeout, StmtPing, []any{&one})
}

func (r *PostgresRepository) queryRow(ctx context.Context, timeout time.Duration, name string, dest []any, args ...any) error {
	stmt, ok := r.statements[name]
	if !ok {
		return cerrors.NewInvalidStatement(name, "statement is not registered")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.db.QueryRowContext(ctx, stmt.SQL, args...).Scan(dest...); err != nil {
		return cerrors.NewQueryFailed(name, err)
	}
	return nil
}

// queryAll runs a list statement and scans every row with scan.
// No partial results: any error discards the rows read so far.
func queryAll[T any](ctx context.Context, r *PostgresRepository, name string, scan func(*sql.Rows, *T) error, args ...any) ([]T, error) {
	stmt, ok := r.statements[name]
	if !ok {
		return nil, cerrors.NewInvalidStatement(name, "statement is not registered")
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, stmt.SQL, args...)
	if err != nil {
		return nil, cerrors.NewQueryFailed(name, err)
	}
	defer rows.Close()

	result := make([]T, 0)
	for rows.Next() {
		var item T
		if err := scan(rows, &item); err != nil {
			return nil, cerrors.NewQueryFailed(name, fmt.Errorf("failed to scan row: %w", err))
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.NewQueryFailed(name, err)
	}

	return result, nil
}

func scanBearing(rows *sql.Rows, b *models.Bearing) error {
	var code, name, description sql.NullString
	if err := rows.Scan(&code, &name, &description); err != nil {
		return err
	}
	b.Code, b.Name, b.Description = nullable(code), nullable(name), nullable(description)
	return nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// Verify PostgresRepository implements CatalogRepository interface.
var _ CatalogRepository = (*PostgresRepository)(nil)

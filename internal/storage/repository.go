// Package storage provides read-only access to the product catalog.
//
// The catalog tables are owned by another system; this package only runs
// the fixed statements in CatalogStatements against a shared *sql.DB pool.
package storage

import (
	"context"

	"github.com/bearings-api/catalog/pkg/models"
)

// CatalogRepository defines read access to the catalog.
// All implementations must be:
// - Safe for concurrent use
// - Context-aware (respecting cancellation/timeout)
// - Explicit about errors (never swallow, never return partial results)
//
// List methods return an empty slice, not nil, when there are no rows.
type CatalogRepository interface {
	// ServerTime returns the database clock.
	ServerTime(ctx context.Context) (*models.ServerTime, error)

	// DatabaseInfo returns the current database and schema names.
	DatabaseInfo(ctx context.Context) (*models.DatabaseInfo, error)

	// ListTables returns the tables of the public schema, by name.
	ListTables(ctx context.Context) ([]models.TableName, error)

	// ListBearings returns all bearings ordered by code.
	ListBearings(ctx context.Context) ([]models.Bearing, error)

	// ListSeries returns all bearing series ordered by series_code.
	ListSeries(ctx context.Context) ([]models.BearingSeries, error)

	// ListChains returns all chains ordered by code.
	ListChains(ctx context.Context) ([]models.Chain, error)

	// ListCouplings returns all couplings ordered by code.
	ListCouplings(ctx context.Context) ([]models.Coupling, error)

	// ListProductsByCategory returns the bearings whose category equals
	// category exactly, ordered by code.
	ListProductsByCategory(ctx context.Context, category string) ([]models.Bearing, error)

	// CheckConnectivity verifies the database answers a trivial query.
	CheckConnectivity(ctx context.Context) error
}

// Package models provides the catalog record types returned by the public API.
// JSON keys match the column names of the underlying tables.
package models

import (
	"time"
)

// Bearing is a row of public.bearings_prod.
// Every column is nullable, the code included.
type Bearing struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Chain is a row of public.chains.
type Chain struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Coupling is a row of public.couplings.
// Size is rendered as text whatever its column type.
type Coupling struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Size        *string `json:"size"`
}

// BearingSeries is a row of public.bearing_series.
type BearingSeries struct {
	ID         int64   `json:"id"`
	SeriesCode *string `json:"series_code"`
}

// TableName is a row of pg_tables restricted to the public schema.
type TableName struct {
	TableName string `json:"tablename"`
}

// ServerTime is the database server clock as reported by NOW().
type ServerTime struct {
	Now time.Time `json:"now"`
}

// DatabaseInfo identifies the database and schema the pool is connected to.
type DatabaseInfo struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
}

// Package api defines the public endpoints and response envelopes of the catalog API.
package api

import "github.com/bearings-api/catalog/pkg/models"

// API version
const Version = "1.0.0"

// API endpoints
const (
	EndpointRoot        = "/"
	EndpointTestDB      = "/test-db"
	EndpointDebugDB     = "/debug-db"
	EndpointDebugTables = "/debug-tables"
	EndpointBearings    = "/bearings"
	EndpointSeries      = "/series"
	EndpointChains      = "/chains"
	EndpointCouplings   = "/couplings"
	EndpointProducts    = "/products"
	EndpointReady       = "/readyz"
)

// Query parameters
const (
	ParamCategory = "category"
)

// HTTP headers
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
)

// Content types
const (
	ContentTypeJSON = "application/json"
)

// StatusMessage is reported by the liveness endpoint.
const StatusMessage = "Bearings API running"

// StatusResponse is returned by GET /.
type StatusResponse struct {
	Status string `json:"status"`
}

// TestDBResponse is returned by GET /test-db.
type TestDBResponse struct {
	DBTime models.ServerTime `json:"dbTime"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ComponentStatus reports the health of one dependency in a readiness response.
type ComponentStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// ReadyResponse is returned by GET /readyz.
type ReadyResponse struct {
	Ready      bool                       `json:"ready"`
	Reason     string                     `json:"reason,omitempty"`
	Components map[string]ComponentStatus `json:"components"`
}

// Package server implements the catalog HTTP API.
//
// Every data route runs one catalog statement through a
// storage.CatalogRepository and writes the result as JSON. Routing is done
// with gorilla/mux; CORS with gorilla/handlers.
package server

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/internal/observability"
	"github.com/bearings-api/catalog/internal/status"
	"github.com/bearings-api/catalog/internal/storage"
	"github.com/bearings-api/catalog/pkg/api"
)

// Options configures a Server.
type Options struct {
	// CORSOrigins lists allowed origins. Empty or "*" allows all.
	CORSOrigins []string

	// QueryLogger receives one entry per data request. Defaults to a
	// zerolog-backed logger on the server logger.
	QueryLogger observability.QueryLogger
}

// Server is the catalog API http.Handler.
type Server struct {
	repo     storage.CatalogRepository
	checker  *status.Checker
	logger   zerolog.Logger
	queryLog observability.QueryLogger
	validate *validator.Validate
	handler  http.Handler
}

// New creates a server over repo. The repository is mandatory.
func New(repo storage.CatalogRepository, logger zerolog.Logger, opts Options) (*Server, error) {
	if repo == nil {
		return nil, cerrors.NewInternal("server requires a catalog repository", nil)
	}

	s := &Server{
		repo:     repo,
		checker:  status.NewChecker(repo),
		logger:   logger,
		queryLog: opts.QueryLogger,
		validate: validator.New(),
	}
	if s.queryLog == nil {
		s.queryLog = observability.NewQueryLogger(logger)
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	var h http.Handler = trimTrailingSlash(s.routes())
	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodOptions}),
		handlers.AllowedHeaders([]string{api.HeaderContentType, api.HeaderRequestID}),
		handlers.ExposedHeaders([]string{api.HeaderRequestID}),
	)(h)
	h = s.accessLog(h)
	h = requestID(h)
	h = s.recovery(h)
	s.handler = h

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	get := func(path string, h http.HandlerFunc) {
		r.HandleFunc(path, h).Methods(http.MethodGet, http.MethodHead)
	}

	get(api.EndpointRoot, s.handleRoot)
	get(api.EndpointReady, s.handleReady)
	get(api.EndpointTestDB, s.handleTestDB)
	get(api.EndpointDebugDB, s.handleDebugDB)
	get(api.EndpointDebugTables, s.handleDebugTables)
	get(api.EndpointBearings, s.handleBearings)
	get(api.EndpointSeries, s.handleSeries)
	get(api.EndpointChains, s.handleChains)
	get(api.EndpointCouplings, s.handleCouplings)
	get(api.EndpointProducts, s.handleProducts)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	return r
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/internal/observability"
	"github.com/bearings-api/catalog/internal/storage"
	"github.com/bearings-api/catalog/pkg/api"
	"github.com/bearings-api/catalog/pkg/models"
)

// productsQuery holds the query parameters of GET /products.
type productsQuery struct {
	Category string `validate:"required"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respond(w, api.StatusResponse{Status: api.StatusMessage})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	result := s.checker.Check(r.Context())

	resp := api.ReadyResponse{
		Ready:      result.Ready,
		Reason:     result.Reason,
		Components: make(map[string]api.ComponentStatus, len(result.Components)),
	}
	for name, c := range result.Components {
		resp.Components[name] = api.ComponentStatus{Ready: c.Ready, Message: c.Message}
	}

	code := http.StatusOK
	if !result.Ready {
		code = http.StatusServiceUnavailable
	}
	if err := writeJSON(w, code, resp); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) handleTestDB(w http.ResponseWriter, r *http.Request) {
	runQuery(s, w, r, storage.StmtServerTime, single[api.TestDBResponse],
		func(ctx context.Context) (api.TestDBResponse, error) {
			now, err := s.repo.ServerTime(ctx)
			if err != nil {
				return api.TestDBResponse{}, err
			}
			return api.TestDBResponse{DBTime: *now}, nil
		})
}

func (s *Server) handleDebugDB(w http.ResponseWriter, r *http.Request) {
	runQuery(s, w, r, storage.StmtDatabaseInfo, single[*models.DatabaseInfo], s.repo.DatabaseInfo)
}

func (s *Server) handleDebugTables(w http.ResponseWriter, r *http.Request) {
	runQuery(s, w, r, storage.StmtListTables, count[models.TableName], s.repo.ListTables)
}

func (s *Server) handleBearings(w http.ResponseWriter, r *http.Request) {
	runQuery(s, w, r, storage.StmtListBearings, count[models.Bearing], s.repo.ListBearings)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	runQuery(s, w, r, storage.StmtListSeries, count[models.BearingSeries], s.repo.ListSeries)
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	runQuery(s, w, r, storage.StmtListChains, count[models.Chain], s.repo.ListChains)
}

func (s *Server) handleCouplings(w http.ResponseWriter, r *http.Request) {
	runQuery(s, w, r, storage.StmtListCouplings, count[models.Coupling], s.repo.ListCouplings)
}

// handleProducts rejects a missing or empty category before any query runs.
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := productsQuery{Category: r.URL.Query().Get(api.ParamCategory)}
	if err := s.validate.Struct(q); err != nil {
		perr := cerrors.NewMissingParameter(api.ParamCategory)
		s.logQuery(r.Context(), observability.QueryLogEntry{
			RequestID: RequestIDFrom(r.Context()),
			Route:     r.URL.Path,
			Outcome:   observability.OutcomeRejected,
			Error:     cerrors.PublicMessage(perr),
		})
		s.respondError(w, perr)
		return
	}

	runQuery(s, w, r, storage.StmtProductsByCategory, count[models.Bearing],
		func(ctx context.Context) ([]models.Bearing, error) {
			return s.repo.ListProductsByCategory(ctx, q.Category)
		})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("route not found: %s", r.URL.Path))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD, OPTIONS")
	writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
}

// runQuery executes query under the request context, logs one query entry
// and writes either the result or the error.
func runQuery[T any](s *Server, w http.ResponseWriter, r *http.Request, statement string, rows func(T) int, query func(context.Context) (T, error)) {
	ctx := r.Context()
	entry := observability.QueryLogEntry{
		RequestID: RequestIDFrom(ctx),
		Route:     r.URL.Path,
		Statement: statement,
	}

	start := time.Now()
	result, err := query(ctx)
	entry.ExecutionTime = time.Since(start)

	if err != nil {
		entry.Outcome = observability.OutcomeError
		entry.Error = cerrors.PublicMessage(err)
		s.logQuery(ctx, entry)
		s.respondError(w, err)
		return
	}

	entry.Outcome = observability.OutcomeSuccess
	entry.Rows = rows(result)
	s.logQuery(ctx, entry)
	s.respond(w, result)
}

// logQuery records entry even after the client has gone away.
func (s *Server) logQuery(ctx context.Context, entry observability.QueryLogEntry) {
	if err := s.queryLog.LogQuery(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Debug().Err(err).Str("route", entry.Route).Msg("query log entry dropped")
	}
}

func count[T any](items []T) int { return len(items) }

func single[T any](T) int { return 1 }

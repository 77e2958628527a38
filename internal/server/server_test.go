package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearings-api/catalog/internal/observability"
	"github.com/bearings-api/catalog/internal/storage"
	"github.com/bearings-api/catalog/pkg/api"
	"github.com/bearings-api/catalog/pkg/models"
)

var dataRoutes = []string{
	api.EndpointTestDB,
	api.EndpointDebugDB,
	api.EndpointDebugTables,
	api.EndpointBearings,
	api.EndpointSeries,
	api.EndpointChains,
	api.EndpointCouplings,
	api.EndpointProducts + "?category=ball",
}

// recordingQueryLogger keeps every entry for assertions.
type recordingQueryLogger struct {
	mu      sync.Mutex
	entries []observability.QueryLogEntry
}

func (l *recordingQueryLogger) LogQuery(_ context.Context, entry observability.QueryLogEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *recordingQueryLogger) Entries() []observability.QueryLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]observability.QueryLogEntry(nil), l.entries...)
}

// panickingRepository panics on ListChains.
type panickingRepository struct {
	*storage.MockRepository
}

func (panickingRepository) ListChains(context.Context) ([]models.Chain, error) {
	panic("scan exploded")
}

func seededRepository() *storage.MockRepository {
	repo := storage.NewMockRepository()
	storage.SeedSampleCatalog(repo)
	return repo
}

func newTestServer(t *testing.T, repo storage.CatalogRepository, opts Options) *Server {
	t.Helper()
	srv, err := New(repo, zerolog.Nop(), opts)
	require.NoError(t, err)
	return srv
}

func get(h http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	return do(h, http.MethodGet, target, headers)
}

func do(h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

func TestNew_RequiresRepository(t *testing.T) {
	_, err := New(nil, zerolog.Nop(), Options{})
	assert.Error(t, err)
}

func TestRoot_IsDatabaseIndependent(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SetConnectivityFailure(true)
	srv := newTestServer(t, repo, Options{})

	w := get(srv, "/", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.ContentTypeJSON, w.Header().Get(api.HeaderContentType))
	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, api.StatusMessage, resp.Status)
	assert.Equal(t, 0, repo.Calls())
}

func TestTestDB_ReturnsServerTime(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SetServerTime(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	srv := newTestServer(t, repo, Options{})

	w := get(srv, api.EndpointTestDB, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"dbTime":{"now":"2025-01-02T03:04:05Z"}}`, w.Body.String())
}

func TestDebugDB_ReturnsDatabaseAndSchema(t *testing.T) {
	srv := newTestServer(t, storage.NewMockRepository(), Options{})

	w := get(srv, api.EndpointDebugDB, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"database":"catalog","schema":"public"}`, w.Body.String())
}

func TestDebugTables_ListsTableNames(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SetTables("couplings", "bearings_prod")
	srv := newTestServer(t, repo, Options{})

	w := get(srv, api.EndpointDebugTables, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"tablename":"bearings_prod"},{"tablename":"couplings"}]`, w.Body.String())
}

func TestBearings_SortedWithNulls(t *testing.T) {
	srv := newTestServer(t, seededRepository(), Options{})

	w := get(srv, api.EndpointBearings, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw, 4)
	codes := make([]string, 0, len(raw))
	for _, b := range raw {
		codes = append(codes, b["code"].(string))
	}
	assert.Equal(t, []string{"30205", "6004-ZZ", "6204-2RS", "NU205"}, codes)

	desc, present := raw[0]["description"]
	assert.True(t, present, "null columns are still present")
	assert.Nil(t, desc)
}

func TestSeries_SortedBySeriesCode(t *testing.T) {
	srv := newTestServer(t, seededRepository(), Options{})

	w := get(srv, api.EndpointSeries, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var series []models.BearingSeries
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	require.Len(t, series, 3)
	assert.Equal(t, "302", *series[0].SeriesCode)
	assert.Equal(t, "60", *series[1].SeriesCode)
	assert.Equal(t, "62", *series[2].SeriesCode)
}

func TestCouplings_IncludeSize(t *testing.T) {
	srv := newTestServer(t, seededRepository(), Options{})

	w := get(srv, api.EndpointCouplings, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var couplings []models.Coupling
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &couplings))
	require.Len(t, couplings, 2)
	assert.Equal(t, "GR-24", *couplings[0].Code)
	require.NotNil(t, couplings[1].Size)
	assert.Equal(t, "100", *couplings[1].Size)
}

func TestEmptyTables_ReturnEmptyArrays(t *testing.T) {
	srv := newTestServer(t, storage.NewMockRepository(), Options{})

	for _, route := range []string{api.EndpointBearings, api.EndpointSeries, api.EndpointChains, api.EndpointCouplings, api.EndpointProducts + "?category=ball"} {
		t.Run(route, func(t *testing.T) {
			w := get(srv, route, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "[]", string(bytes.TrimSpace(w.Body.Bytes())))
		})
	}
}

func TestProducts_MissingCategory(t *testing.T) {
	for _, target := range []string{api.EndpointProducts, api.EndpointProducts + "?category=", api.EndpointProducts + "?type=ball"} {
		t.Run(target, func(t *testing.T) {
			repo := seededRepository()
			srv := newTestServer(t, repo, Options{})

			w := get(srv, target, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "category query parameter is required", decodeError(t, w))
			assert.Equal(t, 0, repo.Calls(), "no query may run without a category")
		})
	}
}

func TestProducts_ExactCategoryMatch(t *testing.T) {
	srv := newTestServer(t, seededRepository(), Options{})

	w := get(srv, api.EndpointProducts+"?category=ball", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var bearings []models.Bearing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bearings))
	require.Len(t, bearings, 2)
	assert.Equal(t, "6004-ZZ", *bearings[0].Code)
	assert.Equal(t, "6204-2RS", *bearings[1].Code)

	w = get(srv, api.EndpointProducts+"?category=BALL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(bytes.TrimSpace(w.Body.Bytes())))
}

func TestDatabaseFailure_EveryDataRouteReturns500(t *testing.T) {
	repo := seededRepository()
	repo.SetConnectivityFailure(true)
	srv := newTestServer(t, repo, Options{})

	for _, route := range dataRoutes {
		t.Run(route, func(t *testing.T) {
			w := get(srv, route, nil)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, decodeError(t, w), "connection refused")
		})
	}

	// The server keeps serving once the database is back.
	repo.SetConnectivityFailure(false)
	w := get(srv, api.EndpointBearings, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRepeatedRequests_AreIdentical(t *testing.T) {
	srv := newTestServer(t, seededRepository(), Options{})

	for _, route := range dataRoutes[1:] {
		first := get(srv, route, nil)
		second := get(srv, route, nil)
		assert.Equal(t, first.Body.String(), second.Body.String(), route)
	}
}

func TestReady(t *testing.T) {
	repo := storage.NewMockRepository()
	srv := newTestServer(t, repo, Options{})

	w := get(srv, api.EndpointReady, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.Contains(t, resp.Components, "database")
	assert.Contains(t, resp.Components, "catalog")

	repo.SetConnectivityFailure(true)
	w = get(srv, api.EndpointReady, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
	assert.NotEmpty(t, resp.Reason)
	assert.False(t, resp.Components["database"].Ready)
}

func TestUnknownRoute_Returns404(t *testing.T) {
	srv := newTestServer(t, storage.NewMockRepository(), Options{})

	w := get(srv, "/pumps", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found: /pumps", decodeError(t, w))
}

func TestNonGetMethod_Returns405(t *testing.T) {
	repo := storage.NewMockRepository()
	srv := newTestServer(t, repo, Options{})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		w := do(srv, method, api.EndpointBearings, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Equal(t, "method "+method+" not allowed", decodeError(t, w))
	}
	assert.Equal(t, 0, repo.Calls())
}

func TestCORS_AllowsAnyOriginByDefault(t *testing.T) {
	srv := newTestServer(t, seededRepository(), Options{})

	w := get(srv, api.EndpointChains, map[string]string{"Origin": "https://shop.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	preflight := do(srv, http.MethodOptions, api.EndpointChains, map[string]string{
		"Origin":                        "https://shop.example",
		"Access-Control-Request-Method": http.MethodGet,
	})
	assert.Equal(t, http.StatusOK, preflight.Code)
	assert.Equal(t, "*", preflight.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	srv := newTestServer(t, seededRepository(), Options{CORSOrigins: []string{"https://shop.example"}})

	allowed := get(srv, api.EndpointChains, map[string]string{"Origin": "https://shop.example"})
	assert.Equal(t, "https://shop.example", allowed.Header().Get("Access-Control-Allow-Origin"))

	other := get(srv, api.EndpointChains, map[string]string{"Origin": "https://elsewhere.example"})
	assert.Equal(t, http.StatusOK, other.Code)
	assert.Empty(t, other.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, storage.NewMockRepository(), Options{})

	echoed := get(srv, "/", map[string]string{api.HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", echoed.Header().Get(api.HeaderRequestID))

	generated := get(srv, "/", nil)
	_, err := uuid.Parse(generated.Header().Get(api.HeaderRequestID))
	assert.NoError(t, err)
}

func TestRecovery_PanicReturns500AndServerSurvives(t *testing.T) {
	repo := panickingRepository{seededRepository()}
	srv := newTestServer(t, repo, Options{})

	w := get(srv, api.EndpointChains, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeError(t, w))

	w = get(srv, api.EndpointBearings, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueryLog_OneEntryPerDataRequest(t *testing.T) {
	repo := seededRepository()
	ql := &recordingQueryLogger{}
	srv := newTestServer(t, repo, Options{QueryLogger: ql})

	get(srv, api.EndpointBearings, map[string]string{api.HeaderRequestID: "req-1"})
	get(srv, api.EndpointProducts, map[string]string{api.HeaderRequestID: "req-2"})
	repo.SetConnectivityFailure(true)
	get(srv, api.EndpointChains, map[string]string{api.HeaderRequestID: "req-3"})
	get(srv, "/", nil)

	entries := ql.Entries()
	require.Len(t, entries, 3)

	assert.Equal(t, "req-1", entries[0].RequestID)
	assert.Equal(t, storage.StmtListBearings, entries[0].Statement)
	assert.Equal(t, observability.OutcomeSuccess, entries[0].Outcome)
	assert.Equal(t, 4, entries[0].Rows)

	assert.Equal(t, observability.OutcomeRejected, entries[1].Outcome)
	assert.Equal(t, api.EndpointProducts, entries[1].Route)

	assert.Equal(t, observability.OutcomeError, entries[2].Outcome)
	assert.Equal(t, storage.StmtListChains, entries[2].Statement)
	assert.NotEmpty(t, entries[2].Error)
}

func TestAccessLog_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLoggerTo(&buf, "json", zerolog.InfoLevel)
	srv, err := New(seededRepository(), logger, Options{})
	require.NoError(t, err)

	get(srv, api.EndpointSeries+"?x=1", map[string]string{api.HeaderRequestID: "req-9"})

	out := buf.String()
	assert.Contains(t, out, `"message":"http_request"`)
	assert.Contains(t, out, `"path":"/series"`)
	assert.Contains(t, out, `"request_id":"req-9"`)
	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, `"message":"catalog_query"`)
}

func TestTrailingSlash_ServesSameRoute(t *testing.T) {
	srv := newTestServer(t, seededRepository(), Options{})

	for _, route := range []string{api.EndpointBearings, api.EndpointDebugTables, api.EndpointProducts + "?category=ball"} {
		t.Run(route, func(t *testing.T) {
			want := get(srv, route, nil)
			require.Equal(t, http.StatusOK, want.Code)

			slashed := route
			if i := strings.Index(route, "?"); i >= 0 {
				slashed = route[:i] + "/" + route[i:]
			} else {
				slashed += "/"
			}
			w := get(srv, slashed, nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, want.Body.String(), w.Body.String())
		})
	}

	assert.Equal(t, http.StatusOK, get(srv, "/", nil).Code)
	assert.Equal(t, http.StatusNotFound, get(srv, "/pumps/", nil).Code)
}

func TestQueryLog_RecordsCancelledRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLoggerTo(&buf, "json", zerolog.InfoLevel)
	srv, err := New(seededRepository(), logger, Options{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, api.EndpointChains, nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	out := buf.String()
	assert.Contains(t, out, `"message":"catalog_query"`)
	assert.Contains(t, out, `"statement":"list_chains"`)
	assert.Contains(t, out, `"outcome":"error"`)
	assert.NotContains(t, out, "query log entry dropped")
}

func TestChains_NullCodeRendersNull(t *testing.T) {
	repo := seededRepository()
	name := "Unlabelled chain"
	repo.AddChain(models.Chain{Name: &name})
	srv := newTestServer(t, repo, Options{})

	w := get(srv, api.EndpointChains, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw, 3)
	code, present := raw[2]["code"]
	assert.True(t, present)
	assert.Nil(t, code)
	assert.Equal(t, name, raw[2]["name"])
}

package storage

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/pkg/models"
)

// MockRepository is an in-memory implementation of CatalogRepository.
// It is thread-safe, respects context cancellation and applies the same
// ordering as the SQL statements. Used by tests and by `serve --dev`.
type MockRepository struct {
	mu        sync.RWMutex
	bearings  []categorizedBearing
	series    []models.BearingSeries
	chains    []models.Chain
	couplings []models.Coupling
	tables    []models.TableName
	now       time.Time
	info      models.DatabaseInfo

	// Test helper fields for simulating failures
	connectivityFailure bool
	calls               int
}

var errSimulatedConnectivity = stderrors.New("dial tcp: connection refused (simulated)")

type categorizedBearing struct {
	bearing  models.Bearing
	category string
}

// NewMockRepository creates an empty mock repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		info: models.DatabaseInfo{Database: "catalog", Schema: "public"},
		tables: []models.TableName{
			{TableName: "bearing_series"},
			{TableName: "bearings_prod"},
			{TableName: "chains"},
			{TableName: "couplings"},
		},
	}
}

// checkContext verifies the context is not cancelled or timed out.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// begin records a call and returns the simulated failure for statement, if any.
func (r *MockRepository) begin(ctx context.Context, statement string) error {
	r.mu.Lock()
	r.calls++
	failing := r.connectivityFailure
	r.mu.Unlock()

	if err := checkContext(ctx); err != nil {
		return cerrors.NewQueryFailed(statement, err)
	}
	if failing {
		return cerrors.NewQueryFailed(statement, errSimulatedConnectivity)
	}
	return nil
}

// AddBearing stores a bearing under category.
func (r *MockRepository) AddBearing(b models.Bearing, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bearings = append(r.bearings, categorizedBearing{bearing: b, category: category})
}

// AddSeries stores a bearing series.
func (r *MockRepository) AddSeries(s models.BearingSeries) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series = append(r.series, s)
}

// AddChain stores a chain.
func (r *MockRepository) AddChain(c models.Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains = append(r.chains, c)
}

// AddCoupling stores a coupling.
func (r *MockRepository) AddCoupling(c models.Coupling) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.couplings = append(r.couplings, c)
}

// SetServerTime fixes the clock returned by ServerTime. Zero means time.Now.
func (r *MockRepository) SetServerTime(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = t
}

// SetTables replaces the public-schema table list.
func (r *MockRepository) SetTables(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = make([]models.TableName, 0, len(names))
	for _, n := range names {
		r.tables = append(r.tables, models.TableName{TableName: n})
	}
}

// SetConnectivityFailure configures the mock to simulate connectivity failures.
func (r *MockRepository) SetConnectivityFailure(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectivityFailure = fail
}

// Calls returns how many repository methods have been invoked.
func (r *MockRepository) Calls() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls
}

// ServerTime returns the configured clock, or time.Now.
func (r *MockRepository) ServerTime(ctx context.Context) (*models.ServerTime, error) {
	if err := r.begin(ctx, StmtServerTime); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &models.ServerTime{Now: now}, nil
}

// DatabaseInfo returns the configured database and schema names.
func (r *MockRepository) DatabaseInfo(ctx context.Context) (*models.DatabaseInfo, error) {
	if err := r.begin(ctx, StmtDatabaseInfo); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := r.info
	return &info, nil
}

// ListTables returns the table list sorted by name.
func (r *MockRepository) ListTables(ctx context.Context) ([]models.TableName, error) {
	if err := r.begin(ctx, StmtListTables); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := append(make([]models.TableName, 0, len(r.tables)), r.tables...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out, nil
}

// ListBearings returns all bearings ordered by code.
func (r *MockRepository) ListBearings(ctx context.Context) ([]models.Bearing, error) {
	if err := r.begin(ctx, StmtListBearings); err != nil {
		return nil, err
	}
	return r.bearingsWhere(func(string) bool { return true }), nil
}

// ListProductsByCategory returns bearings whose category equals category exactly.
func (r *MockRepository) ListProductsByCategory(ctx context.Context, category string) ([]models.Bearing, error) {
	if err := r.begin(ctx, StmtProductsByCategory); err != nil {
		return nil, err
	}
	return r.bearingsWhere(func(c string) bool { return c == category }), nil
}

func (r *MockRepository) bearingsWhere(match func(category string) bool) []models.Bearing {
	r.mu.RLock()
	out := make([]models.Bearing, 0, len(r.bearings))
	for _, b := range r.bearings {
		if match(b.category) {
			out = append(out, b.bearing)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return keyLess(out[i].Code, out[j].Code) })
	return out
}

// ListSeries returns all series ordered by series_code.
func (r *MockRepository) ListSeries(ctx context.Context) ([]models.BearingSeries, error) {
	if err := r.begin(ctx, StmtListSeries); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := append(make([]models.BearingSeries, 0, len(r.series)), r.series...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return keyLess(out[i].SeriesCode, out[j].SeriesCode) })
	return out, nil
}

// ListChains returns all chains ordered by code.
func (r *MockRepository) ListChains(ctx context.Context) ([]models.Chain, error) {
	if err := r.begin(ctx, StmtListChains); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := append(make([]models.Chain, 0, len(r.chains)), r.chains...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return keyLess(out[i].Code, out[j].Code) })
	return out, nil
}

// ListCouplings returns all couplings ordered by code.
func (r *MockRepository) ListCouplings(ctx context.Context) ([]models.Coupling, error) {
	if err := r.begin(ctx, StmtListCouplings); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := append(make([]models.Coupling, 0, len(r.couplings)), r.couplings...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return keyLess(out[i].Code, out[j].Code) })
	return out, nil
}

// CheckConnectivity fails when a connectivity failure is simulated.
func (r *MockRepository) CheckConnectivity(ctx context.Context) error {
	return r.begin(ctx, StmtPing)
}

// keyLess orders keys like PostgreSQL's ORDER BY: ascending, NULLs last.
func keyLess(a, b *string) bool {
	if a == nil || b == nil {
		return a != nil
	}
	return *a < *b
}

// SeedSampleCatalog fills repo with a small catalog for development mode.
func SeedSampleCatalog(repo *MockRepository) {
	str := func(s string) *string { return &s }

	repo.AddBearing(models.Bearing{Code: str("6204-2RS"), Name: str("Deep groove ball bearing"), Description: str("20x47x14, sealed")}, "ball")
	repo.AddBearing(models.Bearing{Code: str("6004-ZZ"), Name: str("Deep groove ball bearing"), Description: str("20x42x12, shielded")}, "ball")
	repo.AddBearing(models.Bearing{Code: str("NU205"), Name: str("Cylindrical roller bearing"), Description: str("25x52x15")}, "roller")
	repo.AddBearing(models.Bearing{Code: str("30205"), Name: str("Tapered roller bearing"), Description: nil}, "tapered")

	repo.AddSeries(models.BearingSeries{ID: 1, SeriesCode: str("60")})
	repo.AddSeries(models.BearingSeries{ID: 2, SeriesCode: str("62")})
	repo.AddSeries(models.BearingSeries{ID: 3, SeriesCode: str("302")})

	repo.AddChain(models.Chain{Code: str("08B-1"), Name: str("Simplex roller chain"), Description: str("1/2\" pitch")})
	repo.AddChain(models.Chain{Code: str("10B-2"), Name: str("Duplex roller chain"), Description: str("5/8\" pitch")})

	repo.AddCoupling(models.Coupling{Code: str("L-100"), Name: str("Jaw coupling"), Description: str("Spider insert"), Size: str("100")})
	repo.AddCoupling(models.Coupling{Code: str("GR-24"), Name: str("Curved jaw coupling"), Description: nil, Size: str("24")})
}

// Verify MockRepository implements CatalogRepository interface.
var _ CatalogRepository = (*MockRepository)(nil)

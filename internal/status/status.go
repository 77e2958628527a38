// Package status reports whether the catalog API can serve data:
// the database answers and the catalog tables exist.
package status

import (
	"context"
	"fmt"
	"sort"
	"strings"

	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/internal/storage"
)

// Component names reported by Check.
const (
	ComponentDatabase = "database"
	ComponentCatalog  = "catalog"
)

// RequiredTables are the public-schema tables the data routes read.
var RequiredTables = []string{"bearing_series", "bearings_prod", "chains", "couplings"}

// ReadinessResult represents API readiness.
type ReadinessResult struct {
	Ready      bool                       `json:"ready"`
	Reason     string                     `json:"reason,omitempty"`
	Components map[string]ComponentStatus `json:"components"`
}

// ComponentStatus represents the status of a component.
type ComponentStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// Checker runs readiness checks against a catalog repository.
type Checker struct {
	repo     storage.CatalogRepository
	required []string
}

// NewChecker creates a checker requiring RequiredTables.
func NewChecker(repo storage.CatalogRepository) *Checker {
	return &Checker{repo: repo, required: RequiredTables}
}

// Check probes the database, then the catalog tables. The catalog check is
// skipped when the database is unreachable.
func (c *Checker) Check(ctx context.Context) *ReadinessResult {
	result := &ReadinessResult{
		Ready:      true,
		Components: make(map[string]ComponentStatus, 2),
	}

	if err := c.repo.CheckConnectivity(ctx); err != nil {
		result.set(ComponentDatabase, false, cerrors.PublicMessage(err))
		result.set(ComponentCatalog, false, "skipped: database unreachable")
		return result
	}
	result.set(ComponentDatabase, true, "connected")

	tables, err := c.repo.ListTables(ctx)
	if err != nil {
		result.set(ComponentCatalog, false, cerrors.PublicMessage(err))
		return result
	}

	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t.TableName] = true
	}
	var missing []string
	for _, name := range c.required {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.set(ComponentCatalog, false, "missing tables: "+strings.Join(missing, ", "))
		return result
	}
	result.set(ComponentCatalog, true, fmt.Sprintf("%d tables present", len(c.required)))

	return result
}

// set records a component; the first failing component becomes the reason.
func (r *ReadinessResult) set(name string, ready bool, message string) {
	r.Components[name] = ComponentStatus{Ready: ready, Message: message}
	if !ready {
		if r.Ready {
			r.Reason = name + " not ready: " + message
		}
		r.Ready = false
	}
}

// String returns a human-readable report, components in name order.
func (r *ReadinessResult) String() string {
	var sb strings.Builder
	if r.Ready {
		sb.WriteString("Status: ready\n")
	} else {
		sb.WriteString("Status: not ready\n")
		fmt.Fprintf(&sb, "Reason: %s\n", r.Reason)
	}

	names := make([]string, 0, len(r.Components))
	for name := range r.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := r.Components[name]
		mark := "ok"
		if !c.Ready {
			mark = "FAIL"
		}
		fmt.Fprintf(&sb, "  [%s] %s: %s\n", mark, name, c.Message)
	}
	return sb.String()
}

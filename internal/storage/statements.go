package storage

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	cerrors "github.com/bearings-api/catalog/internal/errors"
)

// Statement is a named, fixed catalog query. Parameters are positional
// ($1..$N) and never interpolated into the text.
type Statement struct {
	Name   string
	SQL    string
	Params int
}

// Catalog statement names. They appear in query logs and error messages.
const (
	StmtServerTime         = "server_time"
	StmtDatabaseInfo       = "database_info"
	StmtListTables         = "list_tables"
	StmtListBearings       = "list_bearings"
	StmtListSeries         = "list_series"
	StmtListChains         = "list_chains"
	StmtListCouplings      = "list_couplings"
	StmtProductsByCategory = "list_products_by_category"
	StmtPing               = "ping"
)

// CatalogStatements is every query the API can run.
var CatalogStatements = map[string]Statement{
	StmtServerTime: {
		Name: StmtServerTime,
		SQL:  `SELECT NOW() AS now`,
	},
	StmtDatabaseInfo: {
		Name: StmtDatabaseInfo,
		SQL:  `SELECT current_database() AS database_name, current_schema() AS schema_name`,
	},
	StmtListTables: {
		Name: StmtListTables,
		SQL: `SELECT tablename
		FROM pg_tables
		WHERE schemaname = 'public'
		ORDER BY tablename`,
	},
	StmtListBearings: {
		Name: StmtListBearings,
		SQL: `SELECT code, name, description
		FROM public.bearings_prod
		ORDER BY code`,
	},
	StmtListSeries: {
		Name: StmtListSeries,
		SQL: `SELECT id, series_code
		FROM public.bearing_series
		ORDER BY series_code`,
	},
	StmtListChains: {
		Name: StmtListChains,
		SQL: `SELECT code, name, description
		FROM public.chains
		ORDER BY code`,
	},
	StmtListCouplings: {
		Name: StmtListCouplings,
		SQL: `SELECT code, name, description, size
		FROM public.couplings
		ORDER BY code`,
	},
	StmtProductsByCategory: {
		Name: StmtProductsByCategory,
		SQL: `SELECT code, name, description
		FROM public.bearings_prod
		WHERE category = $1
		ORDER BY code`,
		Params: 1,
	},
	StmtPing: {
		Name: StmtPing,
		SQL:  `SELECT 1`,
	},
}

// ReadableTables are the only relations catalog statements may read.
var ReadableTables = map[string]bool{
	"pg_tables":             true,
	"public.bearing_series": true,
	"public.bearings_prod":  true,
	"public.chains":         true,
	"public.couplings":      true,
}

var (
	placeholder = regexp.MustCompile(`\$(\d+)`)
	tableRef    = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+`)

	// relationItem matches one relation of a FROM list, its optional alias
	// and a trailing comma when more relations follow.
	relationItem = regexp.MustCompile(`(?i)^\s*([A-Za-z_][A-Za-z0-9_.]*)(?:\s+(?:AS\s+)?[A-Za-z_][A-Za-z0-9_]*)?\s*(,)?`)
)

// referencedTables returns the relations named after FROM and JOIN, lowercased.
// Comma-separated lists are walked to the end.
func referencedTables(text string) []string {
	var tables []string
	for _, loc := range tableRef.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		for {
			m := relationItem.FindStringSubmatchIndex(rest)
			if m == nil {
				break
			}
			tables = append(tables, strings.ToLower(rest[m[2]:m[3]]))
			if m[4] < 0 {
				break
			}
			rest = rest[m[1]:]
		}
	}
	return tables
}

// ValidateStatement checks that s is a single read-only SELECT over
// ReadableTables whose placeholders are exactly $1..$Params.
func ValidateStatement(s Statement) error {
	if s.Name == "" {
		return cerrors.NewInvalidStatement("(unnamed)", "statement has no name")
	}
	text := strings.TrimSpace(s.SQL)
	if text == "" {
		return cerrors.NewInvalidStatement(s.Name, "statement is empty")
	}
	if strings.Contains(strings.TrimSuffix(text, ";"), ";") {
		return cerrors.NewInvalidStatement(s.Name, "multiple statements are not allowed")
	}
	if kind := sqlparser.Preview(text); kind != sqlparser.StmtSelect {
		return cerrors.NewInvalidStatement(s.Name,
			fmt.Sprintf("only SELECT is allowed, got %s", sqlparser.StmtType(kind)))
	}

	for _, table := range referencedTables(text) {
		if !ReadableTables[table] {
			return cerrors.NewInvalidStatement(s.Name, fmt.Sprintf("table %s is not a catalog table", table))
		}
	}

	seen := map[int]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		n, _ := strconv.Atoi(m[1])
		seen[n] = true
	}
	if len(seen) != s.Params {
		return cerrors.NewInvalidStatement(s.Name,
			fmt.Sprintf("declares %d parameters but references %d", s.Params, len(seen)))
	}
	for i := 1; i <= s.Params; i++ {
		if !seen[i] {
			return cerrors.NewInvalidStatement(s.Name, fmt.Sprintf("parameter $%d is not referenced", i))
		}
	}

	return nil
}

// ValidateStatements validates every statement, in name order.
func ValidateStatements(stmts map[string]Statement) error {
	names := make([]string, 0, len(stmts))
	for name := range stmts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := stmts[name]
		if s.Name != name {
			return cerrors.NewInvalidStatement(name, fmt.Sprintf("registered under %q but named %q", name, s.Name))
		}
		if err := ValidateStatement(s); err != nil {
			return err
		}
	}
	return nil
}

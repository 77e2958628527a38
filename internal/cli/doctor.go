package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bearings-api/catalog/internal/config"
	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/internal/status"
	"github.com/bearings-api/catalog/internal/storage"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	var dev bool
	var endpoint string
	cmd := &cobra.Command{
		Use:     "check",
		Aliases: []string{"doctor"},
		Short:   "Run startup diagnostics",
		Long: `Run the checks the server depends on, without serving.

Checks:
  - configuration is valid
  - database TLS mode
  - database connectivity
  - catalog tables are present

With --endpoint, ask a running server for its /readyz report instead.

Exits non-zero when a check fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd.Context(), dev, endpoint)
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "check the in-memory sample catalog instead of PostgreSQL")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "check a running server at this base URL")
	cmd.MarkFlagsMutuallyExclusive("dev", "endpoint")
	return cmd
}

// DiagnosticCheck represents a single diagnostic check result.
// A warning is reported but does not fail the run.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Warning bool   `json:"warning,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// recordFunc collects one check and the error it failed with, if any.
type recordFunc func(check DiagnosticCheck, err error)

func (c *CLI) runCheck(ctx context.Context, dev bool, endpoint string) error {
	if !c.jsonOutput {
		c.println("Catalog API Diagnostics")
		c.println("=======================")
		c.println("")
	}

	var checks []DiagnosticCheck
	var failure error
	record := func(check DiagnosticCheck, err error) {
		checks = append(checks, check)
		if !c.jsonOutput {
			c.printCheck(check)
		}
		if err != nil && failure == nil {
			failure = err
		}
	}

	if endpoint != "" {
		c.checkRemote(ctx, NewCatalogClient(endpoint), record)
	} else {
		c.checkLocal(ctx, dev, record)
	}

	if c.jsonOutput {
		if err := c.outputJSON(map[string]interface{}{
			"checks":     checks,
			"all_passed": failure == nil,
		}); err != nil {
			return err
		}
		return failure
	}

	c.println("")
	if failure == nil {
		c.println("✓ All checks passed")
	} else {
		c.println("✗ Some checks failed - see above for details")
	}
	return failure
}

func (c *CLI) checkLocal(ctx context.Context, dev bool, record recordFunc) {
	if dev && c.cfg.Database.URL == "" {
		c.cfg.Database.URL = devDatabaseURL
	}

	configCheck, err := c.checkConfig()
	record(configCheck, err)
	if err != nil {
		return
	}

	var repo storage.CatalogRepository
	if dev {
		mock := storage.NewMockRepository()
		storage.SeedSampleCatalog(mock)
		repo = mock
	} else {
		record(c.checkTLS(), nil)

		var closeDB func() error
		var dbCheck DiagnosticCheck
		repo, closeDB, dbCheck, err = c.checkDatabase(ctx)
		record(dbCheck, err)
		if closeDB != nil {
			defer closeDB()
		}
	}

	if repo != nil {
		record(c.checkCatalog(ctx, repo))
	}
}

// remoteCheckNames labels the readiness components of a running server
// like the local checks.
var remoteCheckNames = map[string]string{
	status.ComponentDatabase: "Database Connectivity",
	status.ComponentCatalog:  "Catalog Tables",
}

func (c *CLI) checkRemote(ctx context.Context, client *CatalogClient, record recordFunc) {
	check := DiagnosticCheck{Name: "Catalog API"}
	resp, err := client.Ready(ctx)
	if err != nil {
		check.Message = "Cannot reach server"
		check.Details = err.Error()
		record(check, err)
		return
	}
	check.Passed = true
	check.Message = fmt.Sprintf("Reachable at %s", client.endpoint)
	record(check, nil)

	result := readinessFrom(resp)
	names := make([]string, 0, len(result.Components))
	for name := range result.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	var notReady error
	if !result.Ready {
		notReady = cerrors.NewDatabaseUnavailable(result.Reason)
	}
	for _, name := range names {
		comp := result.Components[name]
		label, ok := remoteCheckNames[name]
		if !ok {
			label = name
		}
		componentCheck := DiagnosticCheck{Name: label, Passed: comp.Ready, Message: comp.Message}
		if comp.Ready {
			record(componentCheck, nil)
			continue
		}
		componentCheck.Details = result.Reason
		record(componentCheck, notReady)
	}
	if notReady != nil && len(names) == 0 {
		record(DiagnosticCheck{Name: "Readiness", Message: "Server is not ready", Details: result.Reason}, notReady)
	}
}

func (c *CLI) printCheck(check DiagnosticCheck) {
	mark := "✗"
	switch {
	case check.Passed && check.Warning:
		mark = "!"
	case check.Passed:
		mark = "✓"
	}
	c.printf("%s %s: %s\n", mark, check.Name, check.Message)
	if check.Details != "" && (!check.Passed || check.Warning) {
		c.printf("  → %s\n", check.Details)
	}
}

func (c *CLI) checkConfig() (DiagnosticCheck, error) {
	check := DiagnosticCheck{Name: "Configuration"}

	if err := c.cfg.Validate(); err != nil {
		check.Message = "Invalid configuration"
		var invalid *cerrors.ErrInvalidConfig
		if errors.As(err, &invalid) {
			check.Details = invalid.Reason
		}
		return check, err
	}

	check.Passed = true
	check.Message = fmt.Sprintf("driver %s, port %d", c.cfg.Database.Driver, c.cfg.Server.Port)
	return check, nil
}

func (c *CLI) checkTLS() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Database TLS", Passed: true}
	mode := c.cfg.Database.EffectiveSSLMode()

	if c.cfg.Database.VerifiesServerCertificate() {
		check.Message = fmt.Sprintf("sslmode=%s, server certificate verified", mode)
		return check
	}

	check.Warning = true
	check.Message = fmt.Sprintf("sslmode=%s, server certificate NOT verified", mode)
	check.Details = "set CATALOG_DATABASE_SSLMODE=verify-full to verify the server certificate"
	return check
}

func (c *CLI) checkDatabase(ctx context.Context) (storage.CatalogRepository, func() error, DiagnosticCheck, error) {
	check := DiagnosticCheck{Name: "Database Connectivity"}

	db, err := storage.Open(ctx, c.cfg.Database)
	if err != nil {
		check.Message = "Cannot reach database"
		check.Details = cerrors.PublicMessage(err)
		if db != nil {
			db.Close()
		}
		return nil, nil, check, err
	}

	repo, err := storage.NewPostgresRepository(db, storage.PostgresConfig{
		QueryTimeout: c.cfg.Database.QueryTimeout,
		PingTimeout:  c.cfg.Database.ConnectTimeout,
	})
	if err != nil {
		db.Close()
		check.Message = "Catalog statements rejected"
		check.Details = cerrors.PublicMessage(err)
		return nil, nil, check, err
	}

	check.Passed = true
	check.Message = fmt.Sprintf("Connected to %s", config.RedactDSN(c.cfg.Database.URL))
	if info, err := repo.DatabaseInfo(ctx); err == nil {
		check.Message = fmt.Sprintf("Connected to database %q, schema %q", info.Database, info.Schema)
	}
	return repo, db.Close, check, nil
}

func (c *CLI) checkCatalog(ctx context.Context, repo storage.CatalogRepository) (DiagnosticCheck, error) {
	check := DiagnosticCheck{Name: "Catalog Tables"}

	result := status.NewChecker(repo).Check(ctx)
	catalog := result.Components[status.ComponentCatalog]
	if !result.Ready {
		check.Message = catalog.Message
		check.Details = result.Reason
		return check, cerrors.NewDatabaseUnavailable(result.Reason)
	}

	check.Passed = true
	check.Message = catalog.Message
	return check, nil
}

// Package cli provides the command-line interface for the catalog API.
// The same binary serves the API, diagnoses its configuration and database,
// and queries a running server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bearings-api/catalog/internal/config"
	cerrors "github.com/bearings-api/catalog/internal/errors"
)

// Exit codes, one per error code.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitDatabase   = 2
	ExitConfig     = 3
	ExitInternal   = 4
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	out    io.Writer
	errOut io.Writer

	// Global flags
	configPath string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New creates a new CLI instance writing to stdout and stderr.
func New() *CLI {
	cli := &CLI{out: os.Stdout, errOut: os.Stderr}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// SetOutput redirects command output.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.out = out
	c.errOut = errOut
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
}

// SetArgs overrides os.Args[1:].
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute(ctx context.Context) int {
	if err := c.rootCmd.ExecuteContext(ctx); err != nil {
		c.errorf("Error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

func exitCode(err error) int {
	switch cerrors.CodeOf(err) {
	case cerrors.CodeValidation:
		return ExitValidation
	case cerrors.CodeDatabase:
		return ExitDatabase
	case cerrors.CodeConfig:
		return ExitConfig
	default:
		return ExitInternal
	}
}

func (c *CLI) newRootCmd() *cobra.Command {
	serve := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "catalog-api",
		Short: "Bearings catalog API",
		Long: `catalog-api serves the bearings catalog (bearings, series, chains,
couplings) from PostgreSQL as read-only JSON over HTTP.

Running without a subcommand starts the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), serve)
		},
	}

	cmd.Version = Version
	cmd.SetVersionTemplate(GetVersionString() + "\n")

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./catalog.yaml)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output and per-query logs")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "debug logging")

	serve.bind(cmd)

	cmd.AddCommand(c.newServeCmd())
	cmd.AddCommand(c.newCheckCmd())
	cmd.AddCommand(c.newConfigCmd())
	cmd.AddCommand(c.newGetCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cerrors.NewInvalidConfig("config", err.Error())
	}
	c.cfg = cfg

	if c.debug {
		c.cfg.Logging.Level = "debug"
	}
	return nil
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Fprintf(c.out, format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Fprintln(c.out, args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(c.errOut, format, args...)
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

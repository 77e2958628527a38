// Package main is the entrypoint for the bearings catalog API.
// Running the binary without arguments starts the server; see
// `catalog-api --help` for the diagnostic commands.
package main

import (
	"context"
	"os"

	"github.com/bearings-api/catalog/internal/cli"
)

var (
	version = ""
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute(context.Background()))
}

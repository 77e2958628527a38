package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cerrors "github.com/bearings-api/catalog/internal/errors"
	"github.com/bearings-api/catalog/internal/status"
	"github.com/bearings-api/catalog/pkg/api"
)

// resource maps a `get` argument to an API route. Resources without
// columns are single objects and always print as JSON, except "ready"
// which prints a readiness report.
type resource struct {
	path    string
	columns []string
}

var resources = map[string]resource{
	"bearings":  {path: api.EndpointBearings, columns: []string{"code", "name", "description"}},
	"products":  {path: api.EndpointProducts, columns: []string{"code", "name", "description"}},
	"series":    {path: api.EndpointSeries, columns: []string{"id", "series_code"}},
	"chains":    {path: api.EndpointChains, columns: []string{"code", "name", "description"}},
	"couplings": {path: api.EndpointCouplings, columns: []string{"code", "name", "description", "size"}},
	"tables":    {path: api.EndpointDebugTables, columns: []string{"tablename"}},
	"db":        {path: api.EndpointDebugDB},
	"time":      {path: api.EndpointTestDB},
	"ready":     {path: api.EndpointReady},
}

func resourceNames() []string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *CLI) newGetCmd() *cobra.Command {
	var endpoint, category string

	cmd := &cobra.Command{
		Use:   "get <resource>",
		Short: "Fetch catalog data from a running server",
		Long: fmt.Sprintf(`Fetch catalog data from a running catalog API and print it.

Resources: %s

Examples:
  catalog-api get bearings
  catalog-api get products --category ball
  catalog-api get ready
  catalog-api get couplings --json --endpoint http://catalog.internal:3000`,
			strings.Join(resourceNames(), ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: resourceNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint == "" {
				endpoint = fmt.Sprintf("http://localhost:%d", c.cfg.Server.Port)
			}
			return c.runGet(cmd, NewCatalogClient(endpoint), args[0], category)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "catalog API base URL (default: http://localhost:<port>)")
	cmd.Flags().StringVar(&category, "category", "", "product category (required for products)")
	return cmd
}

func (c *CLI) runGet(cmd *cobra.Command, client *CatalogClient, name, category string) error {
	res, ok := resources[name]
	if !ok {
		return cerrors.NewInvalidConfig("resource", fmt.Sprintf("unknown resource %q (expected one of: %s)",
			name, strings.Join(resourceNames(), ", ")))
	}

	if res.path == api.EndpointReady {
		return c.printReady(cmd.Context(), client)
	}

	var query url.Values
	if name == "products" {
		if category == "" {
			return cerrors.NewMissingParameter(api.ParamCategory)
		}
		query = url.Values{api.ParamCategory: {category}}
	}

	body, err := client.Get(cmd.Context(), res.path, query)
	if err != nil {
		return err
	}

	if c.jsonOutput || res.columns == nil {
		var out bytes.Buffer
		if err := json.Indent(&out, body, "", "  "); err != nil {
			return fmt.Errorf("failed to format response: %w", err)
		}
		out.WriteByte('\n')
		_, err := c.out.Write(out.Bytes())
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(rows) == 0 {
		c.println("No rows.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(res.columns, "\t")))
	for _, row := range rows {
		cells := make([]string, len(res.columns))
		for i, col := range res.columns {
			cells[i] = formatCell(row[col])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func formatCell(v interface{}) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

// printReady prints the server's readiness report and fails when it is not
// ready.
func (c *CLI) printReady(ctx context.Context, client *CatalogClient) error {
	resp, err := client.Ready(ctx)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		if err := c.outputJSON(resp); err != nil {
			return err
		}
	} else {
		fmt.Fprint(c.out, readinessFrom(resp).String())
	}

	if !resp.Ready {
		return cerrors.NewDatabaseUnavailable(resp.Reason)
	}
	return nil
}

func readinessFrom(resp *api.ReadyResponse) *status.ReadinessResult {
	result := &status.ReadinessResult{
		Ready:      resp.Ready,
		Reason:     resp.Reason,
		Components: make(map[string]status.ComponentStatus, len(resp.Components)),
	}
	for name, comp := range resp.Components {
		result.Components[name] = status.ComponentStatus{Ready: comp.Ready, Message: comp.Message}
	}
	return result
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bearings-api/catalog/pkg/api"
)

// CatalogClient is the HTTP client for a running catalog API.
type CatalogClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewCatalogClient creates a client for the API at endpoint,
// e.g. "http://localhost:3000".
func NewCatalogClient(endpoint string) *CatalogClient {
	return &CatalogClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get fetches path with query and returns the raw JSON body of a 200 response.
// Any other status is returned as an error carrying the server's message.
func (c *CatalogClient) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, path, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("catalog API returned invalid JSON from %s", path)
	}
	return body, nil
}

// Ready fetches /readyz. A 503 is a valid answer, not an error.
func (c *CatalogClient) Ready(ctx context.Context) (*api.ReadyResponse, error) {
	resp, err := c.doRequest(ctx, api.EndpointReady, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, c.parseErrorResponse(resp)
	}

	var result api.ReadyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func (c *CatalogClient) doRequest(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", api.ContentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog API unreachable at %s: %w", c.endpoint, err)
	}
	return resp, nil
}

// parseErrorResponse turns an {"error": ...} body into an error.
func (c *CatalogClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("catalog API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("catalog API error: %d - %s", resp.StatusCode, errResp.Error)
}

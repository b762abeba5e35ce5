// Package search is the host-side web-search proxy §6 names: containers
// reach it at host.docker.internal and never hold a search API key
// themselves.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"skillforge/pkg/errors"
)

const domain = "search"

// Client proxies one query to the configured search provider's HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a Client. An empty baseURL means search is unconfigured:
// Query will always return CodeSearchUnconfigured.
func New(baseURL, apiKey string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: 15 * time.Second}}
}

// Query sends query to the configured provider and returns its raw decoded
// JSON response body.
func (c *Client) Query(ctx context.Context, query string) (any, error) {
	if c.baseURL == "" {
		return nil, errors.New(errors.CodeSearchUnconfigured, domain, "no search provider configured", nil)
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, errors.New(errors.CodeInternal, domain, "failed to encode search request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, domain, "failed to build search request", err)
	}
	req.Header.Set("content-type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeSearchHTTPError, domain, "search request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.CodeSearchHTTPError, domain, "failed to read search response", err)
	}
	if resp.StatusCode >= 300 {
		return nil, errors.New(errors.CodeSearchHTTPError, domain,
			fmt.Sprintf("search provider returned status %d", resp.StatusCode), nil)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, errors.New(errors.CodeSearchHTTPError, domain, "search response was not valid JSON", err)
	}
	return decoded, nil
}

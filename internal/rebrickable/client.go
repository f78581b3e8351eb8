// Package rebrickable provides a REST client for the Rebrickable v3 API.
// It implements the manifest provider: one call turns a set number into set
// metadata plus the raw inventory rows of that set.
package rebrickable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/h0rv/brickhunt/internal/domain"
)

// DefaultBaseURL is the public Rebrickable API.
const DefaultBaseURL = "https://rebrickable.com/api/v3"

// Client is a Rebrickable API client.
type Client struct {
	http    *http.Client
	baseURL string
	key     string
}

// New creates a client authenticated with key. An empty baseURL selects
// DefaultBaseURL.
func New(key, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
	}
}

// makeRequest executes an authenticated GET against url and decodes the JSON body into resp.
// url may be a path relative to the base URL or an absolute pagination link.
func (c *Client) makeRequest(ctx context.Context, op, url string, resp interface{}) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = c.baseURL + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &domain.ProviderError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "key "+c.key)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &domain.ProviderError{Op: op, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case res.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &domain.ProviderError{
			Op:  op,
			Err: fmt.Errorf("received status code %d - %s", res.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return &domain.ProviderError{Op: op, Err: fmt.Errorf("failed to decode response body: %w", err)}
	}
	return nil
}

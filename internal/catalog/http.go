package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/unichart/unichart/internal/curriculum"
)

const httpTimeout = 10 * time.Second

// HTTPCatalog fetches templates from a remote base URL following the
// conventional layout: {base}/templates/{id}.json and
// {base}/templates/registry.json.
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCatalog creates a catalog backed by a remote template registry.
// A nil client gets a default with a request timeout.
func NewHTTPCatalog(baseURL string, client *http.Client) *HTTPCatalog {
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	return &HTTPCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *HTTPCatalog) Template(ctx context.Context, id string) (*curriculum.Template, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/templates/%s.json", c.baseURL, id))
	if err != nil {
		return nil, err
	}

	var tmpl curriculum.Template
	if err := json.Unmarshal(body, &tmpl); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", id, err)
	}
	return &tmpl, nil
}

func (c *HTTPCatalog) Registry(ctx context.Context) ([]RegistryEntry, error) {
	body, err := c.get(ctx, c.baseURL+"/templates/registry.json")
	if err != nil {
		return nil, err
	}

	var reg []RegistryEntry
	if err := json.Unmarshal(body, &reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return reg, nil
}

func (c *HTTPCatalog) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

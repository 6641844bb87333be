// Package netbox is the client for the NetBox REST API the migration writes to.
package netbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/rflorenc/racktables-migrator/internal/config"
	"github.com/rflorenc/racktables-migrator/internal/models"
)

// Client is an authenticated NetBox API client.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	version    string
}

// NewClient creates a Client from the target configuration.
func NewClient(cfg config.Target) (*Client, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CAFile)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
		pageSize: cfg.PageSize,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, truncate(e.Body, 200))
}

// Conflict reports whether the API refused the write because an object with
// the same unique fields already exists.
func (e *APIError) Conflict() bool {
	if e.Status == http.StatusConflict {
		return true
	}
	if e.Status != http.StatusBadRequest {
		return false
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "already exists") || strings.Contains(body, "must be unique")
}

// paginatedResponse is the NetBox list envelope.
type paginatedResponse struct {
	Count   int               `json:"count"`
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

// do sends one request. rawURL may be a path relative to the base URL or an
// absolute URL taken from a "next" link.
func (c *Client) do(ctx context.Context, method, rawURL string, params url.Values, payload interface{}) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	u := rawURL
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = c.baseURL + u
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, &APIError{Method: method, Path: rawURL, Status: resp.StatusCode, Body: string(body)}
	}
	return body, resp.StatusCode, nil
}

// Get performs an authenticated GET request and returns the response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, params, nil)
	return body, err
}

// GetAll fetches every page of a list endpoint. A listing that ends before
// the reported count was reached means the server caps page sizes without
// handing out next links; that is returned as models.ErrIncompleteListing.
func (c *Client) GetAll(ctx context.Context, path string, params url.Values) ([]models.Resource, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if c.pageSize > 0 {
		q.Set("limit", strconv.Itoa(c.pageSize))
	}

	var all []models.Resource
	current, currentParams := path, q
	for current != "" {
		body, err := c.Get(ctx, current, currentParams)
		if err != nil {
			return nil, err
		}

		var page paginatedResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
		for _, raw := range page.Results {
			var res models.Resource
			if err := json.Unmarshal(raw, &res); err != nil {
				return nil, fmt.Errorf("parsing resource: %w", err)
			}
			all = append(all, res)
		}

		if page.Next != nil && *page.Next != "" {
			// next links carry the full query string
			current, currentParams = *page.Next, nil
			continue
		}
		if len(all) < page.Count {
			return nil, fmt.Errorf("%w: %s returned %d of %d objects", models.ErrIncompleteListing, path, len(all), page.Count)
		}
		current = ""
	}
	return all, nil
}

// Post performs an authenticated POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	return c.do(ctx, http.MethodPost, path, nil, payload)
}

// Patch performs an authenticated PATCH request.
func (c *Client) Patch(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	return c.do(ctx, http.MethodPatch, path, nil, payload)
}

// Delete performs an authenticated DELETE request. A missing object counts
// as deleted.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, status, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// Ping checks connectivity and credentials against the API root.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Get(ctx, "/api/", nil)
	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

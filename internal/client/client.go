package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kelsos/weave-sweep/internal/logger"
)

// ErrNotFound matches any HTTPError carrying a 404 status
var ErrNotFound = errors.New("not found")

// HTTPError is returned for any non-2xx response
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// APIClient handles HTTP communication with the chain REST APIs
type APIClient struct {
	httpClient *http.Client
}

// NewAPIClient creates a new API client with the given request timeout
func NewAPIClient(timeout time.Duration) *APIClient {
	return &APIClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BuildURL joins a base endpoint and a path, escaping nothing in path
func BuildURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Get makes a GET request and decodes the JSON body into result
func (c *APIClient) Get(ctx context.Context, rawURL string, result interface{}) error {
	start := time.Now()
	logger.Debug("Starting GET request to %s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("Request to %s failed after %v: %v", rawURL, time.Since(start), err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("Request to %s completed in %v with status %d", rawURL, time.Since(start), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{URL: rawURL, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("error decoding response from %s: %w", rawURL, err)
		}
	}

	return nil
}

// BuildURLWithParams properly builds a URL with query parameters
func BuildURLWithParams(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	// Parse the endpoint to check for existing query parameters
	parts := strings.SplitN(endpoint, "?", 2)
	baseURL := parts[0]

	values := url.Values{}
	if len(parts) > 1 {
		existingParams, _ := url.ParseQuery(parts[1])
		values = existingParams
	}

	for key, value := range params {
		values.Set(key, value)
	}

	if len(values) > 0 {
		return baseURL + "?" + values.Encode()
	}
	return baseURL
}

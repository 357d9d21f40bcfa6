// Package search wraps the Google Custom Search JSON API. Search is a
// best-effort enrichment: failures are logged and surfaced as an empty
// result list, never as a chat-fatal error.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Result is one web search hit.
type Result struct {
	Title         string
	URL           string
	Snippet       string
	DisplaySource string
}

// Searcher finds web results for a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Client queries the Custom Search JSON API.
type Client struct {
	apiKey   string
	engineID string
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBaseURL overrides the API endpoint, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a search client. An empty apiKey or engineID
// yields a client whose Search always reports a configuration error.
func NewClient(apiKey, engineID string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		engineID: engineID,
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.engineID != ""
}

type apiResponse struct {
	Items []apiItem `json:"items"`
}

type apiItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

// Search runs the query and returns at most limit results,
// deduplicated by URL.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("search credentials not configured")
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	seen := make(map[string]bool, len(parsed.Items))
	results := make([]Result, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" || seen[item.Link] {
			continue
		}
		seen[item.Link] = true
		results = append(results, Result{
			Title:         item.Title,
			URL:           item.Link,
			Snippet:       item.Snippet,
			DisplaySource: item.DisplayLink,
		})
		if len(results) == limit {
			break
		}
	}

	c.logger.Debug("web search completed", "query", query, "results", len(results))
	return results, nil
}

package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DocsClient fetches interview transcripts as plaintext. Access is
// two-tiered, each tier attempted exactly once in fixed order: the
// unauthenticated export first, then the credentialed Drive export if
// an API key is configured, then failure.
type DocsClient struct {
	httpClient *http.Client
	baseURL    string
	apiBaseURL string
	apiKey     string
	logger     *slog.Logger
}

// DocsOption configures a DocsClient.
type DocsOption func(*DocsClient)

// WithDocsHTTPClient sets a custom HTTP client.
func WithDocsHTTPClient(c *http.Client) DocsOption {
	return func(d *DocsClient) {
		d.httpClient = c
	}
}

// WithDocsBaseURL overrides the direct export endpoint, for tests.
func WithDocsBaseURL(url string) DocsOption {
	return func(d *DocsClient) {
		d.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithDocsAPIBaseURL overrides the credentialed endpoint, for tests.
func WithDocsAPIBaseURL(url string) DocsOption {
	return func(d *DocsClient) {
		d.apiBaseURL = strings.TrimSuffix(url, "/")
	}
}

// WithDocsLogger sets the logger.
func WithDocsLogger(logger *slog.Logger) DocsOption {
	return func(d *DocsClient) {
		d.logger = logger
	}
}

// NewDocsClient creates a document source adapter. An empty apiKey
// disables the credentialed tier.
func NewDocsClient(apiKey string, timeout time.Duration, opts ...DocsOption) *DocsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &DocsClient{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// A redirect from the export endpoint means denied
				// access; surface the redirect status.
				return http.ErrUseLastResponse
			},
		},
		baseURL:    "https://docs.google.com",
		apiBaseURL: "https://www.googleapis.com",
		apiKey:     apiKey,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FetchDocument implements DocumentFetcher.
func (d *DocsClient) FetchDocument(ctx context.Context, documentID string) (string, error) {
	text, directErr := d.fetchDirect(ctx, documentID)
	if directErr == nil {
		return text, nil
	}

	if d.apiKey == "" {
		return "", NewUnavailable(documentID, RemediationDocSharing, directErr)
	}

	text, apiErr := d.fetchViaAPI(ctx, documentID)
	if apiErr == nil {
		d.logger.Debug("Document fetched via credentialed API",
			slog.String("document", documentID))
		return text, nil
	}

	return "", NewUnavailable(documentID, RemediationDocSharing,
		fmt.Errorf("direct export: %v; credentialed export: %w", directErr, apiErr))
}

// fetchDirect attempts the unauthenticated plaintext export.
func (d *DocsClient) fetchDirect(ctx context.Context, documentID string) (string, error) {
	url := fmt.Sprintf("%s/document/d/%s/export?format=txt", d.baseURL, documentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return "", fmt.Errorf("export redirected (status %d): access denied", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("export returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExportSize))
	if err != nil {
		return "", fmt.Errorf("read export body: %w", err)
	}

	// A 200 carrying the sign-in page instead of the transcript is
	// still a denial. The page title names the wall we hit.
	if looksLikeHTML(body) {
		if title := htmlTitle(body); title != "" {
			return "", fmt.Errorf("export returned HTML page %q: access denied", title)
		}
		return "", fmt.Errorf("export returned an HTML page: access denied")
	}

	return string(body), nil
}

// fetchViaAPI attempts the credentialed Drive plaintext export.
func (d *DocsClient) fetchViaAPI(ctx context.Context, documentID string) (string, error) {
	url := fmt.Sprintf("%s/drive/v3/files/%s/export?mimeType=text/plain&key=%s",
		d.apiBaseURL, documentID, d.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("drive export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("drive export returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExportSize))
	if err != nil {
		return "", fmt.Errorf("read drive export body: %w", err)
	}

	return string(body), nil
}

// htmlTitle extracts the <title> of an HTML page, or "" when absent or
// unparseable.
func htmlTitle(body []byte) string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/churryboy/sheet-llm-chatbot/record"
)

// maxExportSize bounds a single CSV export body.
const maxExportSize = 20 * 1024 * 1024 // 20MB

// SheetsClient fetches spreadsheet tabs through the public CSV export
// endpoint. Every fetch is cache-busted so the result reflects the most
// recent edit; there is no retry, a single attempt per call.
type SheetsClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger

	// now is injectable for deterministic cache-bust parameters in tests.
	now func() time.Time
}

// SheetsOption configures a SheetsClient.
type SheetsOption func(*SheetsClient)

// WithSheetsHTTPClient sets a custom HTTP client.
func WithSheetsHTTPClient(c *http.Client) SheetsOption {
	return func(s *SheetsClient) {
		s.httpClient = c
	}
}

// WithSheetsBaseURL overrides the export endpoint, for tests.
func WithSheetsBaseURL(url string) SheetsOption {
	return func(s *SheetsClient) {
		s.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithSheetsLogger sets the logger.
func WithSheetsLogger(logger *slog.Logger) SheetsOption {
	return func(s *SheetsClient) {
		s.logger = logger
	}
}

// NewSheetsClient creates a tabular source adapter with the given fetch
// timeout. The timeout covers the whole export round trip and surfaces
// as an Unavailable error on expiry.
func NewSheetsClient(timeout time.Duration, opts ...SheetsOption) *SheetsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &SheetsClient{
		httpClient: &http.Client{
			Timeout: timeout,
			// A redirect from the export endpoint is a login page,
			// which means access is denied. Keep the redirect status
			// visible instead of following it.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: "https://docs.google.com",
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchTable implements TableFetcher over the CSV export endpoint.
func (s *SheetsClient) FetchTable(ctx context.Context, desc Descriptor) (*record.Dataset, error) {
	url := fmt.Sprintf("%s/spreadsheets/d/%s/export?format=csv&gid=%s&timestamp=%d",
		s.baseURL, desc.SpreadsheetID, desc.GID, s.now().Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewUnavailable(desc.DisplayName, RemediationSheetSharing, err)
	}
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewUnavailable(desc.DisplayName, RemediationSheetSharing,
			fmt.Errorf("export request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewUnavailable(desc.DisplayName, RemediationSheetSharing,
			fmt.Errorf("export returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExportSize))
	if err != nil {
		return nil, NewUnavailable(desc.DisplayName, RemediationSheetSharing,
			fmt.Errorf("read export body: %w", err))
	}

	// A private sheet can answer 200 with the HTML login page instead
	// of CSV. Treat that as denied access, not as data.
	if looksLikeHTML(body) {
		return nil, NewUnavailable(desc.DisplayName, RemediationSheetSharing,
			fmt.Errorf("export returned an HTML page instead of CSV"))
	}

	ds, err := parseCSV(body, desc.DisplayName)
	if err != nil {
		return nil, NewUnavailable(desc.DisplayName, RemediationSheetSharing, err)
	}

	s.logger.Debug("Fetched sheet",
		slog.String("sheet", desc.DisplayName),
		slog.Int("rows", ds.Len()),
		slog.Int("columns", len(ds.Headers)))

	return ds, nil
}

// parseCSV turns exported CSV text into a Dataset. The first row is the
// header row; wholly blank rows are skipped; every Record is stamped
// with the sheet name for provenance.
func parseCSV(data []byte, sheetName string) (*record.Dataset, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1 // survey exports have ragged rows

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return &record.Dataset{}, nil
	}

	headers := rows[0]
	ds := &record.Dataset{Headers: headers}

	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rec := make(record.Record, len(headers)+1)
		for i, h := range headers {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		rec[record.SheetNameField] = sheetName
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func looksLikeHTML(body []byte) bool {
	head := body
	if len(head) > 256 {
		head = head[:256]
	}
	trimmed := strings.TrimSpace(string(head))
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html")
}

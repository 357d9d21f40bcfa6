package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/churryboy/sheet-llm-chatbot/record"
)

// XLSXFetcher serves local .xlsx workbooks through the same table-fetch
// contract as the remote export, for offline fixtures and demo data.
// The Descriptor's GID selects by worksheet name; an empty GID reads
// the first worksheet.
type XLSXFetcher struct {
	// paths maps descriptor display names to workbook file paths.
	paths map[string]string
}

// NewXLSXFetcher creates a fetcher over the given name-to-path mapping.
func NewXLSXFetcher(paths map[string]string) *XLSXFetcher {
	return &XLSXFetcher{paths: paths}
}

// FetchTable implements TableFetcher over a local workbook.
func (x *XLSXFetcher) FetchTable(ctx context.Context, desc Descriptor) (*record.Dataset, error) {
	path, ok := x.paths[desc.DisplayName]
	if !ok {
		return nil, NewUnavailable(desc.DisplayName, "",
			fmt.Errorf("no local workbook configured for %q", desc.DisplayName))
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, NewUnavailable(desc.DisplayName, "",
			fmt.Errorf("open workbook %s: %w", path, err))
	}
	defer f.Close()

	sheet := desc.GID
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, NewUnavailable(desc.DisplayName, "",
			fmt.Errorf("read worksheet %q: %w", sheet, err))
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
				rec[h] = strings.TrimSpace(row[i])
			} else {
				rec[h] = ""
			}
		}
		rec[record.SheetNameField] = desc.DisplayName
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

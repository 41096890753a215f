package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/xuri/excelize/v2"
)

// Fetcher downloads the published sheet as CSV. Fetching is the only
// blocking I/O in the pipeline; a failure here aborts the run before any
// merge is attempted.
type Fetcher struct {
	client *resty.Client
	url    string
}

func NewFetcher(sheetURL string, timeout time.Duration) *Fetcher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	return &Fetcher{
		client: client,
		url:    sheetURL,
	}
}

// FetchGrid retrieves the CSV export and parses it into a raw cell grid.
func (f *Fetcher) FetchGrid(ctx context.Context) ([][]string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch sheet: unexpected status %d", resp.StatusCode())
	}
	return parseCSV(resp.String())
}

func parseCSV(text string) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1 // 行ごとの列数は揃っていない
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet csv: %w", err)
	}
	return rows, nil
}

// ReadXLSXGrid loads the same sheet from a local .xlsx export. The first
// worksheet is used and normalized to the identical grid shape, so the
// extractor does not care which transport delivered the payload.
func ReadXLSXGrid(path string) ([][]string, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no worksheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nkratastr/roborock-data-pipeline/internal/pipeline"
)

// tableHeaders maps each table to its header row.
var tableHeaders = map[string][]string{
	TableCleaningHistory: pipeline.CleaningHistoryHeaders,
	TableDeviceStatus:    pipeline.DeviceStatusHeaders,
	TableCleanSummary:    pipeline.CleanSummaryHeaders,
}

// SetupSpreadsheet creates a spreadsheet with the three pipeline tables and
// writes their header rows. It returns the new spreadsheet id; the caller is
// expected to persist it into configuration.
func (c *Client) SetupSpreadsheet(ctx context.Context, title string) (string, error) {
	payload := map[string]any{
		"properties": map[string]any{"title": title},
		"sheets": []any{
			map[string]any{"properties": map[string]any{"title": TableCleaningHistory}},
			map[string]any{"properties": map[string]any{"title": TableDeviceStatus}},
			map[string]any{"properties": map[string]any{"title": TableCleanSummary}},
		},
	}
	var created struct {
		SpreadsheetID string `json:"spreadsheetId"`
	}
	if err := c.postJSON(ctx, http.MethodPost, "/v4/spreadsheets", payload, &created); err != nil {
		return "", fmt.Errorf("create spreadsheet: %w", err)
	}
	if created.SpreadsheetID == "" {
		return "", fmt.Errorf("create spreadsheet: empty spreadsheet id in response")
	}

	c.spreadsheetID = created.SpreadsheetID
	for table, headers := range tableHeaders {
		if err := c.writeHeaders(ctx, table, headers); err != nil {
			return "", fmt.Errorf("write %s headers: %w", table, err)
		}
	}
	return created.SpreadsheetID, nil
}

func (c *Client) writeHeaders(ctx context.Context, table string, headers []string) error {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	rangeRef := url.PathEscape(fmt.Sprintf("%s!A1:%s1", table, columnLetter(len(headers))))
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?valueInputOption=RAW", c.spreadsheetID, rangeRef)
	return c.postJSON(ctx, http.MethodPut, path, map[string]any{"values": [][]any{row}}, nil)
}

func columnLetter(n int) string {
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}

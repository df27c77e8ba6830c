package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
)

const (
	defaultBaseURL    = "https://sheets.googleapis.com"
	spreadsheetsScope = "https://www.googleapis.com/auth/spreadsheets"
)

// Table names within the spreadsheet.
const (
	TableCleaningHistory = "Cleaning_History"
	TableDeviceStatus    = "Device_Status"
	TableCleanSummary    = "Clean_Summary"
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	BaseURL         string
}

// Client appends rows to a Google spreadsheet over the Sheets REST API.
type Client struct {
	baseURL       string
	spreadsheetID string
	httpClient    *http.Client
}

type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("sheets api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// NewClient builds a client authenticated as the configured service account.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(creds, spreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}
	httpClient := jwtCfg.Client(ctx)
	httpClient.Timeout = 30 * time.Second
	return NewClientWithHTTP(cfg, httpClient), nil
}

// NewClientWithHTTP builds a client on a caller-supplied HTTP client. Tests
// pair this with httptest servers via cfg.BaseURL.
func NewClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		spreadsheetID: cfg.SpreadsheetID,
		httpClient:    httpClient,
	}
}

// SpreadsheetID reports the spreadsheet this client writes to.
func (c *Client) SpreadsheetID() string {
	return c.spreadsheetID
}

// Append appends one row to the named table.
func (c *Client) Append(ctx context.Context, table string, row []any) error {
	return c.appendValues(ctx, table, [][]any{row})
}

func (c *Client) appendValues(ctx context.Context, table string, values [][]any) error {
	if c.spreadsheetID == "" {
		return fmt.Errorf("spreadsheet id not configured")
	}
	rangeRef := url.PathEscape(table + "!A:K")
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		c.spreadsheetID, rangeRef)
	return c.postJSON(ctx, http.MethodPost, path, map[string]any{"values": values}, nil)
}

func (c *Client) postJSON(ctx context.Context, method, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return HTTPStatusError{Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

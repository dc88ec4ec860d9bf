package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"finbot/internal/core"
	applog "finbot/internal/log"
	ports "finbot/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Expenses"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
}

// Ensure interface conformance
var _ ports.ExpenseExporter = (*Client)(nil)

// Config describes the target spreadsheet and the service account used to
// reach it. CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
}

// NewFromConfig creates a Sheets client authenticated as a service account.
func NewFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// New creates a client with explicit client options.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheetsLog(ctx).InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet", sheetName)
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		loc:           loc,
	}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		sheetsLog(ctx).InfoContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		sheetsLog(ctx).InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendExpenses appends one row per expense below the existing data of the
// sheet. Rows are written as entered so the sheet parses dates and numbers.
func (c *Client) AppendExpenses(ctx context.Context, uid int64, lines []core.ExpenseLine) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(lines) == 0 {
		return 0, nil
	}

	values := make([][]any, 0, len(lines))
	for _, l := range lines {
		values = append(values, toRow(uid, l, c.loc))
	}

	rng := fmt.Sprintf("%s!A:E", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	written := len(lines)
	if resp.Updates != nil && resp.Updates.UpdatedRows > 0 {
		written = int(resp.Updates.UpdatedRows)
	}
	sheetsLog(ctx).InfoContext(ctx, "Expenses appended to sheet",
		applog.FieldOperation, applog.OpAppend, applog.FieldRows, written, "sheet", c.sheetName)
	return written, nil
}

func toRow(uid int64, l core.ExpenseLine, loc *time.Location) []any {
	return []any{
		l.CreatedAt.In(loc).Format(ports.DateLayout),
		uid,
		l.CategoryLabel,
		l.Amount.Decimal().InexactFloat64(),
		l.ID,
	}
}

func sheetsLog(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentSheets)
}

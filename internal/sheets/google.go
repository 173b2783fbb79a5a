package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Value input and insert options sent with every write.
const (
	ValueInputRaw  = "RAW"
	InsertRowsMode = "INSERT_ROWS"
)

// GoogleBackend writes to one spreadsheet through the Sheets v4 API.
type GoogleBackend struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// NewGoogleBackend authenticates with a service-account credentials file.
// An empty credentialsFile falls back to Application Default Credentials.
// extra is applied last.
func NewGoogleBackend(ctx context.Context, spreadsheetID, credentialsFile, appName string, extra ...option.ClientOption) (*GoogleBackend, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("NewGoogleBackend: spreadsheet ID is required")
	}
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if appName != "" {
		opts = append(opts, option.WithUserAgent(appName))
	}
	opts = append(opts, extra...)

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGoogleBackend: create sheets service: %w", err)
	}
	return &GoogleBackend{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// Clear implements Backend.
func (b *GoogleBackend) Clear(ctx context.Context, sheet, rng string) error {
	_, err := b.svc.Spreadsheets.Values.
		Clear(b.spreadsheetID, A1(sheet, rng), &gsheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return &IOError{Op: "clear", Sheet: sheet, Range: rng, Err: err}
	}
	return nil
}

// Update implements Backend.
func (b *GoogleBackend) Update(ctx context.Context, sheet, rng string, rows [][]interface{}) error {
	_, err := b.svc.Spreadsheets.Values.
		Update(b.spreadsheetID, A1(sheet, rng), &gsheets.ValueRange{Values: rows}).
		ValueInputOption(ValueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return &IOError{Op: "update", Sheet: sheet, Range: rng, Err: err}
	}
	return nil
}

// Append implements Backend.
func (b *GoogleBackend) Append(ctx context.Context, sheet, rng string, rows [][]interface{}) (int64, error) {
	resp, err := b.svc.Spreadsheets.Values.
		Append(b.spreadsheetID, A1(sheet, rng), &gsheets.ValueRange{Values: rows}).
		ValueInputOption(ValueInputRaw).
		InsertDataOption(InsertRowsMode).
		Context(ctx).
		Do()
	if err != nil {
		return 0, &IOError{Op: "append", Sheet: sheet, Range: rng, Err: err}
	}
	if resp.Updates == nil {
		return 0, nil
	}
	return resp.Updates.UpdatedRows, nil
}

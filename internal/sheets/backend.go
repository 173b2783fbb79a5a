// Package sheets publishes normalized transactions to a spreadsheet by full
// replacement of a named sheet.
package sheets

import (
	"context"
	"fmt"
	"strings"
)

// Backend is the spreadsheet transport. Ranges are A1 notation without the
// sheet prefix; implementations combine them with sheet.
type Backend interface {
	Clear(ctx context.Context, sheet, rng string) error
	// Update overwrites rng with rows.
	Update(ctx context.Context, sheet, rng string, rows [][]interface{}) error
	// Append inserts rows after the last non-empty row of rng and returns the
	// number of rows the backend reports as written.
	Append(ctx context.Context, sheet, rng string, rows [][]interface{}) (int64, error)
}

// IOError reports a failed backend call.
type IOError struct {
	Op    string
	Sheet string
	Range string
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("sheets %s %s!%s: %v", e.Op, e.Sheet, e.Range, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// A1 joins a sheet name and a range, quoting the name when it contains
// anything other than letters and digits.
func A1(sheet, rng string) string {
	for _, r := range sheet {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
		}
	}
	return sheet + "!" + rng
}

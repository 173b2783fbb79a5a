package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionRecord is one normalized unbilled card transaction, ready to be
// written as a sheet row.
type TransactionRecord struct {
	Date        civil.Date      // always valid; unparseable input falls back to today
	Description string          // trimmed, as rendered on the bank page
	Amount      decimal.Decimal // sign as rendered by the bank, never inverted
	Category    string          // empty when the adapter does not categorize
}

// HasCategory reports whether a category label was assigned.
func (t TransactionRecord) HasCategory() bool {
	return t.Category != ""
}

// RawRow is the ordered cell text of one rendered table row. Cell count and
// ordering are institution specific.
type RawRow []string

// Cell returns the i-th cell or "" when the row is shorter.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// SheetTarget identifies the destination sheet. The column layout is fixed
// to SheetColumns.
type SheetTarget struct {
	SheetName string
}

// SheetColumns is the header row written to every target sheet.
var SheetColumns = []string{"Date", "Description", "Amount", "Category"}

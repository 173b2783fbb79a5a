// Package extract turns a DOM snapshot of a bank page into raw rows and
// parses those rows into transaction records, dropping the ones that fail.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/logger"
)

// ErrSkipRow marks a row that is intentionally not a transaction (too few
// cells, pending amount, rendering artifact).
var ErrSkipRow = errors.New("row skipped")

// ErrArtifact marks an empty row left behind by the page renderer. It is an
// ErrSkipRow that is only logged at debug level.
var ErrArtifact = fmt.Errorf("%w: rendering artifact", ErrSkipRow)

// Skip returns an ErrSkipRow carrying the reason.
func Skip(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSkipRow, fmt.Sprintf(format, args...))
}

// RowParser converts one raw row into a record in a bank's layout.
type RowParser interface {
	ParseRow(ctx context.Context, row domain.RawRow) (domain.TransactionRecord, error)
}

// RowParserFunc adapts a function to RowParser.
type RowParserFunc func(ctx context.Context, row domain.RawRow) (domain.TransactionRecord, error)

// ParseRow implements RowParser.
func (f RowParserFunc) ParseRow(ctx context.Context, row domain.RawRow) (domain.TransactionRecord, error) {
	return f(ctx, row)
}

// Result is the outcome of one extraction call.
type Result struct {
	Records []domain.TransactionRecord
	Skipped int
}

// Extract parses rows in order. Rows that fail are logged and dropped; the
// batch always completes, so len(Records) == len(rows) - Skipped.
func Extract(ctx context.Context, rows []domain.RawRow, parser RowParser) Result {
	log := logger.FromContext(ctx)

	res := Result{Records: make([]domain.TransactionRecord, 0, len(rows))}
	for i, row := range rows {
		rec, err := parseRow(ctx, parser, row)
		if err != nil {
			res.Skipped++
			switch {
			case errors.Is(err, ErrArtifact):
				log.Debug().Int("row", i).Msg("Skipping empty row")
			case errors.Is(err, ErrSkipRow):
				log.Warn().Int("row", i).Int("cells", len(row)).Str("reason", err.Error()).Msg("Skipping row")
			default:
				log.Error().Err(err).Int("row", i).Int("cells", len(row)).Msg("Error extracting transaction from row")
			}
			continue
		}

		log.Debug().
			Int("row", i).
			Str("date", rec.Date.String()).
			Str("description", rec.Description).
			Str("amount", rec.Amount.String()).
			Str("category", rec.Category).
			Msg("Extracted transaction")
		res.Records = append(res.Records, rec)
	}

	log.Info().
		Int("rows", len(rows)).
		Int("extracted", len(res.Records)).
		Int("skipped", res.Skipped).
		Msg("Extraction finished")
	return res
}

// parseRow shields the batch from a parser that panics on an unexpected row.
func parseRow(ctx context.Context, parser RowParser, row domain.RawRow) (rec domain.TransactionRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse row panicked: %v", r)
		}
	}()
	return parser.ParseRow(ctx, row)
}

// Rows reads a DOM snapshot and returns the text of every cellSelector child
// of every rowSelector match. Cell text is trimmed with inner whitespace
// collapsed, the way a browser renders it.
func Rows(html, rowSelector, cellSelector string) ([]domain.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("Rows: parse snapshot: %w", err)
	}

	var rows []domain.RawRow
	doc.Find(rowSelector).Each(func(_ int, s *goquery.Selection) {
		var row domain.RawRow
		s.ChildrenFiltered(cellSelector).Each(func(_ int, cell *goquery.Selection) {
			row = append(row, cellText(cell))
		})
		rows = append(rows, row)
	})
	return rows, nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

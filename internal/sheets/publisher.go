package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/dvloznov/unbilled-sync/internal/rowparse"
)

// Ranges covering the fixed four-column layout.
const (
	DataRange   = "A:D"
	HeaderRange = "A1:D1"
)

// Publisher replaces a sheet's contents with a batch of records.
type Publisher struct {
	backend Backend
}

// NewPublisher creates a Publisher writing through backend.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// Publish clears the target sheet, writes the header row and appends one row
// per record in order. The three calls are not atomic: a failure part way
// leaves the sheet cleared or header-only, and a retry must redo all three.
// An empty batch leaves a header-only sheet and makes no append call.
func (p *Publisher) Publish(ctx context.Context, target domain.SheetTarget, records []domain.TransactionRecord) error {
	log := logger.FromContext(ctx).With().Str("sheet", target.SheetName).Logger()
	sheet := target.SheetName

	if err := p.backend.Clear(ctx, sheet, DataRange); err != nil {
		return fmt.Errorf("Publish: %w", wrapIO("clear", sheet, DataRange, err))
	}
	log.Info().Str("range", A1(sheet, DataRange)).Msg("Cleared sheet")

	if err := p.backend.Update(ctx, sheet, HeaderRange, [][]interface{}{headerRow()}); err != nil {
		return fmt.Errorf("Publish: %w", wrapIO("update", sheet, HeaderRange, err))
	}

	if len(records) == 0 {
		log.Warn().Msg("No transactions to publish, sheet left with header only")
		return nil
	}

	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row(rec))
	}

	n, err := p.backend.Append(ctx, sheet, DataRange, rows)
	if err != nil {
		return fmt.Errorf("Publish: %w", wrapIO("append", sheet, DataRange, err))
	}
	log.Info().Int("records", len(records)).Int64("appended_rows", n).Msg("Published transactions")
	return nil
}

// Row renders one record as a sheet row. The amount is written as a number so
// the sheet can sum it.
func Row(rec domain.TransactionRecord) []interface{} {
	return []interface{}{
		rowparse.FormatDate(rec.Date),
		rec.Description,
		rec.Amount.InexactFloat64(),
		rec.Category,
	}
}

func headerRow() []interface{} {
	row := make([]interface{}, len(domain.SheetColumns))
	for i, c := range domain.SheetColumns {
		row[i] = c
	}
	return row
}

func wrapIO(op, sheet, rng string, err error) error {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Sheet: sheet, Range: rng, Err: err}
}

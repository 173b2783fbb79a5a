// Package rowparse turns raw cell text from bank pages into typed fields.
//
// Parsing is best effort: a malformed cell degrades to a safe default and a
// warning is logged, so one bad cell never aborts an extraction batch.
package rowparse

import (
	"context"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/shopspring/decimal"
)

// PendingMarker is rendered by bank sites for a date or amount that is not
// posted yet.
const PendingMarker = "PEND"

// DateLayout is the "D MMM YYYY" format used both on bank pages and in the
// published sheet, e.g. "5 Jan 2024".
const DateLayout = "2 Jan 2006"

var nonAmountChars = regexp.MustCompile(`[^0-9.\-]`)

// ParseDate parses a "D MMM YYYY" cell. PendingMarker and unparseable input
// both yield today; only the latter logs a warning.
func ParseDate(ctx context.Context, text string, today civil.Date) civil.Date {
	log := logger.FromContext(ctx)

	s := strings.TrimSpace(text)
	if s == PendingMarker {
		log.Info().Str("value", s).Msg("Pending transaction date replaced with today")
		return today
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		log.Warn().Err(err).Str("value", text).Msg("Unparseable transaction date, using today")
		return today
	}
	return civil.DateOf(t)
}

// ParseAmount keeps only digits, '.' and '-' and parses the remainder as a
// signed decimal. Unparseable input yields zero and logs a warning.
func ParseAmount(ctx context.Context, text string) decimal.Decimal {
	clean := nonAmountChars.ReplaceAllString(text, "")

	d, err := decimal.NewFromString(clean)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("value", text).
			Msg("Unparseable transaction amount, using 0")
		return decimal.Zero
	}
	return d
}

// FormatDate renders d in DateLayout. The output parses back to d.
func FormatDate(d civil.Date) string {
	return d.In(time.UTC).Format(DateLayout)
}

// Today returns the calendar date of now in its own location.
func Today(now time.Time) civil.Date {
	return civil.DateOf(now)
}

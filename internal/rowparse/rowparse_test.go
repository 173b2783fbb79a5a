package rowparse

import (
	"bytes"
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = civil.Date{Year: 2026, Month: time.October, Day: 17}

func quietContext() (context.Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logger.WithContext(context.Background(), logger.NewWithWriter(buf)), buf
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     civil.Date
		wantWarn bool
	}{
		{name: "single digit day", input: "5 Jan 2024", want: civil.Date{Year: 2024, Month: time.January, Day: 5}},
		{name: "two digit day", input: "23 Dec 2025", want: civil.Date{Year: 2025, Month: time.December, Day: 23}},
		{name: "zero padded day", input: "05 Feb 2024", want: civil.Date{Year: 2024, Month: time.February, Day: 5}},
		{name: "surrounding spaces", input: "  7 Mar 2024 ", want: civil.Date{Year: 2024, Month: time.March, Day: 7}},
		{name: "pending marker", input: "PEND", want: today},
		{name: "garbage", input: "bad", want: today, wantWarn: true},
		{name: "empty", input: "", want: today, wantWarn: true},
		{name: "iso format is not accepted", input: "2024-01-05", want: today, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, buf := quietContext()

			got := ParseDate(ctx, tt.input, today)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantWarn, bytes.Contains(buf.Bytes(), []byte(`"level":"warn"`)))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Rp 1,234.50", "1234.5"},
		{"Rp 50,000", "50000"},
		{"-75,000.00", "-75000"},
		{"IDR 12.5 CR", "12.5"},
		{"garbage", "0"},
		{"", "0"},
		{"PEND", "0"},
		{"1.2.3", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ctx, _ := quietContext()

			got := ParseAmount(ctx, tt.input)

			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
		})
	}
}

func TestParseAmount_LogsFallback(t *testing.T) {
	ctx, buf := quietContext()

	ParseAmount(ctx, "n/a")

	assert.Contains(t, buf.String(), "Unparseable transaction amount")
}

func TestFormatDate_RoundTrip(t *testing.T) {
	ctx, _ := quietContext()

	for _, in := range []string{"5 Jan 2024", "29 Feb 2024", "31 Dec 1999", "1 Oct 2026"} {
		parsed := ParseDate(ctx, in, today)
		formatted := FormatDate(parsed)

		require.Equal(t, in, formatted)
		assert.Equal(t, parsed, ParseDate(ctx, formatted, today))
	}
}

func TestAmountRoundTrip(t *testing.T) {
	ctx, _ := quietContext()

	for _, in := range []string{"1234.5", "-20000", "0.01"} {
		d := ParseAmount(ctx, in)
		assert.True(t, d.Equal(ParseAmount(ctx, d.String())), "round trip of %s", in)
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2026, time.October, 17, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, today, Today(now))
}

package sheets

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend keeps one in-memory grid per sheet and records the calls.
type memBackend struct {
	sheets map[string][][]interface{}
	calls  []string
	failOp string
}

func newMemBackend() *memBackend {
	return &memBackend{sheets: map[string][][]interface{}{}}
}

func (m *memBackend) fail(op string) error {
	m.calls = append(m.calls, op)
	if m.failOp == op {
		return errors.New("quota exceeded")
	}
	return nil
}

func (m *memBackend) Clear(_ context.Context, sheet, _ string) error {
	if err := m.fail("clear"); err != nil {
		return err
	}
	m.sheets[sheet] = nil
	return nil
}

func (m *memBackend) Update(_ context.Context, sheet, _ string, rows [][]interface{}) error {
	if err := m.fail("update"); err != nil {
		return err
	}
	grid := m.sheets[sheet]
	for i, r := range rows {
		if i < len(grid) {
			grid[i] = r
		} else {
			grid = append(grid, r)
		}
	}
	m.sheets[sheet] = grid
	return nil
}

func (m *memBackend) Append(_ context.Context, sheet, _ string, rows [][]interface{}) (int64, error) {
	if err := m.fail("append"); err != nil {
		return 0, err
	}
	m.sheets[sheet] = append(m.sheets[sheet], rows...)
	return int64(len(rows)), nil
}

func testContext() (context.Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return logger.WithContext(context.Background(), logger.NewWithWriter(buf)), buf
}

func sampleRecords() []domain.TransactionRecord {
	return []domain.TransactionRecord{
		{
			Date:        civil.Date{Year: 2024, Month: time.January, Day: 5},
			Description: "SBUX COFFEE",
			Amount:      decimal.NewFromInt(50000),
			Category:    "Starbucks",
		},
		{
			Date:        civil.Date{Year: 2024, Month: time.February, Day: 12},
			Description: "REFUND",
			Amount:      decimal.RequireFromString("-1234.5"),
		},
	}
}

func TestPublish(t *testing.T) {
	ctx, buf := testContext()
	backend := newMemBackend()
	backend.sheets["BCA"] = [][]interface{}{{"stale"}, {"stale"}, {"stale"}, {"stale"}}
	p := NewPublisher(backend)

	err := p.Publish(ctx, domain.SheetTarget{SheetName: "BCA"}, sampleRecords())

	require.NoError(t, err)
	assert.Equal(t, []string{"clear", "update", "append"}, backend.calls)
	assert.Equal(t, [][]interface{}{
		{"Date", "Description", "Amount", "Category"},
		{"5 Jan 2024", "SBUX COFFEE", float64(50000), "Starbucks"},
		{"12 Feb 2024", "REFUND", -1234.5, ""},
	}, backend.sheets["BCA"])
	assert.Contains(t, buf.String(), `"appended_rows":2`)
}

func TestPublish_Idempotent(t *testing.T) {
	ctx, _ := testContext()
	backend := newMemBackend()
	p := NewPublisher(backend)
	target := domain.SheetTarget{SheetName: "CIMB"}

	require.NoError(t, p.Publish(ctx, target, sampleRecords()))
	first := backend.sheets["CIMB"]
	require.NoError(t, p.Publish(ctx, target, sampleRecords()))

	assert.Equal(t, first, backend.sheets["CIMB"])
	assert.Len(t, backend.sheets["CIMB"], 3)
}

func TestPublish_Empty(t *testing.T) {
	ctx, buf := testContext()
	backend := newMemBackend()
	backend.sheets["BCA"] = [][]interface{}{{"stale"}}
	p := NewPublisher(backend)

	err := p.Publish(ctx, domain.SheetTarget{SheetName: "BCA"}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"clear", "update"}, backend.calls)
	assert.Equal(t, [][]interface{}{{"Date", "Description", "Amount", "Category"}}, backend.sheets["BCA"])
	assert.Contains(t, buf.String(), "No transactions to publish")
}

func TestPublish_Failures(t *testing.T) {
	tests := []struct {
		failOp    string
		wantCalls []string
		wantRange string
	}{
		{failOp: "clear", wantCalls: []string{"clear"}, wantRange: DataRange},
		{failOp: "update", wantCalls: []string{"clear", "update"}, wantRange: HeaderRange},
		{failOp: "append", wantCalls: []string{"clear", "update", "append"}, wantRange: DataRange},
	}

	for _, tt := range tests {
		t.Run(tt.failOp, func(t *testing.T) {
			ctx, _ := testContext()
			backend := newMemBackend()
			backend.failOp = tt.failOp
			p := NewPublisher(backend)

			err := p.Publish(ctx, domain.SheetTarget{SheetName: "BCA"}, sampleRecords())

			require.Error(t, err)
			var ioErr *IOError
			require.True(t, errors.As(err, &ioErr))
			assert.Equal(t, tt.failOp, ioErr.Op)
			assert.Equal(t, "BCA", ioErr.Sheet)
			assert.Equal(t, tt.wantRange, ioErr.Range)
			assert.EqualError(t, ioErr.Unwrap(), "quota exceeded")
			assert.Equal(t, tt.wantCalls, backend.calls)
		})
	}
}

func TestA1(t *testing.T) {
	assert.Equal(t, "BCA!A:D", A1("BCA", "A:D"))
	assert.Equal(t, "'Card Jan'!A1:D1", A1("Card Jan", "A1:D1"))
	assert.Equal(t, "'Bob''s'!A:D", A1("Bob's", "A:D"))
}

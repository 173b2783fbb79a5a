package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/categorize"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/pipeline"
	"github.com/dvloznov/unbilled-sync/internal/runs"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderResults(w io.Writer, results []*pipeline.Result) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Bank", "Sheet", "Run ID", "State", "Records", "Published", "Duration", "Error"})
	for _, r := range results {
		errMsg := ""
		if r.Err != nil {
			errMsg = runs.ErrorMessage(r.Err)
		}
		state := r.State.String()
		if r.State == pipeline.Failed {
			state = fmt.Sprintf("%s (in %s)", state, r.FailedIn)
		}
		t.AppendRow(table.Row{
			r.Bank,
			r.Sheet,
			r.RunID,
			state,
			len(r.Records),
			r.Published,
			r.Duration.Round(time.Millisecond),
			errMsg,
		})
	}
	t.Render()
}

func renderRecords(w io.Writer, records []domain.TransactionRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Description", "Amount", "Category"})
	for _, rec := range records {
		t.AppendRow(table.Row{rec.Date.String(), rec.Description, rec.Amount.String(), rec.Category})
	}
	t.AppendFooter(table.Row{"", "Total", len(records), ""})
	t.Render()
}

func renderRuns(w io.Writer, list []*runs.Run) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run ID", "Bank", "Sheet", "Status", "Started", "Finished", "Extracted", "Published", "Failed In", "Error"})
	for _, r := range list {
		finished := ""
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format(zerolog.TimeFieldFormat)
		}
		t.AppendRow(table.Row{
			r.RunID,
			r.Bank,
			r.Sheet,
			r.Status,
			r.StartedAt.Format(zerolog.TimeFieldFormat),
			finished,
			r.Extracted,
			r.Published,
			r.FailedState,
			r.Error,
		})
	}
	t.Render()
}

func renderRules(w io.Writer, rules []categorize.Rule) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Match", "Label"})
	for i, r := range rules {
		t.AppendRow(table.Row{i + 1, r.Substring, r.Label})
	}
	t.AppendFooter(table.Row{"", "otherwise", categorize.Fallback})
	t.Render()
}

package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/unbilled-sync/internal/runs"
)

// RunRow is one row of the run log table. Columns written by Finish are NULL
// while a run is still RUNNING.
type RunRow struct {
	RunID string              `bigquery:"run_id"` // REQUIRED
	Bank  string              `bigquery:"bank"`   // REQUIRED
	Sheet bigquery.NullString `bigquery:"sheet"`  // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	Extracted    bigquery.NullInt64  `bigquery:"extracted"`     // NULLABLE
	Published    bigquery.NullBool   `bigquery:"published"`     // NULLABLE
	FailedState  bigquery.NullString `bigquery:"failed_state"`  // NULLABLE
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE
}

func (r *RunRow) toRun() *runs.Run {
	run := &runs.Run{
		RunID:       r.RunID,
		Bank:        r.Bank,
		Sheet:       r.Sheet.StringVal,
		Status:      runs.Status(r.Status),
		StartedAt:   r.StartedTS,
		Extracted:   int(r.Extracted.Int64),
		Published:   r.Published.Bool,
		FailedState: r.FailedState.StringVal,
		Error:       r.ErrorMessage.StringVal,
	}
	if r.FinishedTS.Valid {
		finished := r.FinishedTS.Timestamp
		run.FinishedAt = &finished
	}
	return run
}

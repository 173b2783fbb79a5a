// Package bigquery stores the run log in a BigQuery table using DML
// statements, so rows are visible to queries as soon as a call returns.
package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/dvloznov/unbilled-sync/internal/runs"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	DefaultDataset = "unbilled"
	DefaultTable   = "runs"
)

// Store implements runs.Store on a BigQuery table.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
	now       func() time.Time
}

// NewStore creates a BigQuery client for projectID. Empty dataset and table
// names fall back to the defaults.
func NewStore(ctx context.Context, projectID, datasetID, tableID string, opts ...option.ClientOption) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewStore: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewStore: bigquery client: %w", err)
	}
	return NewStoreWithClient(client, projectID, datasetID, tableID), nil
}

// NewStoreWithClient wraps an existing client. The caller keeps ownership of
// client only if it never calls Close.
func NewStoreWithClient(client *bigquery.Client, projectID, datasetID, tableID string) *Store {
	if datasetID == "" {
		datasetID = DefaultDataset
	}
	if tableID == "" {
		tableID = DefaultTable
	}
	return &Store{client: client, projectID: projectID, datasetID: datasetID, tableID: tableID, now: time.Now}
}

// Close releases the BigQuery client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) table() string {
	return fmt.Sprintf("`%s.%s.%s`", s.projectID, s.datasetID, s.tableID)
}

// EnsureTable creates the run table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	q := s.client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id        STRING NOT NULL,
			bank          STRING NOT NULL,
			sheet         STRING,
			started_ts    TIMESTAMP NOT NULL,
			finished_ts   TIMESTAMP,
			status        STRING NOT NULL,
			extracted     INT64,
			published     BOOL,
			failed_state  STRING,
			error_message STRING
		)
	`, s.table()))

	if err := s.exec(ctx, q); err != nil {
		return fmt.Errorf("EnsureTable: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("table", s.table()).Msg("Run log table ready")
	return nil
}

// Start implements runs.Store by inserting a RUNNING row.
func (s *Store) Start(ctx context.Context, bank, sheet string) (string, error) {
	runID := runs.NewRunID()

	q := s.client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			bank,
			sheet,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@bank,
			@sheet,
			@started_ts,
			@status
		)
	`, s.table()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "bank", Value: bank},
		{Name: "sheet", Value: sheet},
		{Name: "started_ts", Value: s.now()},
		{Name: "status", Value: string(runs.StatusRunning)},
	}

	if err := s.exec(ctx, q); err != nil {
		return "", fmt.Errorf("Start: %w", err)
	}
	return runID, nil
}

// Finish implements runs.Store by updating the run's row.
func (s *Store) Finish(ctx context.Context, runID string, out runs.Outcome) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    extracted = @extracted,
		    published = @published,
		    failed_state = @failed_state,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, s.table()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(out.Status)},
		{Name: "finished_ts", Value: s.now()},
		{Name: "extracted", Value: int64(out.Extracted)},
		{Name: "published", Value: out.Published},
		{Name: "failed_state", Value: out.FailedState},
		{Name: "error_message", Value: runs.ErrorMessage(out.Err)},
		{Name: "run_id", Value: runID},
	}

	if err := s.exec(ctx, q); err != nil {
		return fmt.Errorf("Finish: %w", err)
	}
	return nil
}

// List implements runs.Store.
func (s *Store) List(ctx context.Context, filter runs.Filter) ([]*runs.Run, error) {
	sql, params := s.listQuery(filter)
	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: reading query: %w", err)
	}

	result := []*runs.Run{}
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iterating: %w", err)
		}
		result = append(result, row.toRun())
	}
	return result, nil
}

func (s *Store) listQuery(filter runs.Filter) (string, []bigquery.QueryParameter) {
	var (
		where  []string
		params []bigquery.QueryParameter
	)
	if filter.Bank != "" {
		where = append(where, "bank = @bank")
		params = append(params, bigquery.QueryParameter{Name: "bank", Value: filter.Bank})
	}
	if filter.Status != "" {
		where = append(where, "status = @status")
		params = append(params, bigquery.QueryParameter{Name: "status", Value: string(filter.Status)})
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
		SELECT
			run_id,
			bank,
			sheet,
			started_ts,
			finished_ts,
			status,
			extracted,
			published,
			failed_state,
			error_message
		FROM %s`, s.table())
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE " + strings.Join(where, " AND "))
	}
	b.WriteString("\n\t\tORDER BY started_ts DESC")
	if filter.Limit > 0 {
		b.WriteString("\n\t\tLIMIT @limit")
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: int64(filter.Limit)})
	}
	return b.String(), params
}

func (s *Store) exec(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// Ensure Store implements runs.Store interface.
var _ runs.Store = (*Store)(nil)

package bigquery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/unbilled-sync/internal/runs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewStoreWithClient_Defaults(t *testing.T) {
	s := NewStoreWithClient(nil, "proj", "", "")

	assert.Equal(t, "`proj.unbilled.runs`", s.table())

	s = NewStoreWithClient(nil, "proj", "audit", "bank_runs")
	assert.Equal(t, "`proj.audit.bank_runs`", s.table())
}

func TestListQuery(t *testing.T) {
	s := NewStoreWithClient(nil, "proj", "", "")

	tests := []struct {
		name       string
		filter     runs.Filter
		wantWhere  string
		wantLimit  bool
		wantParams []string
	}{
		{name: "no filter"},
		{
			name:       "bank",
			filter:     runs.Filter{Bank: "BCA"},
			wantWhere:  "WHERE bank = @bank",
			wantParams: []string{"bank"},
		},
		{
			name:       "bank and status with limit",
			filter:     runs.Filter{Bank: "CIMB", Status: runs.StatusFailed, Limit: 5},
			wantWhere:  "WHERE bank = @bank AND status = @status",
			wantLimit:  true,
			wantParams: []string{"bank", "status", "limit"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := s.listQuery(tt.filter)

			assert.Contains(t, sql, "FROM `proj.unbilled.runs`")
			assert.Contains(t, sql, "ORDER BY started_ts DESC")
			if tt.wantWhere == "" {
				assert.NotContains(t, sql, "WHERE")
			} else {
				assert.Contains(t, sql, tt.wantWhere)
			}
			assert.Equal(t, tt.wantLimit, strings.Contains(sql, "LIMIT @limit"))

			var names []string
			for _, p := range params {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.wantParams, names)
		})
	}
}

func TestRunRow_ToRun(t *testing.T) {
	started := time.Date(2024, time.January, 5, 8, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)

	row := RunRow{
		RunID:        "id-1",
		Bank:         "BCA",
		Sheet:        bigquery.NullString{StringVal: "BCA", Valid: true},
		StartedTS:    started,
		FinishedTS:   bigquery.NullTimestamp{Timestamp: finished, Valid: true},
		Status:       "FAILED",
		Extracted:    bigquery.NullInt64{Int64: 4, Valid: true},
		Published:    bigquery.NullBool{Bool: false, Valid: true},
		FailedState:  bigquery.NullString{StringVal: "Extracted", Valid: true},
		ErrorMessage: bigquery.NullString{StringVal: "publish failed", Valid: true},
	}

	run := row.toRun()

	assert.Equal(t, runs.StatusFailed, run.Status)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, finished, *run.FinishedAt)
	assert.Equal(t, 4, run.Extracted)
	assert.Equal(t, "Extracted", run.FailedState)
	assert.Equal(t, "publish failed", run.Error)

	running := RunRow{RunID: "id-2", Bank: "CIMB", StartedTS: started, Status: "RUNNING"}
	assert.Nil(t, running.toRun().FinishedAt)
	assert.Zero(t, running.toRun().Extracted)
	assert.Empty(t, running.toRun().FailedState)
	assert.Empty(t, running.toRun().Error)
}

// queryResponse is a completed jobs.query reply with one RUNNING row whose
// Finish-only columns are NULL.
const queryResponse = `{
  "kind": "bigquery#queryResponse",
  "jobComplete": true,
  "jobReference": {"projectId": "proj", "jobId": "job-1", "location": "US"},
  "totalRows": "1",
  "schema": {"fields": [
    {"name": "run_id", "type": "STRING", "mode": "REQUIRED"},
    {"name": "bank", "type": "STRING", "mode": "REQUIRED"},
    {"name": "sheet", "type": "STRING", "mode": "NULLABLE"},
    {"name": "started_ts", "type": "TIMESTAMP", "mode": "REQUIRED"},
    {"name": "finished_ts", "type": "TIMESTAMP", "mode": "NULLABLE"},
    {"name": "status", "type": "STRING", "mode": "REQUIRED"},
    {"name": "extracted", "type": "INTEGER", "mode": "NULLABLE"},
    {"name": "published", "type": "BOOLEAN", "mode": "NULLABLE"},
    {"name": "failed_state", "type": "STRING", "mode": "NULLABLE"},
    {"name": "error_message", "type": "STRING", "mode": "NULLABLE"}
  ]},
  "rows": [{"f": [
    {"v": "id-1"},
    {"v": "BCA"},
    {"v": "BCA"},
    {"v": "1704441600000000"},
    {"v": null},
    {"v": "RUNNING"},
    {"v": null},
    {"v": null},
    {"v": null},
    {"v": null}
  ]}]
}`

func TestStore_List_RunningRowWithNulls(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/queries") {
			http.Error(w, `{"error":{"code":404,"message":"unexpected call"}}`, http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(queryResponse))
	}))
	defer srv.Close()

	ctx := context.Background()
	store, err := NewStore(ctx, "proj", "", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	defer store.Close()

	list, err := store.List(ctx, runs.Filter{Status: runs.StatusRunning})
	require.NoError(t, err)
	require.Len(t, list, 1)

	run := list[0]
	assert.Equal(t, "id-1", run.RunID)
	assert.Equal(t, "BCA", run.Sheet)
	assert.Equal(t, runs.StatusRunning, run.Status)
	assert.Equal(t, time.Date(2024, time.January, 5, 8, 0, 0, 0, time.UTC), run.StartedAt.UTC())
	assert.Nil(t, run.FinishedAt)
	assert.Zero(t, run.Extracted)
	assert.False(t, run.Published)
	assert.Empty(t, run.FailedState)
	assert.Empty(t, run.Error)

	require.NotNil(t, body)
	assert.Contains(t, body["query"], "status = @status")
}

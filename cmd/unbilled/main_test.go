package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/unbilled-sync/internal/categorize"
	"github.com/dvloznov/unbilled-sync/internal/config"
	"github.com/dvloznov/unbilled-sync/internal/domain"
	"github.com/dvloznov/unbilled-sync/internal/pipeline"
	"github.com/dvloznov/unbilled-sync/internal/runs"
	"github.com/dvloznov/unbilled-sync/internal/runs/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
banks:
  bca:
    enabled: true
    url: https://bca.example.test/login
    username: alice
    password: s3cret
    sheet_name: BCA Unbilled
  cimb:
    enabled: false
categories:
  extra_rules:
    - match: grab
      label: Transport
`

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unbilled.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	c, err := config.Load(path, nil)
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	return c
}

func TestBuildJobs(t *testing.T) {
	c := loadTestConfig(t)

	t.Run("enabled banks by default", func(t *testing.T) {
		jobs, err := buildJobs(c, c.Categorizer(), nil)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "BCA", jobs[0].Adapter.Name())
		assert.Equal(t, "BCA Unbilled", jobs[0].Target.SheetName)
	})

	t.Run("named bank is case insensitive", func(t *testing.T) {
		jobs, err := buildJobs(c, c.Categorizer(), []string{"BCA"})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
	})

	t.Run("disabled bank", func(t *testing.T) {
		_, err := buildJobs(c, c.Categorizer(), []string{"cimb"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})

	t.Run("unknown bank", func(t *testing.T) {
		_, err := buildJobs(c, c.Categorizer(), []string{"hsbc"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("nothing enabled", func(t *testing.T) {
		empty := &config.Config{}
		_, err := buildJobs(empty, categorize.New(), nil)
		require.Error(t, err)
	})
}

func TestParseRunsFilter(t *testing.T) {
	f, err := parseRunsFilter(" bca ", "failed", 5)
	require.NoError(t, err)
	assert.Equal(t, runs.Filter{Bank: "BCA", Status: runs.StatusFailed, Limit: 5}, f)

	f, err = parseRunsFilter("", "", 0)
	require.NoError(t, err)
	assert.Equal(t, runs.Filter{}, f)

	_, err = parseRunsFilter("", "done", 5)
	assert.Error(t, err)

	_, err = parseRunsFilter("", "", -1)
	assert.Error(t, err)
}

func TestRenderResults(t *testing.T) {
	var buf bytes.Buffer
	renderResults(&buf, []*pipeline.Result{
		{
			Bank:      "BCA",
			Sheet:     "BCA",
			RunID:     "run-abc",
			State:     pipeline.Closed,
			Records:   make([]domain.TransactionRecord, 3),
			Published: true,
			Duration:  1500 * time.Millisecond,
		},
		{
			Bank:     "CIMB",
			Sheet:    "CIMB",
			State:    pipeline.Failed,
			FailedIn: pipeline.LoggedIn,
			Err:      errors.New("element not found"),
		},
	})

	out := buf.String()
	assert.Contains(t, out, "BCA")
	assert.Contains(t, out, "run-abc")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "element not found")
	assert.Contains(t, out, "(in "+pipeline.LoggedIn.String()+")")
}

func TestRenderRecords(t *testing.T) {
	var buf bytes.Buffer
	renderRecords(&buf, []domain.TransactionRecord{{
		Date:        civil.Date{Year: 2024, Month: time.January, Day: 5},
		Description: "SBUX GRAND INDONESIA",
		Amount:      decimal.RequireFromString("55000"),
		Category:    "Starbucks",
	}})

	out := buf.String()
	assert.Contains(t, out, "2024-01-05")
	assert.Contains(t, out, "SBUX GRAND INDONESIA")
	assert.Contains(t, out, "55000")
	assert.Contains(t, out, "Starbucks")
}

func TestCategorizeCommand(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"categorize", "SBUX", "PLAZA"}, "Starbucks"},
		{[]string{"categorize", "maison", "kayser"}, "Bread"},
		{[]string{"categorize", "unknown merchant"}, categorize.Fallback},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args[1:], " "), func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)
			require.NoError(t, rootCmd.Execute())
			assert.Equal(t, tt.want, strings.TrimSpace(out.String()))
		})
	}
}

func TestAppRecentRuns(t *testing.T) {
	ctx := context.Background()

	empty := &app{}
	recorded, err := empty.recentRuns(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, recorded)

	store := inmemory.NewStore()
	first, err := store.Start(ctx, "BCA", "BCA")
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, first, runs.Outcome{Status: runs.StatusSucceeded, Extracted: 2, Published: true}))
	second, err := store.Start(ctx, "CIMB", "CIMB")
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, second, runs.Outcome{Status: runs.StatusFailed, FailedState: "LoggedIn", Err: errors.New("menu not found")}))

	a := &app{runLog: store}
	recorded, err = a.recentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recorded, 2)

	var buf bytes.Buffer
	renderRuns(&buf, recorded)
	out := buf.String()
	assert.Contains(t, out, first)
	assert.Contains(t, out, second)
	assert.Contains(t, out, "menu not found")
	assert.Contains(t, out, string(runs.StatusSucceeded))
}

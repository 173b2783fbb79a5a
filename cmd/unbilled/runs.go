package main

import (
	"fmt"
	"strings"

	"github.com/dvloznov/unbilled-sync/internal/runs"
	"github.com/spf13/cobra"
)

var runsFilter struct {
	bank   string
	status string
	limit  int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded bank runs from the BigQuery run log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := parseRunsFilter(runsFilter.bank, runsFilter.status, runsFilter.limit)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openBigQueryStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(ctx, filter)
		if err != nil {
			return err
		}
		renderRuns(cmd.OutOrStdout(), list)
		return nil
	},
}

func parseRunsFilter(bank, status string, limit int) (runs.Filter, error) {
	f := runs.Filter{Bank: strings.ToUpper(strings.TrimSpace(bank)), Limit: limit}
	switch s := runs.Status(strings.ToUpper(strings.TrimSpace(status))); s {
	case "":
	case runs.StatusRunning, runs.StatusSucceeded, runs.StatusFailed:
		f.Status = s
	default:
		return runs.Filter{}, fmt.Errorf("unknown status %q", status)
	}
	if limit < 0 {
		return runs.Filter{}, fmt.Errorf("limit must not be negative, got %d", limit)
	}
	return f, nil
}

func init() {
	runsCmd.Flags().StringVar(&runsFilter.bank, "bank", "", "only runs for this bank")
	runsCmd.Flags().StringVar(&runsFilter.status, "status", "", "only runs with this status: running, succeeded or failed")
	runsCmd.Flags().IntVar(&runsFilter.limit, "limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

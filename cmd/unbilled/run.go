package main

import (
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/spf13/cobra"
)

var showRunLog bool

var runCmd = &cobra.Command{
	Use:   "run [bank...]",
	Short: "Extract unbilled transactions and replace each bank's sheet",
	Long: `Runs login, navigation, extraction and publishing for each named bank,
or for every enabled bank when none is named. A failed bank does not stop the
next one; a browser that cannot be started stops the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.FromContext(ctx)

		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close run log")
			}
		}()

		jobs, err := buildJobs(cfg, a.categorizer, args)
		if err != nil {
			return err
		}

		results, runErr := a.orchestrator.RunAll(ctx, jobs)
		renderResults(cmd.OutOrStdout(), results)

		if showRunLog {
			recorded, err := a.recentRuns(ctx, len(results))
			if err != nil {
				log.Warn().Err(err).Msg("Failed to read run log")
			} else if recorded != nil {
				renderRuns(cmd.OutOrStdout(), recorded)
			}
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().String("spreadsheet-id", "", "target Google Sheets spreadsheet ID")
	runCmd.Flags().Bool("publish-empty", false, "clear the sheet and write the header when nothing was extracted")
	runCmd.Flags().BoolVar(&showRunLog, "show-run-log", false, "print the run log entries recorded by this run")
	rootCmd.AddCommand(runCmd)
}

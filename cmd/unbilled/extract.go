package main

import (
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <bank>",
	Short: "Extract and print one bank's unbilled transactions without publishing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := buildJobs(cfg, a.categorizer, args)
		if err != nil {
			return err
		}

		res, err := a.orchestrator.Run(ctx, jobs[0])
		renderRecords(cmd.OutOrStdout(), res.Records)
		if err != nil && res.Screenshot != "" {
			cmd.PrintErrf("Screenshot: %s\n", res.Screenshot)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

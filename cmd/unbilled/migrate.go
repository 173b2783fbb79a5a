package main

import (
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the BigQuery run log table if it does not exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openBigQueryStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.EnsureTable(ctx); err != nil {
			return err
		}
		log := logger.FromContext(ctx)
		log.Info().Msg("Run log table is ready")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// Command unbilled logs into each configured bank, reads the unbilled credit
// card transactions and replaces the bank's Google Sheet with them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/unbilled-sync/internal/config"
	"github.com/dvloznov/unbilled-sync/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "unbilled",
	Short:         "Sync unbilled credit card transactions from bank websites to Google Sheets",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration:\n%w", err)
		}

		log, err := logger.Configure(os.Stderr, c.Logging.Level, c.Logging.Format)
		if err != nil {
			return err
		}
		cmd.SetContext(logger.WithContext(cmd.Context(), log))
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./unbilled.yaml)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	pf.String("browser", "", "browser to drive: chrome, chromium or edge")
	pf.Bool("headless", true, "run the browser without a window")
	pf.String("screenshot-dir", "", "directory for failure screenshots")
	pf.String("run-log", "", "run log backend: none, memory or bigquery")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

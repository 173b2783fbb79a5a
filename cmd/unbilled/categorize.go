package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listRules bool

var categorizeCmd = &cobra.Command{
	Use:   "categorize [description...]",
	Short: "Show the category a transaction description maps to",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cfg.Categorizer()
		if listRules {
			renderRules(cmd.OutOrStdout(), c.Rules())
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("categorize: a description or --rules is required")
		}
		fmt.Fprintln(cmd.OutOrStdout(), c.Categorize(strings.Join(args, " ")))
		return nil
	},
}

func init() {
	categorizeCmd.Flags().BoolVar(&listRules, "rules", false, "list the active rules in match order")
	rootCmd.AddCommand(categorizeCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sparkrt/scenarios"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the bundled demo scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, sc := range scenarios.All() {
			fmt.Fprintln(cmd.OutOrStdout(), sc.Name)
		}
		return nil
	},
}

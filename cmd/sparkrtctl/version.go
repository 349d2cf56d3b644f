package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags, mirroring the teacher's own
// linker-injected version string; it defaults to "dev" for local builds.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show sparkrtctl's build version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "sparkrtctl %s\n", version)
		return nil
	},
}

// Command sparkrtctl runs the bundled kernel demo scenarios against a live
// sparkrt.Kernel and prints a pass/fail summary, optionally with a colored
// scheduler trace. It is host-side tooling external to the kernel core,
// analogous to the teacher's own cmd/surge front end.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sparkrtctl",
	Short: "Run and trace sparkrt kernel demo scenarios",
	Long:  `sparkrtctl drives the sparkrt kernel through its bundled demonstration scenarios and reports pass/fail.`,
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a sparkrtctl.toml config file")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored trace output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sparkrt/scenarios"
	"sparkrt/trace"
)

var runTraceFlag bool

func init() {
	runCmd.Flags().BoolVar(&runTraceFlag, "trace", false, "print a colored scheduler trace while the scenario runs")
}

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run one or more bundled demo scenarios",
	Long: `Run executes the named scenarios (or all of them, if none are given)
against a fresh kernel instance each, and prints a pass/fail line per
scenario.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		noColor, _ := cmd.Flags().GetBool("no-color")

		cc, err := loadCtlConfig(configPath)
		if err != nil {
			return err
		}
		if configPath != "" {
			kc := cc.kernelConfig()
			fmt.Fprintf(cmd.OutOrStdout(), "config: tick=%dHz stacks=%d/%d/%d max_threads=%d stats=%v\n",
				kc.TickHz, kc.MinStackBytes, kc.DefaultStackBytes, kc.MainStackBytes, kc.MaxThreads, kc.EnableStats)
		}

		all := scenarios.All()
		selected, err := selectScenarios(all, args)
		if err != nil {
			return err
		}

		if runTraceFlag {
			tp := newTracePrinter(cmd.OutOrStdout(), !noColor)
			trace.SetSink(tp.sink)
			defer trace.SetSink(nil)
		}

		pass := color.New(color.FgGreen, color.Bold)
		fail := color.New(color.FgRed, color.Bold)
		if noColor {
			pass.DisableColor()
			fail.DisableColor()
		}

		failed := 0
		for _, sc := range selected {
			report := sc.Run(context.Background())
			marker := pass
			label := "PASS"
			if !report.Passed {
				marker = fail
				label = "FAIL"
				failed++
			}
			marker.Fprintf(cmd.OutOrStdout(), "%-22s %s", sc.Name, label)
			fmt.Fprintf(cmd.OutOrStdout(), "  (%s, %s)\n", report.Elapsed, report.Detail)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(selected))
		}
		return nil
	},
}

func selectScenarios(all []scenarios.Scenario, names []string) ([]scenarios.Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]scenarios.Scenario, len(all))
	for _, sc := range all {
		byName[sc.Name] = sc
	}
	out := make([]scenarios.Scenario, 0, len(names))
	for _, n := range names {
		sc, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (see %q for the list)", n, os.Args[0]+" list")
		}
		out = append(out, sc)
	}
	return out, nil
}

package scenarios_test

import (
	"context"
	"testing"
	"time"

	"sparkrt/scenarios"
)

func TestAllScenariosPass(t *testing.T) {
	for _, sc := range scenarios.All() {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			report := sc.Run(ctx)
			if !report.Passed {
				t.Fatalf("%s failed: %s", report.Name, report.Detail)
			}
		})
	}
}

package reporting_test

import (
	"testing"

	"github.com/kbenson/ride-harness/pkg/reporting"
)

func TestReportFilename(t *testing.T) {
	tests := []struct {
		name   string
		report *reporting.TrialReport
		want   string
	}{
		{
			name: "with heuristic",
			report: &reporting.TrialReport{
				NGenerators:           3,
				ComparisonMode:        "none",
				ErrorRate:             0.05,
				TreeChoosingHeuristic: "max-overlap",
			},
			want: "results_3trees_none_err0.05_max-overlap.json",
		},
		{
			name: "no heuristic falls back to none",
			report: &reporting.TrialReport{
				NGenerators:    0,
				ComparisonMode: "unicast",
				ErrorRate:      0,
			},
			want: "results_0trees_unicast_err0_none.json",
		},
		{
			name: "trailing zeros trimmed",
			report: &reporting.TrialReport{
				NGenerators:           2,
				ComparisonMode:        "oracle",
				ErrorRate:             0.100,
				TreeChoosingHeuristic: "random",
			},
			want: "results_2trees_oracle_err0.1_random.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reporting.ReportFilename(tt.report)
			if got != tt.want {
				t.Errorf("ReportFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

package reporting_test

import (
	"fmt"
	"os"
	"time"

	"github.com/kbenson/ride-harness/pkg/reporting"
)

// Example demonstrates the reporting package usage
func Example() {
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelInfo,
		Format: reporting.LogFormatText,
		Output: os.Stdout,
	})

	logger.Info("trial starting")
	logger.Info("publisher launched", "host", "h0-0", "ip", "10.131.0.10")

	storage, err := reporting.NewStorage("./test-reports", 10, logger)
	if err != nil {
		fmt.Printf("Failed to create storage: %v\n", err)
		return
	}
	defer os.RemoveAll("./test-reports")

	report := &reporting.TrialReport{
		TrialID:   "trial-12345",
		StartTime: time.Now().Add(-5 * time.Minute),
		EndTime:   time.Now(),
		Duration:  "5m0s",
		Status:    reporting.StatusCompleted,
		Success:   true,

		OutputsDir: "./outputs/trial-12345",
		LogsDir:    "./logs/trial-12345",

		QuakeStartTime: time.Now().Add(-3 * time.Minute),
		DataPathChanges: []reporting.ChangeRecord{
			{Gateway: "a1-a2", Up: false, At: time.Now().Add(-4 * time.Minute)},
			{Gateway: "a1-a2", Up: true, At: time.Now().Add(-1 * time.Minute)},
		},
		Publishers:  map[string]string{"10.131.0.10": "h0-0"},
		Subscribers: map[string]string{"10.131.0.11": "h0-1"},

		TreeChoosingHeuristic: "max-overlap",
		ComparisonMode:        "none",
		NGenerators:           2,
		GeneratorBwMbps:       10,

		OracleEdgeSubs: 0.95,
		OracleEdgePubs: 1.0,
	}

	path, err := storage.SaveReport(report)
	if err != nil {
		fmt.Printf("Failed to save report: %v\n", err)
		return
	}
	fmt.Printf("Report saved successfully\n")

	summaries, err := storage.ListReports()
	if err != nil {
		fmt.Printf("Failed to list reports: %v\n", err)
		return
	}
	fmt.Printf("Found %d report(s)\n", len(summaries))
	for _, summary := range summaries {
		fmt.Printf("  %s: %s\n", summary.TrialID, summary.Status)
	}

	loadedReport, err := storage.LoadReport(path)
	if err != nil {
		fmt.Printf("Failed to load report: %v\n", err)
		return
	}
	fmt.Printf("Loaded report for trial: %s\n", loadedReport.TrialID)

	formatter := reporting.NewFormatter(logger)

	textPath := "./test-reports/report.txt"
	if err := formatter.GenerateReport(report, reporting.ReportFormatText, textPath); err != nil {
		fmt.Printf("Failed to generate text report: %v\n", err)
		return
	}
	fmt.Printf("Text report generated\n")

	htmlPath := "./test-reports/report.html"
	if err := formatter.GenerateReport(report, reporting.ReportFormatHTML, htmlPath); err != nil {
		fmt.Printf("Failed to generate HTML report: %v\n", err)
		return
	}
	fmt.Printf("HTML report generated\n")

	// Output will vary due to timestamps, so we don't include it
}

package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReportFormat represents the report output format
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter generates formatted reports from trial data
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{
		logger: logger,
	}
}

// GenerateReport generates a report in the specified format
func (f *Formatter) GenerateReport(report *TrialReport, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, outputPath)
	case ReportFormatText:
		return f.generateTextReport(report, outputPath)
	case ReportFormatJSON:
		return fmt.Errorf("JSON format is automatically saved by storage")
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// generateHTMLReport generates an HTML report
func (f *Formatter) generateHTMLReport(report *TrialReport, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"statusClass": func(passed bool) string {
			if passed {
				return "pass"
			}
			return "fail"
		},
		"statusIcon": func(passed bool) string {
			if passed {
				return "✅"
			}
			return "❌"
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}

	f.logger.Info("HTML report generated", "path", outputPath)
	return nil
}

// generateTextReport generates a plain text report
func (f *Formatter) generateTextReport(report *TrialReport, outputPath string) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   TRIAL REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	status := "PASSED"
	if !report.Success {
		status = "FAILED"
	}

	buf.WriteString("TRIAL SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Status:       %s\n", status))
	buf.WriteString(fmt.Sprintf("Trial ID:     %s\n", report.TrialID))
	buf.WriteString(fmt.Sprintf("Start Time:   %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:     %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:     %s\n", report.Duration))
	if report.Message != "" {
		buf.WriteString(fmt.Sprintf("Message:      %s\n", report.Message))
	}
	buf.WriteString(fmt.Sprintf("Tree Algo:    %s\n", report.TreeConstructionAlgorithm))
	buf.WriteString(fmt.Sprintf("Heuristic:    %s\n", report.TreeChoosingHeuristic))
	buf.WriteString(fmt.Sprintf("Comparison:   %s\n", report.ComparisonMode))
	buf.WriteString(fmt.Sprintf("Generators:   %d @ %.1fMbps\n", report.NGenerators, report.GeneratorBwMbps))
	buf.WriteString(fmt.Sprintf("Error Rate:   %.3f\n", report.ErrorRate))
	buf.WriteString("\n")

	if len(report.Publishers) > 0 {
		buf.WriteString("PUBLISHERS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for ip, name := range report.Publishers {
			buf.WriteString(fmt.Sprintf("  %s -> %s\n", ip, name))
		}
		buf.WriteString("\n")
	}

	if len(report.Subscribers) > 0 {
		buf.WriteString("SUBSCRIBERS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for ip, name := range report.Subscribers {
			buf.WriteString(fmt.Sprintf("  %s -> %s\n", ip, name))
		}
		buf.WriteString("\n")
	}

	if len(report.DataPathChanges) > 0 {
		buf.WriteString("DATA PATH CHANGES\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		buf.WriteString(fmt.Sprintf("Quake start: %s\n\n", report.QuakeStartTime.Format("15:04:05")))
		for i, change := range report.DataPathChanges {
			direction := "down"
			if change.Up {
				direction = "up"
			}
			buf.WriteString(fmt.Sprintf("%d. %s %s at %s\n", i+1, change.Gateway, direction, change.At.Format("15:04:05")))
		}
		buf.WriteString("\n")
	}

	if report.OracleEdgeSubs != 0 || report.OracleEdgePubs != 0 || report.OracleCloudSubs != 0 || report.OracleCloudPubs != 0 {
		buf.WriteString("ORACLE REACHABILITY\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		buf.WriteString(fmt.Sprintf("Edge subscribers:  %.3f\n", report.OracleEdgeSubs))
		buf.WriteString(fmt.Sprintf("Edge publishers:   %.3f\n", report.OracleEdgePubs))
		buf.WriteString(fmt.Sprintf("Cloud subscribers: %.3f\n", report.OracleCloudSubs))
		buf.WriteString(fmt.Sprintf("Cloud publishers:  %.3f\n", report.OracleCloudPubs))
		buf.WriteString("\n")
	}

	if len(report.Metrics) > 0 {
		buf.WriteString("METRICS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for name, points := range report.Metrics {
			buf.WriteString(fmt.Sprintf("  %s: %d sample(s)\n", name, len(points)))
		}
		buf.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for i, err := range report.Errors {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, err))
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Outputs: %s\n", report.OutputsDir))
	buf.WriteString(fmt.Sprintf("Logs:    %s\n", report.LogsDir))
	buf.WriteString(strings.Repeat("=", 80) + "\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	f.logger.Info("text report generated", "path", outputPath)
	return nil
}

// CompareReports generates a comparison report across multiple trials,
// typically one per heuristic/comparison-mode arm of a sweep.
func (f *Formatter) CompareReports(reports []*TrialReport, outputPath string) error {
	if len(reports) < 2 {
		return fmt.Errorf("need at least 2 reports to compare")
	}

	var buf bytes.Buffer
	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   TRIAL COMPARISON\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartTime.Before(reports[j].StartTime)
	})

	buf.WriteString(fmt.Sprintf("%-20s %-14s %-10s %-10s %s\n",
		"Trial ID", "Status", "Duration", "Heuristic", "Oracle(edge subs)"))
	buf.WriteString(strings.Repeat("-", 80) + "\n")

	for _, report := range reports {
		status := "PASSED"
		if !report.Success {
			status = "FAILED"
		}
		buf.WriteString(fmt.Sprintf("%-20s %-14s %-10s %-10s %.3f\n",
			report.TrialID[:min(20, len(report.TrialID))],
			status,
			report.Duration,
			report.TreeChoosingHeuristic,
			report.OracleEdgeSubs,
		))
	}
	buf.WriteString("\n")

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write comparison report: %w", err)
	}

	f.logger.Info("comparison report generated", "path", outputPath)
	return nil
}

// GetReportPath generates a report file path based on a trial report and
// format, distinct from storage's own JSON filename convention.
func GetReportPath(report *TrialReport, format ReportFormat, outputDir string) string {
	timestamp := report.StartTime.Format("20060102-150405")
	ext := string(format)
	filename := fmt.Sprintf("report-%s-%s.%s", timestamp, report.TrialID, ext)
	return filepath.Join(outputDir, filename)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Trial Report - {{.TrialID}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 30px;
        }
        h1, h2 {
            color: #2c3e50;
            border-bottom: 2px solid #3498db;
            padding-bottom: 10px;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 8px 8px 0 0;
            margin: -30px -30px 30px -30px;
        }
        .status {
            display: inline-block;
            padding: 5px 15px;
            border-radius: 4px;
            font-weight: bold;
            margin-left: 10px;
        }
        .status.pass { background-color: #27ae60; color: white; }
        .status.fail { background-color: #e74c3c; color: white; }
        .info-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }
        .info-box { background-color: #ecf0f1; padding: 15px; border-radius: 4px; }
        .info-label { font-weight: bold; color: #7f8c8d; font-size: 0.9em; margin-bottom: 5px; }
        .info-value { font-size: 1.1em; color: #2c3e50; }
        table { width: 100%; border-collapse: collapse; margin: 20px 0; }
        th, td { padding: 12px; text-align: left; border-bottom: 1px solid #ddd; }
        th { background-color: #3498db; color: white; }
        tr:hover { background-color: #f5f5f5; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Trial Report</h1>
            <p>Trial ID: {{.TrialID}}</p>
        </div>

        <h2>Summary<span class="status {{statusClass .Success}}">{{if .Success}}PASSED{{else}}FAILED{{end}}</span></h2>
        <div class="info-grid">
            <div class="info-box">
                <div class="info-label">Start Time</div>
                <div class="info-value">{{formatTime .StartTime}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">End Time</div>
                <div class="info-value">{{formatTime .EndTime}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Duration</div>
                <div class="info-value">{{.Duration}}</div>
            </div>
            <div class="info-box">
                <div class="info-label">Status</div>
                <div class="info-value">{{.Status}}</div>
            </div>
        </div>

        {{if .Publishers}}
        <h2>Publishers</h2>
        <table>
            <thead><tr><th>IP</th><th>Name</th></tr></thead>
            <tbody>
                {{range $ip, $name := .Publishers}}
                <tr><td>{{$ip}}</td><td>{{$name}}</td></tr>
                {{end}}
            </tbody>
        </table>
        {{end}}

        {{if .Subscribers}}
        <h2>Subscribers</h2>
        <table>
            <thead><tr><th>IP</th><th>Name</th></tr></thead>
            <tbody>
                {{range $ip, $name := .Subscribers}}
                <tr><td>{{$ip}}</td><td>{{$name}}</td></tr>
                {{end}}
            </tbody>
        </table>
        {{end}}

        {{if .DataPathChanges}}
        <h2>Data Path Changes</h2>
        <table>
            <thead><tr><th>Gateway</th><th>Direction</th><th>Time</th></tr></thead>
            <tbody>
                {{range .DataPathChanges}}
                <tr><td>{{.Gateway}}</td><td>{{if .Up}}up{{else}}down{{end}}</td><td>{{formatTime .At}}</td></tr>
                {{end}}
            </tbody>
        </table>
        {{end}}

        <h2>Oracle Reachability</h2>
        <div class="info-grid">
            <div class="info-box"><div class="info-label">Edge Subscribers</div><div class="info-value">{{.OracleEdgeSubs}}</div></div>
            <div class="info-box"><div class="info-label">Edge Publishers</div><div class="info-value">{{.OracleEdgePubs}}</div></div>
            <div class="info-box"><div class="info-label">Cloud Subscribers</div><div class="info-value">{{.OracleCloudSubs}}</div></div>
            <div class="info-box"><div class="info-label">Cloud Publishers</div><div class="info-value">{{.OracleCloudPubs}}</div></div>
        </div>

        {{if .Errors}}
        <h2>Errors</h2>
        <ul>
            {{range .Errors}}
            <li>{{.}}</li>
            {{end}}
        </ul>
        {{end}}

        <p style="text-align: center; color: #7f8c8d; margin-top: 30px;">
            Generated {{formatTime .EndTime}}
        </p>
    </div>
</body>
</html>
`

package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat represents the progress output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// LiveTrialState represents the current state of a running trial, the
// live counterpart of TrialReport while a trial is still in flight.
type LiveTrialState struct {
	TrialID   string        `json:"trial_id"`
	State     string        `json:"state"`
	StartTime time.Time     `json:"start_time"`
	Elapsed   time.Duration `json:"elapsed"`

	AppliedChanges []ChangeRecord `json:"applied_changes,omitempty"`
}

// ProgressReporter reports trial execution progress, used by the CLI's
// `--cli` interactive path and plain batch runs alike (§6).
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{
		format: format,
		logger: logger,
	}
}

// ReportState reports the current trial state
func (pr *ProgressReporter) ReportState(state LiveTrialState) {
	switch pr.format {
	case FormatJSON:
		pr.reportJSON(state)
	case FormatTUI:
		pr.reportTUI(state)
	default:
		pr.reportText(state)
	}
}

// ReportStateTransition reports a lifecycle state transition
func (pr *ProgressReporter) ReportStateTransition(from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "state_transition",
			"from_state": from,
			"to_state":   to,
			"timestamp":  time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("State: %s -> %s\n", from, to)
	default:
		fmt.Printf("[STATE] %s -> %s\n", from, to)
	}
}

// ReportDataPathChange reports a single fault-schedule link toggle
// (§4.7) as it is applied.
func (pr *ProgressReporter) ReportDataPathChange(change ChangeRecord) {
	direction := "down"
	if change.Up {
		direction = "up"
	}
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "data_path_change",
			"change":    change,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("Link %s -> %s\n", change.Gateway, direction)
	default:
		fmt.Printf("[FAULT] %s -> %s at %s\n", change.Gateway, direction, change.At.Format("15:04:05"))
	}
}

// ReportDrainStarted reports that process teardown has begun
func (pr *ProgressReporter) ReportDrainStarted() {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "drain_started",
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Println("Draining processes...")
	default:
		fmt.Println("[DRAIN] Starting process drain...")
	}
}

// ReportDrainCompleted reports that process teardown has finished
func (pr *ProgressReporter) ReportDrainCompleted(killed int) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "drain_completed",
			"killed":    killed,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("Drain complete: %d processes killed\n", killed)
	default:
		fmt.Printf("[DRAIN] Complete: %d processes killed\n", killed)
	}
}

// ReportTrialCompleted reports trial completion
func (pr *ProgressReporter) ReportTrialCompleted(report *TrialReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "trial_completed",
			"report":    report,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		pr.printTrialSummary(report)
	default:
		pr.printTextSummary(report)
	}
}

func (pr *ProgressReporter) reportText(state LiveTrialState) {
	elapsed := state.Elapsed.Round(time.Second)
	fmt.Printf("[%s] %s | Elapsed: %s\n",
		time.Now().Format("15:04:05"),
		state.State,
		elapsed,
	)
	if len(state.AppliedChanges) > 0 {
		fmt.Printf("  Applied changes: %d\n", len(state.AppliedChanges))
	}
}

func (pr *ProgressReporter) reportJSON(state LiveTrialState) {
	data, err := json.Marshal(state)
	if err != nil {
		pr.logger.Error("failed to marshal state", "error", err)
		return
	}
	fmt.Println(string(data))
}

func (pr *ProgressReporter) reportTUI(state LiveTrialState) {
	pr.clearScreen()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("   Trial: %s\n", state.TrialID)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("State: %s\n", state.State)
	fmt.Printf("Elapsed: %s\n", state.Elapsed.Round(time.Second))
	fmt.Println()

	if len(state.AppliedChanges) > 0 {
		fmt.Printf("Applied changes (%d):\n", len(state.AppliedChanges))
		for _, change := range state.AppliedChanges {
			direction := "down"
			if change.Up {
				direction = "up"
			}
			fmt.Printf("   - %s %s at %s\n", change.Gateway, direction, change.At.Format("15:04:05"))
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("-", 80))
}

func (pr *ProgressReporter) printTrialSummary(report *TrialReport) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("   TRIAL SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	statusText := "PASSED"
	if !report.Success {
		statusText = "FAILED"
	}

	fmt.Printf("Trial %s\n", statusText)
	fmt.Printf("   Trial ID: %s\n", report.TrialID)
	fmt.Printf("   Duration: %s\n", report.Duration)
	fmt.Println()

	fmt.Printf("Publishers: %d, Subscribers: %d\n", len(report.Publishers), len(report.Subscribers))
	fmt.Printf("Data path changes: %d\n", len(report.DataPathChanges))
	fmt.Println()

	fmt.Println(strings.Repeat("=", 80))
}

func (pr *ProgressReporter) printTextSummary(report *TrialReport) {
	status := "PASSED"
	if !report.Success {
		status = "FAILED"
	}

	fmt.Printf("\n[TRIAL SUMMARY] %s\n", status)
	fmt.Printf("  Trial ID: %s\n", report.TrialID)
	fmt.Printf("  Duration: %s\n", report.Duration)
	fmt.Printf("  Publishers: %d\n", len(report.Publishers))
	fmt.Printf("  Subscribers: %d\n", len(report.Subscribers))
	fmt.Printf("  Data Path Changes: %d\n", len(report.DataPathChanges))
	fmt.Println()
}

func (pr *ProgressReporter) clearScreen() {
	fmt.Print("\033[2J\033[H")
}

func (pr *ProgressReporter) clearLine() {
	fmt.Print("\033[K")
}

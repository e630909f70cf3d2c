package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Storage handles persistence of trial reports to the output directory.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *Logger
}

// NewStorage creates a new storage instance, creating outputDir if it
// does not already exist.
func NewStorage(outputDir string, keepLastN int, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Storage{
		outputDir: outputDir,
		keepLastN: keepLastN,
		logger:    logger,
	}, nil
}

// ReportFilename builds the §6 result filename convention
// `results_<params>_<heuristic>.json`, where params encodes the run's
// tree count, comparison mode and error rate so concurrent sweep runs
// against the same topology never collide.
func ReportFilename(report *TrialReport) string {
	params := fmt.Sprintf("%dtrees_%s_err%s", report.NGenerators, report.ComparisonMode, trimFloat(report.ErrorRate))
	heuristic := report.TreeChoosingHeuristic
	if heuristic == "" {
		heuristic = "none"
	}
	return fmt.Sprintf("results_%s_%s.json", params, heuristic)
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.3f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" {
		s = "0"
	}
	return s
}

// SaveReport writes a trial report to its §6-conventioned JSON file
// under the output directory, then enforces keepLastN by deleting the
// oldest surplus reports.
func (s *Storage) SaveReport(report *TrialReport) (string, error) {
	filename := ReportFilename(report)
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	s.logger.Info("trial report saved", "path", path)

	if s.keepLastN > 0 {
		if err := s.cleanupOldReports(); err != nil {
			s.logger.Warn("failed to cleanup old reports", "error", err)
		}
	}

	return path, nil
}

// LoadReport loads a trial report from a JSON file.
func (s *Storage) LoadReport(path string) (*TrialReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var report TrialReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// ListReports lists all trial reports in the output directory, newest
// first.
func (s *Storage) ListReports() ([]ReportSummary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	summaries := make([]ReportSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		report, err := s.LoadReport(path)
		if err != nil {
			s.logger.Warn("failed to load report", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, ReportSummary{
			TrialID:       report.TrialID,
			Status:        report.Status,
			Success:       report.Success,
			Duration:      report.Duration,
			Filepath:      path,
			StartUnixNano: report.StartTime.UnixNano(),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartUnixNano > summaries[j].StartUnixNano
	})

	return summaries, nil
}

// FindReportByTrialID finds a report by trial ID among the reports
// present in the output directory.
func (s *Storage) FindReportByTrialID(trialID string) (*TrialReport, error) {
	summaries, err := s.ListReports()
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		if summary.TrialID == trialID {
			return s.LoadReport(summary.Filepath)
		}
	}
	return nil, fmt.Errorf("report not found for trial ID: %s", trialID)
}

// cleanupOldReports removes old report files, keeping only the most
// recent keepLastN.
func (s *Storage) cleanupOldReports() error {
	summaries, err := s.ListReports()
	if err != nil {
		return err
	}
	if len(summaries) <= s.keepLastN {
		return nil
	}
	toDelete := summaries[s.keepLastN:]
	for _, summary := range toDelete {
		if err := os.Remove(summary.Filepath); err != nil {
			s.logger.Warn("failed to delete old report", "path", summary.Filepath, "error", err)
		} else {
			s.logger.Debug("deleted old report", "path", summary.Filepath)
		}
	}
	return nil
}

// GetOutputDir returns the output directory path.
func (s *Storage) GetOutputDir() string {
	return s.outputDir
}

// ReportSummary is a lightweight index entry over a saved trial report.
type ReportSummary struct {
	TrialID       string      `json:"trial_id"`
	Status        TrialStatus `json:"status"`
	Success       bool        `json:"success"`
	Duration      string      `json:"duration"`
	Filepath      string      `json:"filepath"`
	StartUnixNano int64       `json:"-"`
}

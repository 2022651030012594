package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelsos/weave-sweep/internal/config"
	"github.com/kelsos/weave-sweep/internal/models"
)

// GetAppDataDir returns the application data directory
func GetAppDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	appDataDir := filepath.Join(homeDir, ".weave-sweep")
	if err := os.MkdirAll(appDataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}

	return appDataDir, nil
}

// DefaultReportDir returns the reports folder inside the application data directory
func DefaultReportDir() (string, error) {
	appDataDir, err := GetAppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDataDir, "reports"), nil
}

// GetReportFilePath returns the path of the report for a run
func GetReportFilePath(dir, runID string) (string, error) {
	dir, err := config.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	return filepath.Join(dir, fmt.Sprintf("sweep_%s.json", runID)), nil
}

// SaveReport writes the run report as JSON and returns its path
func SaveReport(dir string, report *models.Report) (string, error) {
	filePath, err := GetReportFilePath(dir, report.RunID)
	if err != nil {
		return "", err
	}

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(filePath, jsonData, 0600); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return filePath, nil
}

// LoadReport reads a report written by SaveReport
func LoadReport(filePath string) (*models.Report, error) {
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(fileData, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

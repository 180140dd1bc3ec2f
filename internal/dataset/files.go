package dataset

import (
	"os"
	"path/filepath"
)

// Dataset file names as published to object storage
const (
	AlertsFile    = "alerts.parquet"
	OilFile       = "oil_measurements.parquet"
	TelemetryFile = "telemetry_measurements.parquet"
	CommentsFile  = "ai_comments.parquet"
)

// Files lists every required dataset file in load order
var Files = []string{AlertsFile, OilFile, TelemetryFile, CommentsFile}

// IsKnown reports whether name is one of the measurement store files
func IsKnown(name string) bool {
	for _, f := range Files {
		if f == name {
			return true
		}
	}
	return false
}

// ValidateFiles reports, per required file, whether it exists in dir
func ValidateFiles(dir string) map[string]bool {
	status := make(map[string]bool, len(Files))
	for _, name := range Files {
		info, err := os.Stat(filepath.Join(dir, name))
		status[name] = err == nil && !info.IsDir()
	}
	return status
}

// MissingFiles returns the required files absent from dir, in load order
func MissingFiles(dir string) []string {
	status := ValidateFiles(dir)
	var missing []string
	for _, name := range Files {
		if !status[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/model"
)

// Dataset is an immutable in-memory snapshot of the measurement store
type Dataset struct {
	Alerts    []model.Alert
	Oil       []model.OilMeasurement
	Telemetry []model.TelemetryMeasurement
	Comments  []model.AIComment
	LoadedAt  time.Time

	alertIndex map[string]int
}

// New assembles a dataset from already decoded rows. Alerts pick up the
// first OilMeter recorded for their oil link.
func New(alerts []model.Alert, oil []model.OilMeasurement, telemetry []model.TelemetryMeasurement, comments []model.AIComment) *Dataset {
	meters := make(map[string]*string)
	for _, m := range oil {
		if _, seen := meters[m.OilAlertID]; !seen {
			meters[m.OilAlertID] = m.OilMeter
		}
	}

	ds := &Dataset{
		Alerts:     make([]model.Alert, len(alerts)),
		Oil:        oil,
		Telemetry:  telemetry,
		Comments:   comments,
		LoadedAt:   time.Now().UTC(),
		alertIndex: make(map[string]int, len(alerts)),
	}
	for i, a := range alerts {
		if a.HasOil() && a.OilMeter == nil {
			a.OilMeter = meters[*a.OilAlertID]
		}
		ds.Alerts[i] = a
		if _, dup := ds.alertIndex[a.AlertID]; !dup {
			ds.alertIndex[a.AlertID] = i
		}
	}
	return ds
}

// Alert looks up an alert by exact id
func (d *Dataset) Alert(id string) (model.Alert, bool) {
	if d == nil {
		return model.Alert{}, false
	}
	i, ok := d.alertIndex[id]
	if !ok {
		return model.Alert{}, false
	}
	return d.Alerts[i], true
}

// Load reads the four measurement files from dir. A missing file is fatal;
// an unreadable one is logged and loaded as empty.
func Load(dir string, logger *zap.Logger) (*Dataset, error) {
	if missing := MissingFiles(dir); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrDatasetMissing, strings.Join(missing, ", "), dir)
	}

	alerts := readRows[model.Alert](dir, AlertsFile, logger)
	oil := readRows[model.OilMeasurement](dir, OilFile, logger)
	telemetry := readRows[model.TelemetryMeasurement](dir, TelemetryFile, logger)
	comments := readRows[model.AIComment](dir, CommentsFile, logger)

	if unknown := unknownBreachLevels(oil); len(unknown) > 0 {
		logger.Warn("Oil measurements with unknown breach levels rank below none",
			zap.Strings("levels", unknown))
	}

	ds := New(alerts, oil, telemetry, comments)
	logger.Info("Loaded measurement store",
		zap.String("dir", dir),
		zap.Int("alerts", len(ds.Alerts)),
		zap.Int("oil_measurements", len(ds.Oil)),
		zap.Int("telemetry_measurements", len(ds.Telemetry)),
		zap.Int("ai_comments", len(ds.Comments)))
	return ds, nil
}

// unknownBreachLevels returns the distinct unrecognized levels in file order
func unknownBreachLevels(oil []model.OilMeasurement) []string {
	var out []string
	seen := make(map[model.BreachLevel]struct{})
	for _, m := range oil {
		level := m.Level()
		if level.Valid() {
			continue
		}
		if _, ok := seen[level]; !ok {
			seen[level] = struct{}{}
			out = append(out, string(level))
		}
	}
	return out
}

func readRows[T any](dir, name string, logger *zap.Logger) []T {
	path := filepath.Join(dir, name)
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		logger.Error("Failed to read dataset, continuing with no rows",
			zap.String("file", path),
			zap.Error(err))
		return nil
	}
	return rows
}

// Write stores ds as parquet files in dir, one file per dataset
func Write(dir string, ds *Dataset) error {
	if err := writeRows(dir, AlertsFile, ds.Alerts); err != nil {
		return err
	}
	if err := writeRows(dir, OilFile, ds.Oil); err != nil {
		return err
	}
	if err := writeRows(dir, TelemetryFile, ds.Telemetry); err != nil {
		return err
	}
	return writeRows(dir, CommentsFile, ds.Comments)
}

func writeRows[T any](dir, name string, rows []T) error {
	if err := parquet.WriteFile(filepath.Join(dir, name), rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

package deriver

import (
	"sort"
	"time"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/model"
)

// WindowHalfWidth bounds the telemetry shown on each side of the alert start
const WindowHalfWidth = 48 * time.Hour

// TelemetryBreach aggregates the limit breaches of one variable in the window
type TelemetryBreach struct {
	VariableName    string    `json:"variable_name"`
	MaxExcess       float64   `json:"max_excess"`
	AnyLimitReached bool      `json:"any_limit_reached"`
	LastTimestamp   time.Time `json:"last_timestamp"`
}

// TelemetryWindow returns the readings linked to the alert within
// [TimeStart-48h, TimeStart+48h]. Without a TimeStart the full series is returned.
func TelemetryWindow(ds *dataset.Dataset, alertID string) []model.TelemetryMeasurement {
	alert, ok := ds.Alert(alertID)
	if !ok || !alert.HasTelemetry() {
		return nil
	}
	var from, to time.Time
	if alert.TimeStart != nil {
		from = alert.TimeStart.Add(-WindowHalfWidth)
		to = alert.TimeStart.Add(WindowHalfWidth)
	}

	var out []model.TelemetryMeasurement
	for _, m := range ds.Telemetry {
		if m.TelAlertID != *alert.TelAlertID {
			continue
		}
		if alert.TimeStart != nil && (m.Timestamp.Before(from) || m.Timestamp.After(to)) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// TelemetryBreaches ranks the variables that reached a limit in the window,
// worst excess over the upper limit first. Variables that never reached a
// limit are left out.
func TelemetryBreaches(ds *dataset.Dataset, alertID string) []TelemetryBreach {
	var order []string
	groups := make(map[string]*TelemetryBreach)
	for _, m := range TelemetryWindow(ds, alertID) {
		b, ok := groups[m.VariableName]
		if !ok {
			b = &TelemetryBreach{VariableName: m.VariableName, LastTimestamp: m.Timestamp}
			groups[m.VariableName] = b
			order = append(order, m.VariableName)
		}
		if m.UpperLimitValue != nil {
			if excess := m.Value - *m.UpperLimitValue; excess > b.MaxExcess {
				b.MaxExcess = excess
			}
		}
		b.AnyLimitReached = b.AnyLimitReached || m.IsLimitReached
		if m.Timestamp.After(b.LastTimestamp) {
			b.LastTimestamp = m.Timestamp
		}
	}

	out := make([]TelemetryBreach, 0, len(order))
	for _, name := range order {
		if b := groups[name]; b.AnyLimitReached {
			out = append(out, *b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MaxExcess != out[j].MaxExcess {
			return out[i].MaxExcess > out[j].MaxExcess
		}
		return out[i].VariableName < out[j].VariableName
	})
	return out
}

// VariableTrend returns the window readings of one variable in time order
func VariableTrend(ds *dataset.Dataset, alertID, variable string) []model.TelemetryMeasurement {
	var out []model.TelemetryMeasurement
	for _, m := range TelemetryWindow(ds, alertID) {
		if m.VariableName == variable {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

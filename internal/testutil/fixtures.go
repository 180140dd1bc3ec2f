package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/model"
)

// T0 is the TimeStart of the sample alerts
var T0 = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// SampleAlerts covers every label plus an alert with no comments (A4) and
// one without a TimeStart (A3).
func SampleAlerts() []model.Alert {
	return []model.Alert{
		{AlertID: "A2", UnitID: "U2", Component: "Transmission", TimeStart: Ptr(T0.Add(24 * time.Hour)), OilAlertID: Ptr("O2"), Label: Ptr(string(model.LabelOilOnly))},
		{AlertID: "A1", UnitID: "U1", Component: "Engine", TimeStart: Ptr(T0), OilAlertID: Ptr("O1"), TelAlertID: Ptr("TL1"), Label: Ptr(string(model.LabelBoth))},
		{AlertID: "A3", UnitID: "U1", Component: "Engine", TelAlertID: Ptr("TL3"), Label: Ptr(string(model.LabelTelemetryOnly))},
		{AlertID: "A4", UnitID: "U3", Component: "Hydraulics", TimeStart: Ptr(T0)},
	}
}

// SampleOil holds an Iron series for O1 whose latest sample is a critical breach
func SampleOil() []model.OilMeasurement {
	t1 := T0.Add(-72 * time.Hour)
	t2 := T0.Add(-24 * time.Hour)
	return []model.OilMeasurement{
		{OilAlertID: "O1", SampleDate: t2, ElementName: "Iron", Value: 50, LimitValue: Ptr(30.0), IsLimitReached: true, BreachLevel: Ptr("critical"), OilMeter: Ptr("M-100")},
		{OilAlertID: "O1", SampleDate: t1, ElementName: "Iron", Value: 10, LimitValue: Ptr(30.0), BreachLevel: Ptr("none"), OilMeter: Ptr("M-100")},
		{OilAlertID: "O1", SampleDate: t1, ElementName: "Copper", Value: 5, LimitValue: Ptr(20.0), BreachLevel: Ptr("none"), OilMeter: Ptr("M-100")},
		{OilAlertID: "O1", SampleDate: t2, ElementName: "Silicon", Value: 40, LimitValue: Ptr(25.0), IsLimitReached: true, BreachLevel: Ptr("alert"), OilMeter: Ptr("M-100")},
		{OilAlertID: "O1", SampleDate: t2, ElementName: "Aluminum", Value: 2, BreachLevel: Ptr("none"), OilMeter: Ptr("M-100")},
		{OilAlertID: "O2", SampleDate: t1, ElementName: "Sodium", Value: 3, LimitValue: Ptr(10.0), BreachLevel: Ptr("none"), OilMeter: Ptr("M-200")},
	}
}

// SampleTelemetry places rows inside and outside the ±48h window of A1
func SampleTelemetry() []model.TelemetryMeasurement {
	return []model.TelemetryMeasurement{
		{TelAlertID: "TL1", Timestamp: T0.Add(-60 * time.Hour), VariableName: "EngineTemp", Value: 150, UpperLimitValue: Ptr(100.0), IsLimitReached: true},
		{TelAlertID: "TL1", Timestamp: T0.Add(10 * time.Hour), VariableName: "EngineTemp", Value: 95, UpperLimitValue: Ptr(100.0)},
		{TelAlertID: "TL1", Timestamp: T0.Add(1 * time.Hour), VariableName: "OilPressure", Value: 75, UpperLimitValue: Ptr(70.0), IsLimitReached: true},
		{TelAlertID: "TL1", Timestamp: T0.Add(-2 * time.Hour), VariableName: "OilPressure", Value: 80, UpperLimitValue: Ptr(70.0), IsLimitReached: true},
		{TelAlertID: "TL1", Timestamp: T0, VariableName: "Rpm", Value: 1800, UpperLimitValue: Ptr(2000.0)},
		{TelAlertID: "TL1", Timestamp: T0.Add(48 * time.Hour), VariableName: "CoolantTemp", Value: 102, UpperLimitValue: Ptr(100.0), IsLimitReached: true},
		{TelAlertID: "TL1", Timestamp: T0.Add(-48 * time.Hour), VariableName: "Boost", Value: 0.5, LowerLimitValue: Ptr(1.0), IsLimitReached: true},
		{TelAlertID: "TL3", Timestamp: T0.Add(-100 * time.Hour), VariableName: "Vibration", Value: 9, UpperLimitValue: Ptr(5.0), IsLimitReached: true},
	}
}

// SampleComments attaches comments to A1..A3 and one to an unknown alert
func SampleComments() []model.AIComment {
	return []model.AIComment{
		{AICommentID: "C1", AlertID: "A1", CommentText: "Inspect the oil filter; iron is critical.", CommentType: "baseline"},
		{AICommentID: "C2", AlertID: "A1", CommentText: "Check oil pressure sensor.", CommentType: "rule_based"},
		{AICommentID: "C3", AlertID: "A2", CommentText: "No action required.", CommentType: "prompt_v2"},
		{AICommentID: "C4", AlertID: "A3", CommentText: "Schedule vibration analysis.", CommentType: "baseline"},
		{AICommentID: "C5", AlertID: "A99", CommentText: "Orphan comment.", CommentType: "baseline"},
	}
}

// SampleDataset assembles the sample rows
func SampleDataset() *dataset.Dataset {
	return dataset.New(SampleAlerts(), SampleOil(), SampleTelemetry(), SampleComments())
}

// WriteSampleData writes the sample dataset as parquet files into dir
func WriteSampleData(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, dataset.Write(dir, SampleDataset()))
}

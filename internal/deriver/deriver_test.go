package deriver_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/deriver"
	"github.com/t77yq/comment-evaluator/internal/model"
	"github.com/t77yq/comment-evaluator/internal/testutil"
)

func TestAlertDetails(t *testing.T) {
	ds := testutil.SampleDataset()

	alert, ok := deriver.AlertDetails(ds, "A1")
	require.True(t, ok)
	assert.Equal(t, "U1", alert.UnitID)
	assert.Equal(t, "Engine", alert.Component)
	require.NotNil(t, alert.OilMeter)
	assert.Equal(t, "M-100", *alert.OilMeter)

	_, ok = deriver.AlertDetails(ds, "missing")
	assert.False(t, ok)

	_, ok = deriver.AlertDetails(nil, "A1")
	assert.False(t, ok)
}

func TestOilSnapshot(t *testing.T) {
	ds := testutil.SampleDataset()

	rows := deriver.OilSnapshot(ds, "A1")
	require.Len(t, rows, 4)

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.ElementName
	}
	assert.Equal(t, []string{"Iron", "Silicon", "Aluminum", "Copper"}, names)

	iron := rows[0]
	assert.Equal(t, 50.0, iron.Value)
	assert.Equal(t, model.BreachLevelCritical, iron.BreachLevel)
	assert.True(t, iron.IsLimitReached)
	require.NotNil(t, iron.LimitValue)
	assert.Equal(t, 30.0, *iron.LimitValue)

	assert.Empty(t, deriver.OilSnapshot(ds, "A3"), "alert without oil link")
	assert.Empty(t, deriver.OilSnapshot(ds, "missing"))
}

func TestOilSnapshot_LatestReadingWins(t *testing.T) {
	t1 := testutil.T0
	t2 := t1.Add(time.Hour)
	ds := dataset.New(
		[]model.Alert{{AlertID: "A1", OilAlertID: testutil.Ptr("O1")}},
		[]model.OilMeasurement{
			{OilAlertID: "O1", SampleDate: t2, ElementName: "Iron", Value: 50, IsLimitReached: true, BreachLevel: testutil.Ptr("critical")},
			{OilAlertID: "O1", SampleDate: t1, ElementName: "Iron", Value: 10, BreachLevel: testutil.Ptr("none")},
		},
		nil, nil,
	)

	rows := deriver.OilSnapshot(ds, "A1")
	require.Len(t, rows, 1)
	assert.Equal(t, "Iron", rows[0].ElementName)
	assert.Equal(t, 50.0, rows[0].Value)
	assert.Equal(t, model.BreachLevelCritical, rows[0].BreachLevel)
}

func TestOilSnapshot_TiesPreferLaterRow(t *testing.T) {
	ds := dataset.New(
		[]model.Alert{{AlertID: "A1", OilAlertID: testutil.Ptr("O1")}},
		[]model.OilMeasurement{
			{OilAlertID: "O1", SampleDate: testutil.T0, ElementName: "Iron", Value: 1},
			{OilAlertID: "O1", SampleDate: testutil.T0, ElementName: "Iron", Value: 2},
		},
		nil, nil,
	)
	rows := deriver.OilSnapshot(ds, "A1")
	require.Len(t, rows, 1)
	assert.Equal(t, 2.0, rows[0].Value)
}

func TestOilSnapshot_OneRowPerElementAtMaxDate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	elements := []string{"Iron", "Copper", "Lead", "Silicon", "Sodium"}

	var oil []model.OilMeasurement
	for i := 0; i < 200; i++ {
		oil = append(oil, model.OilMeasurement{
			OilAlertID:     fmt.Sprintf("O%d", rng.Intn(2)),
			SampleDate:     testutil.T0.Add(time.Duration(rng.Intn(500)) * time.Hour),
			ElementName:    elements[rng.Intn(len(elements))],
			Value:          rng.Float64() * 100,
			IsLimitReached: rng.Intn(4) == 0,
		})
	}
	ds := dataset.New([]model.Alert{{AlertID: "A1", OilAlertID: testutil.Ptr("O1")}}, oil, nil, nil)

	maxDate := make(map[string]time.Time)
	for _, m := range oil {
		if m.OilAlertID == "O1" && m.SampleDate.After(maxDate[m.ElementName]) {
			maxDate[m.ElementName] = m.SampleDate
		}
	}

	rows := deriver.OilSnapshot(ds, "A1")
	seen := make(map[string]bool)
	for i, r := range rows {
		assert.False(t, seen[r.ElementName], "duplicate element %s", r.ElementName)
		seen[r.ElementName] = true
		assert.True(t, r.SampleDate.Equal(maxDate[r.ElementName]), r.ElementName)
		if i > 0 && rows[i-1].IsLimitReached == r.IsLimitReached {
			assert.Less(t, rows[i-1].ElementName, r.ElementName)
		}
		if i > 0 {
			assert.False(t, !rows[i-1].IsLimitReached && r.IsLimitReached, "breached rows must come first")
		}
	}
	assert.Len(t, rows, len(maxDate))
}

func TestTelemetryWindow(t *testing.T) {
	ds := testutil.SampleDataset()

	window := deriver.TelemetryWindow(ds, "A1")
	require.Len(t, window, 6)
	for _, m := range window {
		assert.Equal(t, "TL1", m.TelAlertID)
		assert.False(t, m.Timestamp.Before(testutil.T0.Add(-48*time.Hour)))
		assert.False(t, m.Timestamp.After(testutil.T0.Add(48*time.Hour)))
	}

	full := deriver.TelemetryWindow(ds, "A3")
	require.Len(t, full, 1, "no TimeStart means no time filter")
	assert.Equal(t, "Vibration", full[0].VariableName)

	assert.Empty(t, deriver.TelemetryWindow(ds, "A2"))
}

func TestTelemetryWindow_DropsReadingsOutsideWindow(t *testing.T) {
	t0 := testutil.T0
	ds := dataset.New(
		[]model.Alert{{AlertID: "A1", TimeStart: &t0, TelAlertID: testutil.Ptr("TL1")}},
		nil,
		[]model.TelemetryMeasurement{
			{TelAlertID: "TL1", Timestamp: t0.Add(-60 * time.Hour), VariableName: "EngineTemp", Value: 1},
			{TelAlertID: "TL1", Timestamp: t0.Add(10 * time.Hour), VariableName: "EngineTemp", Value: 2},
		},
		nil,
	)

	window := deriver.TelemetryWindow(ds, "A1")
	require.Len(t, window, 1)
	assert.True(t, window[0].Timestamp.Equal(t0.Add(10*time.Hour)))
}

func TestTelemetryBreaches(t *testing.T) {
	ds := testutil.SampleDataset()

	breaches := deriver.TelemetryBreaches(ds, "A1")
	require.Len(t, breaches, 3)

	assert.Equal(t, "OilPressure", breaches[0].VariableName)
	assert.InDelta(t, 10.0, breaches[0].MaxExcess, 1e-9)
	assert.True(t, breaches[0].LastTimestamp.Equal(testutil.T0.Add(time.Hour)))

	assert.Equal(t, "CoolantTemp", breaches[1].VariableName)
	assert.InDelta(t, 2.0, breaches[1].MaxExcess, 1e-9)

	assert.Equal(t, "Boost", breaches[2].VariableName)
	assert.Zero(t, breaches[2].MaxExcess, "no upper limit means zero excess")

	for _, b := range breaches {
		assert.True(t, b.AnyLimitReached)
		assert.NotEqual(t, "EngineTemp", b.VariableName)
		assert.NotEqual(t, "Rpm", b.VariableName)
	}

	assert.Empty(t, deriver.TelemetryBreaches(ds, "A2"))
}

func TestVariableTrend(t *testing.T) {
	ds := testutil.SampleDataset()

	trend := deriver.VariableTrend(ds, "A1", "OilPressure")
	require.Len(t, trend, 2)
	assert.True(t, trend[0].Timestamp.Before(trend[1].Timestamp))

	assert.Empty(t, deriver.VariableTrend(ds, "A1", "EngineTempX"))
}

func TestCommentsForAlert(t *testing.T) {
	ds := testutil.SampleDataset()

	comments := deriver.CommentsForAlert(ds, "A1")
	require.Len(t, comments, 2)
	assert.Equal(t, "C1", comments[0].AICommentID)
	assert.Equal(t, "C2", comments[1].AICommentID)

	assert.Empty(t, deriver.CommentsForAlert(ds, "A4"))
	assert.Equal(t, "prompt_v2", deriver.CommentTypes(ds)["C3"])
}

func TestAlertCatalog(t *testing.T) {
	ds := testutil.SampleDataset()

	cases := []struct {
		name   string
		filter deriver.Filter
		want   []string
	}{
		{"no filter", deriver.Filter{}, []string{"A1", "A2", "A3"}},
		{"all values", deriver.Filter{Component: "All", Unit: "All", Label: "All"}, []string{"A1", "A2", "A3"}},
		{"component", deriver.Filter{Component: "Engine"}, []string{"A1", "A3"}},
		{"unit and label", deriver.Filter{Unit: "U1", Label: "both"}, []string{"A1"}},
		{"label", deriver.Filter{Label: "oil_only"}, []string{"A2"}},
		{"alert without comments", deriver.Filter{Component: "Hydraulics"}, nil},
		{"no match", deriver.Filter{Unit: "U9"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := deriver.AlertCatalog(ds, tc.filter)
			assert.Equal(t, tc.want, got)
			for _, id := range got {
				assert.NotEmpty(t, deriver.CommentsForAlert(ds, id))
			}
		})
	}

	assert.Empty(t, deriver.AlertCatalog(nil, deriver.Filter{}))
}

func TestNextAlert(t *testing.T) {
	catalog := []string{"A1", "A2", "A3"}

	next, ok := deriver.NextAlert(catalog, "A2")
	require.True(t, ok)
	assert.Equal(t, "A3", next)

	next, ok = deriver.NextAlert(catalog, "A3")
	require.True(t, ok)
	assert.Equal(t, "A1", next)

	_, ok = deriver.NextAlert(catalog, "A9")
	assert.False(t, ok)
	_, ok = deriver.NextAlert(nil, "A1")
	assert.False(t, ok)
}

func TestFilterOptions(t *testing.T) {
	opts := deriver.FilterOptions(testutil.SampleDataset())
	assert.Equal(t, []string{"All", "Engine", "Transmission"}, opts.Components)
	assert.Equal(t, []string{"All", "U1", "U2"}, opts.Units)
	assert.Equal(t, []string{"All", "both", "oil_only", "telemetry_only"}, opts.Labels)

	empty := deriver.FilterOptions(dataset.New(testutil.SampleAlerts(), nil, nil, nil))
	assert.Empty(t, empty.Components)
	assert.Empty(t, empty.Units)
	assert.Empty(t, empty.Labels)
}

func TestSummaryAndStats(t *testing.T) {
	ds := testutil.SampleDataset()

	summary := deriver.Summary(ds)
	assert.Equal(t, deriver.AlertsSummary{TotalAlerts: 4, AlertsWithComments: 3, AlertsWithoutComments: 1}, summary)

	stats := deriver.Stats(ds)
	assert.Equal(t, 3, stats.Alerts)
	assert.Equal(t, 6, stats.OilMeasurements)
	assert.Equal(t, 8, stats.TelemetryMeasurements)
	assert.Equal(t, 5, stats.AIComments)
	assert.Equal(t, 2, stats.UniqueUnits)
	assert.Equal(t, 2, stats.UniqueComponents)
	assert.Equal(t, []string{"baseline", "rule_based", "prompt_v2"}, stats.CommentTypes)
}

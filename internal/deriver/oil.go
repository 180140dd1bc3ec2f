package deriver

import (
	"sort"
	"time"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/model"
)

// OilSnapshotRow is the latest reading of one element
type OilSnapshotRow struct {
	ElementName    string            `json:"element_name"`
	Value          float64           `json:"value"`
	LimitValue     *float64          `json:"limit_value,omitempty"`
	BreachLevel    model.BreachLevel `json:"breach_level"`
	IsLimitReached bool              `json:"is_limit_reached"`
	SampleDate     time.Time         `json:"sample_date"`
}

// OilData returns every oil sample linked to the alert
func OilData(ds *dataset.Dataset, alertID string) []model.OilMeasurement {
	alert, ok := ds.Alert(alertID)
	if !ok || !alert.HasOil() {
		return nil
	}
	var out []model.OilMeasurement
	for _, m := range ds.Oil {
		if m.OilAlertID == *alert.OilAlertID {
			out = append(out, m)
		}
	}
	return out
}

// OilSnapshot keeps the latest sample per element. On equal sample dates the
// row appearing later in the dataset wins. Breached elements sort first,
// then by element name.
func OilSnapshot(ds *dataset.Dataset, alertID string) []OilSnapshotRow {
	latest := make(map[string]model.OilMeasurement)
	for _, m := range OilData(ds, alertID) {
		cur, ok := latest[m.ElementName]
		if !ok || !m.SampleDate.Before(cur.SampleDate) {
			latest[m.ElementName] = m
		}
	}

	rows := make([]OilSnapshotRow, 0, len(latest))
	for _, m := range latest {
		rows = append(rows, OilSnapshotRow{
			ElementName:    m.ElementName,
			Value:          m.Value,
			LimitValue:     m.LimitValue,
			BreachLevel:    m.Level(),
			IsLimitReached: m.IsLimitReached,
			SampleDate:     m.SampleDate,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].IsLimitReached != rows[j].IsLimitReached {
			return rows[i].IsLimitReached
		}
		return rows[i].ElementName < rows[j].ElementName
	})
	return rows
}

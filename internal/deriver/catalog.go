package deriver

import (
	"sort"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/model"
)

// AllValues is the filter value that disables a catalog filter
const AllValues = "All"

// Filter narrows the alert catalog. Empty or "All" fields match everything.
type Filter struct {
	Component string `form:"component" json:"component"`
	Unit      string `form:"unit" json:"unit"`
	Label     string `form:"label" json:"label"`
}

// Options lists the selectable values of each catalog filter, "All" first
type Options struct {
	Components []string `json:"components"`
	Units      []string `json:"units"`
	Labels     []string `json:"labels"`
}

// AlertsSummary counts alerts with and without AI comments
type AlertsSummary struct {
	TotalAlerts           int `json:"total_alerts"`
	AlertsWithComments    int `json:"alerts_with_comments"`
	AlertsWithoutComments int `json:"alerts_without_comments"`
}

// DataStats describes the part of the measurement store that can be reviewed
type DataStats struct {
	Alerts                int      `json:"alerts_count"`
	OilMeasurements       int      `json:"oil_measurements_count"`
	TelemetryMeasurements int      `json:"telemetry_measurements_count"`
	AIComments            int      `json:"ai_comments_count"`
	UniqueUnits           int      `json:"unique_units"`
	UniqueComponents      int      `json:"unique_components"`
	CommentTypes          []string `json:"comment_types"`
}

func matches(filter, value string) bool {
	return filter == "" || filter == AllValues || filter == value
}

func commentedAlertIDs(ds *dataset.Dataset) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, c := range ds.Comments {
		ids[c.AlertID] = struct{}{}
	}
	return ids
}

// reviewable returns the alerts that have at least one AI comment
func reviewable(ds *dataset.Dataset) []model.Alert {
	if ds == nil {
		return nil
	}
	commented := commentedAlertIDs(ds)
	var out []model.Alert
	for _, a := range ds.Alerts {
		if _, ok := commented[a.AlertID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// AlertCatalog returns the sorted ids of commented alerts matching f.
// Alerts without comments are never selectable.
func AlertCatalog(ds *dataset.Dataset, f Filter) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, a := range reviewable(ds) {
		if !matches(f.Component, a.Component) || !matches(f.Unit, a.UnitID) || !matches(f.Label, a.LabelValue()) {
			continue
		}
		if _, dup := seen[a.AlertID]; dup {
			continue
		}
		seen[a.AlertID] = struct{}{}
		ids = append(ids, a.AlertID)
	}
	sort.Strings(ids)
	return ids
}

// NextAlert returns the id after current in catalog, wrapping at the end
func NextAlert(catalog []string, current string) (string, bool) {
	for i, id := range catalog {
		if id == current {
			return catalog[(i+1)%len(catalog)], true
		}
	}
	return "", false
}

// FilterOptions lists the distinct components, units and labels of commented alerts
func FilterOptions(ds *dataset.Dataset) Options {
	alerts := reviewable(ds)
	if len(alerts) == 0 {
		return Options{Components: []string{}, Units: []string{}, Labels: []string{}}
	}
	components := newValueSet()
	units := newValueSet()
	labels := newValueSet()
	for _, a := range alerts {
		components.add(a.Component)
		units.add(a.UnitID)
		labels.add(a.LabelValue())
	}
	return Options{
		Components: components.withAll(),
		Units:      units.withAll(),
		Labels:     labels.withAll(),
	}
}

// Summary counts distinct alerts and how many of them have comments
func Summary(ds *dataset.Dataset) AlertsSummary {
	if ds == nil {
		return AlertsSummary{}
	}
	all := newValueSet()
	for _, a := range ds.Alerts {
		all.add(a.AlertID)
	}
	withComments := newValueSet()
	for _, a := range reviewable(ds) {
		withComments.add(a.AlertID)
	}
	return AlertsSummary{
		TotalAlerts:           all.len(),
		AlertsWithComments:    withComments.len(),
		AlertsWithoutComments: all.len() - withComments.len(),
	}
}

// Stats counts the reviewable alerts and the measurements linked to them
func Stats(ds *dataset.Dataset) DataStats {
	if ds == nil {
		return DataStats{CommentTypes: []string{}}
	}
	alerts := reviewable(ds)
	oilIDs := make(map[string]struct{})
	telIDs := make(map[string]struct{})
	units := newValueSet()
	components := newValueSet()
	for _, a := range alerts {
		if a.OilAlertID != nil {
			oilIDs[*a.OilAlertID] = struct{}{}
		}
		if a.TelAlertID != nil {
			telIDs[*a.TelAlertID] = struct{}{}
		}
		units.add(a.UnitID)
		components.add(a.Component)
	}

	stats := DataStats{
		Alerts:           len(alerts),
		AIComments:       len(ds.Comments),
		UniqueUnits:      units.len(),
		UniqueComponents: components.len(),
		CommentTypes:     []string{},
	}
	for _, m := range ds.Oil {
		if _, ok := oilIDs[m.OilAlertID]; ok {
			stats.OilMeasurements++
		}
	}
	for _, m := range ds.Telemetry {
		if _, ok := telIDs[m.TelAlertID]; ok {
			stats.TelemetryMeasurements++
		}
	}
	types := make(map[string]struct{})
	for _, c := range ds.Comments {
		if _, ok := types[c.CommentType]; ok {
			continue
		}
		types[c.CommentType] = struct{}{}
		stats.CommentTypes = append(stats.CommentTypes, c.CommentType)
	}
	return stats
}

type valueSet map[string]struct{}

func newValueSet() valueSet {
	return make(valueSet)
}

func (s valueSet) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s valueSet) len() int {
	return len(s)
}

func (s valueSet) withAll() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return append([]string{AllValues}, out...)
}

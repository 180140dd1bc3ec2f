// Package deriver builds the reviewer-facing context of an alert from the
// measurement store: alert details, the latest oil reading per element, the
// telemetry window around the alert start with its breach ranking, and the
// AI comments to grade.
//
// Every function is pure over a *dataset.Dataset. Unknown ids and missing
// links produce empty results rather than errors.
package deriver

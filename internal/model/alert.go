package model

import "time"

// Label classifies which measurement sources are linked to an alert
type Label string

const (
	LabelOilOnly       Label = "oil_only"
	LabelTelemetryOnly Label = "telemetry_only"
	LabelBoth          Label = "both"
)

// Alert represents one equipment condition event
type Alert struct {
	AlertID    string     `json:"alert_id" parquet:"AlertId"`
	UnitID     string     `json:"unit_id" parquet:"UnitId"`
	Component  string     `json:"component" parquet:"Component"`
	TimeStart  *time.Time `json:"time_start,omitempty" parquet:"TimeStart,optional"`
	OilAlertID *string    `json:"oil_alert_id,omitempty" parquet:"OilAlertId,optional"`
	TelAlertID *string    `json:"tel_alert_id,omitempty" parquet:"TelAlertId,optional"`
	Label      *string    `json:"label,omitempty" parquet:"Label,optional"`

	// OilMeter is joined from the oil measurements at load time.
	OilMeter *string `json:"oil_meter,omitempty" parquet:"-"`
}

// HasOil reports whether the alert links into the oil dataset
func (a Alert) HasOil() bool {
	return a.OilAlertID != nil && *a.OilAlertID != ""
}

// HasTelemetry reports whether the alert links into the telemetry dataset
func (a Alert) HasTelemetry() bool {
	return a.TelAlertID != nil && *a.TelAlertID != ""
}

// LabelValue returns the label or an empty string
func (a Alert) LabelValue() string {
	if a.Label == nil {
		return ""
	}
	return *a.Label
}

// AIComment represents one generated maintenance recommendation
type AIComment struct {
	AICommentID string `json:"ai_comment_id" parquet:"AICommentId"`
	AlertID     string `json:"alert_id" parquet:"AlertId"`
	CommentText string `json:"comment_text" parquet:"CommentText"`
	CommentType string `json:"comment_type" parquet:"CommentType"`
}

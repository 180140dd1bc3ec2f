package model

import "time"

// BreachLevel is the ordered severity of an oil limit breach
type BreachLevel string

const (
	BreachLevelNone     BreachLevel = "none"
	BreachLevelAlert    BreachLevel = "alert"
	BreachLevelCritical BreachLevel = "critical"
	BreachLevelUrgent   BreachLevel = "urgent"
)

var breachRanks = map[BreachLevel]int{
	BreachLevelNone:     0,
	BreachLevelAlert:    1,
	BreachLevelCritical: 2,
	BreachLevelUrgent:   3,
}

// Rank orders breach levels; unknown values rank below none
func (b BreachLevel) Rank() int {
	if r, ok := breachRanks[b]; ok {
		return r
	}
	return -1
}

// Valid reports whether b is one of the known levels
func (b BreachLevel) Valid() bool {
	_, ok := breachRanks[b]
	return ok
}

// ParseBreachLevel maps a raw value to a level, defaulting to none for empty input
func ParseBreachLevel(s string) BreachLevel {
	if s == "" {
		return BreachLevelNone
	}
	return BreachLevel(s)
}

// OilMeasurement is one sampled value of one element for an oil-linked alert
type OilMeasurement struct {
	OilAlertID     string    `json:"oil_alert_id" parquet:"OilAlertId"`
	SampleDate     time.Time `json:"sample_date" parquet:"SampleDate"`
	UnitID         string    `json:"unit_id,omitempty" parquet:"UnitId,optional"`
	Component      string    `json:"component,omitempty" parquet:"Component,optional"`
	ElementName    string    `json:"element_name" parquet:"ElementName"`
	Value          float64   `json:"value" parquet:"Value"`
	LimitValue     *float64  `json:"limit_value,omitempty" parquet:"LimitValue,optional"`
	IsLimitReached bool      `json:"is_limit_reached" parquet:"IsLimitReached"`
	BreachLevel    *string   `json:"breach_level,omitempty" parquet:"BreachLevel,optional"`
	OilMeter       *string   `json:"oil_meter,omitempty" parquet:"OilMeter,optional"`
}

// Level returns the parsed breach level of the sample
func (m OilMeasurement) Level() BreachLevel {
	if m.BreachLevel == nil {
		return BreachLevelNone
	}
	return ParseBreachLevel(*m.BreachLevel)
}

// TelemetryMeasurement is one sensor reading for a telemetry-linked alert
type TelemetryMeasurement struct {
	TelAlertID      string    `json:"tel_alert_id" parquet:"TelAlertId"`
	Timestamp       time.Time `json:"timestamp" parquet:"Timestamp"`
	UnitID          string    `json:"unit_id,omitempty" parquet:"UnitId,optional"`
	Component       string    `json:"component,omitempty" parquet:"Component,optional"`
	VariableName    string    `json:"variable_name" parquet:"VariableName"`
	Value           float64   `json:"value" parquet:"Value"`
	UpperLimitValue *float64  `json:"upper_limit_value,omitempty" parquet:"UpperLimitValue,optional"`
	LowerLimitValue *float64  `json:"lower_limit_value,omitempty" parquet:"LowerLimitValue,optional"`
	IsLimitReached  bool      `json:"is_limit_reached" parquet:"IsLimitReached"`
	ComponentMeter  *string   `json:"component_meter,omitempty" parquet:"ComponentMeter,optional"`
}

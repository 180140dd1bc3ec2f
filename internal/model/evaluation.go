package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinGrade = 1
	MaxGrade = 7
)

// Evaluation is one evaluator's grade of one AI comment in the context of one alert.
// EvaluationID is assigned by the store; rows are never updated or deleted.
type Evaluation struct {
	EvaluationID int64     `json:"evaluation_id" parquet:"EvaluationId"`
	AICommentID  string    `json:"ai_comment_id" parquet:"AICommentId"`
	AlertID      string    `json:"alert_id" parquet:"AlertId"`
	UserID       *string   `json:"user_id,omitempty" parquet:"UserId,optional"`
	Grade        int       `json:"grade" parquet:"Grade"`
	Notes        *string   `json:"notes,omitempty" parquet:"Notes,optional"`
	CreatedAt    time.Time `json:"created_at" parquet:"CreatedAt"`
}

// Validate checks the grade range and required keys of a stored or loaded evaluation
func (e Evaluation) Validate() error {
	if err := ValidateGrade(e.Grade); err != nil {
		return err
	}
	if strings.TrimSpace(e.AICommentID) == "" {
		return fmt.Errorf("%w: ai_comment_id", ErrMissingField)
	}
	if strings.TrimSpace(e.AlertID) == "" {
		return fmt.Errorf("%w: alert_id", ErrMissingField)
	}
	return nil
}

// EvaluationCreate carries the caller-supplied fields of a new evaluation
type EvaluationCreate struct {
	AICommentID string  `json:"ai_comment_id"`
	AlertID     string  `json:"alert_id"`
	Grade       int     `json:"grade"`
	UserID      *string `json:"user_id,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// Validate rejects out-of-range grades and missing keys before anything is persisted
func (c EvaluationCreate) Validate() error {
	return Evaluation{AICommentID: c.AICommentID, AlertID: c.AlertID, Grade: c.Grade}.Validate()
}

// ToEvaluation builds the record to insert. Blank notes and user ids become nil.
func (c EvaluationCreate) ToEvaluation(now time.Time) (Evaluation, error) {
	if err := c.Validate(); err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		AICommentID: c.AICommentID,
		AlertID:     c.AlertID,
		UserID:      nonBlank(c.UserID),
		Grade:       c.Grade,
		Notes:       nonBlank(c.Notes),
		CreatedAt:   now.UTC(),
	}, nil
}

// ValidateGrade enforces the closed 1..7 grading scale
func ValidateGrade(grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return fmt.Errorf("%w: grade must be between %d-%d, got %d", ErrInvalidGrade, MinGrade, MaxGrade, grade)
	}
	return nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

package model

import "errors"

var (
	// ErrInvalidGrade is returned when a grade falls outside 1..7
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrMissingField is returned when a required evaluation key is empty
	ErrMissingField = errors.New("missing required field")
)

// IsValidation reports whether err is an input validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidGrade) || errors.Is(err, ErrMissingField)
}

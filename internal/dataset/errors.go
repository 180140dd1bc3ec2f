package dataset

import "errors"

var (
	// ErrDatasetMissing is returned when a required dataset file does not exist
	ErrDatasetMissing = errors.New("dataset file missing")

	// ErrUnknownDataset is returned for a file name that is not one of Files
	ErrUnknownDataset = errors.New("unknown dataset")
)

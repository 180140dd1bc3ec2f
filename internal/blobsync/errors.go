package blobsync

import "errors"

var (
	// ErrSyncDisabled is returned when object storage settings are incomplete
	ErrSyncDisabled = errors.New("blob sync disabled")

	// ErrNothingToExport is returned when the evaluation store is empty
	ErrNothingToExport = errors.New("no evaluations to export")

	// ErrUnknownProvider is returned for an unsupported blob provider
	ErrUnknownProvider = errors.New("unknown blob provider")
)

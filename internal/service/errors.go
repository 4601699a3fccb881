// Package service provides business logic services for Imagevault.
package service

import "errors"

// Common service errors. Failures are classified by the subsystem that
// caused them so handlers can map them to status codes with errors.Is.
var (
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("validation failed")

	// ErrStorageFailure indicates the object store failed.
	ErrStorageFailure = errors.New("object storage failure")

	// ErrThumbnailFailure indicates thumbnail generation failed.
	ErrThumbnailFailure = errors.New("thumbnail generation failure")

	// ErrMetadataFailure indicates the metadata store failed.
	ErrMetadataFailure = errors.New("metadata store failure")

	// ErrLockTimeout indicates a concurrent operation holds the record lock.
	ErrLockTimeout = errors.New("record is locked by a concurrent operation")

	// ErrInternalError indicates an unclassified internal failure.
	ErrInternalError = errors.New("internal server error")
)

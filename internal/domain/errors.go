// Package domain contains the core business entities for Imagevault.
package domain

import "errors"

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, storage, network).

var (
	// ErrImageNotFound indicates the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrImageNameRequired indicates the upload is missing a name.
	ErrImageNameRequired = errors.New("image name is required")

	// ErrFileEmpty indicates the uploaded file carried no bytes.
	ErrFileEmpty = errors.New("uploaded file is empty")

	// ErrUndecodableImage indicates the uploaded bytes are not a decodable image.
	ErrUndecodableImage = errors.New("file is not a decodable image")

	// ErrEmptyPatch indicates an update request with no fields to change.
	ErrEmptyPatch = errors.New("update contains no fields")

	// ErrInvalidPagination indicates skip or limit is outside the valid range.
	ErrInvalidPagination = errors.New("skip must be >= 0 and limit between 1 and 100")

	// ErrBlobNotFound indicates the requested blob does not exist in storage.
	ErrBlobNotFound = errors.New("blob not found")
)

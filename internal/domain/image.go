// Package domain contains the core business entities for Imagevault.
package domain

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Image represents one uploaded image and its denormalized download tally.
// The record is created by the ingestion pipeline; filename and URLs are
// immutable after creation, and Downloads only moves forward until the
// record is deleted.
type Image struct {
	// ID is the opaque unique identifier assigned by the metadata store.
	ID string `json:"id"`

	// Name is the display name supplied at upload time.
	Name string `json:"name"`

	// Description is free-form text, empty when not provided.
	Description string `json:"description"`

	// Filename is the storage key of the original blob (uuid + extension).
	Filename string `json:"filename"`

	// ThumbnailURL is the public URL of the thumbnail blob.
	ThumbnailURL string `json:"thumbnail_url"`

	// HDURL is the public URL of the original blob.
	HDURL string `json:"hd_url"`

	// FileSize is the original size in bytes.
	FileSize int64 `json:"file_size"`

	// ContentType is the MIME type of the original upload.
	ContentType string `json:"content_type"`

	// Downloads is the denormalized download counter, starting at 0.
	Downloads int64 `json:"downloads"`

	// Tags is the ordered set of tag strings attached to the image.
	Tags []string `json:"tags"`

	// CreatedAt is the record creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is set on the first metadata update and refreshed after.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// IsFeatured marks the image for featured listings.
	IsFeatured bool `json:"is_featured"`
}

// NewImage creates an Image record for a freshly ingested upload.
// The download counter starts at zero and CreatedAt is set to now.
func NewImage(name, description, filename, thumbnailURL, hdURL, contentType string, fileSize int64, tags []string, featured bool) *Image {
	if tags == nil {
		tags = []string{}
	}
	return &Image{
		Name:         name,
		Description:  description,
		Filename:     filename,
		ThumbnailURL: thumbnailURL,
		HDURL:        hdURL,
		FileSize:     fileSize,
		ContentType:  contentType,
		Downloads:    0,
		Tags:         tags,
		CreatedAt:    time.Now().UTC(),
		IsFeatured:   featured,
	}
}

// HasTag reports whether the image carries the given tag.
func (i *Image) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ImagePatch describes a partial metadata update. Nil fields are left
// untouched; filename, URLs and the download counter are never patchable.
type ImagePatch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsFeatured  *bool    `json:"is_featured,omitempty"`
}

// IsEmpty reports whether the patch carries no changes.
func (p ImagePatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Tags == nil && p.IsFeatured == nil
}

// ExtensionFor returns the storage-key extension for an uploaded file,
// preferring the original filename's extension and falling back to the
// content type. The result includes the leading dot, or is empty when
// nothing usable is known.
func ExtensionFor(filename, contentType string) string {
	if ext := filepath.Ext(filename); ext != "" {
		return strings.ToLower(ext)
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// ThumbnailKey derives the thumbnail storage key from an original key.
func ThumbnailKey(key string) string {
	return "thumb_" + key
}

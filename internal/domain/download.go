package domain

import "time"

// Download records a single download request against an Image.
// Download events are immutable: they are never updated and never
// individually deleted, they only accumulate. The reference to the image
// is soft; deleting an image does not cascade to its download history.
type Download struct {
	// ID is the opaque unique identifier assigned by the metadata store.
	ID string `json:"id"`

	// ImageID references the downloaded image.
	ImageID string `json:"image_id"`

	// IPAddress is the client address the request came from.
	IPAddress string `json:"ip_address"`

	// UserAgent is the client's User-Agent header.
	UserAgent string `json:"user_agent"`

	// Referer is the optional Referer header.
	Referer string `json:"referer,omitempty"`

	// CountryCode is the optional two-letter country code of the client.
	CountryCode string `json:"country_code,omitempty"`

	// Timestamp is when the download was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ClientInfo carries the request attributes captured for a download event.
type ClientInfo struct {
	IPAddress   string
	UserAgent   string
	Referer     string
	CountryCode string
}

// NewDownload creates a Download event for an image from client info.
// Missing IP and user agent default to "unknown", matching what is stored
// when a proxy strips the headers.
func NewDownload(imageID string, client ClientInfo) *Download {
	ip := client.IPAddress
	if ip == "" {
		ip = "unknown"
	}
	ua := client.UserAgent
	if ua == "" {
		ua = "unknown"
	}
	return &Download{
		ImageID:     imageID,
		IPAddress:   ip,
		UserAgent:   ua,
		Referer:     client.Referer,
		CountryCode: client.CountryCode,
		Timestamp:   time.Now().UTC(),
	}
}

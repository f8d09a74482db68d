package sink

import "time"

// DefaultContentType is used when a producer does not declare a content type.
const DefaultContentType = "application/octet-stream"

// FileInfo describes the content-level metadata attached to a delivery.
//
// Timestamps use zero values as sentinels so producers can skip computing
// real timestamps when they are not meaningful:
//   - LastModified zero means "now": the sink substitutes the current time
//     when serializing headers.
//   - Expires zero means "never": the sink omits any expiry header.
//
// FileInfo is a plain value with no identity; it is constructed once per
// content delivery and copied freely.
type FileInfo struct {
	// ContentType is the MIME type of the content.
	ContentType string

	// LastModified is the time of last modification. Zero means now.
	LastModified time.Time

	// Expires is the expiration time. Zero means never.
	Expires time.Time
}

// NewFileInfo returns a FileInfo with the given content type and sentinel
// timestamps. An empty contentType falls back to DefaultContentType.
func NewFileInfo(contentType string) FileInfo {
	if contentType == "" {
		contentType = DefaultContentType
	}
	return FileInfo{ContentType: contentType}
}

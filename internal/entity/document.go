package entity

import (
	"time"

	"github.com/google/uuid"

	"docproc/constants"
)

// Document represents an ingested financial document for data transfer between layers.
// Immutable once COMPLETED; corrections are recorded separately and never
// overwrite the original extraction.
type Document struct {
	ID            uuid.UUID                `json:"id"`
	ClientID      uuid.UUID                `json:"client_id"`
	Kind          constants.DocumentKind   `json:"kind"`
	Filename      string                   `json:"filename"`
	ByteSize      int64                    `json:"byte_size"`
	MimeType      string                   `json:"mime_type"`
	SourceChannel string                   `json:"source_channel"`
	Status        constants.DocumentStatus `json:"status"`
	FailureReason *string                  `json:"failure_reason,omitempty"`
	VendorID      *uuid.UUID               `json:"vendor_id,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

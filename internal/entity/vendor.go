package entity

import (
	"time"

	"github.com/google/uuid"
)

// VendorIdentity is a deduplicated counterparty. Created on first unmatched
// sighting; alternate names accumulate; never deleted, only deactivated on merge.
type VendorIdentity struct {
	ID               uuid.UUID  `json:"id"`
	PrimaryName      string     `json:"primary_name"`
	AlternateNames   []string   `json:"alternate_names"`
	GSTIN            *string    `json:"gstin,omitempty"`
	PAN              *string    `json:"pan,omitempty"`
	TransactionCount int        `json:"transaction_count"`
	TotalAmount      float64    `json:"total_amount"`
	Active           bool       `json:"active"`
	MergedInto       *uuid.UUID `json:"merged_into,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

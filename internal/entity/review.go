package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"docproc/constants"
)

// ReviewQueueItem is the unit of human review for a document that failed
// auto-approval. One-to-one with its document; a document has at most one
// active item. Created by the router, mutated only by the reviewer workflow.
type ReviewQueueItem struct {
	ID            uuid.UUID                `json:"id"`
	DocumentID    uuid.UUID                `json:"document_id"`
	ExtractionID  uuid.UUID                `json:"extraction_id"`
	ExtractedData json.RawMessage          `json:"extracted_data"`
	Findings      []ValidationFinding      `json:"findings"`
	Priority      constants.ReviewPriority `json:"priority"`
	Status        constants.ReviewStatus   `json:"status"`
	AssignedTo    *string                  `json:"assigned_to,omitempty"`
	AssignedAt    *time.Time               `json:"assigned_at,omitempty"`
	CorrectedData json.RawMessage          `json:"corrected_data,omitempty"`
	ReviewerNotes *string                  `json:"reviewer_notes,omitempty"`
	ResolvedAt    *time.Time               `json:"resolved_at,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// Correction is a single field-level diff captured at approval time.
// Write-once, append-only; feeds future confidence calibration.
type Correction struct {
	ID             uuid.UUID `json:"id"`
	ReviewItemID   uuid.UUID `json:"review_item_id"`
	DocumentID     uuid.UUID `json:"document_id"`
	FieldName      string    `json:"field_name"`
	OriginalValue  *string   `json:"original_value,omitempty"`
	CorrectedValue *string   `json:"corrected_value,omitempty"`
	CorrectionType string    `json:"correction_type"` // modified | added | removed
	CreatedAt      time.Time `json:"created_at"`
}

// LedgerRecord is the normalized debit/credit-ready handoff emitted on approval,
// consumed by the external bookkeeping collaborator.
type LedgerRecord struct {
	DocumentID   uuid.UUID `json:"document_id"`
	VendorName   string    `json:"vendor_name"`
	VendorGSTIN  *string   `json:"vendor_gstin,omitempty"`
	DocumentDate string    `json:"document_date"`
	Subtotal     float64   `json:"subtotal"`
	TaxTotal     float64   `json:"tax_total"`
	GrandTotal   float64   `json:"grand_total"`
	Currency     string    `json:"currency"`
}

package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"docproc/constants"
)

// ExtractionResult is one successful OCR+extraction cycle for a document.
// Never mutated after creation; re-extraction inserts a new row.
type ExtractionResult struct {
	ID                 uuid.UUID          `json:"id"`
	DocumentID         uuid.UUID          `json:"document_id"`
	SchemaVersion      string             `json:"schema_version"`
	Fields             json.RawMessage    `json:"fields"`
	FieldConfidence    map[string]float64 `json:"field_confidence_scores"`
	OverallConfidence  float64            `json:"overall_confidence"`
	WeightedConfidence float64            `json:"weighted_confidence"`
	OCRConfidence      float64            `json:"ocr_confidence"`
	OCRText            *string            `json:"ocr_text,omitempty"`
	ProcessingTime     time.Duration      `json:"processing_time"`
	CreatedAt          time.Time          `json:"created_at"`
}

// ValidationFinding is a single deterministic business-rule outcome.
// Errors block auto-approval; warnings do not. Findings are attached to the
// result and drive routing, never returned as Go errors.
type ValidationFinding struct {
	FieldPath string             `json:"field_path"`
	Severity  constants.Severity `json:"severity"`
	Message   string             `json:"message"`
}

// HasErrors reports whether any finding in the set is an error.
func HasErrors(findings []ValidationFinding) bool {
	for _, f := range findings {
		if f.Severity == constants.SeverityError {
			return true
		}
	}
	return false
}

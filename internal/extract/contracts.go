package extract

import (
	"context"

	"docproc/constants"
	"docproc/internal/entity"
)

// SchemaVersion tags every persisted extraction payload.
const SchemaVersion = "v1"

// Extraction is the typed result of mapping recognized text to a document
// schema. Exactly one variant is set, selected by Kind.
type Extraction struct {
	Kind            constants.DocumentKind
	SchemaVersion   string
	Invoice         *entity.InvoiceFields
	KYC             *entity.KYCFields
	FieldConfidence map[string]float64
	RawJSON         []byte
}

// Request carries everything the extractor needs for one document.
type Request struct {
	Text          string
	Kind          constants.DocumentKind
	FilenameHint  string
	OCRConfidence float64
}

// FieldExtractor maps normalized text to the typed schema for a declared
// document kind. The pipeline depends on this interface, not a provider.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req Request) (*Extraction, error)
}

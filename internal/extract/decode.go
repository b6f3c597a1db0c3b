package extract

import (
	"encoding/json"
	"fmt"

	"docproc/constants"
	"docproc/internal/common"
	"docproc/internal/entity"
)

type envelope struct {
	Fields           json.RawMessage    `json:"fields"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// DecodePayload validates a raw model response against the per-kind schema and
// unmarshals it into the typed variant. Structural gaps the schema cannot
// express (empty line items, entirely-null required sections) are enforced
// here; both reject the document with ErrSchemaViolation.
func DecodePayload(kind constants.DocumentKind, raw []byte) (*Extraction, error) {
	schema, err := CompileSchema(kind)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, common.WrapError(common.ErrSchemaViolation, "decode payload", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, common.WrapError(common.ErrSchemaViolation, "schema validate", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, common.WrapError(common.ErrSchemaViolation, "decode envelope", err)
	}

	out := &Extraction{
		Kind:            kind,
		SchemaVersion:   SchemaVersion,
		FieldConfidence: env.ConfidenceScores,
		RawJSON:         raw,
	}

	if kind.IsKYC() {
		var f entity.KYCFields
		if err := json.Unmarshal(env.Fields, &f); err != nil {
			return nil, common.WrapError(common.ErrSchemaViolation, "decode kyc fields", err)
		}
		if f.DocumentNumber == nil || f.HolderName == nil {
			return nil, common.WrapError(common.ErrSchemaViolation, "kyc fields",
				fmt.Errorf("document_number and holder_name are required"))
		}
		out.KYC = &f
		return out, nil
	}

	var f entity.InvoiceFields
	if err := json.Unmarshal(env.Fields, &f); err != nil {
		return nil, common.WrapError(common.ErrSchemaViolation, "decode invoice fields", err)
	}
	if err := checkInvoiceShape(&f); err != nil {
		return nil, common.WrapError(common.ErrSchemaViolation, "invoice fields", err)
	}
	out.Invoice = &f
	return out, nil
}

// checkInvoiceShape rejects payloads missing a required top-level section.
func checkInvoiceShape(f *entity.InvoiceFields) error {
	if len(f.LineItems) == 0 {
		return fmt.Errorf("line_items must not be empty")
	}
	if f.Issuer == nil || partyEmpty(f.Issuer) {
		return fmt.Errorf("issuer section is entirely missing")
	}
	if f.Recipient == nil || partyEmpty(f.Recipient) {
		return fmt.Errorf("recipient section is entirely missing")
	}
	if f.TaxSummary == nil || taxSummaryEmpty(f.TaxSummary) {
		return fmt.Errorf("tax_summary section is entirely missing")
	}
	if f.DocumentNumber == nil && f.DocumentDate == nil {
		return fmt.Errorf("identification section is entirely missing")
	}
	return nil
}

func partyEmpty(p *entity.Party) bool {
	return p.LegalName == nil && p.GSTIN == nil && p.PAN == nil &&
		p.Address == nil && p.StateCode == nil
}

func taxSummaryEmpty(s *entity.TaxSummary) bool {
	return s.Subtotal == nil && s.CGST == nil && s.SGST == nil &&
		s.IGST == nil && s.GrandTotal == nil
}

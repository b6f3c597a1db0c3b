package extract

import (
	"strings"

	"docproc/constants"
)

// BuildSystemPrompt composes the fixed instruction set for a document kind.
// Deterministic per kind: the same kind always yields the same prompt.
func BuildSystemPrompt(kind constants.DocumentKind) string {
	parts := []string{
		"You are a financial document parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Every leaf under 'fields' that you cannot read from the document MUST be null. Never guess or fabricate a value.",
		"For every non-null leaf, set a matching entry in 'confidence_scores' keyed by the field path (e.g. 'issuer.gstin', 'line_items[0].amount'), with your confidence in [0,1].",
	}

	switch {
	case kind.IsKYC():
		parts = append(parts,
			"The document is an identity-verification record ("+string(kind)+").",
			"Extract the document number exactly as printed, preserving letters and digits.",
		)
	case kind == constants.KindTaxCreditNote:
		parts = append(parts,
			"The document is a GST credit note. Amounts reduce the original invoice; keep them positive as printed.",
			"Extract GSTIN (15 characters) and PAN (10 characters) exactly as printed.",
			"Put CGST/SGST/IGST amounts in the tax_summary; never sum them into the subtotal.",
		)
	default:
		parts = append(parts,
			"The document is a GST tax invoice.",
			"Extract GSTIN (15 characters) and PAN (10 characters) exactly as printed.",
			"Each line item carries description, HSN/SAC code, quantity, rate, amount and its tax split.",
			"Put CGST/SGST/IGST amounts in the tax_summary; never sum them into the subtotal.",
		)
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the recognized text with its filename hint.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	text := strings.TrimSpace(req.Text)
	b.WriteString("\nRecognized text (first ~6k chars):\n")
	if len(text) > 6000 {
		b.WriteString(text[:6000])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}

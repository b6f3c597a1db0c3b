package entity

// Typed extraction payloads, one variant per document kind. Absent fields are
// nil, never fabricated; downstream code cannot silently read a missing field.

// Party is one side of a commercial document (issuer or recipient).
type Party struct {
	LegalName *string `json:"legal_name"`
	GSTIN     *string `json:"gstin"`
	PAN       *string `json:"pan"`
	Address   *string `json:"address"`
	StateCode *string `json:"state_code"`
}

// LineItem is a single billed row with its per-line tax breakdown.
type LineItem struct {
	Description *string  `json:"description"`
	HSNCode     *string  `json:"hsn_code"`
	Quantity    *float64 `json:"quantity"`
	Rate        *float64 `json:"rate"`
	Amount      *float64 `json:"amount"`
	TaxRate     *float64 `json:"tax_rate"`
	CGST        *float64 `json:"cgst"`
	SGST        *float64 `json:"sgst"`
	IGST        *float64 `json:"igst"`
}

// TaxSummary is the document-level totals block.
type TaxSummary struct {
	Subtotal   *float64 `json:"subtotal"`
	CGST       *float64 `json:"cgst"`
	SGST       *float64 `json:"sgst"`
	IGST       *float64 `json:"igst"`
	RoundOff   *float64 `json:"round_off"`
	GrandTotal *float64 `json:"grand_total"`
}

// InvoiceFields is the extraction payload for invoices and tax credit notes.
type InvoiceFields struct {
	DocumentNumber *string    `json:"document_number"`
	DocumentDate   *string    `json:"document_date"` // YYYY-MM-DD
	DueDate        *string    `json:"due_date,omitempty"`
	PlaceOfSupply  *string    `json:"place_of_supply,omitempty"`
	Issuer         *Party     `json:"issuer"`
	Recipient      *Party     `json:"recipient"`
	LineItems      []LineItem `json:"line_items"`
	TaxSummary     *TaxSummary `json:"tax_summary"`
}

// KYCFields is the extraction payload for identity-verification documents.
type KYCFields struct {
	DocumentNumber *string `json:"document_number"`
	HolderName     *string `json:"holder_name"`
	FatherName     *string `json:"father_name,omitempty"`
	DateOfBirth    *string `json:"date_of_birth,omitempty"`
	Address        *string `json:"address,omitempty"`
	IssueDate      *string `json:"issue_date,omitempty"`
}

// F is a convenience constructor for optional float fields in tests and mappers.
func F(v float64) *float64 { return &v }

// S is a convenience constructor for optional string fields in tests and mappers.
func S(v string) *string { return &v }

// Deref returns the value of an optional float, or 0 when absent.
func Deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// DerefS returns the value of an optional string, or "" when absent.
func DerefS(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

package validate

import (
	"fmt"
	"math"
	"time"

	"docproc/constants"
	"docproc/internal/entity"
)

// Tolerances, in currency units.
const (
	SplitTaxTolerance = 0.01 // CGST vs SGST symmetry
	TotalTolerance    = 1.00 // grand total reconciliation (OCR rounding noise)
	LineTolerance     = 0.50 // per-line quantity x rate
)

// Validator applies the deterministic country-specific business rules.
// Findings are data, not errors: callers feed them to the router.
type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// ValidateInvoice runs every rule against an invoice-shaped payload.
func (v *Validator) ValidateInvoice(f *entity.InvoiceFields) []entity.ValidationFinding {
	var findings []entity.ValidationFinding

	findings = append(findings, v.checkParty("issuer", f.Issuer)...)
	findings = append(findings, v.checkParty("recipient", f.Recipient)...)
	findings = append(findings, v.checkTaxSummary(f.TaxSummary)...)
	findings = append(findings, v.checkLineItems(f.LineItems)...)
	findings = append(findings, v.checkDates(f.DocumentDate, f.DueDate)...)

	return findings
}

func (v *Validator) checkParty(path string, p *entity.Party) []entity.ValidationFinding {
	if p == nil {
		return nil
	}
	var out []entity.ValidationFinding

	if g := entity.DerefS(p.GSTIN); g != "" {
		switch {
		case !ValidGSTINFormat(g):
			out = append(out, errorAt(path+".gstin", "GSTIN %q does not match the required format", g))
		case !ValidateChecksum(g):
			out = append(out, errorAt(path+".gstin", "GSTIN %q fails checksum verification", g))
		case !constants.KnownStateCode(StateCode(g)):
			out = append(out, errorAt(path+".gstin", "GSTIN %q carries unknown state code %s", g, StateCode(g)))
		}
	}
	if pan := entity.DerefS(p.PAN); pan != "" && !ValidPANFormat(pan) {
		out = append(out, errorAt(path+".pan", "PAN %q does not match the required format", pan))
	}
	return out
}

func (v *Validator) checkTaxSummary(s *entity.TaxSummary) []entity.ValidationFinding {
	if s == nil {
		return nil
	}
	var out []entity.ValidationFinding

	cgst := entity.Deref(s.CGST)
	sgst := entity.Deref(s.SGST)
	igst := entity.Deref(s.IGST)

	// Inter-jurisdiction and split intra-jurisdiction tax are mutually exclusive.
	if igst > 0 && (cgst > 0 || sgst > 0) {
		out = append(out, errorAt("tax_summary",
			"IGST (%.2f) and CGST/SGST (%.2f/%.2f) must not both be present", igst, cgst, sgst))
	}

	// The two halves of the split tax must match.
	if (cgst > 0 || sgst > 0) && math.Abs(cgst-sgst) > SplitTaxTolerance {
		out = append(out, errorAt("tax_summary",
			"CGST (%.2f) and SGST (%.2f) must be equal", cgst, sgst))
	}

	// Reconciliation: drift beyond tolerance is a warning, not fatal.
	if s.Subtotal != nil && s.GrandTotal != nil {
		expected := *s.Subtotal + cgst + sgst + igst + entity.Deref(s.RoundOff)
		if drift := math.Abs(expected - *s.GrandTotal); drift > TotalTolerance {
			out = append(out, warnAt("tax_summary.grand_total",
				"grand total %.2f differs from computed %.2f by %.2f", *s.GrandTotal, expected, drift))
		}
	}
	return out
}

func (v *Validator) checkLineItems(items []entity.LineItem) []entity.ValidationFinding {
	var out []entity.ValidationFinding
	for i, li := range items {
		path := fmt.Sprintf("line_items[%d]", i)

		if li.Quantity != nil && li.Rate != nil && li.Amount != nil {
			expected := *li.Quantity * *li.Rate
			if math.Abs(expected-*li.Amount) > LineTolerance {
				out = append(out, warnAt(path+".amount",
					"amount %.2f differs from quantity x rate %.2f", *li.Amount, expected))
			}
		}
		if code := entity.DerefS(li.HSNCode); code != "" && !ValidHSNCode(code) {
			out = append(out, warnAt(path+".hsn_code", "HSN/SAC code %q is not a 4/6/8-digit number", code))
		}
	}
	return out
}

func (v *Validator) checkDates(docDate, dueDate *string) []entity.ValidationFinding {
	var out []entity.ValidationFinding
	if docDate == nil {
		return nil
	}

	issued, err := time.Parse("2006-01-02", *docDate)
	if err != nil {
		out = append(out, errorAt("document_date", "unparseable date %q", *docDate))
		return out
	}
	// dates parse to midnight UTC, so any same-day timestamp is not "after"
	if issued.After(v.now()) {
		out = append(out, errorAt("document_date", "document date %s is in the future", *docDate))
	}
	if dueDate != nil {
		due, err := time.Parse("2006-01-02", *dueDate)
		if err != nil {
			out = append(out, warnAt("due_date", "unparseable date %q", *dueDate))
		} else if due.Before(issued) {
			out = append(out, warnAt("due_date", "due date %s precedes document date %s", *dueDate, *docDate))
		}
	}
	return out
}

func errorAt(path, format string, args ...any) entity.ValidationFinding {
	return entity.ValidationFinding{
		FieldPath: path,
		Severity:  constants.SeverityError,
		Message:   fmt.Sprintf(format, args...),
	}
}

func warnAt(path, format string, args ...any) entity.ValidationFinding {
	return entity.ValidationFinding{
		FieldPath: path,
		Severity:  constants.SeverityWarning,
		Message:   fmt.Sprintf(format, args...),
	}
}

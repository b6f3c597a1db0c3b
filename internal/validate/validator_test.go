package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docproc/constants"
	"docproc/internal/entity"
)

func fixedValidator() *Validator {
	v := NewValidator()
	v.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return v
}

// intraStateInvoice is the reference scenario: subtotal 10000, 18% GST split.
func intraStateInvoice() *entity.InvoiceFields {
	return &entity.InvoiceFields{
		DocumentNumber: entity.S("INV-001"),
		DocumentDate:   entity.S("2026-08-01"),
		Issuer: &entity.Party{
			LegalName: entity.S("Umesh Traders"),
			GSTIN:     entity.S("27AAPFU0939F1ZV"),
			StateCode: entity.S("27"),
		},
		Recipient: &entity.Party{
			LegalName: entity.S("Bharat Retail"),
			GSTIN:     entity.S("29AAGCB7383J1Z4"),
			StateCode: entity.S("29"),
		},
		LineItems: []entity.LineItem{
			{
				Description: entity.S("Consulting services"),
				HSNCode:     entity.S("9983"),
				Quantity:    entity.F(1),
				Rate:        entity.F(10000),
				Amount:      entity.F(10000),
				TaxRate:     entity.F(18),
				CGST:        entity.F(900),
				SGST:        entity.F(900),
			},
		},
		TaxSummary: &entity.TaxSummary{
			Subtotal:   entity.F(10000),
			CGST:       entity.F(900),
			SGST:       entity.F(900),
			IGST:       entity.F(0),
			GrandTotal: entity.F(11800),
		},
	}
}

func severities(findings []entity.ValidationFinding) (errors, warnings int) {
	for _, f := range findings {
		switch f.Severity {
		case constants.SeverityError:
			errors++
		case constants.SeverityWarning:
			warnings++
		}
	}
	return
}

func TestValidateCleanIntraStateInvoice(t *testing.T) {
	findings := fixedValidator().ValidateInvoice(intraStateInvoice())
	errs, warns := severities(findings)
	assert.Zero(t, errs, "findings: %+v", findings)
	assert.Zero(t, warns, "findings: %+v", findings)
}

func TestMutualExclusivityError(t *testing.T) {
	inv := intraStateInvoice()
	inv.TaxSummary.IGST = entity.F(1800)

	findings := fixedValidator().ValidateInvoice(inv)
	errs, _ := severities(findings)
	require.NotZero(t, errs)

	found := false
	for _, f := range findings {
		if f.FieldPath == "tax_summary" && f.Severity == constants.SeverityError {
			found = true
		}
	}
	assert.True(t, found, "expected mutual-exclusivity error on tax_summary")
}

func TestSplitTaxSymmetry(t *testing.T) {
	inv := intraStateInvoice()
	inv.TaxSummary.SGST = entity.F(905) // 5.00 asymmetry

	findings := fixedValidator().ValidateInvoice(inv)
	errs, _ := severities(findings)
	assert.NotZero(t, errs)
}

func TestSplitTaxWithinTolerancePasses(t *testing.T) {
	inv := intraStateInvoice()
	inv.TaxSummary.SGST = entity.F(900.009)

	findings := fixedValidator().ValidateInvoice(inv)
	errs, _ := severities(findings)
	assert.Zero(t, errs)
}

func TestReconciliationTolerance(t *testing.T) {
	t.Run("within one unit passes silently", func(t *testing.T) {
		inv := intraStateInvoice()
		inv.TaxSummary.GrandTotal = entity.F(11800.90)
		findings := fixedValidator().ValidateInvoice(inv)
		errs, warns := severities(findings)
		assert.Zero(t, errs)
		assert.Zero(t, warns)
	})
	t.Run("beyond one unit is a warning, never an error", func(t *testing.T) {
		inv := intraStateInvoice()
		inv.TaxSummary.GrandTotal = entity.F(11805)
		findings := fixedValidator().ValidateInvoice(inv)
		errs, warns := severities(findings)
		assert.Zero(t, errs)
		assert.Equal(t, 1, warns)
	})
}

func TestGSTINChecksumFailureIsError(t *testing.T) {
	inv := intraStateInvoice()
	inv.Issuer.GSTIN = entity.S("27AAPFU0939F1ZA") // bad check digit

	findings := fixedValidator().ValidateInvoice(inv)
	errs, _ := severities(findings)
	assert.Equal(t, 1, errs)
}

func TestMalformedGSTINIsError(t *testing.T) {
	inv := intraStateInvoice()
	inv.Issuer.GSTIN = entity.S("9AAPFU0939F1ZV") // 14 chars, missing state digit

	findings := fixedValidator().ValidateInvoice(inv)
	errs, _ := severities(findings)
	assert.Equal(t, 1, errs)
}

func TestLineItemAmountMismatchIsWarning(t *testing.T) {
	inv := intraStateInvoice()
	inv.LineItems[0].Amount = entity.F(10100)

	findings := fixedValidator().ValidateInvoice(inv)
	errs, warns := severities(findings)
	assert.Zero(t, errs)
	assert.NotZero(t, warns)
}

func TestFutureDatedDocumentIsError(t *testing.T) {
	inv := intraStateInvoice()
	inv.DocumentDate = entity.S("2026-09-15")

	findings := fixedValidator().ValidateInvoice(inv)
	errs, _ := severities(findings)
	assert.Equal(t, 1, errs)
}

func TestDueBeforeIssueIsWarning(t *testing.T) {
	inv := intraStateInvoice()
	inv.DueDate = entity.S("2026-07-01")

	findings := fixedValidator().ValidateInvoice(inv)
	errs, warns := severities(findings)
	assert.Zero(t, errs)
	assert.Equal(t, 1, warns)
}

func TestNilSectionsProduceNoFindings(t *testing.T) {
	findings := fixedValidator().ValidateInvoice(&entity.InvoiceFields{})
	assert.Empty(t, findings)
}
